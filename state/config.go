package state

import (
	"errors"
)

// 账本数据库后端
const (
	GoLevelDBBackend = "goleveldb"
	MemDBBackend     = "memdb"
)

// Config 执行与提交模块的配置
type Config struct {
	ChainID string `mapstructure:"chain_id"`

	// 剪枝后仍保留在内存中的区块数
	MaxPrunedBlocksInMem int `mapstructure:"max_pruned_blocks_in_mem"`

	// 执行与排序解耦时, 投票不包含执行结果
	DecoupledExecution bool `mapstructure:"decoupled_execution"`

	// 一个区块最多打包的交易数, 负数表示不限制
	MaxBlockTxs int `mapstructure:"max_block_txs"`

	DBBackend string `mapstructure:"db_backend"`
	DBDir     string `mapstructure:"db_dir"`

	Prometheus          bool   `mapstructure:"prometheus"`
	PrometheusNamespace string `mapstructure:"prometheus_namespace"`
}

func DefaultConfig() *Config {
	return &Config{
		ChainID:              "chainbft",
		MaxPrunedBlocksInMem: 100,
		DecoupledExecution:   false,
		MaxBlockTxs:          1000,
		DBBackend:            GoLevelDBBackend,
		DBDir:                "data",
		Prometheus:           false,
		PrometheusNamespace:  "chainbft",
	}
}

func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.ChainID = "state_test"
	cfg.MaxPrunedBlocksInMem = 10
	cfg.MaxBlockTxs = -1
	cfg.DBBackend = MemDBBackend
	return cfg
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *Config) ValidateBasic() error {
	if cfg.ChainID == "" {
		return errors.New("chain_id can't be empty")
	}
	if cfg.MaxPrunedBlocksInMem < 0 {
		return errors.New("max_pruned_blocks_in_mem can't be negative")
	}
	switch cfg.DBBackend {
	case GoLevelDBBackend, MemDBBackend:
	default:
		return errors.New("unsupported db_backend " + cfg.DBBackend)
	}
	return nil
}
