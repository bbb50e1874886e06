package node

import (
	"path/filepath"
	"time"

	"chainbft_core/state"

	"github.com/pkg/errors"
	cfg "github.com/tendermint/tendermint/config"
)

const (
	DefaultDir = ".chainbft"

	defaultSignerKeyName = "signer_key.json"
)

// Config 一个本地节点的全部配置
type Config struct {
	RootDir string `mapstructure:"home"`

	LogLevel string `mapstructure:"log_level"`

	// BLS签名私钥文件, 不存在时执行结果不签名
	SignerKey string `mapstructure:"signer_key_file"`

	// 为空时不启动rpc服务
	RPCListenAddress string `mapstructure:"rpc_laddr"`

	// 大于0时节点启动后每隔ProposeTimeout自动进行一轮, 打包mempool中的交易
	ProposeTimeout time.Duration `mapstructure:"propose_timeout"`

	State   *state.Config      `mapstructure:"state"`
	Mempool *cfg.MempoolConfig `mapstructure:"mempool"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		SignerKey:        filepath.Join("config", defaultSignerKeyName),
		RPCListenAddress: "",
		ProposeTimeout:   0,
		State:            state.DefaultConfig(),
		Mempool:          cfg.DefaultMempoolConfig(),
	}
}

func TestConfig() *Config {
	conf := DefaultConfig()
	conf.LogLevel = "debug"
	conf.State = state.TestConfig()
	conf.Mempool = cfg.TestMempoolConfig()
	return conf
}

// SetRoot sets the RootDir for all Config structs
func (c *Config) SetRoot(root string) *Config {
	c.RootDir = root
	return c
}

func (c *Config) SignerKeyFile() string {
	return rootify(c.SignerKey, c.RootDir)
}

func (c *Config) DBDir() string {
	return rootify(c.State.DBDir, c.RootDir)
}

func (c *Config) ValidateBasic() error {
	if c.ProposeTimeout < 0 {
		return errors.New("propose_timeout can't be negative")
	}
	if err := c.State.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [state] section")
	}
	if err := c.Mempool.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [mempool] section")
	}
	return nil
}

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
