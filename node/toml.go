package node

import (
	"bytes"
	"path/filepath"
	"text/template"

	tmos "github.com/tendermint/tendermint/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and writes the config file if it doesn't exist.
func EnsureRoot(config *Config) {
	if err := tmos.EnsureDir(config.RootDir, DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Dir(config.SignerKeyFile()), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(config.DBDir(), DefaultDirPerm); err != nil {
		panic(err.Error())
	}

	configFilePath := config.ConfigFile()
	if !tmos.FileExists(configFilePath) {
		WriteConfigFile(configFilePath, config)
	}
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.RootDir, "config", "config.toml")
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	tmos.MustWriteFile(configFilePath, buffer.Bytes(), 0644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in node/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data").

# Output level for logging, including package level options
log_level = "{{ .LogLevel }}"

# Path to the BLS key used to sign execution results.
# Execution results are not signed when the file does not exist.
signer_key_file = "{{ js .SignerKey }}"

# TCP or UNIX socket address for the RPC server to listen on.
# The RPC server is not started when empty.
rpc_laddr = "{{ .RPCListenAddress }}"

# When positive, the node runs one round every propose_timeout and packs the
# txs received over RPC. Rounds are only driven by the caller when zero.
propose_timeout = "{{ .ProposeTimeout }}"

#######################################################
###         Execution and Commit Configuration      ###
#######################################################
[state]

chain_id = "{{ .State.ChainID }}"

# Number of pruned blocks kept in memory after a commit
max_pruned_blocks_in_mem = {{ .State.MaxPrunedBlocksInMem }}

# Votes do not carry the execution result when ordering and execution are
# decoupled
decoupled_execution = {{ .State.DecoupledExecution }}

# Maximum number of txs in a proposed block, negative means no limit
max_block_txs = {{ .State.MaxBlockTxs }}

# Database backend: goleveldb | memdb
db_backend = "{{ .State.DBBackend }}"

# Database directory
db_dir = "{{ js .State.DBDir }}"

# When true, Prometheus metrics are served under /metrics on rpc_laddr
prometheus = {{ .State.Prometheus }}

prometheus_namespace = "{{ .State.PrometheusNamespace }}"

#######################################################
###          Mempool Configuration Option          ###
#######################################################
[mempool]

# Maximum number of transactions in the mempool
size = {{ .Mempool.Size }}

# Limit the total size of all txs in the mempool.
max_txs_bytes = {{ .Mempool.MaxTxsBytes }}

# Size of the cache (used to filter transactions we saw earlier) in transactions
cache_size = {{ .Mempool.CacheSize }}

# Maximum size of a single transaction.
max_tx_bytes = {{ .Mempool.MaxTxBytes }}
`
