package commands

import (
	"testing"

	"chainbft_core/node"
	"chainbft_core/privval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tmos "github.com/tendermint/tendermint/libs/os"
)

func TestInitFilesWithConfig(t *testing.T) {
	conf := node.TestConfig().SetRoot(t.TempDir())
	seed = "init-seed"
	defer func() { seed = "" }()

	require.NoError(t, initFilesWithConfig(conf))
	assert.True(t, tmos.FileExists(conf.ConfigFile()))
	require.True(t, tmos.FileExists(conf.SignerKeyFile()))

	signer, err := privval.LoadSigner(conf.SignerKeyFile())
	require.NoError(t, err)
	expected, err := privval.GenSigner("", []byte("init-seed"))
	require.NoError(t, err)
	assert.Equal(t, expected.Key.PubKey, signer.Key.PubKey)

	// 再次初始化不会覆盖已有的私钥
	seed = "other-seed"
	require.NoError(t, initFilesWithConfig(conf))
	again, err := privval.LoadSigner(conf.SignerKeyFile())
	require.NoError(t, err)
	assert.Equal(t, signer.Key.PubKey, again.Key.PubKey)
}
