package commands

import (
	"chainbft_core/node"
	"chainbft_core/privval"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
)

// InitFilesCmd initialises a fresh node home: config file, signer key and
// data directory.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a local node",
	RunE:  initFiles,
}

func init() {
	InitFilesCmd.Flags().StringVar(&seed, "seed", "", "签名私钥的随机数种子, 为空时随机生成")
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *node.Config) error {
	node.EnsureRoot(config)

	keyFile := config.SignerKeyFile()
	if tmos.FileExists(keyFile) {
		logger.Info("Found signer", "keyFile", keyFile)
	} else {
		var seedBytes []byte
		if seed != "" {
			seedBytes = []byte(seed)
		}
		signer, err := privval.GenSigner(keyFile, seedBytes)
		if err != nil {
			return err
		}
		if err := signer.Save(); err != nil {
			return err
		}
		logger.Info("Generated signer", "keyFile", keyFile, "address", signer.GetAddress())
	}

	logger.Info("Initialized node home", "config", config.ConfigFile(), "data", config.DBDir())
	return nil
}
