package main

import (
	"os"
	"path/filepath"

	cmd "chainbft_core/cmd/commands"
	nm "chainbft_core/node"

	"github.com/tendermint/tendermint/libs/cli"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cli.NewCompletionCmd(rootCmd, true),
	)

	// NOTE:
	// Users wishing to:
	//	* Supply their own state computer
	//	* Provide their own DB implementation
	// can copy this file and use something other than the
	// DefaultNewNode function
	nodeFunc := nm.DefaultNewNode

	rootCmd.AddCommand(
		cmd.GenSignerCmd,
		cmd.ShowLedgerCmd,
		cmd.VersionCmd,
		cmd.NewSimulateCmd(nodeFunc),
	)
	cmd := cli.PrepareBaseCmd(rootCmd, "CB", os.ExpandEnv(filepath.Join("$HOME", nm.DefaultDir)))

	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
