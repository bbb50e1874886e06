package commands

import (
	"fmt"

	"chainbft_core/privval"

	"github.com/spf13/cobra"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
)

var seed string

// GenSignerCmd 生成签名执行结果用的BLS公私钥对
var GenSignerCmd = &cobra.Command{
	Use:     "gen-signer",
	Aliases: []string{"gen_signer"},
	Args:    cobra.NoArgs,
	Short:   "Generate new signer keypair",
	PreRun:  deprecateSnakeCase,
	RunE:    genSigner,
}

func init() {
	GenSignerCmd.Flags().StringVar(&seed, "seed", "", "随机数种子, 为空时随机生成私钥")
}

func genSigner(cmd *cobra.Command, args []string) error {
	keyFile := config.SignerKeyFile()
	if tmos.FileExists(keyFile) {
		logger.Info("Found signer", "keyFile", keyFile)
		return nil
	}

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

	jsbz, err := tmjson.Marshal(signer.Validator(1))
	if err != nil {
		return err
	}
	fmt.Printf(`%v
`, string(jsbz))
	return nil
}
