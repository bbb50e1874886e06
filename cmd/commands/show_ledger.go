package commands

import (
	"fmt"

	"chainbft_core/store"

	"github.com/spf13/cobra"
)

var (
	epoch   uint64
	showTxs bool
)

func init() {
	ShowLedgerCmd.Flags().Uint64Var(&epoch, "epoch", 0, "要列出的epoch, 为0时列出最后提交区块所在的epoch")
	ShowLedgerCmd.Flags().BoolVar(&showTxs, "txs", false, "同时打印每个区块提交的交易")
}

// ShowLedgerCmd 打印账本中已经提交的区块
var ShowLedgerCmd = &cobra.Command{
	Use:     "show-ledger",
	Aliases: []string{"show_ledger"},
	Short:   "Show blocks committed to the ledger",
	PreRun:  deprecateSnakeCase,
	RunE:    showLedger,
}

func showLedger(cmd *cobra.Command, args []string) error {
	ledger, err := store.NewLedgerStore("ledger", config.State.DBBackend, config.DBDir(), logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	last, err := ledger.LastCommitted()
	if err != nil {
		return err
	}
	if last == nil {
		fmt.Println("ledger is empty")
		return nil
	}
	fmt.Printf("last committed: %v\n", last)

	e := epoch
	if e == 0 {
		e = last.Epoch
	}
	blocks, err := ledger.CommittedBlocks(e)
	if err != nil {
		return err
	}
	for _, info := range blocks {
		fmt.Println(info)
		if !showTxs {
			continue
		}
		txns, events, err := ledger.LoadCommitted(info.ID)
		if err != nil {
			return err
		}
		for _, tx := range txns {
			fmt.Printf("  tx %X\n", []byte(tx))
		}
		for _, ev := range events {
			fmt.Printf("  event %v\n", ev)
		}
	}
	return nil
}
