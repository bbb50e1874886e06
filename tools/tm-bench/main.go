package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
)

var (
	target            string
	connections       int
	rate              int
	duration          int
	failureRatio      float64
	broadcastTxMethod string
	verbose           bool
)

var rootCmd = &cobra.Command{
	Use:   "tm-bench",
	Short: "Send txs to a running node over websocket",
	RunE:  runBench,
}

func init() {
	rootCmd.Flags().StringVar(&target, "target", "127.0.0.1:26657", "node rpc address")
	rootCmd.Flags().IntVar(&connections, "c", 1, "Connections to keep open per endpoint")
	rootCmd.Flags().IntVar(&rate, "r", 100, "Txs per second to send in a connection")
	rootCmd.Flags().IntVar(&duration, "T", 10, "Exit after the specified amount of time in seconds")
	rootCmd.Flags().Float64Var(&failureRatio, "failure-ratio", 0, "被丢弃或重试的交易所占的比例")
	rootCmd.Flags().StringVar(&broadcastTxMethod, "broadcast-tx-method", "broadcast_tx", "rpc method used to broadcast txs")
	rootCmd.Flags().BoolVar(&verbose, "v", false, "Verbose output")
}

func runBench(cmd *cobra.Command, args []string) error {
	logger := log.NewNopLogger()
	if verbose {
		logger = log.NewTMLogger(log.NewSyncWriter(os.Stdout)).With("module", "tm-bench")
	}
	if failureRatio < 0 || failureRatio > 1 {
		return fmt.Errorf("failure-ratio must be in [0, 1], got %v", failureRatio)
	}

	t := newTransacter(target, connections, rate, failureRatio, broadcastTxMethod)
	t.SetLogger(logger)
	if err := t.Start(); err != nil {
		return err
	}

	// Stop upon receiving SIGTERM or CTRL-C.
	tmos.TrapSignal(logger, func() {
		t.Stop()
	})

	time.Sleep(time.Duration(duration) * time.Second)
	t.Stop()
	fmt.Printf("sent txs to %s for %ds\n", target, duration)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
