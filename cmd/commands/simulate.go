package commands

import (
	"context"
	"fmt"

	"chainbft_core/node"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
)

var (
	script string
	wait   bool
)

// AddSimulateFlags exposes configuration options for the simulate command.
func AddSimulateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&script, "script", "", `每一轮提交的交易, 轮之间用";"分隔, 交易之间用","分隔, 例如 "a,b;reconfig;c"`)
	cmd.Flags().BoolVar(&wait, "wait", false, "脚本执行完后继续提供rpc服务直到收到退出信号")

	cmd.Flags().String("rpc_laddr", config.RPCListenAddress, "RPC listen address. Port required")
	cmd.Flags().Duration("propose_timeout", config.ProposeTimeout,
		"run a round every propose_timeout after the script, packing txs received over RPC")
	cmd.Flags().Bool("state.prometheus", config.State.Prometheus, "serve Prometheus metrics under /metrics")
	cmd.Flags().Bool("state.decoupled_execution", config.State.DecoupledExecution,
		"votes do not carry the execution result")
}

// NewSimulateCmd returns the command that runs a script of rounds against a
// local node. It allows the user to provide a node provider.
func NewSimulateCmd(nodeProvider node.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run rounds of txs through execution and commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}
			st := n.State()
			logger.Info("Started node", "state", st.String())

			ctx := context.Background()
			for _, txs := range node.ParseScript(script) {
				eb, err := n.Step(ctx, txs)
				if err != nil {
					n.Stop()
					return err
				}
				logger.Info("executed block", "block", eb, "suffix", eb.IsReconfigurationSuffix())
			}
			if err := n.Flush(ctx); err != nil {
				n.Stop()
				return err
			}
			st = n.State()
			fmt.Println(st.String())

			if !wait {
				return n.Stop()
			}

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop the node", "error", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddSimulateFlags(cmd)
	return cmd
}
