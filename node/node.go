package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"chainbft_core/libs/metric"
	mempl "chainbft_core/mempool"
	"chainbft_core/privval"
	"chainbft_core/rpc"
	"chainbft_core/slot"
	"chainbft_core/state"
	"chainbft_core/state/mock"
	"chainbft_core/store"
	"chainbft_core/types"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/service"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
)

// genesisTimestampUsecs 空账本上root区块的时间戳
const genesisTimestampUsecs = 0

type Provider func(*Config, log.Logger) (*Node, error)

// Node 在单个进程里驱动执行与提交: 打包, 执行, 本地生成QC并按2-chain规则提交.
// 投票的收集和网络传输不在这里实现
type Node struct {
	service.BaseService

	// config
	config *Config

	ledger    *store.LedgerStore
	mempool   *mempl.ListMempool
	blockExec state.BlockExecutor
	computer  *mock.StateComputer
	signer    *privval.Signer
	metricSet *metric.MetricSet
	metric    *nodeMetric

	// 为nil时轮次只由Step驱动
	slotClock slot.Slot

	mtx   sync.Mutex
	state state.State
	round uint64

	rpcListener net.Listener
}

type Option func(*Node)

// DefaultNewNode 如果signer文件存在则用它签名执行结果
func DefaultNewNode(config *Config, logger log.Logger) (*Node, error) {
	var signer *privval.Signer
	if tmos.FileExists(config.SignerKeyFile()) {
		s, err := privval.LoadSigner(config.SignerKeyFile())
		if err != nil {
			return nil, err
		}
		signer = s
		logger.Info("Found signer", "keyFile", config.SignerKeyFile(), "address", s.GetAddress())
	}
	return NewNode(config, signer, logger)
}

func NewNode(config *Config, signer *privval.Signer, logger log.Logger, options ...Option) (*Node, error) {
	if err := config.ValidateBasic(); err != nil {
		return nil, err
	}

	ledger, err := store.NewLedgerStore("ledger", config.State.DBBackend, config.DBDir(), logger.With("module", "store"))
	if err != nil {
		return nil, err
	}

	verifier := genesisVerifier(signer)
	genState, err := loadState(config.State, ledger, verifier)
	if err != nil {
		ledger.Close()
		return nil, err
	}

	listMempool := mempl.NewListMempool(config.Mempool)
	listMempool.SetLogger(logger.With("module", "mempool"))

	computerOptions := []mock.Option{}
	if signer != nil {
		computerOptions = append(computerOptions, mock.WithSigner(signer, config.State.DecoupledExecution))
	}
	computer := mock.NewStateComputer(verifier, computerOptions...)

	metrics := state.NopMetrics()
	if config.State.Prometheus {
		metrics = state.PrometheusMetrics(config.State.PrometheusNamespace, "chain_id", config.State.ChainID)
	}
	blockExec := state.NewBlockExecutor(computer, listMempool, ledger, config.State,
		state.BlockExecutorWithMetrics(metrics))
	blockExec.SetLogger(logger.With("module", "state"))

	metricSet := metric.NewMetricSet()
	if err := metricSet.SetMetrics("state", blockExec.Metric()); err != nil {
		ledger.Close()
		return nil, err
	}
	if err := metricSet.SetMetrics("mempool", listMempool.Metric()); err != nil {
		ledger.Close()
		return nil, err
	}
	nodeMetric := newNodeMetric()
	nodeMetric.MarkSigned(signer != nil)
	nodeMetric.MarkStep(genState.LastCommitted.Round, genState.Epoch, genState.LastCommitted.Round)
	if err := metricSet.SetMetrics("node", nodeMetric); err != nil {
		ledger.Close()
		return nil, err
	}

	node := &Node{
		config:    config,
		ledger:    ledger,
		mempool:   listMempool,
		blockExec: blockExec,
		computer:  computer,
		signer:    signer,
		metricSet: metricSet,
		metric:    nodeMetric,
		state:     genState,
		round:     genState.LastCommitted.Round,
	}

	if config.ProposeTimeout > 0 {
		clock := slot.NewSlotClock(genState.LastCommitted.Round)
		clock.SetLogger(logger.With("module", "slot"))
		node.slotClock = clock
	}

	node.BaseService = *service.NewBaseService(logger, "Node", node)
	for _, option := range options {
		option(node)
	}

	return node, nil
}

// genesisVerifier 第一个epoch的验证者集合
func genesisVerifier(signer *privval.Signer) *types.ValidatorSet {
	if signer != nil {
		return types.NewValidatorSet([]*types.Validator{signer.Validator(1)})
	}
	return types.NewValidatorSet([]*types.Validator{types.NewValidator([]byte("local-validator"), 1)})
}

// loadState 空账本从genesis开始, 否则以最后提交的状态作为区块树的root
func loadState(config *state.Config, ledger *store.LedgerStore, verifier *types.ValidatorSet) (state.State, error) {
	last, err := ledger.LastCommitted()
	if err != nil {
		return state.State{}, err
	}
	if last == nil {
		genesis := types.NewExecutedBlock(
			types.MakeGenesisBlock(1, 0, genesisTimestampUsecs),
			types.NewEmptyStateComputeResult(),
		)
		return state.MakeGenesisState(config.ChainID, genesis, types.NewEpochState(1, verifier), config.MaxPrunedBlocksInMem)
	}

	acc, err := ledger.LoadAccumulator()
	if err != nil {
		return state.State{}, err
	}
	if acc == nil || acc.RootHash() != last.ExecutedStateID {
		return state.State{}, fmt.Errorf("ledger accumulator does not match last committed block %v", last.ID.ShortString())
	}

	epochState := last.NextEpochState
	if epochState == nil {
		epochState = types.NewEpochState(last.Epoch, verifier)
	}
	return epochGenesisState(config, *last, acc, epochState)
}

// epochGenesisState 以last为起点的新区块树, root的epoch是last之后的epoch
func epochGenesisState(
	config *state.Config,
	last types.BlockInfo,
	acc *types.InMemoryAccumulator,
	epochState *types.EpochState,
) (state.State, error) {
	root := types.NewExecutedBlock(
		types.MakeGenesisBlock(last.NextBlockEpoch(), last.Round, last.TimestampUsecs),
		types.NewRootStateComputeResult(acc, nil),
	)
	return state.MakeGenesisState(config.ChainID, root, epochState, config.MaxPrunedBlocksInMem)
}

func (n *Node) OnStart() error {
	n.metric.MarkIsWorking(true)
	if n.slotClock != nil {
		if err := n.slotClock.Start(); err != nil {
			return err
		}
		n.slotClock.ResetClock(n.config.ProposeTimeout)
		go n.proposeRoutine()
	}
	if n.config.RPCListenAddress == "" {
		return nil
	}
	return n.startRPC()
}

func (n *Node) startRPC() error {

	rpc.SetEnvironment(n.rpcEnvironment(n.State()))

	config := rpcserver.DefaultConfig()
	rpcLogger := n.Logger.With("module", "rpc-server")
	mux := http.NewServeMux()
	wm := rpcserver.NewWebsocketManager(rpc.Routes, rpcserver.ReadLimit(config.MaxBodyBytes))
	wm.SetLogger(rpcLogger.With("protocol", "websocket"))
	mux.HandleFunc("/websocket", wm.WebsocketHandler)
	rpcserver.RegisterRPCFuncs(mux, rpc.Routes, rpcLogger)
	if n.config.State.Prometheus {
		mux.Handle("/metrics", promhttp.Handler())
	}

	listener, err := rpcserver.Listen(n.config.RPCListenAddress, config)
	if err != nil {
		return err
	}
	n.rpcListener = listener

	go func() {
		if err := rpcserver.Serve(listener, mux, rpcLogger, config); err != nil {
			rpcLogger.Error("Error serving server", "err", err)
		}
	}()
	n.Logger.Info("started rpc server", "laddr", n.config.RPCListenAddress)
	return nil
}

func (n *Node) OnStop() {
	n.metric.MarkIsWorking(false)
	if n.slotClock != nil {
		if err := n.slotClock.Stop(); err != nil {
			n.Logger.Error("Error stopping slot clock", "err", err)
		}
	}
	if n.rpcListener != nil {
		if err := n.rpcListener.Close(); err != nil {
			n.Logger.Error("Error closing listener", "listener", n.rpcListener, "err", err)
		}
	}
	if err := n.ledger.Close(); err != nil {
		n.Logger.Error("Error closing ledger", "err", err)
	}
}

// State returns a copy of the current state.
func (n *Node) State() state.State {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.state.Copy()
}

func (n *Node) Ledger() *store.LedgerStore {
	return n.ledger
}

func (n *Node) Mempool() mempl.Mempool {
	return n.mempool
}

func (n *Node) MetricSet() *metric.MetricSet {
	return n.metricSet
}

// Step 把txs加入mempool后进行一轮: 打包, 执行并认证新区块. 新区块的QC提交
// 它在上一轮的父区块
func (n *Node) Step(ctx context.Context, txs types.Txs) (*types.ExecutedBlock, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	for _, tx := range txs {
		if err := n.mempool.CheckTx(tx, mempl.TxInfo{SenderID: mempl.UnknownPeerID}); err != nil {
			n.Logger.Info("tx rejected by mempool", "tx", fmt.Sprintf("%X", []byte(tx)), "err", err)
		}
	}

	n.round++
	parent, _ := n.state.NewBranch()
	block, err := n.blockExec.CreateProposal(n.state, n.round, parent.TimestampUsecs()+1)
	if err != nil {
		return nil, err
	}
	eb, err := n.blockExec.ExecuteAndInsert(ctx, n.state, block)
	if err != nil {
		return nil, err
	}

	qc, err := n.makeQuorumCert(eb)
	if err != nil {
		return nil, err
	}
	newState, err := n.blockExec.InsertQuorumCert(ctx, n.state, qc)
	if err != nil {
		return nil, err
	}
	if newState.Epoch > n.state.Epoch {
		if newState, err = n.startEpoch(newState); err != nil {
			return nil, err
		}
	}
	n.state = newState
	n.metric.MarkStep(n.round, newState.Epoch, newState.LastCommitted.Round)
	return eb, nil
}

// proposeRoutine 每次slot超时进行一轮, 打包rpc收到的交易
func (n *Node) proposeRoutine() {
	for {
		select {
		case s := <-n.slotClock.Chan():
			n.metric.MarkSlot(s)
			eb, err := n.Step(context.Background(), nil)
			if err != nil {
				n.metric.MarkError(err)
				n.Logger.Error("failed to run round", "slot", s, "err", err)
			} else {
				n.Logger.Debug("ran round", "slot", s, "block", eb)
			}
			n.slotClock.ResetClock(n.config.ProposeTimeout)
		case <-n.Quit():
			return
		}
	}
}

// startEpoch 重配置区块提交后丢弃旧epoch的区块树, 新的区块树从最后提交的状态开始
func (n *Node) startEpoch(committed state.State) (state.State, error) {
	acc := committed.BlockTree.Root().ComputeResult().Accumulator()
	newState, err := epochGenesisState(n.config.State, committed.LastCommitted, acc, committed.EpochState)
	if err != nil {
		return committed, err
	}
	newState.LastCommitTime = committed.LastCommitTime
	if n.rpcListener != nil {
		rpc.SetEnvironment(n.rpcEnvironment(newState))
	}
	n.Logger.Info("start epoch", "epoch", newState.Epoch, "root", newState.BlockTree.Root())
	return newState, nil
}

func (n *Node) rpcEnvironment(st state.State) *rpc.Environment {
	return &rpc.Environment{
		Mempool:   n.mempool,
		BlockTree: st.BlockTree,
		Ledger:    n.ledger,
		MetricSet: n.metricSet,
	}
}

// Flush 提出空区块直到当前最高的认证区块被提交
func (n *Node) Flush(ctx context.Context) error {
	target := n.State().BlockTree.HighestCertifiedBlock().Round()
	for n.State().LastCommitted.Round < target {
		if _, err := n.Step(ctx, nil); err != nil {
			return err
		}
	}
	return nil
}

// makeQuorumCert 用本地的vote proposal生成QC.
// 父区块位于上一轮并且还没有提交时, QC提交父区块
func (n *Node) makeQuorumCert(eb *types.ExecutedBlock) (*types.QuorumCert, error) {
	msp := eb.MaybeSignedVoteProposal(n.config.State.DecoupledExecution)
	vd, err := msp.VoteProposal.GenVoteData()
	if err != nil {
		return nil, err
	}

	commit := types.EmptyBlockInfo()
	if vd.Parent.Round+1 == vd.Proposed.Round && vd.Parent.Round > n.state.LastCommitted.Round {
		commit = vd.Parent
	}

	var sigs [][]byte
	if msp.IsSigned() {
		sigs = [][]byte{msp.Signature}
	}
	return types.NewQuorumCert(vd, types.NewLedgerInfo(commit, vd.Hash()), sigs), nil
}

// ParseScript 把"a,b;reconfig;c"形式的脚本解析为每一轮的交易
func ParseScript(script string) []types.Txs {
	rounds := []types.Txs{}
	for _, r := range strings.Split(script, ";") {
		txs := types.Txs{}
		for _, tx := range splitAndTrimEmpty(r, ",", " ") {
			txs = append(txs, types.Transaction(tx))
		}
		rounds = append(rounds, txs)
	}
	return rounds
}

// splitAndTrimEmpty slices s into all subslices separated by sep and returns a
// slice of the string s with all leading and trailing Unicode code points
// contained in cutset removed. If sep is empty, SplitAndTrim splits after each
// UTF-8 sequence. First part is equivalent to strings.SplitN with a count of
// -1.  also filter out empty strings, only return non-empty strings.
func splitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}

	spl := strings.Split(s, sep)
	nonEmptyStrings := make([]string, 0, len(spl))
	for i := 0; i < len(spl); i++ {
		element := strings.Trim(spl[i], cutset)
		if element != "" {
			nonEmptyStrings = append(nonEmptyStrings, element)
		}
	}
	return nonEmptyStrings
}
