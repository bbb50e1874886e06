package state

import (
	"chainbft_core/libs/metric"

	gometrics "github.com/rcrowley/go-metrics"
)

// treeMetric 区块树的运行状态, 通过libs/metric以json形式导出
type treeMetric struct {
	*metric.RegistryItem

	executedBlocks  gometrics.Counter
	suffixBlocks    gometrics.Counter
	committedBlocks gometrics.Counter
	abortedCommits  gometrics.Counter
	treeSize        gometrics.Gauge
	prunedSize      gometrics.Gauge
	committedRound  gometrics.Gauge
	commitBatch     gometrics.Histogram
}

func newTreeMetric() *treeMetric {
	r := gometrics.NewRegistry()
	return &treeMetric{
		RegistryItem:    metric.NewRegistryItem(r),
		executedBlocks:  gometrics.GetOrRegisterCounter("executed_blocks", r),
		suffixBlocks:    gometrics.GetOrRegisterCounter("suffix_blocks", r),
		committedBlocks: gometrics.GetOrRegisterCounter("committed_blocks", r),
		abortedCommits:  gometrics.GetOrRegisterCounter("aborted_commits", r),
		treeSize:        gometrics.GetOrRegisterGauge("tree_size", r),
		prunedSize:      gometrics.GetOrRegisterGauge("pruned_size", r),
		committedRound:  gometrics.GetOrRegisterGauge("committed_round", r),
		commitBatch: gometrics.GetOrRegisterHistogram("commit_batch", r,
			gometrics.NewUniformSample(1028)),
	}
}

func (tm *treeMetric) markTree(state State) {
	tm.treeSize.Update(int64(state.BlockTree.Size()))
	tm.prunedSize.Update(int64(state.BlockTree.PrunedSize()))
}
