package metric

import (
	"errors"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var (
	ErrMetricLabelExist = errors.New("metric label already exist")
)

func NewMetricSet() *MetricSet {
	return &MetricSet{
		metrics: make(map[string]MetricItem),
	}
}

type MetricSet struct {
	mtx     sync.RWMutex
	metrics map[string]MetricItem
}

// SetMetrics - 根据label设置对应的Metrics，如果有存在的label，则返回error
func (ms *MetricSet) SetMetrics(label string, item MetricItem) error {
	if ms.HasMetrics(label) {
		return ErrMetricLabelExist
	}

	ms.mtx.Lock()
	ms.metrics[label] = item
	ms.mtx.Unlock()
	return nil
}

func (ms *MetricSet) HasMetrics(label string) bool {
	ms.mtx.RLock()
	_, existed := ms.metrics[label]
	ms.mtx.RUnlock()
	return existed
}

func (ms *MetricSet) GetMetrics(label string) MetricItem {
	if !ms.HasMetrics(label) {
		return nil
	}

	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	return ms.metrics[label]
}

// GetAlllabels 返回所有label, 已排序
func (ms *MetricSet) GetAlllabels() []string {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	keys := make([]string, 0, len(ms.metrics))
	for k := range ms.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// GetAllMetrics 按照label的顺序返回所有MetricItem
func (ms *MetricSet) GetAllMetrics() []MetricItem {
	labels := ms.GetAlllabels()

	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	vals := make([]MetricItem, 0, len(labels))
	for _, label := range labels {
		vals = append(vals, ms.metrics[label])
	}

	return vals
}

// JSONString 将所有metric组合成一个json对象, key为label
func (ms *MetricSet) JSONString() string {
	res := make(map[string]jsoniter.RawMessage)
	for _, label := range ms.GetAlllabels() {
		item := ms.GetMetrics(label)
		if item == nil {
			continue
		}
		res[label] = jsoniter.RawMessage(item.JSONString())
	}
	s, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(res)
	return s
}
