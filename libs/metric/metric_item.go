package metric

import (
	"sort"

	jsoniter "github.com/json-iterator/go"
	gometrics "github.com/rcrowley/go-metrics"
)

// MetricItem - 一个独立的metric模块对应一个MetricItem
// 实现时要使用
type MetricItem interface {
	JSONString() string
}

// RegistryItem 将go-metrics的registry作为一个MetricItem
type RegistryItem struct {
	registry gometrics.Registry
}

func NewRegistryItem(registry gometrics.Registry) *RegistryItem {
	return &RegistryItem{registry: registry}
}

func (item *RegistryItem) Registry() gometrics.Registry {
	return item.registry
}

// Snapshot 返回所有counter/gauge/histogram的当前值
func (item *RegistryItem) Snapshot() map[string]interface{} {
	res := make(map[string]interface{})
	item.registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case gometrics.Counter:
			res[name] = m.Count()
		case gometrics.Gauge:
			res[name] = m.Value()
		case gometrics.GaugeFloat64:
			res[name] = m.Value()
		case gometrics.Histogram:
			s := m.Snapshot()
			res[name] = map[string]interface{}{
				"count": s.Count(),
				"min":   s.Min(),
				"max":   s.Max(),
				"mean":  s.Mean(),
			}
		}
	})
	return res
}

func (item *RegistryItem) JSONString() string {
	s, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(item.Snapshot())
	return s
}

// Names 返回registry中所有metric的名字, 已排序
func (item *RegistryItem) Names() []string {
	names := []string{}
	item.registry.Each(func(name string, _ interface{}) {
		names = append(names, name)
	})
	sort.Strings(names)
	return names
}

type mockMetricItem struct {
	name string
}

func (mock *mockMetricItem) JSONString() string {
	return mock.name
}
