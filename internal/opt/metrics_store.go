package opt

import (
	"sort"
	"sync"
)

type key struct {
	Tenant string
	Case   string
}

var (
	mu    sync.Mutex
	store = map[key][]Metrics{}
)

// RecordMetrics keeps the per-restart metrics of the latest run of a case.
func RecordMetrics(tenant, caseName string, m []Metrics) {
	mu.Lock()
	store[key{Tenant: tenant, Case: caseName}] = append([]Metrics(nil), m...)
	mu.Unlock()
}

// GetMetrics returns the recorded metrics of every case for tenant.
func GetMetrics(tenant string) map[string][]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string][]Metrics{}
	for k, v := range store {
		if k.Tenant == tenant {
			out[k.Case] = append([]Metrics(nil), v...)
		}
	}
	return out
}

// MetricsCases lists the cases recorded for tenant in name order.
func MetricsCases(tenant string) []string {
	mu.Lock()
	defer mu.Unlock()
	var names []string
	for k := range store {
		if k.Tenant == tenant {
			names = append(names, k.Case)
		}
	}
	sort.Strings(names)
	return names
}
