package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes connection pool statistics on registry.
func (r *Repository) RegisterMetrics(registry prometheus.Registerer) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "csvstore_db_pool_total_conns",
			Help: "Total connections currently held by the pool",
		}, func() float64 { return float64(r.pool.Stat().TotalConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "csvstore_db_pool_acquired_conns",
			Help: "Connections currently checked out of the pool",
		}, func() float64 { return float64(r.pool.Stat().AcquiredConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "csvstore_db_pool_idle_conns",
			Help: "Idle connections in the pool",
		}, func() float64 { return float64(r.pool.Stat().IdleConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "csvstore_columns_cache_items",
			Help: "Dataset column lists held in the cache",
		}, func() float64 { return float64(r.columns.ItemCount()) }),
	}

	for _, g := range gauges {
		if err := registry.Register(g); err != nil {
			return err
		}
	}
	return nil
}
