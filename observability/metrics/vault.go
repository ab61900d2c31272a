package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics aggregates the operational counters for the accounting core.
type VaultMetrics struct {
	poolsRegistered prometheus.Counter
	liquidityOps    *prometheus.CounterVec
	batchesSettled  prometheus.Counter
	flashLoans      prometheus.Counter
	invested        *prometheus.CounterVec
	eventsEmitted   *prometheus.CounterVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide vault metrics registry, registering the
// collectors on first use.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			poolsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_pools_registered_total",
				Help: "Count of pools registered since process start.",
			}),
			liquidityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_liquidity_ops_total",
				Help: "Count of liquidity operations by direction.",
			}, []string{"op"}),
			batchesSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_batches_settled_total",
				Help: "Count of batch swaps settled.",
			}),
			flashLoans: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_flash_loans_total",
				Help: "Count of flash loans repaid in full.",
			}),
			invested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_investment_ops_total",
				Help: "Count of investment manager operations by kind.",
			}, []string{"kind"}),
			eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_events_emitted_total",
				Help: "Count of vault events emitted by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			vaultRegistry.poolsRegistered,
			vaultRegistry.liquidityOps,
			vaultRegistry.batchesSettled,
			vaultRegistry.flashLoans,
			vaultRegistry.invested,
			vaultRegistry.eventsEmitted,
		)
	})
	return vaultRegistry
}

// ObservePoolRegistered increments the pool registration counter.
func (m *VaultMetrics) ObservePoolRegistered() {
	if m == nil {
		return
	}
	m.poolsRegistered.Inc()
}

// ObserveLiquidity records a liquidity add or remove.
func (m *VaultMetrics) ObserveLiquidity(op string) {
	if m == nil {
		return
	}
	m.liquidityOps.WithLabelValues(op).Inc()
}

// ObserveBatchSettled records a settled batch swap.
func (m *VaultMetrics) ObserveBatchSettled() {
	if m == nil {
		return
	}
	m.batchesSettled.Inc()
}

// ObserveFlashLoan records a completed flash loan.
func (m *VaultMetrics) ObserveFlashLoan() {
	if m == nil {
		return
	}
	m.flashLoans.Inc()
}

// ObserveInvestment records an invest, divest or managed update.
func (m *VaultMetrics) ObserveInvestment(kind string) {
	if m == nil {
		return
	}
	m.invested.WithLabelValues(kind).Inc()
}

// ObserveEvent counts an emitted vault event by type.
func (m *VaultMetrics) ObserveEvent(eventType string) {
	if m == nil || eventType == "" {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}
