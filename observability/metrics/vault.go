package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	deposits         *prometheus.CounterVec
	withdrawals      *prometheus.CounterVec
	swapFailures     prometheus.Counter
	transferFailures prometheus.Counter
	rejections       *prometheus.CounterVec
	outstanding      prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_deposits_total",
				Help: "Count of committed deposits by asset.",
			}, []string{"asset"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_withdrawals_total",
				Help: "Count of committed withdrawals by asset.",
			}, []string{"asset"}),
			swapFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_swap_failures_total",
				Help: "Count of conversions aborted by the exchange router.",
			}),
			transferFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_transfer_failures_total",
				Help: "Count of external asset transfers that did not complete.",
			}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_rejections_total",
				Help: "Count of rejected operations by reason.",
			}, []string{"reason"}),
			outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_outstanding_units",
				Help: "Current outstanding total in reference-currency base units.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.deposits,
			vaultRegistry.withdrawals,
			vaultRegistry.swapFailures,
			vaultRegistry.transferFailures,
			vaultRegistry.rejections,
			vaultRegistry.outstanding,
		)
	})
	return vaultRegistry
}

func (m *VaultMetrics) ObserveDeposit(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.deposits.WithLabelValues(asset).Inc()
}

func (m *VaultMetrics) ObserveWithdrawal(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.withdrawals.WithLabelValues(asset).Inc()
}

func (m *VaultMetrics) ObserveSwapFailure() {
	if m == nil {
		return
	}
	m.swapFailures.Inc()
}

func (m *VaultMetrics) ObserveTransferFailure() {
	if m == nil {
		return
	}
	m.transferFailures.Inc()
}

func (m *VaultMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *VaultMetrics) SetOutstanding(total *big.Int) {
	if m == nil || total == nil {
		return
	}
	value, _ := new(big.Float).SetInt(total).Float64()
	m.outstanding.Set(value)
}
