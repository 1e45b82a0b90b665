package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Submission workflow
	ReportsSubmitted prometheus.Counter
	SubmitFailures   *prometheus.CounterVec

	// Approval workflow
	ReportsApproved  prometheus.Counter
	ApprovalFailures *prometheus.CounterVec

	// Content store
	ReportFetchFailures prometheus.Counter

	// Ledger client
	LedgerCalls   *prometheus.CounterVec
	LedgerLatency *prometheus.HistogramVec

	// Contract funds, refreshed after approvals and funding
	ContractBalanceWei prometheus.Gauge
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		ReportsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_submitted_total",
			Help:      "Total number of reports recorded on the ledger",
		}),
		SubmitFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_submit_failures_total",
			Help:      "Total number of failed report submissions",
		}, []string{"stage"}),
		ReportsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_approved_total",
			Help:      "Total number of approved reports",
		}),
		ApprovalFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_approval_failures_total",
			Help:      "Total number of failed approval transactions",
		}, []string{"reason"}),
		ReportFetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_fetch_failures_total",
			Help:      "Total number of report content fetches that failed and were dropped",
		}),
		LedgerCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_calls_total",
			Help:      "Total number of ledger client calls",
		}, []string{"method", "status"}),
		LedgerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_call_duration_seconds",
			Help:      "Duration of ledger client calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		ContractBalanceWei: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contract_balance_wei",
			Help:      "Last observed contract balance in wei",
		}),
	}
}

// SetContractBalance records a balance observed on the ledger.
func (m *Metrics) SetContractBalance(balance *big.Int) {
	if m == nil || balance == nil {
		return
	}
	f, _ := new(big.Float).SetInt(balance).Float64()
	m.ContractBalanceWei.Set(f)
}
