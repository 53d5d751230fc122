package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_orders_completed_total",
			Help: "Number of orders realized into the revenue ledger",
		},
	)

	WithdrawalsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_withdrawals_created_total",
			Help: "Number of withdrawal requests created",
		},
	)

	WithdrawalsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_withdrawals_completed_total",
			Help: "Number of withdrawal requests completed",
		},
	)

	PayoutAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_payout_amount_total",
			Help: "Total amount paid out, smallest currency unit",
		},
	)

	ReconcileRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_reconcile_runs_total",
			Help: "Number of reconciler passes",
		},
	)

	OutOfBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_photographers_out_of_balance",
			Help: "Photographers whose ledger fails the conservation check",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		OrdersCompleted,
		WithdrawalsCreated,
		WithdrawalsCompleted,
		PayoutAmount,
		ReconcileRuns,
		OutOfBalance,
	)
}
