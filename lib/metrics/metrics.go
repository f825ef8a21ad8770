package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "xdock"

	SubsystemDocking = "docking"
	SubsystemResend  = "resend"
	SubsystemStorage = "storage"

	LabelChainId = "chain"
	LabelTxType  = "tx_type"
	LabelStatus  = "status"
	LabelMethod  = "method"
	LabelCode    = "code"
)

// docking
var (
	// 分类结果
	ClassifiedTxCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDocking,
			Name:      "classified_tx_total",
			Help:      "Total number of classified heterogeneous tx.",
		},
		[]string{LabelChainId, LabelTxType})
	SubmitCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDocking,
			Name:      "submit_total",
			Help:      "Total number of pending tx submitted to nerve.",
		},
		[]string{LabelChainId, LabelStatus})
	UnconfirmedTxGauge = prom.NewGaugeVec(
		prom.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDocking,
			Name:      "unconfirmed_tx_gauge",
			Help:      "Number of tracked unconfirmed tx.",
		},
		[]string{LabelChainId})
	WaitingTxGauge = prom.NewGaugeVec(
		prom.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDocking,
			Name:      "waiting_tx_gauge",
			Help:      "Number of parked invoke requests.",
		},
		[]string{LabelChainId})
	// 函数调用
	CallMethodHistogram = prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemDocking,
			Name:      "call_seconds",
			Help:      "Histogram of docking method latency.",
			Buckets:   prom.DefBuckets,
		},
		[]string{LabelChainId, LabelMethod, LabelCode})
)

// resend
var (
	ResendCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemResend,
			Name:      "resend_total",
			Help:      "Total number of resend attempts.",
		},
		[]string{LabelChainId, LabelStatus})
	RegainSignatureCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemResend,
			Name:      "regain_signature_total",
			Help:      "Total number of signature regain requests.",
		},
		[]string{LabelChainId})
)

// storage
var (
	SweptTxCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemStorage,
			Name:      "swept_tx_total",
			Help:      "Total number of unconfirmed tx physically deleted.",
		},
		[]string{LabelChainId})
)

var registerOnce sync.Once

func RegisterMetrics() {
	registerOnce.Do(func() {
		// docking
		prom.MustRegister(ClassifiedTxCounter)
		prom.MustRegister(SubmitCounter)
		prom.MustRegister(UnconfirmedTxGauge)
		prom.MustRegister(WaitingTxGauge)
		prom.MustRegister(CallMethodHistogram)
		// resend
		prom.MustRegister(ResendCounter)
		prom.MustRegister(RegainSignatureCounter)
		// storage
		prom.MustRegister(SweptTxCounter)
	})
}
