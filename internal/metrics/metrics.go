// Package metrics 定义抽奖服务的 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RafflesTotal 抽奖总数 (按事件分组)
	RafflesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "raffles_total",
			Help:      "抽奖生命周期事件总数，按事件(created/accepted/closing_requested/settled/cancelled/closing_failed)分组",
		},
		[]string{"event"},
	)

	// EntriesSold 已售票数
	EntriesSold = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "entries_sold_total",
			Help:      "已售出/赠出的票数总和，按来源(purchase/free_grant)分组",
		},
		[]string{"source"},
	)

	// AmountRaised 筹集金额
	AmountRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "amount_raised_total",
			Help:      "购票筹集金额总和",
		},
	)

	// OracleRequests 随机数请求计数
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "oracle_requests_total",
			Help:      "随机数请求总数，按结果(issued/failed/fulfilled/duplicate)分组",
		},
		[]string{"result"},
	)

	// DrawLatency 开奖延迟 (请求到回调)
	DrawLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "draw_latency_seconds",
			Help:      "随机数请求发出到回调到达的延迟(秒)",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16), // 1s to ~18h
		},
	)

	// PayoutsTotal 结算转账计数
	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "payouts_total",
			Help:      "结算转账总数，按腿(collateral/seller/platform)和结果(ok/failed)分组",
		},
		[]string{"leg", "result"},
	)

	// OperationLatency 变更操作处理延迟
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "operation_latency_seconds",
			Help:      "变更操作处理延迟(秒)，按操作分组",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"operation"},
	)

	// StuckDrawsGauge 卡在开奖中的抽奖数
	StuckDrawsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "windfall",
			Subsystem: "raffle",
			Name:      "stuck_draws",
			Help:      "超过阈值仍未收到预言机回调的抽奖数",
		},
	)
)

// RecordRaffleEvent 记录抽奖生命周期事件
func RecordRaffleEvent(event string) {
	RafflesTotal.WithLabelValues(event).Inc()
}

// RecordPayout 记录结算转账结果
func RecordPayout(leg string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	PayoutsTotal.WithLabelValues(leg, result).Inc()
}
