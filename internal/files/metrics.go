package files

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics는 액션별 호출 수, 소요 시간, 사용량 변동을 수집합니다
type Metrics struct {
	Actions        *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	UsageDelta     prometheus.Counter
}

// NewMetrics는 reg에 수집기를 등록합니다. reg가 nil이면 등록하지 않은 수집기를 만듭니다.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filebox_file_actions_total",
				Help: "Total number of file actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		ActionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filebox_file_action_duration_seconds",
				Help:    "File action duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"action"},
		),
		UsageDelta: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "filebox_usage_bytes_written_total",
				Help: "Total bytes added to user usage counters",
			},
		),
	}
}

func (m *Metrics) observe(action string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action, outcome(err)).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

func (m *Metrics) written(delta int64) {
	if m == nil || delta <= 0 {
		return
	}
	m.UsageDelta.Add(float64(delta))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var fe *Error
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return "error"
}
