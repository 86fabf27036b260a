package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pidtune"

// Recorder exports optimizer progress as Prometheus metrics, labelled by
// optimizer name. A nil *Recorder discards everything.
type Recorder struct {
	Generations      *prometheus.CounterVec
	BestScore        *prometheus.GaugeVec
	AllTimeBestScore *prometheus.GaugeVec
	EvaluationTime   *prometheus.HistogramVec
	Busy             *prometheus.GaugeVec
}

// NewRecorder registers the optimizer metrics on reg. Use a fresh
// prometheus.NewRegistry per run; registering twice on one registry panics.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "generations_total",
			Help:      "Generations bred by the optimizer",
		}, []string{"optimizer"}),
		BestScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "best_score",
			Help:      "Best score of the last evaluated generation",
		}, []string{"optimizer"}),
		AllTimeBestScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "all_time_best_score",
			Help:      "Best score seen since the last reset",
		}, []string{"optimizer"}),
		EvaluationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time to score one population",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"optimizer"}),
		Busy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "busy",
			Help:      "1 while a population is being evaluated",
		}, []string{"optimizer"}),
	}
}

func (r *Recorder) EvaluationDone(optimizer string, d time.Duration) {
	if r == nil {
		return
	}
	r.EvaluationTime.WithLabelValues(optimizer).Observe(d.Seconds())
}

func (r *Recorder) GenerationDone(optimizer string, best, allTimeBest float64) {
	if r == nil {
		return
	}
	r.Generations.WithLabelValues(optimizer).Inc()
	r.BestScore.WithLabelValues(optimizer).Set(best)
	r.AllTimeBestScore.WithLabelValues(optimizer).Set(allTimeBest)
}

func (r *Recorder) SetBusy(optimizer string, busy bool) {
	if r == nil {
		return
	}
	v := 0.0
	if busy {
		v = 1
	}
	r.Busy.WithLabelValues(optimizer).Set(v)
}
