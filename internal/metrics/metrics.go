// Package metrics exports discovery and processing counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blog_trans_bot/internal/domain"
)

const namespace = "blog_trans_bot"

const (
	OutcomeProcessed = "processed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	PostsSeen      prometheus.Counter
	PostsNew       prometheus.Counter
	PostsPublished prometheus.Counter
	DispatchErrors prometheus.Counter
	SyncDuration   prometheus.Histogram

	MessagesHandled *prometheus.CounterVec
	MessageDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PostsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "posts_seen_total",
			Help:      "Posts found on index pages",
		}),
		PostsNew: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "posts_new_total",
			Help:      "Posts that passed the freshness and idempotency filter",
		}),
		PostsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "posts_published_total",
			Help:      "Posts published to the message bus",
		}),
		DispatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "errors_total",
			Help:      "Index, lookup and publish failures",
		}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "sync_duration_seconds",
			Help:      "Duration of one discovery pass",
			Buckets:   prometheus.DefBuckets,
		}),
		MessagesHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "messages_total",
			Help:      "Messages handled by outcome",
		}, []string{"outcome"}),
		MessageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "message_duration_seconds",
			Help:      "Time to process one message",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 900},
		}),
	}
}

func (m *Metrics) ObserveDispatch(stats *domain.DispatchStats) {
	if stats == nil {
		return
	}
	m.PostsSeen.Add(float64(stats.Total))
	m.PostsNew.Add(float64(stats.New))
	m.PostsPublished.Add(float64(stats.Published))
	m.DispatchErrors.Add(float64(stats.Errors))
	m.SyncDuration.Observe(stats.Duration.Seconds())
}

func (m *Metrics) ObserveMessage(err error, d time.Duration) {
	m.MessagesHandled.WithLabelValues(Outcome(err)).Inc()
	m.MessageDuration.Observe(d.Seconds())
}

// Outcome classifies a processing result the way the counters report it.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeProcessed
	case errors.Is(err, domain.ErrBodyTooLarge):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// Syncer is the discovery entry point being instrumented.
type Syncer interface {
	Sync(ctx context.Context) (*domain.DispatchStats, error)
}

type instrumentedSyncer struct {
	next    Syncer
	metrics *Metrics
}

// InstrumentSyncer records the stats of every pass run through next.
func InstrumentSyncer(next Syncer, m *Metrics) Syncer {
	return &instrumentedSyncer{next: next, metrics: m}
}

func (s *instrumentedSyncer) Sync(ctx context.Context) (*domain.DispatchStats, error) {
	stats, err := s.next.Sync(ctx)
	s.metrics.ObserveDispatch(stats)
	return stats, err
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
