package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/services/discovery"
)

const namespace = "fitmatch"

// Collector owns every discovery metric. It satisfies discovery.Observer and
// ledger.FailureCounter.
type Collector struct {
	registry *prometheus.Registry

	swipesTotal         *prometheus.CounterVec
	matchesTotal        prometheus.Counter
	rekindlesTotal      prometheus.Counter
	fundsRejectedTotal  *prometheus.CounterVec
	ledgerFailuresTotal *prometheus.CounterVec
	pageFetchesTotal    *prometheus.CounterVec
	compatibilityScores prometheus.Histogram
	httpDuration        *prometheus.HistogramVec
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		swipesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swipes_total",
			Help:      "Committed swipes by direction",
		}, []string{"direction"}),
		matchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Mutual likes found on commit",
		}),
		rekindlesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rekindles_total",
			Help:      "Successful undo operations",
		}),
		fundsRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_funds_total",
			Help:      "Paid actions refused for lack of balance",
		}, []string{"feature"}),
		ledgerFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_failures_total",
			Help:      "Interaction writes that failed",
		}, []string{"type"}),
		pageFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_page_fetches_total",
			Help:      "Candidate page fetches by outcome",
		}, []string{"outcome"}),
		compatibilityScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compatibility_score",
			Help:      "Distribution of shown compatibility scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SwipeCommitted(direction enums.SwipeDirection) {
	c.swipesTotal.WithLabelValues(string(direction)).Inc()
}

func (c *Collector) MatchFound() {
	c.matchesTotal.Inc()
}

func (c *Collector) Rekindled() {
	c.rekindlesTotal.Inc()
}

func (c *Collector) FundsRejected(feature discovery.Feature) {
	c.fundsRejectedTotal.WithLabelValues(string(feature)).Inc()
}

func (c *Collector) PageFetched(outcome string) {
	c.pageFetchesTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) ScoreObserved(score int) {
	c.compatibilityScores.Observe(float64(score))
}

func (c *Collector) LedgerWriteFailed(kind enums.InteractionType) {
	c.ledgerFailuresTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
