package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	JobRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_job_runs_total",
		Help: "Total job runs",
	})
	JobErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_job_errors_total",
		Help: "Total failed job runs",
	})
	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "socialfeed_job_duration_seconds",
		Help:    "Job duration seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	UsersFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_users_fetched_total",
		Help: "Users whose history was fetched and staged",
	})
	PostsFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_posts_fetched_total",
		Help: "Posts fetched from the API",
	})
	APIPageErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_api_page_errors_total",
		Help: "Timeline pages that failed and were skipped",
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(JobRuns, JobErrors, JobDuration, UsersFetched, PostsFetched,
		APIPageErrors, APIRetries, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// Push sends the default registry to a Pushgateway. Batch runs exit
// before a scrape would see them. No-op when url is empty.
func Push(url, job string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
}

// ObserveJobDuration records a run duration.
func ObserveJobDuration(start time.Time) {
	JobDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
