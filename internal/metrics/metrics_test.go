package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	JobRuns.Inc()
	JobErrors.Inc()
	UsersFetched.Add(2)
	PostsFetched.Add(10)
	APIPageErrors.Inc()
	IncAPIRetry("/users/:id/tweets")
	IncCommandRun("run")
	IncCommandError("run")
	ObserveJobDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"socialfeed_job_runs_total",
		"socialfeed_job_errors_total",
		"socialfeed_job_duration_seconds",
		"socialfeed_users_fetched_total",
		"socialfeed_posts_fetched_total",
		"socialfeed_api_page_errors_total",
		"socialfeed_api_retries_total",
		"socialfeed_command_runs_total",
		"socialfeed_command_errors_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}

func TestPushNoopWithoutURL(t *testing.T) {
	if err := Push("", "socialfeed"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestPushSendsToGateway(t *testing.T) {
	var gotPath, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	JobRuns.Inc()
	if err := Push(ts.URL, "socialfeed"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if gotPath != "/metrics/job/socialfeed" {
		t.Fatalf("unexpected push path %q", gotPath)
	}
	if gotBody == "" {
		t.Fatalf("expected metric payload")
	}
}
