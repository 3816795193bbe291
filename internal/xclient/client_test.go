package xclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// helper to create client pointed at a test server
func newTestClient(ts *httptest.Server) *HTTPClient {
	c := NewHTTPClient("test")
	c.maxAttempts = 3
	c.baseBackoff = 10 * time.Millisecond
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.httpClient = ts.Client()
	c.baseURL = ts.URL
	return c
}

func TestDoWithRetryHandles429(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/test", nil)
	resp, err := c.doWithRetry(context.Background(), req, "test")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&attempts) < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestDoWithRetryGivesUp(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/test", nil)
	if _, err := c.doWithRetry(context.Background(), req, "test"); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestFetchPostsByUserPaginates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/tweets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Errorf("missing bearer header")
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("pagination_token") {
		case "":
			fmt.Fprint(w, `{"data":[{"id":"1","text":"a","author_id":"42"},{"id":"2","text":"b","author_id":"42"}],"meta":{"result_count":2,"next_token":"p2"}}`)
		case "p2":
			fmt.Fprint(w, `{"data":[{"id":"3","text":"c","author_id":"42"}],"meta":{"result_count":1}}`)
		default:
			t.Errorf("unexpected token")
		}
	}))
	defer ts.Close()

	posts, errCount, err := newTestClient(ts).FetchPostsByUser(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if errCount != 0 {
		t.Fatalf("errCount = %d", errCount)
	}
	if len(posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(posts))
	}
	if string(posts[0]) != `{"id":"1","text":"a","author_id":"42"}` {
		t.Fatalf("post not passed through: %s", posts[0])
	}
}

func TestFetchPostsByUserEmptyTimeline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta":{"result_count":0}}`)
	}))
	defer ts.Close()

	posts, errCount, err := newTestClient(ts).FetchPostsByUser(context.Background(), 7)
	if err != nil || errCount != 0 || len(posts) != 0 {
		t.Fatalf("got %d posts, %d errors, err %v", len(posts), errCount, err)
	}
}

func TestFetchPostsByUserCountsFailedPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pagination_token") == "" {
			fmt.Fprint(w, `{"data":[{"id":"1"}],"meta":{"next_token":"p2"}}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	posts, errCount, err := newTestClient(ts).FetchPostsByUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("page failures are counted, not returned: %v", err)
	}
	if errCount != 1 || len(posts) != 1 {
		t.Fatalf("got %d posts, %d errors", len(posts), errCount)
	}
}

func TestFetchPostsByUserCountsBodyErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"1"}],"errors":[{"title":"Not Found Error","detail":"gone"}],"meta":{}}`)
	}))
	defer ts.Close()

	posts, errCount, err := newTestClient(ts).FetchPostsByUser(context.Background(), 1)
	if err != nil || errCount != 1 || len(posts) != 1 {
		t.Fatalf("got %d posts, %d errors, err %v", len(posts), errCount, err)
	}
}

func TestFetchPostsByUserRespectsMaxPages(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		fmt.Fprintf(w, `{"data":[{"id":"%d"}],"meta":{"next_token":"t%d"}}`, n, n)
	}))
	defer ts.Close()

	posts, _, err := newTestClient(ts).WithMaxPages(2).FetchPostsByUser(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("posts=%d calls=%d", len(posts), calls)
	}
}

func TestFetchPostsByUserCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta":{}}`)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newTestClient(ts).FetchPostsByUser(ctx, 1)
	if err == nil || !strings.Contains(err.Error(), "canceled") {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}
