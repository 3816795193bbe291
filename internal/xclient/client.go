package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"socialfeed/internal/logging"
	"socialfeed/internal/metrics"
	"socialfeed/internal/model"
)

const (
	defaultBaseURL  = "https://api.twitter.com/2"
	pageSize        = 100
	defaultMaxPages = 32
	tweetFields     = "id,text,author_id,created_at,conversation_id,lang,public_metrics,referenced_tweets,entities,in_reply_to_user_id,possibly_sensitive,source"
)

// TimelineClient is the part of the X API the job depends on.
type TimelineClient interface {
	// FetchPostsByUser returns the user's posts and how many pages failed.
	FetchPostsByUser(ctx context.Context, userID int64) ([]model.Post, int, error)
}

// HTTPClient is a simple bearer-token client for X API v2.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	maxPages    int
}

var _ TimelineClient = (*HTTPClient)(nil)

func NewHTTPClient(bearerToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:     defaultBaseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("X_API_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("X_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
		maxPages:    defaultMaxPages,
	}
}

// WithMaxPages caps the timeline pages requested per user. n <= 0 keeps the default.
func (c *HTTPClient) WithMaxPages(n int) *HTTPClient {
	if n > 0 {
		c.maxPages = n
	}
	return c
}

func (c *HTTPClient) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

type timelinePage struct {
	Data []json.RawMessage `json:"data"`
	Meta   struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// FetchPostsByUser pages through /users/{id}/tweets. A page that still
// fails after retries counts as one error and ends paging; posts from
// earlier pages are kept. Only context cancellation is returned as an error.
func (c *HTTPClient) FetchPostsByUser(ctx context.Context, userID int64) ([]model.Post, int, error) {
	id := strconv.FormatInt(userID, 10)
	var (
		posts    []model.Post
		errCount int
		token    string
	)
	for page := 0; page < c.maxPages; page++ {
		p, err := c.userTweetsPage(ctx, id, token)
		if err != nil {
			if ctx.Err() != nil {
				return posts, errCount, ctx.Err()
			}
			errCount++
			logging.Warn("timeline_page_error", map[string]any{"user_id": id, "page": page, "error": err.Error()})
			break
		}
		if len(p.Errors) > 0 {
			errCount++
			logging.Warn("timeline_partial_errors", map[string]any{"user_id": id, "page": page, "title": p.Errors[0].Title, "detail": p.Errors[0].Detail})
		}
		posts = append(posts, p.Data...)
		if p.Meta.NextToken == "" {
			break
		}
		token = p.Meta.NextToken
	}
	return posts, errCount, nil
}

func (c *HTTPClient) userTweetsPage(ctx context.Context, userID, token string) (*timelinePage, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clamp(pageSize, 5, 100)))
	q.Set("tweet.fields", tweetFields)
	if token != "" {
		q.Set("pagination_token", token)
	}
	u := fmt.Sprintf("%s/users/%s/tweets?%s", c.baseURL, url.PathEscape(userID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, req, "users_tweets")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("x api status %d", resp.StatusCode)
	}
	var p timelinePage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode timeline page: %w", err)
	}
	return &p, nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("x api status %d", resp.StatusCode)
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				// jitter +/-20%
				jitter := time.Duration(float64(wait) * 0.2)
				if jitter > 0 {
					wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
				}
				if attempt == c.maxAttempts {
					break
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
