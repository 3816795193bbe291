package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"socialfeed/internal/config"
	"socialfeed/internal/ingest"
	"socialfeed/internal/logging"
	"socialfeed/internal/metrics"
	"socialfeed/internal/model"
	"socialfeed/internal/notify"
	"socialfeed/internal/objstore"
	"socialfeed/internal/s3uri"
	"socialfeed/internal/store/ledger"
	"socialfeed/internal/xclient"
)

// Runner drives one social feed pull: read the upstream dataset, fetch
// each distinct author's history, consolidate, and emit the descriptor.
type Runner struct {
	OpenStore func(ctx context.Context) (objstore.Store, error)
	NewClient func(token string) xclient.TimelineClient
	// Ledger and Notifier are optional.
	Ledger   *ledger.DB
	Notifier notify.Notifier

	Now   func() time.Time
	NewID func() string
}

// Paths are the storage locations derived for a run.
type Paths struct {
	Bucket        string
	OutputKey     string
	OutputURI     string
	TempURI       string
	DescriptorKey string
}

// ResolvePaths derives the output, temporary and descriptor locations.
func ResolvePaths(cfg config.Config) (Paths, error) {
	bucket := cfg.Runtime.BucketLocation
	p := Paths{
		Bucket:        bucket,
		OutputKey:     FormatTemplate(cfg.Params.OutputTemplate, model.ApplicationName),
		DescriptorKey: FormatTemplate(cfg.Params.XComTemplate, model.ApplicationName),
	}
	p.OutputURI = s3uri.Join(bucket, p.OutputKey)
	_, _, dir, err := s3uri.Parse(p.OutputURI)
	if err != nil {
		return p, err
	}
	p.TempURI = s3uri.Scheme + bucket + dir + "/" + model.TempDir
	return p, nil
}

type runStats struct {
	users     int
	records   int
	apiErrors int
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// RunOnce executes the job. It returns (nil, nil) when the upstream
// dataset has no rows for the target provider; nothing is written then.
func (r *Runner) RunOnce(ctx context.Context, cfg config.Config) (*model.Descriptor, error) {
	start := r.now()
	metrics.JobRuns.Inc()
	defer metrics.ObserveJobDuration(start)

	paths, err := ResolvePaths(cfg)
	if err != nil {
		metrics.JobErrors.Inc()
		return nil, err
	}
	runID := uuid.NewString()
	if r.NewID != nil {
		runID = r.NewID()
	}
	logging.Info("job_start", map[string]any{
		"run_id":      runID,
		"input":       cfg.Params.TalkwalkerOutput,
		"output_key":  paths.OutputKey,
		"output":      paths.OutputURI,
		"temp_path":   paths.TempURI,
		"query_hash":  cfg.Params.QueryHash,
		"concurrency": cfg.Fetch.Concurrency,
	})

	store, err := r.OpenStore(ctx)
	if err != nil {
		metrics.JobErrors.Inc()
		logging.Error("storage_session_failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("storage session: %w", err)
	}

	r.ledgerStart(ctx, runID, cfg, paths, start)
	desc, stats, err := r.execute(ctx, store, cfg, paths, runID)
	state := ledger.StateSuccess
	switch {
	case err != nil:
		state = ledger.StateFailed
		metrics.JobErrors.Inc()
	case desc == nil:
		state = ledger.StateNoMatch
	}
	r.ledgerFinish(ctx, ledger.Run{
		ID: runID, State: state, Users: stats.users, Records: stats.records,
		APIErrors: stats.apiErrors, Error: errString(err), FinishedAt: r.now(),
	})
	if err != nil {
		return nil, err
	}
	return desc, nil
}

func (r *Runner) execute(ctx context.Context, store objstore.Store, cfg config.Config, paths Paths, runID string) (*model.Descriptor, runStats, error) {
	var stats runStats

	rows, err := objstore.ReadJSONLines(ctx, store, cfg.Params.TalkwalkerOutput)
	if err != nil {
		return nil, stats, fmt.Errorf("read upstream dataset: %w", err)
	}
	logging.Info("data_count", map[string]any{"rows": len(rows)})
	records, err := ingest.DecodeRecords(rows)
	if err != nil {
		return nil, stats, fmt.Errorf("decode upstream dataset: %w", err)
	}

	matched := ingest.FilterProvider(records, model.ProviderTwitter)
	if len(matched) == 0 {
		logging.Info("no_provider_rows", map[string]any{"provider": model.ProviderTwitter, "input": cfg.Params.TalkwalkerOutput})
		return nil, stats, nil
	}

	ids, err := ingest.DistinctAuthors(matched)
	if err != nil {
		return nil, stats, err
	}
	withAuthor := 0
	for _, m := range matched {
		if ingest.HasAuthor(m) {
			withAuthor++
		}
	}
	logging.Info("filtered_data_count", map[string]any{"rows": withAuthor})
	logging.Info("distinct_user_count", map[string]any{"users": len(ids)})
	stats.users = len(ids)

	client := r.NewClient(cfg.Runtime.TwitterToken)
	apiErrors, err := r.fetchAll(ctx, client, store, paths.TempURI, ids, cfg.Fetch.Concurrency, runID)
	stats.apiErrors = apiErrors
	if err != nil {
		return nil, stats, err
	}

	out, n, err := Consolidate(ctx, store, paths.TempURI, paths.OutputURI)
	if err != nil {
		return nil, stats, err
	}
	stats.records = n
	logging.Info("job_complete", map[string]any{"run_id": runID, "output": out, "records": n, "api_errors": apiErrors})

	desc := BuildDescriptor(cfg.Params, out)
	if err := WriteDescriptor(ctx, store, paths.Bucket, paths.DescriptorKey, desc); err != nil {
		return nil, stats, fmt.Errorf("write descriptor: %w", err)
	}
	logging.Info("descriptor_written", map[string]any{"bucket": paths.Bucket, "key": paths.DescriptorKey})

	if r.Notifier != nil {
		if err := r.Notifier.Publish(ctx, desc); err != nil {
			logging.Warn("notify_failed", map[string]any{"error": err.Error()})
		}
	}
	return desc, stats, nil
}

// fetchAll stages every user's history. Users are independent; at most
// concurrency fetches run at once and the first error stops the rest.
func (r *Runner) fetchAll(ctx context.Context, client xclient.TimelineClient, store objstore.Store, tempURI string, ids []int64, concurrency int, runID string) (int, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	var (
		mu        sync.Mutex
		apiErrors int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, err := ingest.FetchUserHistory(gctx, client, store, tempURI, id)
			if err != nil {
				return err
			}
			mu.Lock()
			apiErrors += res.ErrorCount
			mu.Unlock()
			metrics.UsersFetched.Inc()
			metrics.PostsFetched.Add(float64(res.Posts))
			metrics.APIPageErrors.Add(float64(res.ErrorCount))
			logging.Info("user_fetched", map[string]any{"user_id": id, "posts": res.Posts, "api_errors": res.ErrorCount})
			r.ledgerFetch(ctx, runID, res)
			return nil
		})
	}
	err := g.Wait()
	return apiErrors, err
}

func (r *Runner) ledgerStart(ctx context.Context, runID string, cfg config.Config, paths Paths, at time.Time) {
	if r.Ledger == nil {
		return
	}
	if err := r.Ledger.StartRun(ctx, runID, cfg.Params.QueryHash, cfg.Params.TalkwalkerOutput, paths.OutputURI, at); err != nil {
		logging.Warn("ledger_error", map[string]any{"op": "start_run", "error": err.Error()})
	}
}

func (r *Runner) ledgerFetch(ctx context.Context, runID string, res ingest.FetchResult) {
	if r.Ledger == nil {
		return
	}
	err := r.Ledger.RecordFetch(ctx, ledger.Fetch{
		RunID: runID, UserID: res.UserID, Posts: res.Posts, APIErrors: res.ErrorCount,
		Location: res.Location, FetchedAt: r.now(),
	})
	if err != nil {
		logging.Warn("ledger_error", map[string]any{"op": "record_fetch", "error": err.Error()})
	}
}

func (r *Runner) ledgerFinish(ctx context.Context, run ledger.Run) {
	if r.Ledger == nil {
		return
	}
	if err := r.Ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logging.Warn("ledger_error", map[string]any{"op": "finish_run", "error": err.Error()})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
