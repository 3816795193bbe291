package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRunLifecycle(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := db.StartRun(ctx, "r1", "q", "s3://in/a.jsonl", "s3://out/b.jsonl", start); err != nil {
		t.Fatal(err)
	}
	for _, f := range []Fetch{
		{RunID: "r1", UserID: 20, Posts: 1, Location: "s3://out/temp/tweet_data_for_20.jsonl", FetchedAt: start},
		{RunID: "r1", UserID: 10, Posts: 3, APIErrors: 1, Location: "s3://out/temp/tweet_data_for_10.jsonl", FetchedAt: start},
		{RunID: "r1", UserID: 10, Posts: 4, APIErrors: 0, Location: "s3://out/temp/tweet_data_for_10.jsonl", FetchedAt: start},
	} {
		if err := db.RecordFetch(ctx, f); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.FinishRun(ctx, Run{ID: "r1", State: StateSuccess, Users: 2, Records: 5, FinishedAt: start.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
	r := runs[0]
	if r.State != StateSuccess || r.Users != 2 || r.Records != 5 || r.Error != "" {
		t.Fatalf("unexpected run %+v", r)
	}
	if !r.StartedAt.Equal(start) || !r.FinishedAt.Equal(start.Add(time.Minute)) {
		t.Fatalf("timestamps %v %v", r.StartedAt, r.FinishedAt)
	}

	fetches, err := db.RunFetches(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(fetches) != 2 || fetches[0].UserID != 10 || fetches[0].Posts != 4 {
		t.Fatalf("unexpected fetches %+v", fetches)
	}
}

func TestListRunsNewestFirstAndFailed(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.StartRun(ctx, "old", "q", "in", "out", t0)
	_ = db.StartRun(ctx, "new", "q", "in", "out", t0.Add(time.Hour))
	if err := db.FinishRun(ctx, Run{ID: "old", State: StateFailed, Error: "boom", FinishedAt: t0.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "old" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if runs[0].State != StateRunning || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("unfinished run %+v", runs[0])
	}
	if runs[1].State != StateFailed || runs[1].Error != "boom" {
		t.Fatalf("failed run %+v", runs[1])
	}
}
