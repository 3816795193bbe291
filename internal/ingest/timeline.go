package ingest

import (
	"context"
	"fmt"
	"strings"

	"socialfeed/internal/objstore"
	"socialfeed/internal/xclient"
)

// FetchResult summarizes one user's staged history.
type FetchResult struct {
	UserID     int64
	Posts      int
	ErrorCount int
	Location   string
}

// TempObjectURI names the staging object for a user under tempURI.
func TempObjectURI(tempURI string, userID int64) string {
	return fmt.Sprintf("%s/tweet_data_for_%d.jsonl", strings.TrimSuffix(tempURI, "/"), userID)
}

// FetchUserHistory pulls one user's posts and stages them as a single
// JSON-lines object under tempURI. Zero posts still write an empty object.
func FetchUserHistory(ctx context.Context, client xclient.TimelineClient, store objstore.Store, tempURI string, userID int64) (FetchResult, error) {
	res := FetchResult{UserID: userID, Location: TempObjectURI(tempURI, userID)}
	posts, errCount, err := client.FetchPostsByUser(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("fetch posts for user %d: %w", userID, err)
	}
	res.Posts = len(posts)
	res.ErrorCount = errCount
	if err := objstore.WriteJSONLines(ctx, store, posts, res.Location); err != nil {
		return res, fmt.Errorf("stage posts for user %d: %w", userID, err)
	}
	return res, nil
}
