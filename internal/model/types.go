package model

import "encoding/json"

const (
	// ApplicationName names the output paths and fills the descriptor's vendor.
	ApplicationName = "socialfeed"
	// TempDir is the scratch segment under the output prefix.
	TempDir = "temp"
	// ProviderTwitter tags upstream rows originating from X/Twitter.
	ProviderTwitter = "twitter"
)

// UpstreamRecord is the subset of an upstream row the job reads.
// AuthorID stays a raw JSON value so null, numbers and numeric strings
// can be told apart before integer coercion.
type UpstreamRecord struct {
	ExternalProvider string          `json:"external_provider"`
	AuthorID         json.RawMessage `json:"author_id"`
}

// Post is one fetched post, passed through from the API untouched.
type Post = json.RawMessage

// Descriptor is the result record handed back to the invoking system and
// persisted as the side-channel object.
type Descriptor struct {
	SocialFeedOutput string `json:"socialfeed_output"`
	QueryHash        string `json:"query_hash"`
	ProjectID        string `json:"project_id"`
	TopicID          string `json:"topic_id"`
	FromDate         string `json:"from_date"`
	ToDate           string `json:"to_date"`
	ProjectName      string `json:"project_name"`
	TopicName        string `json:"topic_name"`
	VendorName       string `json:"vendor_name"`
	SourceFormat     string `json:"source_format"`
	SolutionName     string `json:"solution_name"`
}
