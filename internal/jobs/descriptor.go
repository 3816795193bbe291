package jobs

import (
	"context"
	"encoding/json"
	"strings"

	"socialfeed/internal/config"
	"socialfeed/internal/model"
	"socialfeed/internal/objstore"
)

// FormatTemplate fills the positional placeholder ("{}" or "{0}") of an
// upstream path template.
func FormatTemplate(tmpl, value string) string {
	return strings.NewReplacer("{}", value, "{0}", value).Replace(tmpl)
}

// BuildDescriptor echoes the job metadata alongside the output location.
func BuildDescriptor(p config.JobParams, outputURI string) *model.Descriptor {
	return &model.Descriptor{
		SocialFeedOutput: outputURI,
		QueryHash:        p.QueryHash,
		ProjectID:        p.ProjectID,
		TopicID:          p.TopicID,
		FromDate:         p.FromDate,
		ToDate:           p.ToDate,
		ProjectName:      p.ProjectName,
		TopicName:        p.TopicName,
		VendorName:       model.ApplicationName,
		SourceFormat:     p.SourceFormat,
		SolutionName:     p.SolutionName,
	}
}

// WriteDescriptor persists d as a JSON object at bucket/key.
func WriteDescriptor(ctx context.Context, store objstore.Store, bucket, key string, d *model.Descriptor) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return objstore.PutObject(ctx, store, bucket, key, b)
}
