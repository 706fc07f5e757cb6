package urlstrategy

import (
	"fmt"
	"net/url"
	"strings"
)

// URLStrategy derives public URLs from object keys. Implementations must be
// pure: no network calls.
type URLStrategy interface {
	PublicURL(objectKey string) string
}

// BaseURLStrategy serves objects at {BaseURL}/{key}. It covers CDNs, virtual
// hosted S3 buckets, path-style endpoints and the local asset server.
type BaseURLStrategy struct {
	BaseURL string
}

// NewBaseURLStrategy creates a strategy rooted at baseURL
func NewBaseURLStrategy(baseURL string) *BaseURLStrategy {
	return &BaseURLStrategy{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// NewS3Strategy uses the public-read convention of a virtual hosted bucket
func NewS3Strategy(bucket, region string) *BaseURLStrategy {
	return NewBaseURLStrategy(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region))
}

// NewPathStyleStrategy serves objects from {endpoint}/{bucket}, as MinIO does
func NewPathStyleStrategy(endpoint, bucket string) *BaseURLStrategy {
	return NewBaseURLStrategy(strings.TrimSuffix(endpoint, "/") + "/" + bucket)
}

// NewVirtualHostStrategy serves objects from {scheme}://{bucket}.{host} of a
// custom endpoint. An unparseable endpoint falls back to path style.
func NewVirtualHostStrategy(endpoint, bucket string) *BaseURLStrategy {
	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || u.Host == "" {
		return NewPathStyleStrategy(endpoint, bucket)
	}
	u.Host = bucket + "." + u.Host
	return NewBaseURLStrategy(u.String())
}

// PublicURL returns the URL of objectKey with each path segment escaped
func (s *BaseURLStrategy) PublicURL(objectKey string) string {
	segments := strings.Split(strings.TrimPrefix(objectKey, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.BaseURL + "/" + strings.Join(segments, "/")
}
