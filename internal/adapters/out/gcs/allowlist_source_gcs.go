// internal/adapters/out/gcs/allowlist_source_gcs.go
package gcs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	aldom "mintgate/internal/domain/allowlist"
)

// =====================================================
// GCS-based address source for large allow-lists
// =====================================================
//
// Firestore のドキュメントに収まらない規模のリストは
// gs://<bucket>/<object> に 1 行 1 アドレスで置く。
// '#' 始まりの行はコメントとして読み飛ばす。

type AllowListSourceGCS struct {
	Client *storage.Client

	// DefaultBucket is used when a uri omits the bucket ("gs:///path"
	// or a bare object path).
	DefaultBucket string
}

// NewAllowListSourceGCS creates an address source backed by GCS.
func NewAllowListSourceGCS(client *storage.Client, defaultBucket string) *AllowListSourceGCS {
	return &AllowListSourceGCS{
		Client:        client,
		DefaultBucket: strings.TrimSpace(defaultBucket),
	}
}

// Fetch reads one address per line from the object behind uri.
func (s *AllowListSourceGCS) Fetch(ctx context.Context, uri string) ([]string, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("allowlist: GCS client is nil")
	}

	bucket, object, err := s.splitURI(uri)
	if err != nil {
		return nil, err
	}

	r, err := s.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, aldom.ErrNotFound
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	var addrs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addrs = append(addrs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, object, err)
	}

	return addrs, nil
}

// splitURI parses "gs://bucket/path" into its parts, falling back to
// DefaultBucket for bare object paths.
func (s *AllowListSourceGCS) splitURI(uri string) (bucket, object string, err error) {
	u := strings.TrimSpace(uri)
	if rest, ok := strings.CutPrefix(u, "gs://"); ok {
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], strings.TrimLeft(parts[1], "/"), nil
		}
		return "", "", fmt.Errorf("invalid gcs uri: %q", uri)
	}

	obj := strings.TrimLeft(u, "/")
	if obj == "" {
		return "", "", fmt.Errorf("invalid gcs uri: %q", uri)
	}
	if s.DefaultBucket == "" {
		return "", "", errors.New("allowlist: bucket is empty")
	}
	return s.DefaultBucket, obj, nil
}
