package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fetcher resolves asset references to locally readable files. Remote URLs
// are downloaded into the run's workspace; local paths are verified and
// passed through untouched.
type Fetcher struct {
	dir    string
	client *http.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout sets the per-download timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// New constructs a Fetcher that stores downloads under dir.
func New(dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:    dir,
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsRemote reports whether the reference needs downloading.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Fetch resolves one reference to a local path.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("fetch: empty asset reference")
	}
	if !IsRemote(ref) {
		if _, err := os.Stat(ref); err != nil {
			return "", fmt.Errorf("fetch %s: %w", ref, err)
		}
		return ref, nil
	}
	return f.download(ctx, ref)
}

// FetchAll resolves every reference, returning a ref-to-path map. The first
// failure aborts; partially fetched files stay in the workspace for the run
// cleanup to remove.
func (f *Fetcher) FetchAll(ctx context.Context, refs []string) (map[string]string, error) {
	resolved := make(map[string]string, len(refs))
	for _, ref := range refs {
		if _, ok := resolved[ref]; ok {
			continue
		}
		local, err := f.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		resolved[ref] = local
	}
	return resolved, nil
}

func (f *Fetcher) download(ctx context.Context, ref string) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure fetch dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", ref, resp.Status)
	}

	dst := filepath.Join(f.dir, uuid.NewString()+extensionOf(ref))
	file, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("download %s: %w", ref, err)
	}
	return dst, nil
}

// extensionOf extracts a usable file extension from the URL path, ignoring
// query strings.
func extensionOf(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	ext := path.Ext(parsed.Path)
	if len(ext) > 8 {
		return ""
	}
	return ext
}
