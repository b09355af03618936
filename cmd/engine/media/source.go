package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

// maxSourceBytes bounds how much of a single track is held in memory.
var maxSourceBytes int64 = 512 << 20

var sourceClient = &http.Client{
	Timeout: 60 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		return nil
	},
}

// IsRemote reports whether uri is fetched over http(s).
func IsRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// Extension returns the lowercase file extension of a path or URL, ignoring any query.
func Extension(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 && IsRemote(uri) {
		uri = uri[:i]
	}
	return strings.ToLower(path.Ext(uri))
}

// ReadSource reads a local file or http(s) resource fully into memory. Sources
// over maxSourceBytes are refused.
func ReadSource(ctx context.Context, uri string) ([]byte, error) {
	if !IsRemote(uri) {
		return readFile(uri)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "soundstage")

	resp, err := sourceClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d %s", uri, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uri, err)
	}
	if int64(len(data)) > maxSourceBytes {
		return nil, fmt.Errorf("fetch %s: %w", uri, errTooLarge())
	}
	return data, nil
}

func readFile(uri string) ([]byte, error) {
	f, err := os.Open(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > maxSourceBytes {
		return nil, fmt.Errorf("read %s: %w", uri, errTooLarge())
	}
	// the file may grow after Stat
	data, err := io.ReadAll(io.LimitReader(f, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if int64(len(data)) > maxSourceBytes {
		return nil, fmt.Errorf("read %s: %w", uri, errTooLarge())
	}
	return data, nil
}

// ErrTooLarge is returned for sources over the in-memory limit.
var ErrTooLarge = errors.New("source too large")

func errTooLarge() error {
	return fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxSourceBytes)
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
