// Package fetcher reads and writes the pipeline's tabular files and
// downloads raw inputs over HTTP or FTP.
package fetcher

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote file.
type Fetcher interface {
	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Options configures the fetchers returned by ForURL.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
}

// ForURL returns the fetcher that handles the URL's scheme.
func ForURL(rawURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{
			UserAgent:   opts.UserAgent,
			Timeout:     opts.Timeout,
			MaxAttempts: opts.MaxAttempts,
		}), nil
	case "ftp":
		return NewFTPFetcher(FTPOptions{Timeout: opts.Timeout, MaxAttempts: opts.MaxAttempts}), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
}

// FileName returns the last path element of a URL, used as the local name
// of a downloaded file.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	p := strings.TrimRight(u.Path, "/")
	name := p[strings.LastIndex(p, "/")+1:]
	if name == "" {
		return "", eris.Errorf("fetcher: no file name in %s", rawURL)
	}
	return name, nil
}
