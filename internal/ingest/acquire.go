package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/fetcher"
)

// FetcherFunc picks the fetcher for a source URL.
type FetcherFunc func(rawURL string, opts fetcher.Options) (fetcher.Fetcher, error)

// Acquirer downloads raw sources into a directory.
type Acquirer struct {
	RawDir  string
	Options fetcher.Options
	// ForURL defaults to fetcher.ForURL.
	ForURL FetcherFunc
}

// Acquire downloads each source in order and extracts .zip archives in
// place. It returns the files now present in the raw directory because of
// this call. The first failing source stops the run.
func (a *Acquirer) Acquire(ctx context.Context, sources []string) ([]string, error) {
	log := zap.L().With(zap.String("component", "acquire"))
	if len(sources) == 0 {
		return nil, eris.New("acquire: no sources configured")
	}
	if err := os.MkdirAll(a.RawDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "acquire: create %s", a.RawDir)
	}
	forURL := a.ForURL
	if forURL == nil {
		forURL = fetcher.ForURL
	}

	var files []string
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return files, eris.Wrap(err, "acquire: cancelled")
		}
		f, err := forURL(src, a.Options)
		if err != nil {
			return files, eris.Wrapf(err, "acquire: %s", src)
		}
		name, err := fetcher.FileName(src)
		if err != nil {
			return files, eris.Wrapf(err, "acquire: %s", src)
		}
		dest := filepath.Join(a.RawDir, name)

		n, err := f.DownloadToFile(ctx, src, dest)
		if err != nil {
			return files, eris.Wrapf(err, "acquire: download %s", src)
		}
		log.Info("downloaded source", zap.String("url", src), zap.String("path", dest), zap.Int64("bytes", n))

		if !strings.EqualFold(filepath.Ext(dest), ".zip") {
			files = append(files, dest)
			continue
		}
		extracted, err := fetcher.ExtractAndRemove(dest)
		if err != nil {
			return files, eris.Wrapf(err, "acquire: extract %s", dest)
		}
		log.Info("extracted archive", zap.String("path", dest), zap.Int("files", len(extracted)))
		files = append(files, extracted...)
	}
	return files, nil
}
