package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/musicdw/internal/fetcher"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestAcquire(t *testing.T) {
	archive := zipBytes(t, map[string]string{"mxmh_survey_results.csv": "Age,Fav genre\n20,Pop\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dataset.csv":
			_, _ = w.Write([]byte("filename,label\na.wav,Rock\n"))
		case "/survey.zip":
			_, _ = w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "raw")
	a := &Acquirer{RawDir: dir, Options: fetcher.Options{MaxAttempts: 1}}

	files, err := a.Acquire(context.Background(), []string{srv.URL + "/dataset.csv", srv.URL + "/survey.zip"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "dataset.csv"),
		filepath.Join(dir, "mxmh_survey_results.csv"),
	}, files)

	_, err = os.Stat(filepath.Join(dir, "survey.zip"))
	assert.True(t, os.IsNotExist(err), "archive removed after extraction")

	report := Validate(dir, DefaultManifest())
	assert.True(t, report.OK())
}

func TestAcquire_Errors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a := &Acquirer{RawDir: t.TempDir(), Options: fetcher.Options{MaxAttempts: 1}}

	_, err := a.Acquire(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sources")

	_, err = a.Acquire(context.Background(), []string{"s3://bucket/data.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")

	_, err = a.Acquire(context.Background(), []string{srv.URL + "/missing.csv"})
	require.Error(t, err)
}

type stubFetcher struct {
	calls []string
}

func (s *stubFetcher) DownloadToFile(_ context.Context, url, path string) (int64, error) {
	s.calls = append(s.calls, url)
	return 4, os.WriteFile(path, []byte("a,b\n"), 0o644)
}

func TestAcquire_CustomFetcher(t *testing.T) {
	stub := &stubFetcher{}
	a := &Acquirer{
		RawDir: t.TempDir(),
		ForURL: func(string, fetcher.Options) (fetcher.Fetcher, error) { return stub, nil },
	}

	files, err := a.Acquire(context.Background(), []string{"ftp://example.com/pub/a.csv", "ftp://example.com/pub/b.csv"})
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, []string{"ftp://example.com/pub/a.csv", "ftp://example.com/pub/b.csv"}, stub.calls)
}

func TestAcquire_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &Acquirer{RawDir: t.TempDir()}
	_, err := a.Acquire(ctx, []string{"http://example.com/a.csv"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
