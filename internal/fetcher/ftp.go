package fetcher

import (
	"context"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout     time.Duration
	MaxAttempts int
	Retry       *resilience.RetryConfig
}

// FTPFetcher downloads raw inputs from FTP servers. Credentials come from
// the URL's user info; without any the login is anonymous.
type FTPFetcher struct {
	timeout time.Duration
	retry   resilience.RetryConfig
}

// NewFTPFetcher creates an FTPFetcher, filling in defaults.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	retry := resilience.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	return &FTPFetcher{timeout: opts.Timeout, retry: retry.WithAttempts(opts.MaxAttempts)}
}

// ftpSource is a parsed ftp:// URL.
type ftpSource struct {
	addr     string
	path     string
	user     string
	password string
	// display is the URL with any password masked, for logs.
	display string
}

func parseFTPSource(rawURL string) (ftpSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpSource{}, eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return ftpSource{}, eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return ftpSource{}, eris.Errorf("ftp: no host in %s", u.Redacted())
	}
	if u.Path == "" || u.Path == "/" {
		return ftpSource{}, eris.Errorf("ftp: no file path in %s", u.Redacted())
	}

	src := ftpSource{
		addr:     u.Host,
		path:     u.Path,
		user:     "anonymous",
		password: "anonymous@",
		display:  u.Redacted(),
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		src.addr = net.JoinHostPort(u.Host, "21")
	}
	if u.User != nil {
		src.user = u.User.Username()
		src.password, _ = u.User.Password()
	}
	return src, nil
}

// DownloadToFile retrieves the file at the FTP URL into path, retrying
// transient failures with a fresh connection. A failed download leaves no
// file behind.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	src, err := parseFTPSource(rawURL)
	if err != nil {
		return 0, err
	}

	retry := f.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("fetcher", src.display)
	}

	var n int64
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		var err error
		n, err = f.retrieve(ctx, src, path)
		return err
	})
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	zap.L().Debug("ftp: downloaded", zap.String("url", src.display), zap.Int64("bytes", n))
	return n, nil
}

func (f *FTPFetcher) retrieve(ctx context.Context, src ftpSource, path string) (int64, error) {
	conn, err := ftp.Dial(src.addr, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return 0, eris.Wrapf(err, "ftp: dial %s", src.addr)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(src.user, src.password); err != nil {
		return 0, eris.Wrapf(err, "ftp: login as %s", src.user)
	}

	resp, err := conn.Retr(src.path)
	if err != nil {
		return 0, eris.Wrapf(err, "ftp: retrieve %s", src.path)
	}
	n, err := writeFile(path, resp)
	if err != nil {
		resp.Close() //nolint:errcheck
		return n, err
	}
	// The server confirms the transfer only once the data connection closes.
	if err := resp.Close(); err != nil {
		return n, eris.Wrapf(err, "ftp: finish transfer of %s", src.path)
	}
	return n, nil
}
