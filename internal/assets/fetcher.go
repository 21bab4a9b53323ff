package assets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/metrics"
)

// ErrFetchFailed is returned when both the direct and the proxied download
// of a remote asset fail.
var ErrFetchFailed = errors.New("could not download the asset; check that the URL is public or upload the file instead")

// Fetched is a downloaded remote asset.
type Fetched struct {
	Data     []byte
	MimeType string
	Name     string
}

// Fetcher downloads remote assets. A failed direct download is retried once
// through the proxy when one is configured.
type Fetcher struct {
	client   *http.Client
	proxyURL string
	maxBytes int64
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewFetcher returns a Fetcher. proxyURL, when set, is called with the
// target in its "url" query parameter.
func NewFetcher(timeout time.Duration, proxyURL string, maxBytes int64, logger *zap.Logger, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		proxyURL: proxyURL,
		maxBytes: maxBytes,
		logger:   logging.OrNop(logger),
		metrics:  m,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, target string) (*Fetched, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Errorf("not an http(s) URL: %q", target)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host
	}

	out, err := f.get(ctx, target)
	f.metrics.ObserveFetch("direct", err == nil)
	if err == nil {
		out.Name = name
		return out, nil
	}
	f.logger.Warn("direct fetch failed", zap.String("url", target), zap.Error(err))

	if f.proxyURL == "" {
		return nil, errors.Wrap(ErrFetchFailed, err.Error())
	}
	proxied, perr := f.proxied(target)
	if perr != nil {
		return nil, errors.Wrap(perr, "build proxy URL")
	}
	out, err = f.get(ctx, proxied)
	f.metrics.ObserveFetch("proxy", err == nil)
	if err != nil {
		f.logger.Warn("proxy fetch failed", zap.String("url", target), zap.Error(err))
		return nil, errors.Wrap(ErrFetchFailed, err.Error())
	}
	out.Name = name
	return out, nil
}

func (f *Fetcher) proxied(target string) (string, error) {
	p, err := url.Parse(f.proxyURL)
	if err != nil {
		return "", err
	}
	q := p.Query()
	q.Set("url", target)
	p.RawQuery = q.Encode()
	return p.String(), nil
}

func (f *Fetcher) get(ctx context.Context, target string) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("asset larger than %d bytes", f.maxBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	return &Fetched{Data: data, MimeType: SniffMimeType(mimeType, data)}, nil
}
