// Package fetch resolves a preload list source locator to a local readable
// file. HTTP(S) URLs are downloaded once (no retry) into a temporary file,
// with transparent gzip decompression when the server signals it; anything
// else is treated as a local path.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/agentstation/hstsync/pkg/constants"
	"github.com/agentstation/hstsync/pkg/errors"
	"github.com/agentstation/hstsync/pkg/logging"
)

// Source is a resolved preload list source: a local file, plus whether it is
// a temporary download the caller must clean up, and how many bytes were
// fetched (0 for local paths).
type Source struct {
	Path string
	Temp bool
	Size int64
}

// Cleanup removes the underlying file if it is temporary. Safe to call more
// than once and on local (non-temporary) sources.
func (s *Source) Cleanup() {
	if s == nil || !s.Temp {
		return
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", s.Path).Msg("Failed to remove temporary source file")
	}
}

// Resolver downloads remote preload lists.
type Resolver struct {
	Client *http.Client
}

// NewResolver creates a resolver with the default HTTP timeout.
func NewResolver() *Resolver {
	return &Resolver{
		Client: &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
}

// Resolve turns a source locator into a local readable file. A locator that
// parses as an http or https URL is downloaded; any other locator is taken
// as a local path directly and marked non-temporary.
func (r *Resolver) Resolve(ctx context.Context, locator string) (*Source, error) {
	if isRemote(locator) {
		return r.download(ctx, locator)
	}
	return &Source{Path: locator, Temp: false}, nil
}

// download fetches the preload list into a fresh temporary file and reports
// the number of bytes written. Any network or I/O failure is fatal; there is
// no retry.
func (r *Resolver) download(ctx context.Context, rawURL string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewFetchError(rawURL, 0, "failed to create request", err)
	}
	// Setting Accept-Encoding by hand disables the transport's automatic
	// decompression, so the Content-Encoding check below is ours to make.
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", constants.PreloadAcceptHeader)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(rawURL, 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError(rawURL, resp.StatusCode, resp.Status, nil)
	}

	body := io.Reader(resp.Body)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, errors.NewFetchError(rawURL, 0, "failed to open gzip stream", err)
		}
		defer func() { _ = gz.Close() }()
		body = gz
	}

	tempFile, err := os.CreateTemp("", "hsts-preload-*.json")
	if err != nil {
		return nil, errors.WrapIO("create", "temp file", err)
	}
	tempPath := tempFile.Name()

	size, err := io.Copy(tempFile, body)
	if cerr := tempFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, errors.WrapIO("write", tempPath, err)
	}

	return &Source{Path: tempPath, Temp: true, Size: size}, nil
}

// isRemote reports whether the locator is an http(s) URL. Go's url.Parse
// accepts nearly any string, so the scheme check is what distinguishes a
// URL from a filesystem path.
func isRemote(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
