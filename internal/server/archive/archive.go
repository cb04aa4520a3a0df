// Package archive streams a ZIP of remote objects into a writer, fetching
// each object as it is added.
package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/logging"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Entry is one remote object and the name it gets inside the archive.
type Entry struct {
	URL  string
	Name string
}

// Fetcher opens the content behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher fetches objects with plain GET requests.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorExternalService, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: fetch %s: status %d", common.ErrorExternalService, url, resp.StatusCode)
	}
	return resp.Body, nil
}

// Writer assembles archives. A failing entry is logged and skipped; it
// never aborts the archive.
type Writer struct {
	fetcher Fetcher
	logger  logging.Logger
	level   int
}

func NewWriter(fetcher Fetcher, logger logging.Logger) *Writer {
	return &Writer{fetcher: fetcher, logger: logger, level: flate.BestCompression}
}

// Write streams entries into out as a ZIP and returns how many were
// included. Only errors writing to out are returned.
func (w *Writer) Write(ctx context.Context, out io.Writer, entries []Entry) (int, error) {
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(dst io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(dst, w.level)
	})

	names := newNamer()
	written := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		ok, err := w.add(ctx, zw, names.unique(e.Name), e)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("finalize archive: %w", err)
	}
	return written, nil
}

// add copies one entry. It returns false with a nil error when the entry was
// skipped because the source could not be fetched.
func (w *Writer) add(ctx context.Context, zw *zip.Writer, name string, e Entry) (bool, error) {
	body, err := w.fetcher.Fetch(ctx, e.URL)
	if err != nil {
		w.logger.Warn(ctx, "archive entry skipped", "name", e.Name, "url", e.URL, "error", err)
		return false, nil
	}
	defer body.Close()

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("create entry %q: %w", name, err)
	}
	if _, err := io.Copy(fw, body); err != nil {
		// The header is already out; a broken body leaves a truncated entry.
		w.logger.Warn(ctx, "archive entry truncated", "name", e.Name, "error", err)
	}
	return true, nil
}

// namer keeps archive member names unique: "a.txt", "a (1).txt", ...
type namer struct {
	seen map[string]int
}

func newNamer() *namer {
	return &namer{seen: map[string]int{}}
}

func (n *namer) unique(name string) string {
	name = strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(name, `\`, "/")), "/")
	if name == "" {
		name = "file"
	}
	count, ok := n.seen[name]
	n.seen[name] = count + 1
	if !ok {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		candidate := fmt.Sprintf("%s (%d)%s", base, count, ext)
		if _, taken := n.seen[candidate]; !taken {
			n.seen[candidate] = 1
			return candidate
		}
		count++
	}
}
