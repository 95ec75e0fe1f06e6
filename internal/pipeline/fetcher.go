package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/legalscan/internal/extract"
	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/util"
)

// ErrDisallowed is returned when robots.txt forbids fetching a document
var ErrDisallowed = errors.New("disallowed by robots.txt")

const fetchAttempts = 3

// fetchSleepFunc is replaced in tests to skip backoff delays
var fetchSleepFunc = time.Sleep

// Fetcher downloads remote documents for analysis
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil when robots.txt is ignored
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecure bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// RespectRobots makes every fetch consult robots.txt first
func (f *Fetcher) RespectRobots(checker *util.RobotsChecker) *Fetcher {
	f.robots = checker
	return f
}

// FetchResult contains the fetched document and metadata
type FetchResult struct {
	Body        []byte
	HTML        string // Body as text when the document is HTML
	Kind        model.SourceKind
	ContentType string
	Filename    string // Suggested local name, extension matches Kind
	FinalURL    string
}

// Fetch retrieves a document from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/html;q=0.9,image/*;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	// Read body with size limit
	limitedReader := io.LimitReader(resp.Body, f.maxBytes)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	contentType := resp.Header.Get("Content-Type")
	name := documentName(finalURL, resp.Header.Get("Content-Disposition"))

	kind, err := kindOf(contentType, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", finalURL, err)
	}

	result := &FetchResult{
		Body:        body,
		Kind:        kind,
		ContentType: contentType,
		Filename:    withExtension(name, kind),
		FinalURL:    finalURL,
	}
	if kind == model.SourceHTML {
		result.HTML = string(body)
	}
	return result, nil
}

// FetchWithRetry retries transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		if !isRetryableFetchError(err) {
			return nil, err
		}

		lastErr = err
		if attempt < fetchAttempts {
			slog.Warn("fetch failed, retrying",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			fetchSleepFunc(backoff)
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", rawURL, fetchAttempts, lastErr)
}

// isRetryableFetchError reports whether a fetch error is worth another attempt:
// network failures, 429 and 5xx responses
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.HasPrefix(msg, "fetch:") {
		return true
	}

	var code int
	if _, scanErr := fmt.Sscanf(msg, "unexpected status: %d", &code); scanErr == nil {
		return code == http.StatusTooManyRequests || code >= 500
	}
	return false
}

// kindOf classifies a response by content type, then by file extension
func kindOf(contentType, name string) (model.SourceKind, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "application/pdf":
		return model.SourcePDF, nil
	case mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return model.SourceDOCX, nil
	case strings.HasPrefix(mediaType, "image/"):
		return model.SourceImage, nil
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return model.SourceHTML, nil
	case mediaType == "text/plain":
		return model.SourceText, nil
	}
	return extract.KindFromPath(name)
}

// documentName picks a local name from Content-Disposition or the URL path
func documentName(rawURL, disposition string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := path.Base(params["filename"]); name != "." && name != "/" && name != "" {
			return name
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "document"
	}

	last := path.Base(strings.Trim(parsed.Path, "/"))
	if last == "." || last == "" {
		return parsed.Host
	}
	return last
}

// withExtension makes sure name carries an extension the extractor recognizes for kind
func withExtension(name string, kind model.SourceKind) string {
	if k, err := extract.KindFromPath(name); err == nil && k == kind {
		return name
	}
	ext := map[model.SourceKind]string{
		model.SourcePDF:   ".pdf",
		model.SourceDOCX:  ".docx",
		model.SourceImage: ".png",
		model.SourceHTML:  ".html",
		model.SourceText:  ".txt",
	}[kind]
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}
