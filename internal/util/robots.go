package util

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// Robots is the robots.txt verdict for one URL
type Robots struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker consults robots.txt before remote documents are fetched
// Parsed files are kept per scheme and host for ttl.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	agent     string
	cache     *gocache.Cache
}

// NewRobotsChecker creates a checker that fetches robots.txt with client
func NewRobotsChecker(client *http.Client, userAgent string, ttl time.Duration) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		agent:     NormalizeUserAgent(userAgent),
		cache:     gocache.New(ttl, 2*ttl),
	}
}

// Check returns the verdict for rawURL
// An unreachable or unparsable robots.txt allows the fetch and is logged.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (Robots, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Robots{}, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Robots{}, fmt.Errorf("parse URL: %q is not absolute", rawURL)
	}

	data, err := r.load(ctx, parsed.Scheme+"://"+parsed.Host)
	if err != nil {
		slog.Warn("robots.txt unavailable, allowing fetch", slog.String("host", parsed.Host), slog.Any("error", err))
		return Robots{Allowed: true}, nil
	}

	verdict := Robots{Allowed: data.TestAgent(parsed.EscapedPath(), r.agent)}
	if group := data.FindGroup(r.agent); group != nil {
		verdict.CrawlDelay = group.CrawlDelay
	}
	return verdict, nil
}

// IsAllowed reports only whether rawURL may be fetched
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) bool {
	verdict, err := r.Check(ctx, rawURL)
	return err == nil && verdict.Allowed
}

func (r *RobotsChecker) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	if cached, ok := r.cache.Get(origin); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// FromResponse treats 4xx as allow-all and 5xx as disallow-all
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.cache.SetDefault(origin, data)
	return data, nil
}

// NormalizeUserAgent reduces a User-Agent to the product token robots.txt groups match on
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}
