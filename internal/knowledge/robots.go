package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches and caches robots.txt per origin
type RobotsChecker struct {
	cache     *cache.Cache
	userAgent string
	client    *http.Client
}

// NewRobotsChecker creates a robots.txt checker backed by client
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		cache:     cache.New(24*time.Hour, 1*time.Hour),
		userAgent: userAgent,
		client:    client,
	}
}

// Allowed reports whether userAgent may fetch target. A missing or
// unreadable robots.txt allows everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, target *url.URL) (bool, error) {
	origin := target.Scheme + "://" + target.Host

	if cached, found := rc.cache.Get(origin); found {
		return cached.(*robotstxt.RobotsData).TestAgent(target.EscapedPath(), rc.userAgent), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create robots request: %w", err)
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return true, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return true, nil
	}

	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		return true, nil
	}
	rc.cache.Set(origin, robots, cache.DefaultExpiration)

	return robots.TestAgent(target.EscapedPath(), rc.userAgent), nil
}
