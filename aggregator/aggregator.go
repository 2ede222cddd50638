package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/coastwatch/cache"
	"github.com/use-agent/coastwatch/config"
	"github.com/use-agent/coastwatch/fetcher"
	"github.com/use-agent/coastwatch/models"
	"github.com/use-agent/coastwatch/scraper"
	"golang.org/x/sync/singleflight"
)

// Resource names, also used as cache key prefixes.
const (
	ResourceWind     = "wind"
	ResourceTides    = "tides"
	ResourceForecast = "forecast"
	ResourceWaves    = "waves"
)

// Cache statuses reported on Result.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// WindSource produces live wind snapshots.
type WindSource interface {
	Scrape(ctx context.Context) (*scraper.WindSnapshot, error)
}

// Fetcher performs deadline-bound upstream calls.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*fetcher.Response, error)
}

// Result is an upstream JSON document ready to pass through.
type Result struct {
	Body        []byte
	CacheStatus string
}

// Aggregator applies the per-resource cache policy and turns upstream
// outcomes into typed errors.
//
// The live wind reading is never cached. Tides, forecast and waves are
// cache-first with a fixed TTL; non-success upstream responses are never
// cached.
type Aggregator struct {
	wind     WindSource
	fetch    Fetcher
	cache    *cache.Cache
	upstream config.UpstreamConfig
	ttl      time.Duration

	// sf coalesces concurrent misses per key; nil keeps every miss
	// independent (both callers fetch, the last write wins).
	sf *singleflight.Group
}

// New wires an Aggregator around an explicit cache instance.
func New(wind WindSource, fetch Fetcher, cc *cache.Cache, upstream config.UpstreamConfig, cacheCfg config.CacheConfig) *Aggregator {
	a := &Aggregator{
		wind:     wind,
		fetch:    fetch,
		cache:    cc,
		upstream: upstream,
		ttl:      cacheCfg.TTL,
	}
	if cacheCfg.CoalesceMisses {
		a.sf = &singleflight.Group{}
	}
	return a
}

// TTL is the lifetime of cached upstream responses.
func (a *Aggregator) TTL() time.Duration { return a.ttl }

// Wind always scrapes the sensor page; a stale "latest reading" is useless.
func (a *Aggregator) Wind(ctx context.Context) (*scraper.WindSnapshot, error) {
	return a.wind.Scrape(ctx)
}

// Tides returns tidal events for station, or the default station when
// station is empty.
func (a *Aggregator) Tides(ctx context.Context, station string) (*Result, error) {
	if station == "" {
		station = a.upstream.DefaultStation
	}
	headers := map[string]string{}
	if a.upstream.TidesAPIKey != "" {
		headers[a.upstream.TidesAPIKeyHeader] = a.upstream.TidesAPIKey
	}
	target := fmt.Sprintf(a.upstream.TidesURL, url.PathEscape(station))
	return a.cached(ctx, cache.Key(ResourceTides, station), target, headers)
}

// Forecast returns the weather forecast document.
func (a *Aggregator) Forecast(ctx context.Context) (*Result, error) {
	return a.cached(ctx, cache.Key(ResourceForecast), a.upstream.ForecastURL, nil)
}

// Waves returns the marine wave height document.
func (a *Aggregator) Waves(ctx context.Context) (*Result, error) {
	return a.cached(ctx, cache.Key(ResourceWaves), a.upstream.WavesURL, nil)
}

// CacheEntries reports how many responses are held.
func (a *Aggregator) CacheEntries() int {
	return a.cache.Len()
}

func (a *Aggregator) cached(ctx context.Context, key, target string, headers map[string]string) (*Result, error) {
	if body, ok := a.cache.Get(key); ok {
		slog.Debug("cache hit", "key", key)
		return &Result{Body: body, CacheStatus: CacheHit}, nil
	}

	if a.sf == nil {
		body, err := a.load(ctx, key, target, headers)
		if err != nil {
			return nil, err
		}
		return &Result{Body: body, CacheStatus: CacheMiss}, nil
	}

	// The shared call must not die with whichever caller arrived first;
	// the fetch timeout still bounds it.
	shareCtx := context.WithoutCancel(ctx)
	v, err, shared := a.sf.Do(key, func() (any, error) {
		return a.load(shareCtx, key, target, headers)
	})
	if err != nil {
		return nil, err
	}
	body := v.([]byte)
	if shared {
		body = append([]byte(nil), body...)
	}
	return &Result{Body: body, CacheStatus: CacheMiss}, nil
}

// load fetches target and caches the body only if the call succeeded with
// a 2xx status and a JSON document.
func (a *Aggregator) load(ctx context.Context, key, target string, headers map[string]string) ([]byte, error) {
	start := time.Now()
	resp, err := a.fetch.Fetch(ctx, target, headers, a.upstream.Timeout)
	if err != nil {
		slog.Warn("upstream fetch failed", "key", key, "error", err)
		return nil, err
	}

	if !resp.OK() {
		slog.Warn("upstream returned non-OK status",
			"key", key,
			"status", resp.StatusCode,
			"durationMs", time.Since(start).Milliseconds(),
		)
		return nil, models.NewUpstreamError(resp.StatusCode, resp.Body)
	}

	if !json.Valid(resp.Body) {
		return nil, models.NewProxyError(models.ErrCodeFetch, "upstream returned invalid JSON", nil)
	}

	a.cache.Set(key, resp.Body, a.ttl)
	slog.Info("upstream fetched",
		"key", key,
		"bytes", len(resp.Body),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return resp.Body, nil
}
