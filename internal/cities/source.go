package cities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/observability"
)

// DataSource fetches a fresh demographic record for a city from one
// external provider. A (nil, nil) return means the provider has no data
// for that city.
type DataSource interface {
	Name() string
	FetchProfile(ctx context.Context, city string) (*models.CityRecord, error)
}

// httpSource is the common shape of the JSON-over-HTTP providers: a base
// URL taking the city name as query parameter and answering with a
// CityRecord document.
type httpSource struct {
	name    string
	baseURL string
	client  *http.Client
}

func newHTTPSource(name, baseURL string, client *http.Client) *httpSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &httpSource{name: name, baseURL: baseURL, client: client}
}

// NewPublicSource scrapes the public open-data portal.
func NewPublicSource(baseURL string, client *http.Client) DataSource {
	return newHTTPSource(string(models.UpdatePublic), baseURL, client)
}

// NewINSSource queries the INS statistics API.
func NewINSSource(baseURL string, client *http.Client) DataSource {
	return newHTTPSource(string(models.UpdateINS), baseURL, client)
}

// NewBRATSource queries the BRAT audience measurement feed.
func NewBRATSource(baseURL string, client *http.Client) DataSource {
	return newHTTPSource(string(models.UpdateBRAT), baseURL, client)
}

func (h *httpSource) Name() string { return h.name }

func (h *httpSource) FetchProfile(ctx context.Context, city string) (*models.CityRecord, error) {
	u := fmt.Sprintf("%s?city=%s", strings.TrimRight(h.baseURL, "/"), url.QueryEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &models.ExternalUnavailable{Source: h.name, Err: err}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &models.ExternalUnavailable{Source: h.name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, &models.ExternalUnavailable{Source: h.name, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var rec models.CityRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, &models.ExternalUnavailable{Source: h.name, Err: err}
	}
	rec.Source = h.name
	rec.LastUpdated = time.Now().UTC()
	return &rec, nil
}

// Fetcher chains data sources behind a disk cache with a TTL. Results are
// written to the cache whichever source produced them; a cache hit within
// the TTL short-circuits the network entirely.
type Fetcher struct {
	Sources  []DataSource
	CacheDir string
	TTL      time.Duration
	Logger   *zap.Logger
	Metrics  observability.MetricsRegistry
}

// NewFetcher constructs a Fetcher.
func NewFetcher(sources []DataSource, cacheDir string, ttl time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &observability.MockMetricsRegistry{}
	}
	return &Fetcher{Sources: sources, CacheDir: cacheDir, TTL: ttl, Logger: logger, Metrics: metrics}
}

// Fetch returns the freshest record obtainable for the city: disk cache
// first, then each source in order. Provider failures are logged, counted
// and skipped; only total exhaustion returns an error.
func (f *Fetcher) Fetch(ctx context.Context, city string) (*models.CityRecord, error) {
	if rec := f.readCache(city); rec != nil {
		f.Metrics.IncrementCityFetch("cache", "hit")
		return rec, nil
	}

	var lastErr error
	for _, src := range f.Sources {
		rec, err := src.FetchProfile(ctx, city)
		if err != nil {
			f.Metrics.IncrementCityFetch(src.Name(), "error")
			f.Logger.Warn("city data source failed",
				zap.String("source", src.Name()),
				zap.String("city", city),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if rec == nil {
			f.Metrics.IncrementCityFetch(src.Name(), "miss")
			continue
		}
		f.Metrics.IncrementCityFetch(src.Name(), "ok")
		f.writeCache(city, rec)
		return rec, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// RefreshAsync updates the store from external sources without blocking
// the caller. Failures only log; the store keeps its previous data.
func (f *Fetcher) RefreshAsync(store *Store, city string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		rec, err := f.Fetch(ctx, city)
		if err != nil || rec == nil {
			return
		}
		quarter := models.QuarterKey(time.Now().UTC())
		if err := store.SetRecord(city, quarter, *rec); err != nil {
			return
		}
		if err := store.Save(); err != nil {
			f.Logger.Warn("persisting refreshed city data failed", zap.String("city", city), zap.Error(err))
		}
	}()
}

func (f *Fetcher) cachePath(city string) string {
	safe := strings.ToLower(strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, city))
	return filepath.Join(f.CacheDir, safe+".json")
}

func (f *Fetcher) readCache(city string) *models.CityRecord {
	if f.CacheDir == "" {
		return nil
	}
	path := f.cachePath(city)
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) > f.TTL {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var rec models.CityRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}
	return &rec
}

func (f *Fetcher) writeCache(city string, rec *models.CityRecord) {
	if f.CacheDir == "" {
		return
	}
	if err := writeJSONFile(f.cachePath(city), rec); err != nil {
		f.Logger.Warn("city cache write failed", zap.String("city", city), zap.Error(err))
	}
}

// SourcesFor builds the source chain a city prefers. Manual preference
// means no external fetching at all.
func SourcesFor(pref models.UpdatePreference, public, ins, brat DataSource) []DataSource {
	switch pref {
	case models.UpdateManual:
		return nil
	case models.UpdateINS:
		return compact(ins, brat, public)
	case models.UpdateBRAT:
		return compact(brat, ins, public)
	default:
		return compact(public, ins, brat)
	}
}

func compact(sources ...DataSource) []DataSource {
	out := sources[:0]
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
