// Package dataset fetches the tabular time-series behind the dashboard
// charts from published-spreadsheet CSV URLs. Read-only; rendering is the
// frontend's problem.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const cacheTTL = 10 * time.Minute

type Series string

const (
	SeriesHashrate  Series = "hashrate"
	SeriesPrice     Series = "price"
	SeriesVolume    Series = "volume"
	SeriesMarketCap Series = "marketcap"
)

// ParseSeries maps a URL path segment to a known series.
func ParseSeries(s string) (Series, bool) {
	switch Series(s) {
	case SeriesHashrate, SeriesPrice, SeriesVolume, SeriesMarketCap:
		return Series(s), true
	}
	return "", false
}

type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Config maps each series to its CSV source and marks which are premium-only.
type Config struct {
	URLs    map[Series]string
	Premium map[Series]bool
}

type cacheEntry struct {
	points    []Point
	fetchedAt time.Time
}

// Service fetches and caches series data. Stale data is served over a fetch
// error rather than dropping the chart.
type Service struct {
	cfg    Config
	client *http.Client

	mu    sync.Mutex
	cache map[Series]cacheEntry
}

func NewService(cfg Config) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		cache:  make(map[Series]cacheEntry),
	}
}

// Premium reports whether the series is gated on premium entitlement.
func (s *Service) Premium(series Series) bool {
	return s.cfg.Premium[series]
}

// Configured reports whether the series has a data source.
func (s *Service) Configured(series Series) bool {
	return s.cfg.URLs[series] != ""
}

// Fetch returns the points for a series, from cache when fresh.
func (s *Service) Fetch(ctx context.Context, series Series) ([]Point, error) {
	url := s.cfg.URLs[series]
	if url == "" {
		return nil, fmt.Errorf("series %q has no configured source", series)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.cache[series]; ok && time.Since(entry.fetchedAt) < cacheTTL {
		return entry.points, nil
	}

	points, err := s.fetch(ctx, url)
	if err != nil {
		if entry, ok := s.cache[series]; ok {
			return entry.points, nil
		}
		return nil, err
	}

	s.cache[series] = cacheEntry{points: points, fetchedAt: time.Now()}
	return points, nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]Point, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch series: status %d", resp.StatusCode)
	}
	return parseCSV(resp.Body)
}

// parseCSV reads two-column rows of (timestamp, value). Timestamps may be
// unix seconds, RFC 3339, or bare dates; a leading header row is skipped.
func parseCSV(r io.Reader) ([]Point, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var points []Point
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		t, ok := parseTime(record[0])
		if !ok {
			continue // header or junk row
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		points = append(points, Point{Time: t, Value: v})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no data rows in csv")
	}
	return points, nil
}

func parseTime(s string) (time.Time, bool) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
