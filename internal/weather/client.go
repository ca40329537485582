package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/pkg/config"
	"github.com/yandri918/prediksi-cuaca/pkg/httputil"
	"github.com/yandri918/prediksi-cuaca/pkg/redis"
)

const (
	dateLayout   = "2006-01-02"
	hourLayout   = "2006-01-02T15:04"
	maxGeocode   = 5
	maxOutlook   = 16
	meanVariable = "temperature_2m_mean"
	maxVariable  = "temperature_2m_max"
	minVariable  = "temperature_2m_min"
)

// =============================================================================
// Open-Meteo Client
// =============================================================================

// Client Open-Meteo archive, forecast, geocoding 클라이언트
// ⭐ SSOT: 기상 데이터 수집은 여기서만
type Client struct {
	http         *httputil.Client
	archiveURL   string
	forecastURL  string
	geocodingURL string
	cache        *redis.Cache
	historyTTL   time.Duration
	geocode      *expirable.LRU[string, []contracts.Location]
	log          zerolog.Logger
	now          func() time.Time
}

// NewClient 새 클라이언트 생성
func NewClient(cfg *config.Config, httpClient *httputil.Client, cache *redis.Cache, log zerolog.Logger) *Client {
	size := cfg.Weather.CacheSize
	if size <= 0 {
		size = 256
	}
	if cache == nil {
		cache = redis.NewCache(&redis.Client{}, "cuaca")
	}
	ttl := cfg.Redis.HistoryTTL
	if ttl <= 0 {
		ttl = redis.TTLHistory
	}
	return &Client{
		http:         httpClient,
		archiveURL:   cfg.Weather.ArchiveURL,
		forecastURL:  cfg.Weather.ForecastURL,
		geocodingURL: cfg.Weather.GeocodingURL,
		cache:        cache,
		historyTTL:   ttl,
		geocode:      expirable.NewLRU[string, []contracts.Location](size, nil, redis.TTLGeocode),
		log:          log.With().Str("component", "weather.client").Logger(),
		now:          time.Now,
	}
}

// seriesResponse archive/forecast 공통 응답
type seriesResponse struct {
	Timezone string                     `json:"timezone"`
	Daily    map[string]json.RawMessage `json:"daily"`
	Hourly   map[string]json.RawMessage `json:"hourly"`
}

// FetchHistory 변수 간격에 맞춰 과거 관측 조회
func (c *Client) FetchHistory(ctx context.Context, loc contracts.Location, variable string, from, to time.Time) (*contracts.TimeSeries, error) {
	v, err := ParseVariable(variable)
	if err != nil {
		return nil, err
	}
	if v.Granularity == Hourly {
		return c.FetchHourlyHistory(ctx, loc, from, to, v.Name)
	}
	return c.FetchDailyHistory(ctx, loc, from, to, v.Name)
}

// FetchActuals 예측 검증용 실제 관측 (forecast.ActualsFetcher)
func (c *Client) FetchActuals(ctx context.Context, loc contracts.Location, variable string, from, to time.Time) (*contracts.TimeSeries, error) {
	return c.FetchHistory(ctx, loc, variable, from, to)
}

// RecentHistory 어제까지 최근 days 일 관측
// archive 는 당일 데이터를 제공하지 않음
func (c *Client) RecentHistory(ctx context.Context, loc contracts.Location, variable string, days int) (*contracts.TimeSeries, error) {
	if days < 1 {
		return nil, &contracts.ValidationError{Field: "days", Reason: "must be positive"}
	}
	end := c.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))
	return c.FetchHistory(ctx, loc, variable, start, end)
}

// FetchDailyHistory 일별 과거 관측
func (c *Client) FetchDailyHistory(ctx context.Context, loc contracts.Location, from, to time.Time, variable string) (*contracts.TimeSeries, error) {
	return c.fetchArchive(ctx, loc, from, to, variable, Daily)
}

// FetchHourlyHistory 시간별 과거 관측 (UTC)
func (c *Client) FetchHourlyHistory(ctx context.Context, loc contracts.Location, from, to time.Time, variable string) (*contracts.TimeSeries, error) {
	return c.fetchArchive(ctx, loc, from, to, variable, Hourly)
}

func (c *Client) fetchArchive(ctx context.Context, loc contracts.Location, from, to time.Time, variable string, g Granularity) (*contracts.TimeSeries, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, &contracts.ValidationError{Field: "end_date", Reason: "before start_date"}
	}

	start, end := from.Format(dateLayout), to.Format(dateLayout)
	key := redis.HistoryKey(loc.Latitude, loc.Longitude, variable, string(g), start, end)

	var cached []contracts.Observation
	if found, err := c.cache.Get(ctx, key, &cached); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("history cache read failed")
	} else if found {
		c.log.Debug().Str("key", key).Int("points", len(cached)).Msg("history cache hit")
		return c.series(loc, variable, cached), nil
	}

	q := baseQuery(loc, variable, g)
	q.Set("start_date", start)
	q.Set("end_date", end)

	var resp seriesResponse
	if err := c.http.GetJSON(ctx, c.archiveURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("open-meteo archive: %w", err)
	}
	points, err := decodeBlock(resp, variable, g)
	if err != nil {
		return nil, err
	}

	if loc.Timezone == "" {
		loc.Timezone = resp.Timezone
	}
	if err := c.cache.Set(ctx, key, points, c.historyTTL); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("history cache write failed")
	}

	c.log.Info().
		Str("location", loc.Name).
		Str("variable", variable).
		Str("start", start).
		Str("end", end).
		Int("points", len(points)).
		Msg("history fetched")
	return c.series(loc, variable, points), nil
}

// FetchDailyForecast 공급자 일별 예보 (모델 비교 기준선)
func (c *Client) FetchDailyForecast(ctx context.Context, loc contracts.Location, days int, variable string) (*contracts.TimeSeries, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	v, err := ParseVariable(variable)
	if err != nil {
		return nil, err
	}
	if v.Granularity != Daily {
		return nil, &contracts.ValidationError{Field: "variable", Reason: "provider outlook is only available for daily variables"}
	}
	if days < 1 || days > maxOutlook {
		return nil, &contracts.ValidationError{Field: "days", Reason: fmt.Sprintf("must be in [1, %d]", maxOutlook)}
	}

	key := redis.OutlookKey(loc.Latitude, loc.Longitude, v.Name, days)
	var cached []contracts.Observation
	if found, err := c.cache.Get(ctx, key, &cached); err == nil && found {
		return c.series(loc, v.Name, cached), nil
	}

	q := baseQuery(loc, v.Name, Daily)
	q.Set("forecast_days", strconv.Itoa(days))

	var resp seriesResponse
	if err := c.http.GetJSON(ctx, c.forecastURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("open-meteo forecast: %w", err)
	}
	points, err := decodeBlock(resp, v.Name, Daily)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, points, redis.TTLOutlook); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("outlook cache write failed")
	}
	return c.series(loc, v.Name, points), nil
}

// SearchLocations 지명 검색 (최대 5건)
func (c *Client) SearchLocations(ctx context.Context, name string) ([]contracts.Location, error) {
	key := redis.GeocodeKey(name)
	if key == redis.GeocodeKey("") {
		return nil, &contracts.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if hit, ok := c.geocode.Get(key); ok {
		return hit, nil
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(maxGeocode))
	q.Set("language", "en")
	q.Set("format", "json")

	var resp struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Admin1    string  `json:"admin1"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Timezone  string  `json:"timezone"`
		} `json:"results"`
	}
	if err := c.http.GetJSON(ctx, c.geocodingURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("open-meteo geocoding: %w", err)
	}

	out := make([]contracts.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, contracts.Location{
			Name:      r.Name,
			Country:   r.Country,
			Admin1:    r.Admin1,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Timezone:  r.Timezone,
		})
		if len(out) == maxGeocode {
			break
		}
	}
	c.geocode.Add(key, out)
	return out, nil
}

func (c *Client) series(loc contracts.Location, variable string, points []contracts.Observation) *contracts.TimeSeries {
	unit := ""
	if v, err := ParseVariable(variable); err == nil {
		unit = v.Unit
	}
	l := loc
	return &contracts.TimeSeries{
		Name:     variable,
		Variable: variable,
		Unit:     unit,
		Location: &l,
		Points:   points,
	}
}

func baseQuery(loc contracts.Location, variable string, g Granularity) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))

	requested := variable
	if variable == meanVariable {
		// 예보 API 는 평균 기온이 비어 있을 수 있어 최고/최저도 함께 요청
		requested = meanVariable + "," + maxVariable + "," + minVariable
	}
	q.Set(string(g), requested)

	if g == Hourly {
		q.Set("timezone", "GMT")
	} else {
		q.Set("timezone", "auto")
	}
	return q
}

// decodeBlock 응답 블록을 관측 목록으로 변환 (null 은 결측)
func decodeBlock(resp seriesResponse, variable string, g Granularity) ([]contracts.Observation, error) {
	block := resp.Daily
	layout := dateLayout
	if g == Hourly {
		block = resp.Hourly
		layout = hourLayout
	}
	if block == nil {
		return nil, fmt.Errorf("open-meteo response has no %s block", g)
	}

	var times []string
	if err := json.Unmarshal(block["time"], &times); err != nil {
		return nil, fmt.Errorf("decode %s time: %w", g, err)
	}
	values, err := column(block, variable, len(times))
	if err != nil {
		return nil, err
	}

	if variable == meanVariable {
		highs, errHigh := column(block, maxVariable, len(times))
		lows, errLow := column(block, minVariable, len(times))
		if errHigh == nil && errLow == nil {
			for i := range values {
				if values[i] == nil && highs[i] != nil && lows[i] != nil {
					mid := (*highs[i] + *lows[i]) / 2
					values[i] = &mid
				}
			}
		}
	}

	points := make([]contracts.Observation, len(times))
	for i, raw := range times {
		ts, err := time.Parse(layout, raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s time %q: %w", g, raw, err)
		}
		value := math.NaN()
		if values[i] != nil {
			value = *values[i]
		}
		points[i] = contracts.Observation{Time: ts, Value: value}
	}
	return points, nil
}

func column(block map[string]json.RawMessage, name string, n int) ([]*float64, error) {
	raw, ok := block[name]
	if !ok {
		return nil, fmt.Errorf("open-meteo response missing %q", name)
	}
	var values []*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(values) != n {
		return nil, fmt.Errorf("open-meteo %s has %d values for %d timestamps", name, len(values), n)
	}
	return values, nil
}
