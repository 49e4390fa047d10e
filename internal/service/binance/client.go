// Package binance loads aligned price, funding and open interest series from
// the Binance USD-M futures REST API.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"ClpWatch/internal/domain/models"
	drepo "ClpWatch/internal/domain/repository"
	"ClpWatch/internal/service/ratelimit"
	"ClpWatch/pkg/http"
	"ClpWatch/pkg/logger"

	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://fapi.binance.com"

	klinesPath       = "/fapi/v1/klines"
	fundingRatePath  = "/fapi/v1/fundingRate"
	openInterestPath = "/futures/data/openInterestHist"

	// auxLimit caps the funding and open interest history requests.
	auxLimit = 200
)

// ErrRequestFailed wraps the last error of an exhausted retry loop.
var ErrRequestFailed = errors.New("binance request failed after retries")

// Config configures Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration // sleep before retry i is Backoff*i
	RPS     float64
	Burst   int
}

// Client implements MarketDataSource on top of the Binance REST API.
type Client struct {
	baseURL string
	host    string
	retries int
	backoff time.Duration

	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Binance client. Zero config fields fall back to 15s timeout,
// 3 retries, 800ms backoff and 10 requests per second.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 800 * time.Millisecond
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		host:    u.Host,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		http:    http.NewClient(http.WithTimeout(cfg.Timeout)),
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		breaker: newBreaker("binance"),
		logger:  log,
		sleep:   sleepCtx,
	}, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// get performs one GET with retries, decoding the JSON body into dest.
func (c *Client) get(ctx context.Context, path string, params map[string]string, dest any) error {
	q := make(url.Values, len(params))
	for k, v := range params {
		q.Set(k, v)
	}

	var last error
	for i := 1; i <= c.retries; i++ {
		if err := c.limiter.Wait(ctx, c.host); err != nil {
			return err
		}
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.http.GetJSON(ctx, c.baseURL+path, q, dest)
		})
		if err == nil {
			return nil
		}
		last = err
		if c.logger != nil {
			c.logger.Warn("binance request failed",
				logger.String("path", path),
				logger.Int("attempt", i),
				logger.Error(err))
		}
		if i == c.retries {
			break
		}
		if err := c.sleep(ctx, c.backoff*time.Duration(i)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrRequestFailed, last)
}

// FetchSeries loads lookback candles and aligns funding and open interest onto
// them backward in time.
func (c *Client) FetchSeries(ctx context.Context, symbol string, interval drepo.Interval, lookback int) (*models.Series, error) {
	candles, err := c.FetchKlines(ctx, symbol, interval, lookback)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	oi, err := c.FetchOpenInterest(ctx, symbol, interval, min(auxLimit, lookback))
	if err != nil {
		return nil, fmt.Errorf("open interest %s: %w", symbol, err)
	}
	fr, err := c.FetchFundingRates(ctx, symbol, auxLimit)
	if err != nil {
		return nil, fmt.Errorf("funding %s: %w", symbol, err)
	}

	times := make([]time.Time, len(candles))
	for i, k := range candles {
		times[i] = k.OpenTime
	}
	funding := AlignBackward(times, fr)
	openInt := AlignBackward(times, oi)

	s := &models.Series{Symbol: symbol, Interval: string(interval), Observations: make([]models.Observation, len(candles))}
	for i, k := range candles {
		s.Observations[i] = models.Observation{
			Time:         k.OpenTime,
			Close:        k.Close,
			FundingRate:  funding[i],
			OpenInterest: openInt[i],
		}
	}
	return s, nil
}

// Candle is one kline.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// FetchKlines returns up to limit candles in ascending open time.
func (c *Client) FetchKlines(ctx context.Context, symbol string, interval drepo.Interval, limit int) ([]Candle, error) {
	var raw [][]json.RawMessage
	err := c.get(ctx, klinesPath, map[string]string{
		"symbol":   symbol,
		"interval": string(interval),
		"limit":    strconv.Itoa(limit),
	}, &raw)
	if err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(raw))
	for i, row := range raw {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: %d fields", i, len(row))
		}
		var ms int64
		if err := json.Unmarshal(row[0], &ms); err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		var vals [5]float64
		for j := range vals {
			v, err := decimal(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			vals[j] = v
		}
		out = append(out, Candle{
			OpenTime: time.UnixMilli(ms).UTC(),
			Open:     vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

type fundingRow struct {
	FundingTime int64  `json:"fundingTime"`
	FundingRate string `json:"fundingRate"`
}

// FetchFundingRates returns the funding rate history in ascending time.
// Unparseable rates become undefined points.
func (c *Client) FetchFundingRates(ctx context.Context, symbol string, limit int) ([]Point, error) {
	var rows []fundingRow
	if err := c.get(ctx, fundingRatePath, map[string]string{
		"symbol": symbol,
		"limit":  strconv.Itoa(limit),
	}, &rows); err != nil {
		return nil, err
	}
	out := make([]Point, len(rows))
	for i, r := range rows {
		out[i] = Point{Time: time.UnixMilli(r.FundingTime).UTC(), Value: parseFloat(r.FundingRate)}
	}
	sortPoints(out)
	return out, nil
}

type openInterestRow struct {
	SumOpenInterest string `json:"sumOpenInterest"`
	Timestamp       int64  `json:"timestamp"`
}

// FetchOpenInterest returns the open interest history sampled at period.
func (c *Client) FetchOpenInterest(ctx context.Context, symbol string, period drepo.Interval, limit int) ([]Point, error) {
	var rows []openInterestRow
	if err := c.get(ctx, openInterestPath, map[string]string{
		"symbol": symbol,
		"period": string(period),
		"limit":  strconv.Itoa(limit),
	}, &rows); err != nil {
		return nil, err
	}
	out := make([]Point, len(rows))
	for i, r := range rows {
		out[i] = Point{Time: time.UnixMilli(r.Timestamp).UTC(), Value: parseFloat(r.SumOpenInterest)}
	}
	sortPoints(out)
	return out, nil
}

// decimal reads a kline field sent either as a quoted decimal or a bare number.
func decimal(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

func parseFloat(s string) models.Float {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.Undefined
	}
	return models.Some(v)
}
