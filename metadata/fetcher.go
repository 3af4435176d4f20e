// Package metadata looks up poster, actors and plot for a movie title.
//
// Lookups never fail from the caller's point of view: every problem degrades
// the affected fields to models.NotAvailable.
package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"movieweb/config"
	"movieweb/models"
)

// maxBodyBytes bounds how much of an OMDb response we read.
const maxBodyBytes = 1 << 20

// Fetcher turns a movie title into enrichment attributes.
type Fetcher interface {
	Fetch(ctx context.Context, title string) models.Enrichment
}

// NoopFetcher is used when no API key is configured.
type NoopFetcher struct{}

func (NoopFetcher) Fetch(context.Context, string) models.Enrichment {
	return models.EmptyEnrichment()
}

// Options configures an OMDbFetcher.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retries int
	RPS     float64      // 0 disables the limiter
	Client  *http.Client // Optional; built from Timeout/Retries when nil
}

// OMDbFetcher queries the OMDb API (https://www.omdbapi.com/).
type OMDbFetcher struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewOMDbFetcher builds a fetcher from opts.
func NewOMDbFetcher(opts Options, log *zap.Logger) *OMDbFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = NewClient(opts.Timeout, opts.Retries)
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return &OMDbFetcher{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		timeout: opts.Timeout,
		client:  client,
		limiter: limiter,
		log:     log.Named("omdb"),
	}
}

// FromConfig returns an OMDb fetcher, or a NoopFetcher when no API key is set.
func FromConfig(cfg *config.Config, log *zap.Logger) Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.OMDbAPIKey) == "" {
		log.Warn("No OMDb API key configured; movie metadata will be N/A")
		return NoopFetcher{}
	}
	return NewOMDbFetcher(Options{
		APIKey:  cfg.OMDbAPIKey,
		BaseURL: cfg.OMDbBaseURL,
		Timeout: cfg.OMDbTimeout,
		Retries: cfg.OMDbRetries,
		RPS:     cfg.OMDbRPS,
	}, log)
}

// Fetch looks up title. Each field falls back to N/A independently.
func (f *OMDbFetcher) Fetch(ctx context.Context, title string) models.Enrichment {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.EmptyEnrichment()
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			f.log.Warn("Metadata lookup skipped by rate limiter", zap.String("title", title), zap.Error(err))
			return models.EmptyEnrichment()
		}
	}

	body, err := f.lookup(ctx, title)
	if err != nil {
		f.log.Warn("Metadata lookup failed", zap.String("title", title), zap.Error(err))
		return models.EmptyEnrichment()
	}
	return f.parse(title, body)
}

func (f *OMDbFetcher) lookup(ctx context.Context, title string) ([]byte, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid OMDb base URL: %w", err)
	}
	q := u.Query()
	q.Set("apikey", f.apiKey)
	q.Set("t", title)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &HTTPStatusError{URL: f.baseURL, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// parse maps an OMDb response body onto an Enrichment.
func (f *OMDbFetcher) parse(title string, body []byte) models.Enrichment {
	if !gjson.ValidBytes(body) {
		f.log.Warn("Metadata response is not valid JSON", zap.String("title", title))
		return models.EmptyEnrichment()
	}
	res := gjson.ParseBytes(body)
	if strings.EqualFold(res.Get("Response").String(), "False") {
		f.log.Info("Movie not found in OMDb", zap.String("title", title), zap.String("reason", res.Get("Error").String()))
		return models.EmptyEnrichment()
	}

	return models.Enrichment{
		Poster: orNA(res.Get("Poster").String()),
		Actors: orNA(joinActors(res.Get("Actors"))),
		Plot:   orNA(res.Get("Plot").String()),
	}
}

// joinActors accepts either OMDb's comma-separated string or a JSON array.
func joinActors(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	names := make([]string, 0)
	for _, a := range v.Array() {
		if name := strings.TrimSpace(a.String()); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func orNA(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.NotAvailable
	}
	return s
}
