package metricsource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/resilience"
)

// HTTPConfig configures an HTTP metrics source.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	RatePerSec float64
	Timeout    time.Duration
	Retry      resilience.RetryConfig
	// Breaker stops calls while the API keeps failing. Default: 5
	// consecutive failures open it for 30s.
	Breaker *resilience.Breaker
}

// HTTP reads metrics from a JSON API:
//
//	GET {base}/metrics?name=a&name=b          -> {"metrics": {"a": 1.5}}
//	GET {base}/metrics/history?name=a&since=T -> {"series": {"a": [{"timestamp": T, "value": 1.5}]}}
type HTTP struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTP creates an HTTP source.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("metrics_api", "fetch")
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: "metrics_api"})
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTP{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

type metricsResponse struct {
	Metrics map[string]float64 `json:"metrics"`
}

type historyResponse struct {
	Series map[string][]model.MetricPoint `json:"series"`
}

// FetchMetrics implements Source.
func (h *HTTP) FetchMetrics(ctx context.Context, names []string) (map[string]float64, error) {
	q := url.Values{}
	for _, n := range dedupe(names) {
		q.Add("name", n)
	}
	var resp metricsResponse
	if err := h.get(ctx, "/metrics", q, &resp); err != nil {
		return nil, err
	}
	if resp.Metrics == nil {
		resp.Metrics = map[string]float64{}
	}
	return resp.Metrics, nil
}

// FetchHistory implements HistorySource.
func (h *HTTP) FetchHistory(ctx context.Context, names []string, since time.Time) (map[string][]model.MetricPoint, error) {
	q := url.Values{}
	for _, n := range dedupe(names) {
		q.Add("name", n)
	}
	q.Set("since", since.UTC().Format(time.RFC3339))
	var resp historyResponse
	if err := h.get(ctx, "/metrics/history", q, &resp); err != nil {
		return nil, err
	}
	if resp.Series == nil {
		resp.Series = map[string][]model.MetricPoint{}
	}
	return resp.Series, nil
}

func (h *HTTP) get(ctx context.Context, path string, q url.Values, dst any) error {
	endpoint := h.cfg.BaseURL + path + "?" + q.Encode()
	body, err := resilience.Guard(h.cfg.Breaker, func() ([]byte, error) {
		return resilience.DoVal(ctx, h.cfg.Retry, func(ctx context.Context) ([]byte, error) {
			if err := h.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "metricsource: rate limit wait")
			}
			return h.do(ctx, endpoint)
		})
	})
	if err != nil {
		return eris.Wrapf(err, "metricsource: GET %s", path)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return eris.Wrapf(err, "metricsource: decode %s", path)
	}
	return nil
}

func (h *HTTP) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "metricsource: create request")
	}
	req.Header.Set("Accept", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "metricsource: read body")
	}
	if resp.StatusCode >= 400 {
		statusErr := eris.Errorf("metricsource: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return body, nil
}
