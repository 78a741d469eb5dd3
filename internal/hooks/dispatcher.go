package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/capturelabs/capturesink/internal/notify"
)

// Headers attached to every hook delivery.
const (
	HeaderSignature = "X-Capturesink-Signature"
	HeaderEvent     = "X-Capturesink-Event"
)

// Envelope is the JSON body delivered to hook endpoints.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DeliveryResult reports the outcome of one registration's delivery chain.
type DeliveryResult struct {
	HookID   string `json:"hookId"`
	URL      string `json:"url"`
	Status   int    `json:"status,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// DispatcherConfig tunes outbound delivery behavior.
type DispatcherConfig struct {
	// Timeout bounds a single HTTP attempt (default 10s).
	Timeout time.Duration
	// MaxAttempts caps tries per registration (default 3).
	MaxAttempts int
	// BaseDelay seeds the exponential backoff (default 250ms).
	BaseDelay time.Duration
	// MaxDelay caps the backoff (default 5s).
	MaxDelay time.Duration
	// RatePerHost throttles deliveries per endpoint host; <=0 disables
	// pacing (default 5 rps).
	RatePerHost float64
	// RateBurst is the per-host burst allowance (default 10).
	RateBurst int
	// Logger receives delivery warnings; nil falls back to a no-op logger.
	Logger *zap.Logger
}

// Dispatcher posts signed event envelopes to registered hook endpoints with
// jittered retries and per-host pacing.
type Dispatcher struct {
	store   Store
	client  *http.Client
	policy  retryPolicy
	limiter *hostLimiter
	logger  *zap.Logger
}

// NewDispatcher builds a Dispatcher over the registration store.
func NewDispatcher(store Store, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		policy: retryPolicy{
			maxAttempts: cfg.MaxAttempts,
			baseDelay:   cfg.BaseDelay,
			maxDelay:    cfg.MaxDelay,
		},
		limiter: newHostLimiter(cfg.RatePerHost, cfg.RateBurst),
		logger:  cfg.Logger,
	}
}

// Deliver fans evt out to every matching registration. Failures are logged
// per registration; the first one is returned once all deliveries ran.
func (d *Dispatcher) Deliver(ctx context.Context, evt notify.Event) error {
	results, err := d.dispatch(ctx, string(evt.Kind), evt.TS, evt)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Error != "" {
			return fmt.Errorf("hook %s: %s", res.HookID, res.Error)
		}
	}
	return nil
}

// Trigger synchronously delivers a test envelope to registrations matching
// event and reports the per-hook outcome.
func (d *Dispatcher) Trigger(ctx context.Context, event string, data any) ([]DeliveryResult, error) {
	return d.dispatch(ctx, event, time.Now().UTC(), data)
}

func (d *Dispatcher) dispatch(ctx context.Context, event string, ts time.Time, data any) ([]DeliveryResult, error) {
	regs, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hook registrations: %w", err)
	}
	matched := make([]Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.Matches(event) {
			matched = append(matched, reg)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(Envelope{Event: event, Timestamp: ts, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	results := make([]DeliveryResult, len(matched))
	var wg sync.WaitGroup
	for i, reg := range matched {
		wg.Add(1)
		go func(i int, reg Registration) {
			defer wg.Done()
			results[i] = d.deliverOne(ctx, reg, event, body)
		}(i, reg)
	}
	wg.Wait()
	return results, nil
}

func (d *Dispatcher) deliverOne(ctx context.Context, reg Registration, event string, body []byte) DeliveryResult {
	res := DeliveryResult{HookID: reg.ID, URL: reg.URL}
	for attempt := 0; ; attempt++ {
		if err := d.limiter.wait(ctx, reg.URL); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Attempts = attempt + 1

		status, err := d.post(ctx, reg, event, body)
		res.Status = status
		if err == nil && status >= 200 && status < 300 {
			res.Error = ""
			return res
		}
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Error = fmt.Sprintf("endpoint returned %d", status)
		}

		if !d.policy.shouldRetry(err, status, res.Attempts) {
			d.logger.Warn("hook delivery failed",
				zap.String("hook_id", reg.ID),
				zap.String("url", reg.URL),
				zap.Int("attempts", res.Attempts),
				zap.String("error", res.Error))
			return res
		}
		select {
		case <-time.After(d.policy.backoff(attempt)):
		case <-ctx.Done():
			res.Error = ctx.Err().Error()
			return res
		}
	}
}

func (d *Dispatcher) post(ctx context.Context, reg Registration, event string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build hook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event)
	if reg.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(reg.Secret, body))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post hook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Sign computes the signature header value for body: a hex HMAC-SHA256
// prefixed with the algorithm name.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// retryPolicy implements jittered exponential backoff for deliveries.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// shouldRetry decides whether another attempt is worthwhile after attempts
// tries. Context cancellation and client errors other than 429 are final.
func (p retryPolicy) shouldRetry(err error, status int, attempts int) bool {
	if attempts >= p.maxAttempts {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return netErr.Timeout()
		}
		return true
	}
	return status >= 500 || status == http.StatusTooManyRequests
}

// backoff returns the wait duration before the next attempt.
func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// hostLimiter paces deliveries per endpoint host with token buckets.
type hostLimiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

func newHostLimiter(rps float64, burst int) *hostLimiter {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &hostLimiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

func (l *hostLimiter) wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
