package vault

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Reading is a single oracle observation. CompletionRound mirrors the feed's
// resolution marker: a reading is only trustworthy once the completion round
// has caught up with the round that produced it.
type Reading struct {
	RoundID         uint64
	Price           *big.Int
	UpdatedAt       time.Time
	CompletionRound uint64
}

// Clone returns a deep copy of the reading.
func (r Reading) Clone() Reading {
	out := Reading{RoundID: r.RoundID, UpdatedAt: r.UpdatedAt, CompletionRound: r.CompletionRound}
	if r.Price != nil {
		out.Price = new(big.Int).Set(r.Price)
	}
	return out
}

// PriceFeed is the minimum contract the vault requires from the external
// price oracle.
type PriceFeed interface {
	LatestReading() (Reading, error)
	DecimalPrecision() (uint8, error)
}

// PriceValidator wraps a feed with integrity and freshness checks.
type PriceValidator struct {
	feed      PriceFeed
	heartbeat time.Duration
	now       func() time.Time
}

// NewPriceValidator constructs a validator over the supplied feed using the
// standard heartbeat.
func NewPriceValidator(feed PriceFeed) *PriceValidator {
	return &PriceValidator{feed: feed, heartbeat: PriceHeartbeat, now: time.Now}
}

// SetClock overrides the validator clock, primarily for deterministic tests.
func (v *PriceValidator) SetClock(now func() time.Time) {
	if v == nil || now == nil {
		return
	}
	v.now = now
}

// ValidatedPrice fetches the latest reading and rejects compromised or stale
// observations. On success it returns the price alongside the feed's decimal
// precision.
func (v *PriceValidator) ValidatedPrice() (*big.Int, uint8, error) {
	if v == nil || v.feed == nil {
		return nil, 0, fmt.Errorf("vault: price feed not configured")
	}
	reading, err := v.feed.LatestReading()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrOracleCompromised, err)
	}
	if reading.Price == nil || reading.Price.Sign() <= 0 {
		return nil, 0, ErrOracleCompromised
	}
	if reading.CompletionRound < reading.RoundID {
		return nil, 0, ErrOracleCompromised
	}
	if reading.UpdatedAt.IsZero() || v.now().Sub(reading.UpdatedAt) > v.heartbeat {
		return nil, 0, ErrStalePrice
	}
	decimals, err := v.feed.DecimalPrecision()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrOracleCompromised, err)
	}
	return new(big.Int).Set(reading.Price), decimals, nil
}

// ManualFeed provides an in-memory feed implementation used for tests and
// manual overrides during incident response.
type ManualFeed struct {
	mu       sync.RWMutex
	reading  Reading
	decimals uint8
	set      bool
}

// NewManualFeed constructs an empty manual feed with the supplied precision.
func NewManualFeed(decimals uint8) *ManualFeed {
	return &ManualFeed{decimals: decimals}
}

// Set stores the supplied reading as the latest observation.
func (m *ManualFeed) Set(reading Reading) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.reading = reading.Clone()
	m.set = true
	m.mu.Unlock()
}

// LatestReading returns the stored observation.
func (m *ManualFeed) LatestReading() (Reading, error) {
	if m == nil {
		return Reading{}, fmt.Errorf("manual feed not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return Reading{}, fmt.Errorf("manual feed: no reading set")
	}
	return m.reading.Clone(), nil
}

// DecimalPrecision returns the configured precision.
func (m *ManualFeed) DecimalPrecision() (uint8, error) {
	if m == nil {
		return 0, fmt.Errorf("manual feed not configured")
	}
	return m.decimals, nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed adapts a JSON price endpoint into the PriceFeed contract. The
// endpoint is expected to return round metadata alongside the integer price.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	decimals uint8
}

// NewHTTPFeed constructs an HTTP feed adapter. When client is nil
// http.DefaultClient is used.
func NewHTTPFeed(client HTTPDoer, endpoint string, decimals uint8) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), decimals: decimals}
}

// LatestReading fetches and decodes the newest observation from the endpoint.
func (f *HTTPFeed) LatestReading() (Reading, error) {
	if f == nil {
		return Reading{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Reading{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Reading{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Reading{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		RoundID         uint64 `json:"roundId"`
		Price           string `json:"price"`
		UpdatedAt       int64  `json:"updatedAt"`
		CompletionRound uint64 `json:"answeredInRound"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Reading{}, fmt.Errorf("http feed: decode: %w", err)
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(payload.Price), 10)
	if !ok {
		return Reading{}, fmt.Errorf("http feed: invalid price %q", payload.Price)
	}
	return Reading{
		RoundID:         payload.RoundID,
		Price:           price,
		UpdatedAt:       time.Unix(payload.UpdatedAt, 0),
		CompletionRound: payload.CompletionRound,
	}, nil
}

// DecimalPrecision returns the configured precision.
func (f *HTTPFeed) DecimalPrecision() (uint8, error) {
	if f == nil {
		return 0, fmt.Errorf("http feed not configured")
	}
	return f.decimals, nil
}
