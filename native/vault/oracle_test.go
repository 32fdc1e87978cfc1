package vault

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPriceValidatorAcceptsFreshReading(t *testing.T) {
	now := time.Unix(1700000000, 0)
	feed := NewManualFeed(8)
	feed.Set(Reading{
		RoundID:         7,
		Price:           big.NewInt(250000000000),
		UpdatedAt:       now.Add(-time.Minute),
		CompletionRound: 7,
	})
	validator := NewPriceValidator(feed)
	validator.SetClock(func() time.Time { return now })
	price, decimals, err := validator.ValidatedPrice()
	if err != nil {
		t.Fatalf("validated price: %v", err)
	}
	if price.Cmp(big.NewInt(250000000000)) != 0 {
		t.Fatalf("unexpected price: %s", price)
	}
	if decimals != 8 {
		t.Fatalf("unexpected decimals: %d", decimals)
	}
}

func TestPriceValidatorRejectsStaleReading(t *testing.T) {
	now := time.Unix(1700000000, 0)
	feed := NewManualFeed(8)
	feed.Set(Reading{
		RoundID:         7,
		Price:           big.NewInt(100),
		UpdatedAt:       now.Add(-PriceHeartbeat - time.Second),
		CompletionRound: 7,
	})
	validator := NewPriceValidator(feed)
	validator.SetClock(func() time.Time { return now })
	if _, _, err := validator.ValidatedPrice(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price error, got %v", err)
	}
}

func TestPriceValidatorRejectsCompromisedReading(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cases := []struct {
		name    string
		reading Reading
	}{
		{
			name:    "non-positive price",
			reading: Reading{RoundID: 7, Price: big.NewInt(0), UpdatedAt: now, CompletionRound: 7},
		},
		{
			name:    "negative price",
			reading: Reading{RoundID: 7, Price: big.NewInt(-5), UpdatedAt: now, CompletionRound: 7},
		},
		{
			name:    "unresolved round",
			reading: Reading{RoundID: 7, Price: big.NewInt(100), UpdatedAt: now, CompletionRound: 6},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			feed := NewManualFeed(8)
			feed.Set(tc.reading)
			validator := NewPriceValidator(feed)
			validator.SetClock(func() time.Time { return now })
			if _, _, err := validator.ValidatedPrice(); !errors.Is(err, ErrOracleCompromised) {
				t.Fatalf("expected compromised error, got %v", err)
			}
		})
	}
}

func TestPriceValidatorPropagatesFeedFailure(t *testing.T) {
	validator := NewPriceValidator(NewManualFeed(8))
	if _, _, err := validator.ValidatedPrice(); !errors.Is(err, ErrOracleCompromised) {
		t.Fatalf("expected compromised error for empty feed, got %v", err)
	}
}

func TestHTTPFeed(t *testing.T) {
	updated := time.Now().Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"roundId":         42,
			"price":           "178000000000",
			"updatedAt":       updated,
			"answeredInRound": 42,
		})
	}))
	defer server.Close()
	feed := NewHTTPFeed(server.Client(), server.URL, 8)
	reading, err := feed.LatestReading()
	if err != nil {
		t.Fatalf("latest reading: %v", err)
	}
	if reading.RoundID != 42 || reading.CompletionRound != 42 {
		t.Fatalf("unexpected rounds: %d/%d", reading.RoundID, reading.CompletionRound)
	}
	if reading.Price.Cmp(big.NewInt(178000000000)) != 0 {
		t.Fatalf("unexpected price: %s", reading.Price)
	}
	if reading.UpdatedAt.Unix() != updated {
		t.Fatalf("unexpected timestamp: %d", reading.UpdatedAt.Unix())
	}
}

func TestHTTPFeedRejectsBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"price": "not-a-number"})
	}))
	defer server.Close()
	feed := NewHTTPFeed(server.Client(), server.URL, 8)
	if _, err := feed.LatestReading(); err == nil {
		t.Fatalf("expected error for invalid price")
	}
}
