package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// DefaultMaxQuoteAge is the staleness timeout applied when no explicit window
// is configured. Quotes older than this freeze every valuation-dependent
// action until fresh data arrives.
const DefaultMaxQuoteAge = 3 * time.Hour

var (
	// ErrStalePrice indicates the freshest available quote is older than the
	// configured staleness window.
	ErrStalePrice = errors.New("oracle: stale price")
	// ErrInvalidPrice indicates the feed reported a non-positive price.
	ErrInvalidPrice = errors.New("oracle: invalid price")
	// ErrFeedNotFound indicates no quote is recorded for the feed identifier.
	ErrFeedNotFound = errors.New("oracle: feed not found")
)

// Quote captures a price observation for a single feed along with the
// timestamp reported by the upstream oracle and the oracle identifier. Prices
// carry the feed precision (8 decimals).
type Quote struct {
	Price     *big.Int
	UpdatedAt time.Time
	Source    string
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q Quote) Clone() Quote {
	clone := Quote{UpdatedAt: q.UpdatedAt, Source: q.Source}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	return clone
}

// PriceFeed resolves the latest observation for a feed identifier.
type PriceFeed interface {
	Latest(feedID string) (Quote, error)
}

// Adapter wraps a PriceFeed with the staleness and validity rules every
// valuation path must go through. No caller reads a feed directly.
type Adapter struct {
	feed    PriceFeed
	maxAge  time.Duration
	nowFunc func() time.Time
}

// NewAdapter constructs an adapter enforcing the provided staleness window. A
// non-positive maxAge selects DefaultMaxQuoteAge.
func NewAdapter(feed PriceFeed, maxAge time.Duration) *Adapter {
	if maxAge <= 0 {
		maxAge = DefaultMaxQuoteAge
	}
	return &Adapter{feed: feed, maxAge: maxAge, nowFunc: time.Now}
}

// SetNowFunc overrides the clock used for staleness checks. Intended for
// tests.
func (a *Adapter) SetNowFunc(now func() time.Time) {
	if a == nil || now == nil {
		return
	}
	a.nowFunc = now
}

// MaxAge returns the configured staleness window.
func (a *Adapter) MaxAge() time.Duration {
	if a == nil {
		return 0
	}
	return a.maxAge
}

// Latest returns the current quote for the feed, failing with ErrStalePrice
// when the observation is older than the staleness window and ErrInvalidPrice
// when the reported price is not strictly positive.
func (a *Adapter) Latest(feedID string) (Quote, error) {
	if a == nil || a.feed == nil {
		return Quote{}, fmt.Errorf("oracle adapter not configured")
	}
	trimmed := strings.TrimSpace(feedID)
	if trimmed == "" {
		return Quote{}, fmt.Errorf("oracle: feed identifier required")
	}
	quote, err := a.feed.Latest(trimmed)
	if err != nil {
		return Quote{}, err
	}
	if quote.Price == nil || quote.Price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("%w: feed %s", ErrInvalidPrice, trimmed)
	}
	if a.nowFunc().Sub(quote.UpdatedAt) > a.maxAge {
		return Quote{}, fmt.Errorf("%w: feed %s last updated %s", ErrStalePrice, trimmed, quote.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return quote.Clone(), nil
}

// ManualFeed provides an in-memory feed implementation used for tests and
// manual overrides during incident response.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewManualFeed constructs an empty manual feed instance.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[string]Quote)}
}

// Set stores the provided price for the feed identifier.
func (m *ManualFeed) Set(feedID string, price *big.Int, ts time.Time) {
	if m == nil || price == nil {
		return
	}
	trimmed := strings.TrimSpace(feedID)
	if trimmed == "" {
		return
	}
	m.mu.Lock()
	m.quotes[trimmed] = Quote{Price: new(big.Int).Set(price), UpdatedAt: ts, Source: "manual"}
	m.mu.Unlock()
}

// SetDecimal parses a decimal string using the feed precision (8 decimals)
// and records it for the feed identifier.
func (m *ManualFeed) SetDecimal(feedID, price string, ts time.Time) error {
	if m == nil {
		return fmt.Errorf("manual feed not configured")
	}
	trimmed := strings.TrimSpace(price)
	if trimmed == "" {
		return fmt.Errorf("manual feed: price required")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return fmt.Errorf("manual feed: invalid price %q", price)
	}
	if rat.Sign() <= 0 {
		return fmt.Errorf("manual feed: price must be positive")
	}
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(big.NewInt(100_000_000)))
	m.Set(feedID, new(big.Int).Quo(scaled.Num(), scaled.Denom()), ts)
	return nil
}

// Latest retrieves the stored quote for the feed identifier.
func (m *ManualFeed) Latest(feedID string) (Quote, error) {
	if m == nil {
		return Quote{}, fmt.Errorf("manual feed not configured")
	}
	m.mu.RLock()
	stored, ok := m.quotes[strings.TrimSpace(feedID)]
	m.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	return stored.Clone(), nil
}
