package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestAdapterRejectsStaleQuote(t *testing.T) {
	feed := NewManualFeed()
	now := time.Unix(1_700_000_000, 0).UTC()
	feed.Set("ETH-USD", big.NewInt(2000_00000000), now)

	adapter := NewAdapter(feed, DefaultMaxQuoteAge)
	clock := now
	adapter.SetNowFunc(func() time.Time { return clock })

	if _, err := adapter.Latest("ETH-USD"); err != nil {
		t.Fatalf("fresh quote rejected: %v", err)
	}

	// A quote aged exactly to the window is still usable; one second past is
	// not.
	clock = now.Add(DefaultMaxQuoteAge)
	if _, err := adapter.Latest("ETH-USD"); err != nil {
		t.Fatalf("boundary quote rejected: %v", err)
	}
	clock = now.Add(DefaultMaxQuoteAge + time.Second)
	if _, err := adapter.Latest("ETH-USD"); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
}

func TestAdapterRejectsInvalidPrice(t *testing.T) {
	feed := NewManualFeed()
	now := time.Unix(1_700_000_000, 0).UTC()
	feed.Set("BTC-USD", big.NewInt(0), now)

	adapter := NewAdapter(feed, time.Hour)
	adapter.SetNowFunc(func() time.Time { return now })
	if _, err := adapter.Latest("BTC-USD"); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected invalid price, got %v", err)
	}
}

func TestAdapterUnknownFeed(t *testing.T) {
	adapter := NewAdapter(NewManualFeed(), time.Hour)
	if _, err := adapter.Latest("MISSING"); !errors.Is(err, ErrFeedNotFound) {
		t.Fatalf("expected feed not found, got %v", err)
	}
}

func TestManualFeedSetDecimal(t *testing.T) {
	feed := NewManualFeed()
	now := time.Unix(1_700_000_000, 0).UTC()
	if err := feed.SetDecimal("ETH-USD", "1234.5678", now); err != nil {
		t.Fatalf("set decimal: %v", err)
	}
	quote, err := feed.Latest("ETH-USD")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	want := big.NewInt(1234_56780000)
	if quote.Price.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, quote.Price)
	}

	if err := feed.SetDecimal("ETH-USD", "-1", now); err == nil {
		t.Fatalf("expected negative price rejection")
	}
	if err := feed.SetDecimal("ETH-USD", "not a number", now); err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestQuoteCloneIsDeep(t *testing.T) {
	quote := Quote{Price: big.NewInt(42), UpdatedAt: time.Unix(1, 0), Source: "manual"}
	clone := quote.Clone()
	clone.Price.SetInt64(7)
	if quote.Price.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("clone mutation leaked into original: %s", quote.Price)
	}
}
