package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed fetches quotes from a JSON price endpoint. The endpoint is expected
// to answer `GET ?feed=<id>` with `{"price": "<decimal>", "updatedAt": <unix>}`.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPFeed constructs an HTTP feed adapter. When the client is nil
// http.DefaultClient is used. The API key is optional and only added to the
// request headers when supplied.
func NewHTTPFeed(client HTTPDoer, endpoint, apiKey string) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), apiKey: strings.TrimSpace(apiKey)}
}

func (f *HTTPFeed) Latest(feedID string) (Quote, error) {
	if f == nil || f.endpoint == "" {
		return Quote{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	values := url.Values{}
	values.Set("feed", strings.TrimSpace(feedID))
	req.URL.RawQuery = values.Encode()
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Price     string `json:"price"`
		UpdatedAt int64  `json:"updatedAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("http feed: decode: %w", err)
	}
	trimmed := strings.TrimSpace(payload.Price)
	if trimmed == "" {
		return Quote{}, fmt.Errorf("http feed: empty price")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok || rat.Sign() <= 0 {
		return Quote{}, fmt.Errorf("http feed: invalid price %q", payload.Price)
	}
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(big.NewInt(100_000_000)))
	price := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	ts := time.Unix(payload.UpdatedAt, 0)
	return Quote{Price: price, UpdatedAt: ts, Source: "http"}, nil
}
