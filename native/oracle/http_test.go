package oracle

import (
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"
)

type stubDoer struct {
	lastReq *http.Request
	status  int
	body    string
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.lastReq = req
	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
	}, nil
}

func TestHTTPFeedLatest(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"price": "2000.5", "updatedAt": 1700000000}`}
	feed := NewHTTPFeed(doer, "https://oracle.example.com/prices", "secret")

	quote, err := feed.Latest("ETH-USD")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if quote.Price.Cmp(big.NewInt(2000_50000000)) != 0 {
		t.Fatalf("unexpected price: %s", quote.Price)
	}
	if quote.UpdatedAt.Unix() != 1700000000 {
		t.Fatalf("unexpected timestamp: %d", quote.UpdatedAt.Unix())
	}
	if got := doer.lastReq.URL.Query().Get("feed"); got != "ETH-USD" {
		t.Fatalf("unexpected feed query: %q", got)
	}
	if got := doer.lastReq.Header.Get("x-api-key"); got != "secret" {
		t.Fatalf("api key header missing, got %q", got)
	}
}

func TestHTTPFeedErrorStatus(t *testing.T) {
	doer := &stubDoer{status: http.StatusBadGateway, body: "upstream down"}
	feed := NewHTTPFeed(doer, "https://oracle.example.com/prices", "")
	if _, err := feed.Latest("ETH-USD"); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestHTTPFeedRejectsBadPayload(t *testing.T) {
	cases := []string{
		`{"price": "", "updatedAt": 1}`,
		`{"price": "-5", "updatedAt": 1}`,
		`{"price": "abc", "updatedAt": 1}`,
		`not json`,
	}
	for _, body := range cases {
		doer := &stubDoer{status: http.StatusOK, body: body}
		feed := NewHTTPFeed(doer, "https://oracle.example.com/prices", "")
		if _, err := feed.Latest("ETH-USD"); err == nil {
			t.Fatalf("expected rejection for body %q", body)
		}
	}
}
