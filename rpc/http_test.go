package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"xusd/core/events"
	"xusd/crypto"
	"xusd/native/oracle"
	"xusd/native/synth"
	"xusd/native/token"
	"xusd/rpc/modules"
	"xusd/storage"
)

const testAuthToken = "test-token"

type rpcFixture struct {
	server *Server
	user   crypto.Address
	weth   *token.Ledger
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	db := storage.NewMemDB()
	tokens := token.NewState(db)

	moduleBytes := make([]byte, 20)
	moduleBytes[19] = 0x01
	module := crypto.NewAddress(crypto.ModulePrefix, moduleBytes)
	userBytes := make([]byte, 20)
	userBytes[19] = 0x10
	user := crypto.NewAddress(crypto.UserPrefix, userBytes)

	xusd := token.NewSyntheticLedger(tokens, "XUSD", module)
	engine, err := synth.NewEngine(module, []string{"WETH"}, []string{"ETH-USD"}, xusd)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(db)

	feed := oracle.NewManualFeed()
	now := time.Unix(1_700_000_000, 0).UTC()
	if err := feed.SetDecimal("ETH-USD", "2000", now); err != nil {
		t.Fatalf("set price: %v", err)
	}
	adapter := oracle.NewAdapter(feed, oracle.DefaultMaxQuoteAge)
	adapter.SetNowFunc(func() time.Time { return now })
	engine.SetOracle(adapter)

	weth := token.NewLedger(tokens, "WETH")
	if err := engine.SetCollateralLedger("WETH", weth); err != nil {
		t.Fatalf("set ledger: %v", err)
	}
	if err := weth.Credit(user, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := weth.Approve(user, module, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	recorder := events.NewRecorder(16)
	engine.SetEmitter(recorder)

	server := NewServer(modules.NewSynthModule(engine, xusd, recorder), ServerConfig{
		AuthToken:         testAuthToken,
		RequestsPerMinute: 60_000,
		Burst:             1_000,
	})
	return &rpcFixture{server: server, user: user, weth: weth}
}

func (fix *rpcFixture) post(t *testing.T, body string, authorized bool) (*httptest.ResponseRecorder, *RPCResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testAuthToken)
	}
	recorder := httptest.NewRecorder()
	fix.server.handle(recorder, req)

	resp := &RPCResponse{}
	if err := json.Unmarshal(recorder.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, recorder.Body.String())
	}
	return recorder, resp
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	fix := newRPCFixture(t)
	recorder, resp := fix.post(t, "{not json", false)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestHandleRejectsEmptyBody(t *testing.T) {
	fix := newRPCFixture(t)
	recorder, resp := fix.post(t, "   ", false)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid request, got %+v", resp.Error)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	fix := newRPCFixture(t)
	recorder, resp := fix.post(t, `{"jsonrpc":"2.0","id":1,"method":"synth_unknown"}`, false)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestMutatingMethodRequiresAuth(t *testing.T) {
	fix := newRPCFixture(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"synth_depositCollateral","params":[{"address":"` +
		fix.user.String() + `","kind":"WETH","amount":"100"}]}`

	recorder, resp := fix.post(t, body, false)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}
}

func TestDepositAndQueryRoundTrip(t *testing.T) {
	fix := newRPCFixture(t)
	deposit := `{"jsonrpc":"2.0","id":1,"method":"synth_depositCollateral","params":[{"address":"` +
		fix.user.String() + `","kind":"WETH","amount":"500"}]}`

	recorder, resp := fix.post(t, deposit, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%+v)", recorder.Code, resp.Error)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	query := `{"jsonrpc":"2.0","id":2,"method":"synth_getCollateralBalance","params":[{"address":"` +
		fix.user.String() + `","kind":"weth"}]}`
	recorder, resp = fix.post(t, query, false)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	if result["amount"] != "500" {
		t.Fatalf("unexpected amount: %v", result["amount"])
	}

	eventsQuery := `{"jsonrpc":"2.0","id":3,"method":"synth_getRecentEvents","params":[{"limit":5}]}`
	_, resp = fix.post(t, eventsQuery, false)
	recorded, ok := resp.Result.([]interface{})
	if !ok || len(recorded) != 1 {
		t.Fatalf("expected one recorded event, got %v", resp.Result)
	}
}

func TestMutatingMethodMapsEngineErrors(t *testing.T) {
	fix := newRPCFixture(t)
	// Minting with no collateral violates the health requirement.
	body := `{"jsonrpc":"2.0","id":1,"method":"synth_mint","params":[{"address":"` +
		fix.user.String() + `","amount":"100"}]}`

	recorder, resp := fix.post(t, body, true)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params mapping, got %+v", resp.Error)
	}
	if resp.Error.Data == nil {
		t.Fatalf("expected health factor detail in error data")
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	fix := newRPCFixture(t)
	cases := []string{
		`{"jsonrpc":"2.0","id":1,"method":"synth_getDebt"}`,
		`{"jsonrpc":"2.0","id":1,"method":"synth_getDebt","params":[{"address":"not-bech32"}]}`,
		`{"jsonrpc":"2.0","id":1,"method":"synth_mint","params":[{"address":"` + fix.user.String() + `","amount":"1.5"}]}`,
	}
	for _, body := range cases {
		recorder, resp := fix.post(t, body, true)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("unexpected status for %s: %d", body, recorder.Code)
		}
		if resp.Error == nil || resp.Error.Code != codeInvalidParams {
			t.Fatalf("expected invalid params for %s, got %+v", body, resp.Error)
		}
	}
}

func TestRateLimitExceeded(t *testing.T) {
	fix := newRPCFixture(t)
	fix.server.perSec = 0.0001
	fix.server.burst = 1
	fix.server.visitors = map[string]*rate.Limiter{}

	body := `{"jsonrpc":"2.0","id":1,"method":"synth_getCollateralKinds"}`
	recorder, _ := fix.post(t, body, false)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first request must pass, got %d", recorder.Code)
	}
	recorder, resp := fix.post(t, body, false)
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("second request must be limited, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected rate limit error, got %+v", resp.Error)
	}
}

func TestUnsupportedJSONRPCVersion(t *testing.T) {
	fix := newRPCFixture(t)
	recorder, resp := fix.post(t, `{"jsonrpc":"1.0","id":1,"method":"synth_getConstants"}`, false)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid request, got %+v", resp.Error)
	}
}
