package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"xusd/observability"
	"xusd/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig carries everything the RPC server needs beyond the module
// handlers themselves.
type ServerConfig struct {
	AuthToken         string
	RequestsPerMinute float64
	Burst             int
	Logger            *slog.Logger
}

type Server struct {
	synth  *modules.SynthModule
	logger *slog.Logger

	authToken string

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int

	nowFunc func() time.Time
}

func NewServer(synthModule *modules.SynthModule, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perSec := rate.Limit(cfg.RequestsPerMinute / 60.0)
	if perSec <= 0 {
		perSec = rate.Limit(1)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		synth:     synthModule,
		logger:    logger,
		authToken: strings.TrimSpace(cfg.AuthToken),
		visitors:  make(map[string]*rate.Limiter),
		perSec:    perSec,
		burst:     burst,
		nowFunc:   time.Now,
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health and
// metrics endpoints for operators.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.allowSource(clientID(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	started := s.nowFunc()
	failed := s.dispatch(w, r, req)
	observability.RPC().ObserveRequest(req.Method, failed, s.nowFunc().Sub(started))
}

// dispatch routes a parsed request and reports whether it ended in an error
// response. Mutating methods require bearer-token authentication.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	switch req.Method {
	case "synth_depositCollateral",
		"synth_mint",
		"synth_depositAndMint",
		"synth_redeemCollateral",
		"synth_redeemForSynth",
		"synth_burn",
		"synth_liquidate",
		"synth_approveCollateral":
		if authErr := s.requireAuth(r); authErr != nil {
			observability.RPC().ObserveError(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return true
		}
	}

	switch req.Method {
	case "synth_depositCollateral":
		return s.handleDepositCollateral(w, req)
	case "synth_mint":
		return s.handleMint(w, req)
	case "synth_depositAndMint":
		return s.handleDepositAndMint(w, req)
	case "synth_redeemCollateral":
		return s.handleRedeemCollateral(w, req)
	case "synth_redeemForSynth":
		return s.handleRedeemForSynth(w, req)
	case "synth_burn":
		return s.handleBurn(w, req)
	case "synth_liquidate":
		return s.handleLiquidate(w, req)
	case "synth_approveCollateral":
		return s.handleApproveCollateral(w, req)
	case "synth_getPosition":
		return s.handleGetPosition(w, req)
	case "synth_getHealthFactor":
		return s.handleGetHealthFactor(w, req)
	case "synth_getTotalCollateralUsd":
		return s.handleGetTotalCollateralUsd(w, req)
	case "synth_getDebt":
		return s.handleGetDebt(w, req)
	case "synth_getCollateralBalance":
		return s.handleGetCollateralBalance(w, req)
	case "synth_getMaxMint":
		return s.handleGetMaxMint(w, req)
	case "synth_getUsdValue":
		return s.handleGetUsdValue(w, req)
	case "synth_getCollateralFromUsd":
		return s.handleGetCollateralFromUsd(w, req)
	case "synth_getCollateralKinds":
		return s.handleGetCollateralKinds(w, req)
	case "synth_getConstants":
		return s.handleGetConstants(w, req)
	case "synth_getRecentEvents":
		return s.handleGetRecentEvents(w, req)
	case "xusd_getBalance":
		return s.handleGetSyntheticBalance(w, req)
	case "xusd_getTotalSupply":
		return s.handleGetSyntheticSupply(w, req)
	default:
		observability.RPC().ObserveError(req.Method, "method_not_found")
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		return true
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.visitors[source]
	if !ok {
		limiter = rate.NewLimiter(s.perSec, s.burst)
		s.visitors[source] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := forwarded
		if comma := strings.Index(forwarded, ","); comma > 0 {
			first = forwarded[:comma]
		}
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
