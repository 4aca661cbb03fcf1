package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"xusd/crypto"
	"xusd/native/synth"
	"xusd/observability"
	"xusd/rpc/modules"
)

type actionParams struct {
	Address          string `json:"address"`
	Kind             string `json:"kind"`
	Amount           string `json:"amount"`
	CollateralAmount string `json:"collateralAmount"`
	MintAmount       string `json:"mintAmount"`
	BurnAmount       string `json:"burnAmount"`
	Target           string `json:"target"`
	DebtToCover      string `json:"debtToCover"`
	Usd              string `json:"usd"`
	Limit            int    `json:"limit"`
}

func parseParams(req *RPCRequest) (*actionParams, error) {
	if len(req.Params) == 0 {
		return nil, fmt.Errorf("params object required")
	}
	params := &actionParams{}
	if err := json.Unmarshal(req.Params[0], params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return params, nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: want base-10 integer", field)
	}
	return amount, nil
}

func (s *Server) invalidParams(w http.ResponseWriter, req *RPCRequest, err error) bool {
	observability.RPC().ObserveError(req.Method, "invalid_params")
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
	return true
}

func (s *Server) moduleFailure(w http.ResponseWriter, req *RPCRequest, modErr *modules.ModuleError) bool {
	observability.RPC().ObserveError(req.Method, fmt.Sprintf("%d", modErr.Code))
	writeModuleError(w, req.ID, modErr)
	return true
}

// txResult is the acknowledgement returned by every mutating method.
type txResult struct {
	Status string `json:"status"`
}

var txAccepted = txResult{Status: "ok"}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	user, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.DepositCollateral(user, params.Kind, amount); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

func (s *Server) handleMint(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	user, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.Mint(user, amount); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	user, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	collateralAmount, err := parseAmount("collateralAmount", params.CollateralAmount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	mintAmount, err := parseAmount("mintAmount", params.MintAmount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.DepositAndMint(user, params.Kind, collateralAmount, mintAmount); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

func (s *Server) handleRedeemCollateral(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	user, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.RedeemCollateral(user, params.Kind, amount); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

func (s *Server) handleRedeemForSynth(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	user, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	collateralAmount, err := parseAmount("collateralAmount", params.CollateralAmount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	burnAmount, err := parseAmount("burnAmount", params.BurnAmount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.RedeemForSynth(user, params.Kind, collateralAmount, burnAmount); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

func (s *Server) handleBurn(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	user, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.Burn(user, amount); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

func (s *Server) handleLiquidate(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	liquidator, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	target, err := parseAddress("target", params.Target)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	debtToCover, err := parseAmount("debtToCover", params.DebtToCover)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.Liquidate(liquidator, params.Kind, target, debtToCover); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

func (s *Server) handleApproveCollateral(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	owner, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	if modErr := s.synth.ApproveCollateral(owner, params.Kind, amount); modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, txAccepted)
	return false
}

type positionResult struct {
	Address string `json:"address"`
	*synth.PositionView
}

func (s *Server) handleGetPosition(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	view, modErr := s.synth.Position(addr)
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, positionResult{Address: addr.String(), PositionView: view})
	return false
}

func (s *Server) handleGetHealthFactor(w http.ResponseWriter, req *RPCRequest) bool {
	return s.handleAddressQuery(w, req, "healthFactor", s.synth.HealthFactor)
}

func (s *Server) handleGetTotalCollateralUsd(w http.ResponseWriter, req *RPCRequest) bool {
	return s.handleAddressQuery(w, req, "totalCollateralUsd", s.synth.TotalCollateralUsd)
}

func (s *Server) handleGetDebt(w http.ResponseWriter, req *RPCRequest) bool {
	return s.handleAddressQuery(w, req, "debt", s.synth.Debt)
}

func (s *Server) handleGetMaxMint(w http.ResponseWriter, req *RPCRequest) bool {
	return s.handleAddressQuery(w, req, "maxMint", s.synth.MaxMintCapacity)
}

func (s *Server) handleGetSyntheticBalance(w http.ResponseWriter, req *RPCRequest) bool {
	return s.handleAddressQuery(w, req, "balance", s.synth.SyntheticBalance)
}

// handleAddressQuery serves the queries that take an address and return one
// big-integer quantity.
func (s *Server) handleAddressQuery(w http.ResponseWriter, req *RPCRequest, field string, query func(crypto.Address) (*big.Int, *modules.ModuleError)) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	value, modErr := query(addr)
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, map[string]interface{}{"address": addr.String(), field: value.String()})
	return false
}

func (s *Server) handleGetCollateralBalance(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, modErr := s.synth.CollateralBalance(addr, params.Kind)
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"address": addr.String(),
		"kind":    strings.ToUpper(strings.TrimSpace(params.Kind)),
		"amount":  amount.String(),
	})
	return false
}

func (s *Server) handleGetUsdValue(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	usd, modErr := s.synth.UsdValue(params.Kind, amount)
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, map[string]interface{}{"kind": params.Kind, "usdValue": usd.String()})
	return false
}

func (s *Server) handleGetCollateralFromUsd(w http.ResponseWriter, req *RPCRequest) bool {
	params, err := parseParams(req)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	usd, err := parseAmount("usd", params.Usd)
	if err != nil {
		return s.invalidParams(w, req, err)
	}
	amount, modErr := s.synth.CollateralFromUsd(params.Kind, usd)
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, map[string]interface{}{"kind": params.Kind, "amount": amount.String()})
	return false
}

func (s *Server) handleGetCollateralKinds(w http.ResponseWriter, req *RPCRequest) bool {
	kinds, modErr := s.synth.CollateralKinds()
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, kinds)
	return false
}

func (s *Server) handleGetConstants(w http.ResponseWriter, req *RPCRequest) bool {
	constants, modErr := s.synth.Constants()
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, constants)
	return false
}

func (s *Server) handleGetSyntheticSupply(w http.ResponseWriter, req *RPCRequest) bool {
	supply, modErr := s.synth.SyntheticSupply()
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	symbol, modErr := s.synth.SyntheticSymbol()
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, map[string]string{"symbol": symbol, "totalSupply": supply.String()})
	return false
}

func (s *Server) handleGetRecentEvents(w http.ResponseWriter, req *RPCRequest) bool {
	limit := 0
	if len(req.Params) > 0 {
		params := &actionParams{}
		if err := json.Unmarshal(req.Params[0], params); err != nil {
			return s.invalidParams(w, req, fmt.Errorf("invalid params: %w", err))
		}
		limit = params.Limit
	}
	recorded, modErr := s.synth.RecentEvents(limit)
	if modErr != nil {
		return s.moduleFailure(w, req, modErr)
	}
	writeResult(w, req.ID, recorded)
	return false
}
