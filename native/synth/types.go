package synth

import (
	"math/big"

	"xusd/crypto"
)

// CollateralKind pairs an allow-listed collateral symbol with the price feed
// that values it. The set is fixed at construction and immutable afterward.
type CollateralKind struct {
	Symbol string `json:"symbol"`
	FeedID string `json:"feedId"`
}

// PositionView is the read-model for one user's standing with the engine,
// returned by the query surface.
type PositionView struct {
	Address            crypto.Address      `json:"-"`
	Collateral         map[string]*big.Int `json:"collateral"`
	Debt               *big.Int            `json:"debt"`
	TotalCollateralUsd *big.Int            `json:"totalCollateralUsd"`
	HealthFactor       *big.Int            `json:"healthFactor"`
	Status             string              `json:"status"`
}

// Constants exposes every tunable the engine runs with so external
// collaborators and test harnesses can reproduce its arithmetic.
type Constants struct {
	Precision               *big.Int `json:"precision"`
	AdditionalFeedPrecision *big.Int `json:"additionalFeedPrecision"`
	LiquidationThreshold    int64    `json:"liquidationThreshold"`
	LiquidationPrecision    int64    `json:"liquidationPrecision"`
	LiquidationBonus        int64    `json:"liquidationBonus"`
	MinHealthFactor         *big.Int `json:"minHealthFactor"`
}

// HealthStatus values returned by the diagnostic query. Enforcement always
// uses the numeric comparison, never these strings.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)
