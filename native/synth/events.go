package synth

import (
	"xusd/core/events"
	"xusd/core/types"
)

const (
	// EventTypeCollateralDeposited is emitted when collateral enters custody.
	EventTypeCollateralDeposited = "synth.collateral.deposited"
	// EventTypeCollateralRedeemed is emitted when collateral leaves custody.
	EventTypeCollateralRedeemed = "synth.collateral.redeemed"
	// EventTypeMinted is emitted when synthetic debt is issued.
	EventTypeMinted = "synth.minted"
	// EventTypeBurned is emitted when synthetic debt is retired.
	EventTypeBurned = "synth.burned"
	// EventTypeLiquidated is emitted when a third party closes an unhealthy
	// position.
	EventTypeLiquidated = "synth.liquidated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func collateralDepositedEvent(user, kind, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeCollateralDeposited,
		Attributes: map[string]string{
			"user":   user,
			"kind":   kind,
			"amount": amount,
		},
	}
}

func collateralRedeemedEvent(user, kind, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeCollateralRedeemed,
		Attributes: map[string]string{
			"user":   user,
			"kind":   kind,
			"amount": amount,
		},
	}
}

func mintedEvent(user, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"user":   user,
			"amount": amount,
		},
	}
}

func burnedEvent(user, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeBurned,
		Attributes: map[string]string{
			"user":   user,
			"amount": amount,
		},
	}
}

func liquidatedEvent(liquidator, target, kind, debtCovered, collateralSeized string) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidated,
		Attributes: map[string]string{
			"liquidator":       liquidator,
			"target":           target,
			"kind":             kind,
			"debtCovered":      debtCovered,
			"collateralSeized": collateralSeized,
		},
	}
}
