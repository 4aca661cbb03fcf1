package common

import (
	"errors"
	"testing"
)

func TestLatchRejectsOverlap(t *testing.T) {
	var latch Latch
	if err := latch.Acquire(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := latch.Acquire(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected immediate rejection, got %v", err)
	}
	latch.Release()
	if err := latch.Acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestLatchReleaseIdempotent(t *testing.T) {
	var latch Latch
	latch.Release()
	latch.Release()
	if err := latch.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
}

type stubPauses struct {
	paused map[string]bool
}

func (s stubPauses) IsPaused(module string) bool { return s.paused[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "synth"); err != nil {
		t.Fatalf("nil pause view must allow: %v", err)
	}
	pauses := stubPauses{paused: map[string]bool{"synth": true}}
	if err := Guard(pauses, "synth"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused rejection, got %v", err)
	}
	if err := Guard(pauses, "other"); err != nil {
		t.Fatalf("unpaused module must pass: %v", err)
	}
}
