package events

import "testing"

type stubEvent string

func (s stubEvent) EventType() string { return string(s) }

func TestRecorderKeepsNewestEntries(t *testing.T) {
	recorder := NewRecorder(3)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		recorder.Emit(stubEvent(name))
	}

	recent := recorder.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("expected capacity-bounded window, got %d entries", len(recent))
	}
	if recent[0].Type != "c" || recent[2].Type != "e" {
		t.Fatalf("unexpected window: %s..%s", recent[0].Type, recent[2].Type)
	}
	for _, entry := range recent {
		if entry.ID == "" {
			t.Fatalf("entry missing identifier")
		}
		if entry.ObservedAt.IsZero() {
			t.Fatalf("entry missing timestamp")
		}
	}
}

func TestRecorderRecentLimit(t *testing.T) {
	recorder := NewRecorder(10)
	for _, name := range []string{"a", "b", "c"} {
		recorder.Emit(stubEvent(name))
	}

	recent := recorder.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected limited window, got %d", len(recent))
	}
	if recent[0].Type != "b" || recent[1].Type != "c" {
		t.Fatalf("limit must keep the newest entries, got %s..%s", recent[0].Type, recent[1].Type)
	}

	recorder.Emit(nil)
	if len(recorder.Recent(0)) != 3 {
		t.Fatalf("nil events must be ignored")
	}
}
