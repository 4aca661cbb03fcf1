package common

import "errors"

// ErrModulePaused rejects actions against a module an operator has frozen.
var ErrModulePaused = errors.New("module paused")

// PauseView reports operator pause switches. The engine consults it at the
// top of every guarded action.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when the named module is switched off. A
// nil view means pausing is not wired and everything runs.
func Guard(view PauseView, module string) error {
	if view == nil || module == "" {
		return nil
	}
	if view.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
