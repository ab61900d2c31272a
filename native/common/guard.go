package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView answers whether a named module has been administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects entry into a paused module. A nil view or empty module name
// means no pause switchboard is wired and the call proceeds.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
