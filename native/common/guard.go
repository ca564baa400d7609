package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(key string) bool
}

// PauseSet is a static PauseView keyed by module name or by
// "module.operation".
type PauseSet map[string]bool

func (s PauseSet) IsPaused(key string) bool {
	return s[key]
}

// Guard fails when the module, or any of the named operations within it, is
// paused.
func Guard(p PauseView, module string, operations ...string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	for _, op := range operations {
		if op != "" && p.IsPaused(module+"."+op) {
			return ErrModulePaused
		}
	}
	return nil
}
