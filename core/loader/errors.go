package loader

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match them with errors.Is.
var (
	ErrModuleUnregistered = errors.New("module not registered")
	ErrModuleNotLoaded    = errors.New("module not loaded")
	ErrScriptLoad         = errors.New("module script load failed")
	ErrConstructorMissing = errors.New("module constructor missing")
	ErrActivation         = errors.New("module activation failed")
)

// ModuleError records a failed loader operation on one module.
type ModuleError struct {
	Name string
	Op   string // "load", "activate"
	Err  error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %q: %s: %v", e.Name, e.Op, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}

func moduleErr(name, op string, err error) error {
	var me *ModuleError
	if errors.As(err, &me) && me.Name == name {
		return err
	}
	return &ModuleError{Name: name, Op: op, Err: err}
}

// classify makes sure err matches one of the load sentinels.
func classify(err error) error {
	if errors.Is(err, ErrScriptLoad) || errors.Is(err, ErrConstructorMissing) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrScriptLoad, err)
}
