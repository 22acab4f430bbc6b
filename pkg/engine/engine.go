// Package engine is the sandboxed scripting engine: it compiles and runs
// untrusted per-challenge scoring scripts. The original system embeds the
// Rune language; goja (a pure-Go ECMAScript 5.1 VM with no cgo, no syscalls
// of its own, and no access to the host filesystem or network unless a
// module explicitly wires one in) is the idiomatic-Go analogue — isolation
// comes from never exposing more than the enabled modules below.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

// Module is an opt-in capability installed into a script's global scope.
type Module string

const (
	ModuleHTTP    Module = "http"
	ModuleJSON    Module = "json"
	ModuleTOML    Module = "toml"
	ModuleProcess Module = "process"
	ModuleCrypto  Module = "crypto"
)

var (
	ErrUnitNotFound    = errors.New("engine: no compiled unit for key")
	ErrMissingFunction = errors.New("engine: required function not exported")
	ErrScriptError     = errors.New("engine: script runtime error")
)

// Context is a reusable, immutable set of enabled modules. The production
// checker context exposes crypto, json, http (read-only), and toml — never
// process, since process would let an untrusted script execute host
// commands.
type Context struct {
	modules map[Module]bool
}

// PrepareContext builds a root context exposing exactly the given modules.
func PrepareContext(modules ...Module) *Context {
	m := make(map[Module]bool, len(modules))
	for _, mod := range modules {
		m[mod] = true
	}
	return &Context{modules: m}
}

// Has reports whether mod is enabled in this context.
func (c *Context) Has(mod Module) bool {
	return c != nil && c.modules[mod]
}

// unit is one compiled, memoized script. A fresh goja.Runtime is created
// per Execute call so scripts never share mutable VM state across
// concurrent invocations; the compiled *goja.Program itself is immutable
// and safe to reuse.
type unit struct {
	program    *goja.Program
	ctx        *Context
	createdAt  time.Time
	lastAccess atomic.Int64
}

func (u *unit) touch() {
	u.lastAccess.Store(time.Now().UnixNano())
}

// Engine is the process-wide compiled-unit cache. The zero value is not
// usable; construct with New.
type Engine struct {
	units sync.Map // key string -> *unit
}

// New creates an empty Engine.
func New() *Engine {
	return &Engine{}
}

// Preload compiles source once and memoizes it under key. If key already
// holds a unit compiled at or after lastChangedAt, the call is a no-op;
// lastChangedAt of nil always forces recompilation.
func (e *Engine) Preload(ctx *Context, key, source string, lastChangedAt *time.Time) error {
	if v, ok := e.units.Load(key); ok && lastChangedAt != nil {
		existing := v.(*unit)
		if !existing.createdAt.Before(*lastChangedAt) {
			existing.touch()
			return nil
		}
	}

	program, err := goja.Compile(key, source, true)
	if err != nil {
		return fmt.Errorf("compiling script %s: %w", key, err)
	}

	u := &unit{program: program, ctx: ctx, createdAt: time.Now()}
	u.touch()
	e.units.Store(key, u)
	return nil
}

// Invalidate explicitly evicts key regardless of TTL.
func (e *Engine) Invalidate(key string) {
	e.units.Delete(key)
}

// Execute invokes function in a fresh VM built from the unit cached under
// key, passing args positionally. ctx cancellation interrupts a running
// script at its next bytecode check.
func (e *Engine) Execute(ctx context.Context, key, function string, args ...any) (goja.Value, error) {
	v, ok := e.units.Load(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, key)
	}
	u := v.(*unit)
	u.touch()

	vm := goja.New()
	installModules(vm, u.ctx)

	if _, err := vm.RunProgram(u.program); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptError, err)
	}

	fn, ok := goja.AssertFunction(vm.Get(function))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingFunction, function)
	}

	type callResult struct {
		val goja.Value
		err error
	}
	done := make(chan callResult, 1)

	go func() {
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = vm.ToValue(a)
		}
		val, err := fn(goja.Undefined(), jsArgs...)
		done <- callResult{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		vm.Interrupt("context canceled")
		<-done
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScriptError, r.err)
		}
		return r.val, nil
	}
}

// Sweep evicts units not touched within ttl of now. Intended to be called
// periodically by RunSweeper.
func (e *Engine) Sweep(ttl time.Duration, now time.Time) int {
	evicted := 0
	e.units.Range(func(key, v any) bool {
		u := v.(*unit)
		if now.Sub(time.Unix(0, u.lastAccess.Load())) > ttl {
			e.units.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

// RunSweeper blocks, evicting stale units every period until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context, ttl, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ttl, time.Now())
		}
	}
}
