package engine

import (
	"context"
	"testing"
	"time"
)

func TestContext_Has(t *testing.T) {
	ctx := PrepareContext(ModuleCrypto, ModuleJSON)

	if !ctx.Has(ModuleCrypto) {
		t.Error("expected ModuleCrypto to be enabled")
	}
	if ctx.Has(ModuleProcess) {
		t.Error("expected ModuleProcess to be disabled")
	}
	if (*Context)(nil).Has(ModuleCrypto) {
		t.Error("nil context should report every module disabled")
	}
}

func TestEngine_PreloadAndExecute(t *testing.T) {
	e := New()
	ctx := PrepareContext(ModuleJSON)

	src := `function check(operatorId, content) { return content === "flag{ok}"; }`
	if err := e.Preload(ctx, "chal-1", src, nil); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	val, err := e.Execute(context.Background(), "chal-1", "check", int64(1), "flag{ok}")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got, ok := val.Export().(bool); !ok || !got {
		t.Errorf("Execute result = %v, want true", val)
	}

	val, err = e.Execute(context.Background(), "chal-1", "check", int64(1), "flag{wrong}")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got, ok := val.Export().(bool); !ok || got {
		t.Errorf("Execute result = %v, want false", val)
	}
}

func TestEngine_ExecuteMissingUnit(t *testing.T) {
	e := New()
	if _, err := e.Execute(context.Background(), "missing", "check"); err == nil {
		t.Error("expected ErrUnitNotFound for an unpreloaded key")
	}
}

func TestEngine_PreloadSkipsWhenFresh(t *testing.T) {
	e := New()
	ctx := PrepareContext()

	if err := e.Preload(ctx, "k", `function f() { return 1; }`, nil); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := e.Preload(ctx, "k", `function f() { return 2; }`, &past); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	val, err := e.Execute(context.Background(), "k", "f")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := val.ToInteger(); got != 1 {
		t.Errorf("Preload with a past lastChangedAt should have skipped recompilation, got f()=%d", got)
	}
}

func TestEngine_PreloadRecompilesWhenStale(t *testing.T) {
	e := New()
	ctx := PrepareContext()

	if err := e.Preload(ctx, "k", `function f() { return 1; }`, nil); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := e.Preload(ctx, "k", `function f() { return 2; }`, &future); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	val, err := e.Execute(context.Background(), "k", "f")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := val.ToInteger(); got != 2 {
		t.Errorf("Preload with a future lastChangedAt should have recompiled, got f()=%d", got)
	}
}

func TestEngine_SweepEvictsStaleUnits(t *testing.T) {
	e := New()
	ctx := PrepareContext()
	if err := e.Preload(ctx, "k", `function f() {}`, nil); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	if n := e.Sweep(time.Hour, time.Now()); n != 0 {
		t.Errorf("Sweep with a long ttl evicted %d units, want 0", n)
	}

	if n := e.Sweep(time.Millisecond, time.Now().Add(time.Hour)); n != 1 {
		t.Errorf("Sweep past ttl evicted %d units, want 1", n)
	}

	if _, err := e.Execute(context.Background(), "k", "f"); err == nil {
		t.Error("expected evicted unit to be gone")
	}
}
