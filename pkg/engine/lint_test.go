package engine

import "testing"

func TestLint_ValidScript(t *testing.T) {
	ctx := PrepareContext(ModuleJSON)
	src := `function check(operatorId, content) { return true; } function environ(operatorId) { return {}; }`

	diags := Lint(ctx, src, []string{"check", "environ"})
	if len(diags) != 0 {
		t.Errorf("Lint on a valid script returned diagnostics: %+v", diags)
	}
}

func TestLint_MissingRequiredFunction(t *testing.T) {
	ctx := PrepareContext(ModuleJSON)
	src := `function check(operatorId, content) { return true; }`

	diags := Lint(ctx, src, []string{"check", "environ"})
	if len(diags) != 1 {
		t.Fatalf("expected exactly 1 diagnostic for missing environ(), got %d: %+v", len(diags), diags)
	}
	if diags[0].Kind != DiagError {
		t.Errorf("missing function diagnostic kind = %v, want Error", diags[0].Kind)
	}
}

func TestLint_SyntaxError(t *testing.T) {
	ctx := PrepareContext()
	src := `function check(operatorId, content) { return true`

	diags := Lint(ctx, src, []string{"check"})
	if len(diags) != 1 || diags[0].Kind != DiagError {
		t.Fatalf("expected a single compile-error diagnostic, got %+v", diags)
	}
}

func TestLint_DedupesRepeatedMissingFunctions(t *testing.T) {
	ctx := PrepareContext()
	src := `function other() {}`

	diags := Lint(ctx, src, []string{"check", "check"})
	if len(diags) != 1 {
		t.Errorf("expected duplicate missing-function diagnostics to be deduplicated, got %d: %+v", len(diags), diags)
	}
}
