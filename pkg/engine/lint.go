package engine

import (
	"fmt"

	"github.com/dop251/goja"
)

// DiagnosticKind classifies a Lint finding.
type DiagnosticKind string

const (
	DiagWarning DiagnosticKind = "Warning"
	DiagError   DiagnosticKind = "Error"
)

// Diagnostic is one lint finding. Lint never fills in the position fields,
// so they are always zero: a compile failure carries goja's location inside
// Message, and a missing required function has no location at all.
type Diagnostic struct {
	Kind        DiagnosticKind
	Message     string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func (d Diagnostic) dedupeKey() string {
	return fmt.Sprintf("%s|%s|%d", d.Kind, d.Message, d.StartLine)
}

// Lint compiles source without persisting it to the cache and confirms each
// name in requiredFunctions resolves to a callable at module scope.
// Diagnostics are deduplicated by (kind, message, start_line).
func Lint(ctx *Context, source string, requiredFunctions []string) []Diagnostic {
	program, err := goja.Compile("", source, true)
	if err != nil {
		return []Diagnostic{compileDiagnostic(err)}
	}

	vm := goja.New()
	installModules(vm, ctx)

	if _, err := vm.RunProgram(program); err != nil {
		return []Diagnostic{{Kind: DiagError, Message: err.Error()}}
	}

	seen := make(map[string]bool)
	var diags []Diagnostic
	for _, name := range requiredFunctions {
		if _, ok := goja.AssertFunction(vm.Get(name)); ok {
			continue
		}
		d := Diagnostic{Kind: DiagError, Message: fmt.Sprintf("missing required function %q", name)}
		if key := d.dedupeKey(); !seen[key] {
			seen[key] = true
			diags = append(diags, d)
		}
	}
	return diags
}

// compileDiagnostic turns a goja compile error into a Diagnostic. goja's
// syntax errors already embed a "line:col: message" prefix in Error(), so
// no further position extraction is attempted here.
func compileDiagnostic(err error) Diagnostic {
	return Diagnostic{Kind: DiagError, Message: err.Error()}
}
