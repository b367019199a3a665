// Package diag renders parser and type-checker diagnostics into the shared
// on-screen shape used across the pipeline: a one-line location header
// followed by a source-line echo with a caret underline spanning the
// offending token (spec §4.5, §7).
//
// Grounded on the teacher's internal/debugcontext package (DebugContext,
// Entry, Location), generalised from its trace/error/warning triage into the
// two-stage Diagnostic/Stage split spec §4.5 and §7 describe: the parser
// stops at its first diagnostic, the type checker accumulates all of them.
package diag

import (
	"fmt"
	"strings"

	"github.com/keurnel/uvmasm/internal/ast"
	"github.com/keurnel/uvmasm/internal/sourceview"
)

// Stage identifies which pipeline phase raised a Diagnostic.
type Stage string

const (
	StageParser    Stage = "Parser"
	StageTypeCheck Stage = "TypeCheck"
)

// Diagnostic is one reported problem, anchored to a byte range in the
// source. Size may be zero (e.g. an end-of-input diagnostic with nothing to
// underline); Render degrades to a single caret in that case.
type Diagnostic struct {
	Stage   Stage
	Message string
	Pos     ast.Pos
}

// New builds a Diagnostic for the given stage, message, and source position.
func New(stage Stage, message string, pos ast.Pos) Diagnostic {
	return Diagnostic{Stage: stage, Message: message, Pos: pos}
}

// Error satisfies the error interface using a one-line summary (no caret
// rendering — call Render against a sourceview.View for the full form).
func (d Diagnostic) Error() string {
	return fmt.Sprintf("[%s] %s at Ln %d, Col %d", d.Stage, d.Message, d.Pos.Line, d.Pos.Column)
}

// Render produces the full diagnostic text: the one-line header, the source
// line the diagnostic points into, and a caret underline spanning the
// offending token's byte range.
func (d Diagnostic) Render(view sourceview.View) string {
	var b strings.Builder
	b.WriteString(d.Error())
	b.WriteByte('\n')

	line, lineStart := view.LineOf(d.Pos.Index)
	b.WriteString(line)
	b.WriteByte('\n')

	col := d.Pos.Index - lineStart
	if col < 0 {
		col = 0
	}
	width := d.Pos.Size
	if width < 1 {
		width = 1
	}
	b.WriteString(strings.Repeat(" ", col))
	b.WriteString(strings.Repeat("^", width))
	return b.String()
}

// List is an ordered collection of Diagnostics, used by the type checker to
// accumulate errors across a full pass (spec §4.5: "the type checker
// accumulates errors rather than stopping at the first").
type List []Diagnostic

// Add appends a new Diagnostic built from stage, message, and pos.
func (l *List) Add(stage Stage, message string, pos ast.Pos) {
	*l = append(*l, New(stage, message, pos))
}

// RenderAll joins every diagnostic's rendered form, separated by a blank
// line, for presenting a whole type-check pass's worth of errors at once.
func (l List) RenderAll(view sourceview.View) string {
	parts := make([]string, len(l))
	for i, d := range l {
		parts[i] = d.Render(view)
	}
	return strings.Join(parts, "\n\n")
}
