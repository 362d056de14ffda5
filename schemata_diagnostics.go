// Copyright (c) 2024 John Millikin <john@john-millikin.com>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH
// REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY
// AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT,
// INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM
// LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR
// OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR
// PERFORMANCE OF THIS SOFTWARE.
//
// SPDX-License-Identifier: 0BSD

package schemata

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/compiler"
	"github.com/penumbra-zone/schemata/syntax"
)

type Stage string

const (
	StageParse    Stage = "parse"
	StageResolve  Stage = "resolve"
	StageValidate Stage = "validate"
	StageEmit     Stage = "emit"
)

var stageOrder = map[Stage]int{
	StageParse:    0,
	StageResolve:  1,
	StageValidate: 2,
	StageEmit:     3,
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

const (
	KindParseError      = "ParseError"
	KindEmissionIOError = "EmissionIOError"
	KindWarning         = "Warning"
)

type Location struct {
	Path   string `json:"path,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset uint32 `json:"offset"`
	Length uint32 `json:"length"`
}

type Diagnostic struct {
	Stage    Stage    `json:"stage"`
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

// String formats the diagnostic as `path:line:col: error[E3500] validate:
// message`.
func (d Diagnostic) String() string {
	path := d.Location.Path
	if path == "" {
		path = "<input>"
	}
	if d.Location.Line == 0 {
		return fmt.Sprintf("%s: %s[%s] %s: %s", path, d.Severity, d.Code, d.Stage, d.Message)
	}
	return fmt.Sprintf(
		"%s:%d:%d: %s[%s] %s: %s",
		path, d.Location.Line, d.Location.Column,
		d.Severity, d.Code, d.Stage, d.Message,
	)
}

// lineIndex maps byte offsets of a source file to 1-based lines and
// columns. Columns count bytes.
type lineIndex struct {
	path   string
	starts []uint32
	size   uint32
}

func newLineIndex(path string, src []byte) *lineIndex {
	idx := &lineIndex{
		path:   path,
		starts: []uint32{0},
		size:   uint32(len(src)),
	}
	for ii, c := range src {
		if c == '\n' {
			idx.starts = append(idx.starts, uint32(ii+1))
		}
	}
	return idx
}

func (idx *lineIndex) location(span syntax.Span) Location {
	offset := min(span.Start(), idx.size)
	line := sort.Search(len(idx.starts), func(ii int) bool {
		return idx.starts[ii] > offset
	})
	return Location{
		Path:   idx.path,
		Line:   line,
		Column: int(offset-idx.starts[line-1]) + 1,
		Offset: span.Start(),
		Length: span.Len(),
	}
}

func (idx *lineIndex) parseDiagnostic(err *syntax.Error) Diagnostic {
	return Diagnostic{
		Stage:    StageParse,
		Severity: SeverityError,
		Kind:     KindParseError,
		Code:     fmt.Sprintf("E%d", err.Code()),
		Message:  err.Message(),
		Location: idx.location(err.Span()),
	}
}

func (idx *lineIndex) compileDiagnostics(result *compiler.CompileResult) []Diagnostic {
	var out []Diagnostic
	for _, err := range result.Errors {
		out = append(out, Diagnostic{
			Stage:    Stage(err.Stage().String()),
			Severity: SeverityError,
			Kind:     err.Kind().String(),
			Code:     fmt.Sprintf("E%d", err.Code()),
			Message:  err.Message(),
			Location: idx.location(err.Span()),
		})
	}
	for _, warn := range result.Warnings {
		out = append(out, Diagnostic{
			Stage:    StageValidate,
			Severity: SeverityWarning,
			Kind:     KindWarning,
			Code:     fmt.Sprintf("W%d", warn.Code()),
			Message:  warn.Message(),
			Location: idx.location(warn.Span()),
		})
	}
	sortDiagnostics(out)
	return out
}

func emitDiagnostic(err *codegen.EmissionIOError) Diagnostic {
	return Diagnostic{
		Stage:    StageEmit,
		Severity: SeverityError,
		Kind:     KindEmissionIOError,
		Code:     fmt.Sprintf("E%d", err.Code()),
		Message:  err.Err.Error(),
		Location: Location{Path: err.Path},
	}
}

// sortDiagnostics orders diagnostics by stage, then by source offset.
func sortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		if c := cmp.Compare(stageOrder[a.Stage], stageOrder[b.Stage]); c != 0 {
			return c
		}
		return cmp.Compare(a.Location.Offset, b.Location.Offset)
	})
}
