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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/internal/testutil"
	"github.com/penumbra-zone/schemata/keymodel"
)

func TestCompileShop(t *testing.T) {
	t.Parallel()
	result, err := CompileFile("examples/shop/shop.schemata")
	testutil.AssertNoError(t, err)
	testutil.ExpectFalse(t, result.Failed())
	testutil.ExpectEq(t, 0, len(result.Diagnostics))
	if result.Model == nil {
		t.Fatal("expected a key model")
	}
	testutil.ExpectEq(t, 2, len(result.Model.Namespaces))
	testutil.ExpectEq(t, "1.2.0", result.Model.Version)
}

func TestParseDiagnostic(t *testing.T) {
	t.Parallel()
	src := []byte("namespace app {\n\tbogus\n}\n")
	result, err := Compile("app.schemata", src)
	testutil.AssertNoError(t, err)
	testutil.ExpectTrue(t, result.Failed())
	if result.Model != nil {
		t.Error("expected no key model")
	}
	if len(result.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", result.Diagnostics)
	}
	diag := result.Diagnostics[0]
	testutil.ExpectEq(t, StageParse, diag.Stage)
	testutil.ExpectEq(t, SeverityError, diag.Severity)
	testutil.ExpectEq(t, KindParseError, diag.Kind)
	testutil.ExpectEq(t, "E2017", diag.Code)
	testutil.ExpectEq(t, Location{
		Path:   "app.schemata",
		Line:   2,
		Column: 2,
		Offset: 17,
		Length: 5,
	}, diag.Location)
	testutil.ExpectEq(t,
		`app.schemata:2:2: error[E2017] parse: Unknown declaration keyword "bogus"`,
		diag.String(),
	)
}

func TestValidateDiagnostics(t *testing.T) {
	t.Parallel()
	src := []byte(`namespace app {
	segment Unused = uint

	value V: json

	key A = "a"/{name: string}: V
}
`)
	result, err := Compile("app.schemata", src)
	testutil.AssertNoError(t, err)
	testutil.ExpectTrue(t, result.Failed())

	var codes []string
	for _, diag := range result.Diagnostics {
		codes = append(codes, diag.Code)
	}
	testutil.ExpectSliceEq(t, []string{"W4001", "E3300"}, codes)

	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	testutil.ExpectEq(t, StageValidate, errs[0].Stage)
	testutil.ExpectEq(t, "UnsafeSegmentEncodingError", errs[0].Kind)
	testutil.ExpectEq(t, 6, errs[0].Location.Line)

	warns := result.Warnings()
	if len(warns) != 1 {
		t.Fatalf("expected 1 warning, got %v", warns)
	}
	testutil.ExpectEq(t, SeverityWarning, warns[0].Severity)
	testutil.ExpectEq(t, KindWarning, warns[0].Kind)
	testutil.ExpectEq(t, Location{
		Path:   "app.schemata",
		Line:   2,
		Column: 10,
		Offset: 25,
		Length: 6,
	}, warns[0].Location)
}

const breakingSchema = "compiler/testdata/schema/baseline_breaking/baseline_breaking.schemata"

func TestBaselineFromSchemaOption(t *testing.T) {
	t.Parallel()
	result, err := CompileFile(breakingSchema)
	testutil.AssertNoError(t, err)

	var codes []string
	for _, diag := range result.Diagnostics {
		testutil.ExpectEq(t, "BreakingSchemaChangeError", diag.Kind)
		codes = append(codes, diag.Code)
	}
	testutil.ExpectSliceEq(t, []string{"E3701", "E3700"}, codes)
}

func TestBaselineOverride(t *testing.T) {
	t.Parallel()
	empty := &keymodel.Model{Format: 1, Delimiter: "/"}
	result, err := CompileFile(breakingSchema, WithBaseline(empty))
	testutil.AssertNoError(t, err)
	testutil.ExpectFalse(t, result.Failed())
}

func TestBaselineFileMissing(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "missing.json")
	_, err := CompileFile(breakingSchema, WithBaselineFile(missing))
	testutil.AssertErrorIs(t, err, os.ErrNotExist)
}

func TestWriteLockRoundTrip(t *testing.T) {
	t.Parallel()
	result, err := CompileFile("examples/shop/shop.schemata")
	testutil.AssertNoError(t, err)

	lock := filepath.Join(t.TempDir(), "shop.lock.json")
	testutil.AssertNoError(t, WriteLock(lock, result.Model))

	baseline, err := LoadBaseline(lock)
	testutil.AssertNoError(t, err)
	again, err := CompileFile("examples/shop/shop.schemata", WithBaseline(baseline))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, 0, len(again.Diagnostics))
}

type generatorFunc func(context.Context, *keymodel.Model) ([]codegen.OutputFile, error)

func (f generatorFunc) Generate(ctx context.Context, m *keymodel.Model) ([]codegen.OutputFile, error) {
	return f(ctx, m)
}

func TestBuild(t *testing.T) {
	t.Parallel()
	gen := generatorFunc(func(_ context.Context, m *keymodel.Model) ([]codegen.OutputFile, error) {
		var files []codegen.OutputFile
		for _, ns := range m.Namespaces {
			files = append(files, codegen.OutputFile{
				Path:    ns.Name + "/" + ns.Name + ".txt",
				Content: []byte(ns.Name),
			})
		}
		return files, nil
	})

	out := t.TempDir()
	result, err := Build(context.Background(), "examples/shop/shop.schemata", gen, out)
	testutil.AssertNoError(t, err)
	testutil.ExpectFalse(t, result.Failed())

	got, err := os.ReadFile(filepath.Join(out, "orders", "orders.txt"))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "orders", string(got))
}

func TestEmitIOError(t *testing.T) {
	t.Parallel()
	gen := generatorFunc(func(context.Context, *keymodel.Model) ([]codegen.OutputFile, error) {
		return []codegen.OutputFile{{Path: "../escape.go", Content: []byte("x")}}, nil
	})

	out := t.TempDir()
	result, err := Build(context.Background(), "examples/shop/shop.schemata", gen, out)
	testutil.AssertNoError(t, err)
	testutil.ExpectTrue(t, result.Failed())

	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	testutil.ExpectEq(t, StageEmit, errs[0].Stage)
	testutil.ExpectEq(t, KindEmissionIOError, errs[0].Kind)
	testutil.ExpectEq(t, "E5000", errs[0].Code)
	testutil.ExpectEq(t, "../escape.go", errs[0].Location.Path)

	entries, err := os.ReadDir(out)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, 0, len(entries))
}

func TestEmitGeneratorError(t *testing.T) {
	t.Parallel()
	errBroken := errors.New("broken generator")
	gen := generatorFunc(func(context.Context, *keymodel.Model) ([]codegen.OutputFile, error) {
		return nil, errBroken
	})
	_, err := Build(context.Background(), "examples/shop/shop.schemata", gen, t.TempDir())
	testutil.AssertErrorIs(t, err, errBroken)
}

func TestSortDiagnostics(t *testing.T) {
	t.Parallel()
	diags := []Diagnostic{
		{Stage: StageEmit, Code: "E5000"},
		{Stage: StageValidate, Code: "E3500", Location: Location{Offset: 40}},
		{Stage: StageValidate, Code: "W4001", Location: Location{Offset: 10}},
		{Stage: StageResolve, Code: "E3100", Location: Location{Offset: 90}},
	}
	sortDiagnostics(diags)
	var codes []string
	for _, diag := range diags {
		codes = append(codes, diag.Code)
	}
	testutil.ExpectSliceEq(t, []string{"E3100", "W4001", "E3500", "E5000"}, codes)
}
