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

package compiler_test

import (
	"fmt"
	"io/fs"
	"iter"
	"strings"
	"testing"

	"github.com/penumbra-zone/schemata/compiler"
	"github.com/penumbra-zone/schemata/encoding/modeltext"
	"github.com/penumbra-zone/schemata/internal/testutil"
	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/syntax"
)

var (
	testdata fs.FS
	catalog  *testutil.Catalog
)

func init() {
	var err error
	testdata, err = testutil.TestdataFS()
	if err != nil {
		panic(err)
	}
	catalog, err = testutil.LoadCatalog(testdata)
	if err != nil {
		panic(err)
	}
}

func schemaTest(t *testing.T, testName string) {
	t.Parallel()

	srcPath := fmt.Sprintf("schema/%s/%s.schemata", testName, testName)
	src, err := fs.ReadFile(testdata, srcPath)
	testutil.AssertNoError(t, err)

	expectErr := fmt.Sprintf("schema/%s/expect_err.json", testName)
	if _, err := fs.Stat(testdata, expectErr); err == nil {
		testExpectErr(t, testName, src, expectErr)
	} else {
		testExpectOK(t, testName, src)
	}
}

func testExpectOK(t *testing.T, testName string, src []byte) {
	expectText, err := fs.ReadFile(testdata, fmt.Sprintf("schema/%s/expect_ok.txt", testName))
	testutil.AssertNoError(t, err)

	expected := &testutil.ExpectedDiagnostics{}
	expectWarnPath := fmt.Sprintf("schema/%s/expect_warn.json", testName)
	if _, err := fs.Stat(testdata, expectWarnPath); err == nil {
		expected = testutil.LoadExpected(t, catalog, testdata, expectWarnPath, src)
	}

	result := compileTestInput(t, testName, src)
	if len(result.Errors) > 0 {
		for _, err := range result.Errors {
			testutil.ExpectNoError(t, err)
		}
		t.FailNow()
	}

	for warn, expectWarn := range zip(result.Warnings, expected.Warnings) {
		if warn == nil {
			t.Errorf("expected schema warning %q (code %d)", expectWarn.Key, expectWarn.Code)
			continue
		}
		if expectWarn == nil {
			t.Errorf("unexpected schema warning %q (code %d)", warn.Message(), warn.Code())
			continue
		}
		testutil.ExpectEq(t, expectWarn.Code, warn.Code())
		if expectWarn.Pattern != nil {
			testutil.ExpectMatch(t, expectWarn.Pattern, warn.Message())
		}
		testutil.ExpectEq(t, expectWarn.Span, warn.Span())
	}

	model := result.Model()
	if model == nil {
		t.Fatal("result.Model() == nil")
	}
	testutil.ExpectNoDiff(t, string(expectText), modeltext.Encode(model))
}

func testExpectErr(t *testing.T, testName string, src []byte, expectErrPath string) {
	expected := testutil.LoadExpected(t, catalog, testdata, expectErrPath, src)
	if len(expected.Errors) == 0 {
		t.Fatalf("len(expected.Errors) == 0")
	}

	result := compileTestInput(t, testName, src)
	if result.Model() != nil {
		t.Errorf("result.Model() != nil")
	}
	for err, expectErr := range zip(result.Errors, expected.Errors) {
		if err == nil {
			t.Errorf("expected schema error %q (code %d)", expectErr.Key, expectErr.Code)
			continue
		}
		if expectErr == nil {
			t.Errorf("unexpected schema error %q (code %d)", err.Message(), err.Code())
			continue
		}
		testutil.ExpectEq(t, expectErr.Code, err.Code())
		if expectErr.Pattern != nil {
			testutil.ExpectMatch(t, expectErr.Pattern, err.Message())
		}
		testutil.ExpectEq(t, expectErr.Span, err.Span())
	}
}

func compileTestInput(t *testing.T, testName string, src []byte) compiler.CompileResult {
	var opts []compiler.CompileOption
	baselinePath := fmt.Sprintf("schema/%s/baseline.json", testName)
	if data, err := fs.ReadFile(testdata, baselinePath); err == nil {
		baseline, err := keymodel.Decode(data)
		testutil.AssertNoError(t, err)
		opts = append(opts, compiler.WithBaseline(baseline))
	}

	parsed, err := syntax.Parse(src)
	testutil.AssertNoError(t, err)
	return compiler.Compile(parsed, opts...)
}

func TestSchema(t *testing.T) {
	t.Parallel()

	testDirs, err := fs.ReadDir(testdata, "schema")
	testutil.AssertNoError(t, err)

	for _, testDir := range testDirs {
		if testDir.IsDir() {
			testName := testDir.Name()
			t.Run(testName, func(t *testing.T) {
				schemaTest(t, testName)
			})
		}
	}
}

func compileSource(t *testing.T, src string, opts ...compiler.CompileOption) compiler.CompileResult {
	t.Helper()
	parsed, err := syntax.Parse([]byte(src))
	testutil.AssertNoError(t, err)
	return compiler.Compile(parsed, opts...)
}

func mustCompile(t *testing.T, src string, opts ...compiler.CompileOption) *keymodel.Model {
	t.Helper()
	result := compileSource(t, src, opts...)
	for _, err := range result.Errors {
		t.Error(err)
	}
	if t.Failed() {
		t.FailNow()
	}
	return result.Model()
}

func TestDeclarationOrderIndependence(t *testing.T) {
	t.Parallel()

	forward := mustCompile(t, `
namespace shop {
	segment Sku = string(hex)
	value Item: json
	value Stock: text
	key Product = "product"/{sku: Sku}: Item
	key Inventory = "inventory"/{sku: Sku}/{warehouse: uint32}: Stock
}

namespace carts {
	value Cart: json
	key Open = "cart"/{owner: uuid}: Cart
}
`)
	reversed := mustCompile(t, `
namespace carts {
	key Open = "cart"/{owner: uuid}: Cart
	value Cart: json
}

namespace shop {
	key Inventory = "inventory"/{sku: Sku}/{warehouse: uint32}: Stock
	key Product = "product"/{sku: Sku}: Item
	value Stock: text
	value Item: json
	segment Sku = string(hex)
}
`)
	testutil.ExpectNoDiff(t, modeltext.Encode(forward), modeltext.Encode(reversed))
}

func TestDeclarationNameConflictAcrossKinds(t *testing.T) {
	t.Parallel()

	result := compileSource(t, `
namespace a {
	value Cart: json
	key Cart = "cart": Cart
}
`)
	if len(result.Errors) != 1 {
		t.Fatalf("expected one error, got %v", result.Errors)
	}
	testutil.ExpectEq(t, 3002, result.Errors[0].Code())
}

func TestErrorStage(t *testing.T) {
	t.Parallel()

	result := compileSource(t, `
namespace a {
	key K = "k": Missing
}
`)
	testutil.ExpectEq(t, 1, len(result.Errors))
	err := result.Errors[0]
	testutil.ExpectEq(t, compiler.StageResolve, err.Stage())
	testutil.ExpectEq(t, compiler.UnresolvedReferenceError, err.Kind())
	testutil.ExpectEq(t, "E3101: Value type 'Missing' not found in namespace \"a\"", err.Error())

	result = compileSource(t, `
namespace a {
	value V: raw
	key K = "k"/{name: string}: V
}
`)
	testutil.ExpectEq(t, 1, len(result.Errors))
	err = result.Errors[0]
	testutil.ExpectEq(t, compiler.StageValidate, err.Stage())
	testutil.ExpectEq(t, compiler.UnsafeSegmentEncodingError, err.Kind())
}

func TestResolveErrorsSkipValidation(t *testing.T) {
	t.Parallel()

	// The collision between A and B is not reported while a reference is
	// unresolved.
	result := compileSource(t, `
namespace a {
	value V: raw
	key A = "x"/{id: uint}: V
	key B = "x"/{other: uint}: V
	key C = "c": Missing
}
`)
	testutil.ExpectEq(t, 1, len(result.Errors))
	testutil.ExpectEq(t, 3101, result.Errors[0].Code())
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestCollisionMessageNamesBothPatterns(t *testing.T) {
	t.Parallel()

	result := compileSource(t, `
namespace a {
	value V: raw
	key Short = "a"/{y: uint}/"b": V
	key Long = "a"/{x: bytes[10]}: V
}
`)
	testutil.ExpectEq(t, 1, len(result.Errors))
	err := result.Errors[0]
	testutil.ExpectEq(t, compiler.PrefixCollisionError, err.Kind())
	testutil.ExpectContains(t, "a.Long", err.Message())
	testutil.ExpectContains(t, "a.Short", err.Message())
}

func TestCollisionScopeSchema(t *testing.T) {
	t.Parallel()

	src := `
options {
	collisions = "schema"
}

namespace a {
	value V: raw
	key K = "one"/{id: uint32}: V
}

namespace b {
	value V: raw
	key K = "one"/{name: string(hex)}: V
}
`
	result := compileSource(t, src)
	testutil.ExpectEq(t, 1, len(result.Errors))
	testutil.ExpectEq(t, 3500, result.Errors[0].Code())

	scoped := strings.Replace(src, `collisions = "schema"`, `collisions = "namespace"`, 1)
	mustCompile(t, scoped)
}

func TestStringSegmentsCollide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		collide bool
	}{
		{
			name: "string against fixed width",
			src: `
	key A = "a"/{s: string(hex)}: V
	key B = "a"/{n: uint}: V`,
			collide: true,
		},
		{
			name: "hex against base32",
			src: `
	key A = "a"/{s: string(hex)}: V
	key B = "a"/{s: string(base32)}: V`,
			collide: true,
		},
		{
			name: "string against trailing literal",
			src: `
	key A = "a"/{s: string(hex)}: V
	key B = "a"/{n: uint32}/"zz": V`,
			collide: false,
		},
		{
			name: "different leading literals",
			src: `
	key A = "a"/{s: string(hex)}: V
	key B = "b"/{s: string(hex)}: V`,
			collide: false,
		},
		{
			name: "odd length hex",
			src: `
	key A = "k"/{s: string(hex)}: V
	key B = "k"/"abc": V`,
			collide: false,
		},
		{
			name: "even length hex",
			src: `
	key A = "k"/{s: string(hex)}: V
	key B = "k"/"ab": V`,
			collide: true,
		},
		{
			name: "uppercase hex",
			src: `
	key A = "k"/{s: string(hex)}: V
	key B = "k"/"AB": V`,
			collide: false,
		},
		{
			name: "base64url single symbol",
			src: `
	key A = "k"/{s: string(base64url)}: V
	key B = "k"/"x": V`,
			collide: false,
		},
		{
			name: "base64url padding bits set",
			src: `
	key A = "k"/{s: string(base64url)}: V
	key B = "k"/"xy": V`,
			collide: false,
		},
		{
			name: "base64url canonical tail",
			src: `
	key A = "k"/{s: string(base64url)}: V
	key B = "k"/"xw": V`,
			collide: true,
		},
		{
			name: "base32 single symbol",
			src: `
	key A = "k"/{s: string(base32)}: V
	key B = "k"/"A": V`,
			collide: false,
		},
		{
			name: "base32 padding bits set",
			src: `
	key A = "k"/{s: string(base32)}: V
	key B = "k"/"AB": V`,
			collide: false,
		},
		{
			name: "base32 canonical tail",
			src: `
	key A = "k"/{s: string(base32)}: V
	key B = "k"/"AE": V`,
			collide: true,
		},
		{
			name: "base32 illegal tail length",
			src: `
	key A = "k"/{s: string(base32)}: V
	key B = "k"/"AAA": V`,
			collide: false,
		},
		{
			name: "percent invalid escape",
			src: `
	key A = "k"/{s: string(percent)}: V
	key B = "k"/"%zz": V`,
			collide: false,
		},
		{
			name: "percent lowercase escape",
			src: `
	key A = "k"/{s: string(percent)}: V
	key B = "k"/"%2f": V`,
			collide: false,
		},
		{
			name: "percent escaped printable",
			src: `
	key A = "k"/{s: string(percent)}: V
	key B = "k"/"%41": V`,
			collide: false,
		},
		{
			name: "percent escaped delimiter",
			src: `
	key A = "k"/{s: string(percent)}: V
	key B = "k"/"%2F": V`,
			collide: true,
		},
		{
			name: "percent escaped space",
			src: `
	key A = "k"/{s: string(percent)}: V
	key B = "k"/"a%20b": V`,
			collide: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := compileSource(t, "namespace n {\n\tvalue V: raw\n"+test.src+"\n}\n")
			var codes []uint32
			for _, err := range result.Errors {
				codes = append(codes, err.Code())
			}
			if test.collide {
				testutil.ExpectSliceEq(t, []uint32{3500}, codes)
			} else {
				testutil.ExpectSliceEq(t, nil, codes)
			}
		})
	}
}

func TestBreakingValueTypeMessage(t *testing.T) {
	t.Parallel()

	baseline := mustCompile(t, `
namespace auth {
	value SessionV1: json
	key Session = "session"/{token: string(hex)}: SessionV1
}
`)

	result := compileSource(t, `
namespace auth {
	value SessionV1: json
	value SessionV2: json
	key Session = "session"/{token: string(hex)}: SessionV2
}
`, compiler.WithBaseline(baseline))
	testutil.ExpectEq(t, 1, len(result.Errors))
	err := result.Errors[0]
	testutil.ExpectEq(t, compiler.BreakingSchemaChangeError, err.Kind())
	testutil.ExpectContains(t, "session/{token:string}", err.Message())

	// Declaring the previous value type as compatible accepts the change.
	mustCompile(t, `
namespace auth {
	value SessionV1: json
	value SessionV2: json compat SessionV1
	key Session = "session"/{token: string(hex)}: SessionV2
}
`, compiler.WithBaseline(baseline))
}

func TestBaselineDelimiterChange(t *testing.T) {
	t.Parallel()

	baseline := mustCompile(t, `
namespace a {
	value V: raw
	key K = "k"/{id: uint}: V
}
`)
	result := compileSource(t, `
options {
	delimiter = ":"
}

namespace a {
	value V: raw
	key K = "k"/{id: uint}: V
}
`, compiler.WithBaseline(baseline))
	testutil.ExpectEq(t, 1, len(result.Errors))
	testutil.ExpectEq(t, 3700, result.Errors[0].Code())
}

func TestBaselineRoundTrip(t *testing.T) {
	t.Parallel()

	src := `
options {
	version = "1.0.0"
}

namespace orders {
	segment OrderId = uuid
	value OrderRecord: json
	key Order = "order"/{orderId: OrderId}: OrderRecord
}
`
	model := mustCompile(t, src)
	data, err := keymodel.Encode(model)
	testutil.AssertNoError(t, err)
	baseline, err := keymodel.Decode(data)
	testutil.AssertNoError(t, err)

	result := compileSource(t, src, compiler.WithBaseline(baseline))
	for _, err := range result.Errors {
		t.Error(err)
	}
	testutil.ExpectEq(t, 0, len(result.Warnings))
}

func zip[X any, Y any](xs []*X, ys []*Y) iter.Seq2[*X, *Y] {
	maxLen := max(len(xs), len(ys))
	return func(yield func(x *X, y *Y) bool) {
		for ii := 0; ii < maxLen; ii++ {
			var ok bool
			if ii >= len(xs) {
				ok = yield(nil, ys[ii])
			} else if ii >= len(ys) {
				ok = yield(xs[ii], nil)
			} else {
				ok = yield(xs[ii], ys[ii])
			}
			if !ok {
				return
			}
		}
	}
}
