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

package golang_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/codegen/golang"
	"github.com/penumbra-zone/schemata/compiler"
	"github.com/penumbra-zone/schemata/internal/testutil"
	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/syntax"
)

const shopDir = "../../examples/shop"

func compileFile(t *testing.T, path string) *keymodel.Model {
	t.Helper()
	src, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)
	parsed, err := syntax.Parse(src)
	testutil.AssertNoError(t, err)
	result := compiler.Compile(parsed)
	for _, err := range result.Errors {
		t.Errorf("%v", err)
	}
	if result.Model() == nil {
		t.FailNow()
	}
	return result.Model()
}

func generate(t *testing.T, g *golang.Generator, m *keymodel.Model) map[string]string {
	t.Helper()
	files, err := g.Generate(context.Background(), m)
	testutil.AssertNoError(t, err)
	out := make(map[string]string, len(files))
	for _, file := range files {
		testutil.ExpectNoError(t, codegen.ValidatePath(file.Path))
		out[file.Path] = string(file.Content)
	}
	return out
}

// The generated code of the example shop is checked in, so regenerating it
// must reproduce those files exactly.
func TestShopGolden(t *testing.T) {
	t.Parallel()

	m := compileFile(t, filepath.Join(shopDir, "shop.schemata"))
	files := generate(t, &golang.Generator{}, m)
	testutil.ExpectEq(t, 2, len(files))

	for _, path := range []string{
		"catalog/catalog.keys.go",
		"orders/orders.keys.go",
	} {
		golden, err := os.ReadFile(filepath.Join(shopDir, "keys", filepath.FromSlash(path)))
		testutil.AssertNoError(t, err)
		got, ok := files[path]
		if !ok {
			t.Errorf("missing output file %s", path)
			continue
		}
		testutil.ExpectNoDiff(t, string(golden), got)
	}
}

func TestDeterministic(t *testing.T) {
	t.Parallel()

	m := compileFile(t, filepath.Join(shopDir, "shop.schemata"))
	first := generate(t, &golang.Generator{}, m)
	for range 3 {
		again := generate(t, &golang.Generator{}, m)
		for path, content := range first {
			testutil.ExpectEq(t, content, again[path])
		}
	}
}

func parseModel(t *testing.T, src string) *keymodel.Model {
	t.Helper()
	parsed, err := syntax.Parse([]byte(src))
	testutil.AssertNoError(t, err)
	result := compiler.Compile(parsed)
	for _, err := range result.Errors {
		t.Fatalf("%v", err)
	}
	return result.Model()
}

func TestZeroVariablePattern(t *testing.T) {
	t.Parallel()

	m := parseModel(t, `
namespace config {
	value Settings: yaml
	key Current = "config"/"current": Settings
}
`)
	files := generate(t, &golang.Generator{}, m)
	src := files["config/config.keys.go"]
	testutil.ExpectContains(t, "type CurrentKey struct{}", src)
	testutil.ExpectContains(t, "func MakeCurrentKey() CurrentKey {\n\treturn CurrentKey{}\n}", src)
	testutil.ExpectContains(t, "\treturn \"config/current\"\n", src)
	testutil.ExpectContains(t, "return []byte(\"config/current\")", src)
	testutil.ExpectContains(t, "kv.Raw[Settings]()", src)
	testutil.ExpectFalse(t, strings.Contains(src, `"fmt"`))
	testutil.ExpectFalse(t, strings.Contains(src, `"github.com/google/uuid"`))
}

func TestNameMangling(t *testing.T) {
	t.Parallel()

	m := parseModel(t, `
options { delimiter = ":" }
namespace misc {
	value Blob: raw
	key Thing = "t"/{type: uint32}/{bytes: string(base32)}/{user_id: int}: Blob
	key Ref = "r"/{order_id: uuid}/{sha: bytes[4]}/{blobUrl: string(hex)}/{HTTPStatus: uint32}: Blob
}
`)
	src := generate(t, &golang.Generator{}, m)["misc/misc.keys.go"]
	testutil.ExpectContains(t, "const keyDelimiter = ':'", src)
	testutil.ExpectContains(t, "\ttype_   uint32\n", src)
	testutil.ExpectContains(t, "func (k ThingKey) Type() uint32 {", src)
	testutil.ExpectContains(t, "func (k ThingKey) BytesSegment() string {", src)
	testutil.ExpectContains(t, "func (k ThingKey) UserID() int64 {", src)
	testutil.ExpectContains(t, "func (k RefKey) OrderID() ", src)
	testutil.ExpectContains(t, "func (k RefKey) SHA() [4]byte {", src)
	testutil.ExpectContains(t, "func (k RefKey) BlobURL() string {", src)
	testutil.ExpectContains(t, "func (k RefKey) HTTPStatus() uint32 {", src)
	testutil.ExpectContains(t, "b.String(kv.Base32, k.bytes)", src)
	testutil.ExpectContains(t, `fmt.Sprintf("t:{type=%d}:{bytes=%q}:{user_id=%d}", k.type_, k.bytes, k.user_id)`, src)
	testutil.ExpectContains(t, `return []byte("t:")`, src)
}

func TestImportNames(t *testing.T) {
	t.Parallel()

	m := &keymodel.Model{
		Format:    keymodel.FormatVersion,
		Delimiter: "/",
		Namespaces: []keymodel.Namespace{{
			Name: "app",
			ValueTypes: []keymodel.ValueType{
				{Name: "A", Format: keymodel.FormatJSON, Options: map[string]string{"go.type": "example.com/lib/v2.Thing"}},
				{Name: "B", Format: keymodel.FormatJSON, Options: map[string]string{"go.type": "example.com/other/kv.Thing"}},
				{Name: "C", Format: keymodel.FormatYAML, Options: map[string]string{"go.type": "example.com/go-yaml.Doc"}},
			},
			Patterns: []keymodel.Pattern{
				{Name: "A", CanonicalName: "app_a", Segments: []keymodel.Segment{{Literal: "a"}}, ValueType: "app.A"},
				{Name: "B", CanonicalName: "app_b", Segments: []keymodel.Segment{{Literal: "b"}}, ValueType: "app.B"},
				{Name: "C", CanonicalName: "app_c", Segments: []keymodel.Segment{{Literal: "c"}}, ValueType: "app.C"},
			},
		}},
	}
	src := generate(t, &golang.Generator{}, m)["app/app.keys.go"]
	testutil.ExpectContains(t, "\tlib \"example.com/lib/v2\"\n", src)
	testutil.ExpectContains(t, "\tkv2 \"example.com/other/kv\"\n", src)
	testutil.ExpectContains(t, "\tgo_yaml \"example.com/go-yaml\"\n", src)
	testutil.ExpectContains(t, "kv.JSON[lib.Thing]()", src)
	testutil.ExpectContains(t, "kv.JSON[kv2.Thing]()", src)
	testutil.ExpectContains(t, "kv.YAML[go_yaml.Doc]()", src)
}

func TestCrossNamespaceNeedsImportPath(t *testing.T) {
	t.Parallel()

	src := `
namespace a {
	value V: raw
}
namespace b {
	key K = "k": a.V
}
`
	m := parseModel(t, src)
	_, err := (&golang.Generator{}).Generate(context.Background(), m)
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, "set option go.package", err.Error())

	files := generate(t, &golang.Generator{ImportPath: "example.com/keys"}, m)
	testutil.ExpectContains(t, "\t\"example.com/keys/a\"\n", files["b/b.keys.go"])
	testutil.ExpectContains(t, "value a.V) error {", files["b/b.keys.go"])
}

func TestNamespaceImportCycle(t *testing.T) {
	t.Parallel()

	m := parseModel(t, `
options { go.package = "example.com/keys" }
namespace a {
	value V: raw
	key K = "a": b.V
}
namespace b {
	value V: raw
	key K = "b": a.V
}
`)
	_, err := (&golang.Generator{}).Generate(context.Background(), m)
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, "a -> b -> a", err.Error())
}

func TestGeneratedNameConflict(t *testing.T) {
	t.Parallel()

	m := parseModel(t, `
namespace a {
	value ThingKey: raw
	key Thing = "t": ThingKey
}
`)
	_, err := (&golang.Generator{}).Generate(context.Background(), m)
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, "ThingKey", err.Error())
}

func TestKeywordNamespace(t *testing.T) {
	t.Parallel()

	m := &keymodel.Model{
		Format:     keymodel.FormatVersion,
		Delimiter:  "/",
		Namespaces: []keymodel.Namespace{{Name: "func"}},
	}
	_, err := (&golang.Generator{}).Generate(context.Background(), m)
	testutil.AssertError(t, err)
}

func TestCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&golang.Generator{}).Generate(ctx, parseModel(t, "namespace a {}"))
	testutil.AssertErrorIs(t, err, context.Canceled)
}
