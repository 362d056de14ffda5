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

package syntax_test

import (
	"testing"

	"github.com/penumbra-zone/schemata/internal/testutil"
	"github.com/penumbra-zone/schemata/syntax"
)

const ordersSchema = `# Order storage.
options {
	version = "1.2.0"
	delimiter = "/"
	go.package = "example.com/shop/keys"
}

namespace orders {
	segment OrderId = uuid
	segment Sku = string(hex)

	## Stored as JSON.
	@{go.type = "example.com/shop/model.Order"}
	value OrderRecord: json
	value OrderRecordV2: json compat OrderRecord, billing.Legacy
	value Current = OrderRecordV2

	@{deprecated}
	@options { since = 3 }
	key Order = "order"/{orderId: OrderId}: Current
	key Line = "order" / { orderId: OrderId } / "line" / {n: uint32}: OrderRecord
	key Blob = "blob"/{digest: bytes[0x20]}: billing.Legacy
}
`

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"\n\n# only a comment\n",
		"namespace a {}",
		"namespace a {\n}\n",
		"options {}\nnamespace a {}\n",
		"namespace a {\r\n\tvalue V: raw\r\n}\r\n",
		ordersSchema,
	}
	for _, src := range tests {
		t.Run("", func(t *testing.T) {
			schema, err := syntax.Parse([]byte(src))
			testutil.AssertNoError(t, err)
			testutil.ExpectNoDiff(t, src, syntax.Unparse(schema))
			testutil.ExpectEq(t, syntax.NewSpan(0, uint32(len(src))), schema.Span())
		})
	}
}

func TestParseNodes(t *testing.T) {
	t.Parallel()

	schema, err := syntax.Parse([]byte(ordersSchema))
	testutil.AssertNoError(t, err)

	var options []string
	for opt := range schema.Options().Options() {
		options = append(options, opt.Name().Get()+"="+syntax.Unparse(opt.Value()))
	}
	testutil.ExpectSliceEq(t, []string{
		`version="1.2.0"`,
		`delimiter="/"`,
		`go.package="example.com/shop/keys"`,
	}, options)

	namespaces := schema.Namespaces()
	testutil.ExpectEq(t, 1, len(namespaces))
	ns := namespaces[0]
	testutil.ExpectEq(t, "orders", ns.Name().Get())

	segments := ns.Segments()
	testutil.ExpectEq(t, 2, len(segments))
	testutil.ExpectEq(t, "Sku", segments[1].Name().Get())
	sku := segments[1].SegmentType()
	testutil.ExpectEq(t, "string", sku.TypeName().Name().Get())
	testutil.ExpectEq(t, "hex", sku.Encoding().Get())
	if sku.Size() != nil {
		t.Errorf("Sku has a size")
	}

	values := ns.Values()
	testutil.ExpectEq(t, 3, len(values))
	record := values[0]
	testutil.ExpectEq(t, "json", record.Format().Get())
	testutil.ExpectEq(t, 1, len(record.Decorators()))
	binding := record.Decorators()[0].GetOption()
	testutil.ExpectEq(t, "go.type", binding.Name().Get())
	testutil.ExpectEq(t, `"example.com/shop/model.Order"`, syntax.Unparse(binding.Value()))

	var compat []string
	for _, name := range values[1].Compat() {
		compat = append(compat, syntax.Unparse(name))
	}
	testutil.ExpectSliceEq(t, []string{"OrderRecord", "billing.Legacy"}, compat)

	alias := values[2].Alias()
	testutil.ExpectEq(t, "OrderRecordV2", alias.Name().Get())
	if values[2].Format() != nil {
		t.Errorf("alias has a format")
	}

	keys := ns.Keys()
	testutil.ExpectEq(t, 3, len(keys))

	order := keys[0]
	decorators := order.Decorators()
	testutil.ExpectEq(t, 2, len(decorators))
	flag := decorators[0].GetOption()
	testutil.ExpectEq(t, "deprecated", flag.Name().Get())
	if flag.Value() != nil {
		t.Errorf("flag option has a value")
	}
	var names []string
	for opt := range decorators[1].GetOptions().Options() {
		names = append(names, opt.Name().Get()+"="+syntax.Unparse(opt.Value()))
	}
	testutil.ExpectSliceEq(t, []string{"since=3"}, names)

	line := keys[1]
	testutil.ExpectEq(t, "Line", line.Name().Get())
	var shape []string
	for _, component := range line.Components() {
		switch component := component.(type) {
		case *syntax.TextLit:
			text, ok := component.GetText()
			testutil.ExpectTrue(t, ok)
			shape = append(shape, "lit:"+text)
		case *syntax.VarSegment:
			shape = append(shape, component.Name().Get()+":"+syntax.Unparse(component.SegmentType()))
		default:
			t.Fatalf("unexpected component %T", component)
		}
	}
	testutil.ExpectSliceEq(t, []string{"lit:order", "orderId:OrderId", "lit:line", "n:uint32"}, shape)
	testutil.ExpectEq(t, "OrderRecord", syntax.Unparse(line.ValueType()))

	blob := keys[2]
	digest := blob.Components()[1].(*syntax.VarSegment).SegmentType()
	testutil.ExpectEq(t, uint64(32), digest.Size().GetUint64())
	valueType := blob.ValueType()
	testutil.ExpectEq(t, "billing", valueType.Scope().Get())
	testutil.ExpectEq(t, "Legacy", valueType.Name().Get())
}

func TestKeyDeclSpan(t *testing.T) {
	t.Parallel()

	src := "namespace a {\n\tkey K = \"k\"/{id: uint}: V\n}\n"
	schema, err := syntax.Parse([]byte(src))
	testutil.AssertNoError(t, err)
	key := schema.Namespaces()[0].Keys()[0]
	span := key.Span()
	testutil.ExpectEq(t, `key K = "k"/{id: uint}: V`, src[span.Start():span.End()])
}

func TestParseWithoutTrivia(t *testing.T) {
	t.Parallel()

	schema, err := syntax.Parse([]byte(ordersSchema), syntax.WithoutTrivia())
	testutil.AssertNoError(t, err)

	var trivia int
	syntax.Walk(schema, func(node syntax.Node) bool {
		switch node.(type) {
		case *syntax.Space, *syntax.Newline, *syntax.Comment:
			trivia++
		}
		return true
	})
	testutil.ExpectEq(t, 0, trivia)
	testutil.ExpectEq(t, 3, len(schema.Namespaces()[0].Keys()))
}

func TestDocComments(t *testing.T) {
	t.Parallel()

	schema, err := syntax.Parse([]byte(ordersSchema))
	testutil.AssertNoError(t, err)

	var docs []string
	syntax.Walk(schema, func(node syntax.Node) bool {
		if comment, ok := node.(*syntax.Comment); ok && comment.IsDocComment() {
			docs = append(docs, comment.Text())
		}
		return true
	})
	testutil.ExpectSliceEq(t, []string{"## Stored as JSON."}, docs)
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	opts := syntax.NewParseOptions()
	key, err := opts.ParseKey([]byte(`key Session = "session"/{token: string(base64url)}: auth.Session`))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "Session", key.Name().Get())
	testutil.ExpectEq(t, 2, len(key.Components()))

	ns, err := opts.ParseNamespace([]byte("namespace auth {\n\tvalue Session: json\n}"))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "auth", ns.Name().Get())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		code     uint32
		spanText string
	}{
		{"top level", "names a {}", 2015, "names"},
		{"options after namespace", "namespace a {}\noptions {}", 2015, "options"},
		{"missing brace", "namespace a\n", 2006, "\n"},
		{"unknown declaration", "namespace a {\n\tfield X = uint\n}", 2017, "field"},
		{"not a declaration", "namespace a {\n\t5\n}", 2016, "5"},
		{"unquoted literal", "namespace a {\n\tkey K = k: V\n}", 2024, "k"},
		{"missing value type separator", "namespace a {\n\tkey K = \"k\" V\n}", 2001, "V"},
		{"missing value form", "namespace a {\n\tvalue V raw\n}", 2025, "raw"},
		{"unknown decorator", "namespace a {\n\t@deprecated\n\tvalue V: raw\n}", 2018, "deprecated"},
		{"option without value", "options {\n\tversion \"1\"\n}", 2004, "\"1\""},
		{"bad option value", "options {\n\tversion = }", 2021, "}"},
		{"bad option name", "options {\n\t\"version\" = 1\n}", 2020, "\"version\""},
		{"size not an integer", "namespace a {\n\tsegment S = bytes[x]\n}", 2012, "x"},
		{"missing type name", "namespace a {\n\tsegment S = (hex)\n}", 2019, "("},
		{"integer too large", "namespace a {\n\tsegment S = bytes[99999999999999999999]\n}", 2022, "99999999999999999999"},
		{"invalid escape", "namespace a {\n\tkey K = \"a\\q\": V\n}", 2023, "\"a\\q\""},
		{"tokenizer error", "namespace a {\n\tkey K = \"a\nb\": V\n}", 1007, "\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := syntax.Parse([]byte(test.src))
			testutil.AssertError(t, err)
			parseErr := testutil.AssertErrorAs[*syntax.Error](t, err)
			testutil.ExpectEq(t, test.code, parseErr.Code())
			span := parseErr.Span()
			testutil.ExpectEq(t, test.spanText, test.src[span.Start():span.End()])
		})
	}
}

func TestSourceErrors(t *testing.T) {
	t.Parallel()

	_, err := syntax.Parse([]byte("namespace \xff {}"))
	parseErr := testutil.AssertErrorAs[*syntax.Error](t, err)
	testutil.ExpectEq(t, uint32(1001), parseErr.Code())
	testutil.ExpectEq(t, syntax.NewSpan(10, 1), parseErr.Span())
	testutil.ExpectEq(t, "E1001: Source file contains invalid UTF-8", parseErr.Error())
}

func TestSpanHelpers(t *testing.T) {
	t.Parallel()

	span := syntax.NewSpan(3, 4)
	testutil.ExpectEq(t, uint32(3), span.Start())
	testutil.ExpectEq(t, uint32(7), span.End())
	testutil.ExpectEq(t, uint32(4), span.Len())
}
