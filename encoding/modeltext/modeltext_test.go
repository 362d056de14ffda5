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

package modeltext_test

import (
	"errors"
	"testing"

	"github.com/penumbra-zone/schemata/encoding/modeltext"
	"github.com/penumbra-zone/schemata/internal/testutil"
	"github.com/penumbra-zone/schemata/keymodel"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	m := &keymodel.Model{
		Format:    keymodel.FormatVersion,
		Version:   "2.1.0",
		Delimiter: ":",
		Options: map[string]string{
			"go.package": "example.com/keys",
			"go.prefix":  "Shop",
		},
		Namespaces: []keymodel.Namespace{{
			Name: "shop",
			Segments: []keymodel.SegmentDecl{{
				Name:    "Sku",
				Type:    keymodel.SegmentType{Kind: keymodel.KindString, Encoding: "hex"},
				Options: map[string]string{"go.type": "example.com/m.Sku"},
			}},
			ValueTypes: []keymodel.ValueType{{
				Name:   "Item",
				Format: keymodel.FormatYAML,
				Compat: []string{"shop.ItemV1", "shop.ItemV2"},
			}},
			Patterns: []keymodel.Pattern{{
				Name:          "Item",
				CanonicalName: "shop_item",
				Segments: []keymodel.Segment{
					{Literal: "item"},
					{Literal: "by-sku"},
					{Name: "sku", Type: &keymodel.SegmentType{Kind: keymodel.KindString, Encoding: "hex", Name: "shop.Sku"}},
				},
				ValueType: "shop.Item",
				Options:   map[string]string{"go.name": "ItemKey"},
			}},
		}},
	}

	want := `format = 1
version = "2.1.0"
delimiter = ":"
option go.package = "example.com/keys"
option go.prefix = "Shop"
namespace shop {
	segment Sku = string(hex)
		@go.type = "example.com/m.Sku"
	value Item: yaml compat shop.ItemV1, shop.ItemV2
	key Item = "item"/"by-sku"/{sku: string(hex) via shop.Sku}: shop.Item
		canonical_name = "shop_item"
		prefix = "item:by-sku:"
		@go.name = "ItemKey"
}
`
	testutil.ExpectNoDiff(t, want, modeltext.Encode(m))
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	m := &keymodel.Model{Format: keymodel.FormatVersion, Delimiter: "/"}
	testutil.ExpectEq(t, "format = 1\ndelimiter = \"/\"\n", modeltext.Encode(m))
}

type failingWriter struct{}

var errWrite = errors.New("write failed")

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errWrite
}

func TestEncodeToWriteError(t *testing.T) {
	t.Parallel()

	m := &keymodel.Model{Format: keymodel.FormatVersion, Delimiter: "/"}
	err := modeltext.EncodeTo(m, failingWriter{})
	testutil.AssertErrorIs(t, err, errWrite)
}
