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

package plugin_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/codegen/plugin"
	"github.com/penumbra-zone/schemata/internal/testutil"
	"github.com/penumbra-zone/schemata/keymodel"
)

func testModel() *keymodel.Model {
	return &keymodel.Model{
		Format:    keymodel.FormatVersion,
		Delimiter: "/",
		Namespaces: []keymodel.Namespace{{
			Name:       "a",
			ValueTypes: []keymodel.ValueType{{Name: "V", Format: keymodel.FormatRaw}},
		}},
	}
}

func TestRequestFraming(t *testing.T) {
	t.Parallel()

	buf, err := plugin.EncodeRequest(&plugin.Request{
		Model:   testModel(),
		Options: map[string]string{"go.package": "example.com/keys"},
	})
	testutil.AssertNoError(t, err)

	total, err := plugin.MessageLen(buf)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, uint32(len(buf)), total)
	testutil.ExpectEq(t, byte('{'), buf[plugin.HeaderLen])

	// Trailing bytes after the message are ignored.
	req, err := plugin.DecodeRequest(append(buf, 0xFF, 0xFF))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "a", req.Model.Namespaces[0].Name)
	testutil.ExpectEq(t, "example.com/keys", req.Options["go.package"])
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	_, err := plugin.DecodeRequest([]byte{1, 0})
	testutil.ExpectContains(t, "header truncated", err.Error())

	buf, err := plugin.EncodeRequest(&plugin.Request{Model: testModel()})
	testutil.AssertNoError(t, err)
	_, err = plugin.DecodeRequest(buf[:len(buf)-1])
	testutil.ExpectContains(t, "message truncated", err.Error())

	empty := binary.LittleEndian.AppendUint32(nil, 2)
	empty = append(empty, "{}"...)
	_, err = plugin.DecodeRequest(empty)
	testutil.ExpectContains(t, "missing model", err.Error())

	bad := binary.LittleEndian.AppendUint32(nil, 3)
	bad = append(bad, "{x}"...)
	_, err = plugin.DecodeResponse(bad)
	testutil.ExpectContains(t, "decode response", err.Error())
}

type generatorFunc func(ctx context.Context, m *keymodel.Model) ([]codegen.OutputFile, error)

func (f generatorFunc) Generate(ctx context.Context, m *keymodel.Model) ([]codegen.OutputFile, error) {
	return f(ctx, m)
}

func TestHandle(t *testing.T) {
	t.Parallel()

	var gotOpts map[string]string
	newGenerator := func(opts map[string]string) codegen.Generator {
		gotOpts = opts
		return generatorFunc(func(_ context.Context, m *keymodel.Model) ([]codegen.OutputFile, error) {
			return []codegen.OutputFile{{
				Path:    m.Namespaces[0].Name + "/out.txt",
				Content: []byte("\x00binary\xff"),
			}}, nil
		})
	}

	req, err := plugin.EncodeRequest(&plugin.Request{
		Model:   testModel(),
		Options: map[string]string{"k": "v"},
	})
	testutil.AssertNoError(t, err)

	respBuf, ok := plugin.Handle(context.Background(), req, newGenerator)
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, "v", gotOpts["k"])

	resp, err := plugin.DecodeResponse(respBuf)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "", resp.Error)
	testutil.ExpectEq(t, 1, len(resp.Files))
	testutil.ExpectEq(t, "a/out.txt", resp.Files[0].Path)
	testutil.ExpectBytesEq(t, []byte("\x00binary\xff"), resp.Files[0].Content)
}

func TestHandleErrors(t *testing.T) {
	t.Parallel()

	failing := func(map[string]string) codegen.Generator {
		return generatorFunc(func(context.Context, *keymodel.Model) ([]codegen.OutputFile, error) {
			return nil, errors.New("no luck")
		})
	}

	req, err := plugin.EncodeRequest(&plugin.Request{Model: testModel()})
	testutil.AssertNoError(t, err)
	respBuf, ok := plugin.Handle(context.Background(), req, failing)
	testutil.ExpectFalse(t, ok)
	resp, err := plugin.DecodeResponse(respBuf)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "no luck", resp.Error)

	respBuf, ok = plugin.Handle(context.Background(), []byte{0}, failing)
	testutil.ExpectFalse(t, ok)
	resp, err = plugin.DecodeResponse(respBuf)
	testutil.AssertNoError(t, err)
	testutil.ExpectContains(t, "decode request", resp.Error)
}
