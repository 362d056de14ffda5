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

package testutil

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/penumbra-zone/schemata/syntax"
)

// TestdataFS returns the testdata directory of the package under test.
func TestdataFS() (fs.FS, error) {
	if _, err := os.Stat("testdata"); err != nil {
		return nil, err
	}
	return os.DirFS("testdata"), nil
}

// Diagnostic is one entry of a diagnostics catalog: a named error or
// warning with its code and the message it is expected to carry.
type Diagnostic struct {
	Key     string
	Code    uint32
	Message string
	Pattern *regexp.Regexp
}

type Catalog struct {
	Errors   map[string]*Diagnostic
	Warnings map[string]*Diagnostic
}

// LoadCatalog reads diagnostics.json, which maps names to
// `{"code": N, "message": "...", "message_pattern": "..."}` under the
// top-level keys "errors" and "warnings". Names starting with '_' reserve
// a code without defining an entry.
func LoadCatalog(testdata fs.FS) (*Catalog, error) {
	type raw struct {
		Code    uint32 `json:"code"`
		Message string `json:"message"`
		Pattern string `json:"message_pattern"`
	}
	var rawCatalog struct {
		Errors   map[string]raw `json:"errors"`
		Warnings map[string]raw `json:"warnings"`
	}

	jsonData, err := fs.ReadFile(testdata, "diagnostics.json")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(jsonData, &rawCatalog); err != nil {
		return nil, err
	}

	load := func(kind string, raws map[string]raw) (map[string]*Diagnostic, error) {
		out := make(map[string]*Diagnostic, len(raws))
		codes := make(map[uint32]string, len(raws))
		for key, raw := range raws {
			if raw.Code != 0 {
				if prev, conflict := codes[raw.Code]; conflict {
					return nil, fmt.Errorf(
						"duplicate %s code %d (%q and %q)",
						kind, raw.Code, prev, key,
					)
				}
				codes[raw.Code] = key
			}
			if key[0] == '_' {
				continue
			}
			if raw.Code == 0 {
				return nil, fmt.Errorf("%s %q has no code", kind, key)
			}

			var pattern *regexp.Regexp
			if raw.Pattern != "" {
				pattern, err = regexp.Compile("(?i)" + raw.Pattern)
				if err != nil {
					return nil, err
				}
			}
			out[key] = &Diagnostic{
				Key:     key,
				Code:    raw.Code,
				Message: raw.Message,
				Pattern: pattern,
			}
		}
		return out, nil
	}

	catalog := &Catalog{}
	if catalog.Errors, err = load("error", rawCatalog.Errors); err != nil {
		return nil, err
	}
	if catalog.Warnings, err = load("warning", rawCatalog.Warnings); err != nil {
		return nil, err
	}
	return catalog, nil
}

type Expected struct {
	Diagnostic
	Span syntax.Span
}

type ExpectedDiagnostics struct {
	Errors   []*Expected
	Warnings []*Expected
}

// LoadExpected reads an expectation file of the form
//
//	{"errors": [{"error": NAME, "span_text": TEXT}],
//	 "warnings": [{"warning": NAME, "span_text": TEXT}]}
//
// The span of each entry is the only occurrence of TEXT in src, or the
// first occurrence after the first occurrence of "span_after" if that is
// set. An entry without "span_text" has an empty span at offset 0. Entries
// are sorted by span start, then by code.
func LoadExpected(
	t *testing.T,
	catalog *Catalog,
	testdata fs.FS,
	jsonPath string,
	src []byte,
) *ExpectedDiagnostics {
	t.Helper()

	jsonData, err := fs.ReadFile(testdata, jsonPath)
	if err != nil {
		t.Fatal(err)
	}

	type entry struct {
		Error     string `json:"error"`
		Warning   string `json:"warning"`
		SpanText  string `json:"span_text"`
		SpanAfter string `json:"span_after"`
	}
	var raw struct {
		Errors   []entry `json:"errors"`
		Warnings []entry `json:"warnings"`
	}
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		t.Fatalf("%s: %v", jsonPath, err)
	}

	text := string(src)
	span := func(e entry) syntax.Span {
		t.Helper()
		if e.SpanText == "" {
			return syntax.NewSpan(0, 0)
		}
		offset := 0
		if e.SpanAfter != "" {
			after := strings.Index(text, e.SpanAfter)
			if after < 0 {
				t.Fatalf("%s: span_after %q not found in source", jsonPath, e.SpanAfter)
			}
			offset = after + len(e.SpanAfter)
		} else if strings.Count(text, e.SpanText) > 1 {
			t.Fatalf("%s: span text %q is not unique in source", jsonPath, e.SpanText)
		}
		start := strings.Index(text[offset:], e.SpanText)
		if start < 0 {
			t.Fatalf("%s: span text %q not found in source", jsonPath, e.SpanText)
		}
		return syntax.NewSpan(uint32(offset+start), uint32(len(e.SpanText)))
	}

	out := &ExpectedDiagnostics{}
	for _, e := range raw.Errors {
		diag, ok := catalog.Errors[e.Error]
		if !ok {
			t.Fatalf("%s: unknown error name %q", jsonPath, e.Error)
		}
		out.Errors = append(out.Errors, &Expected{*diag, span(e)})
	}
	for _, e := range raw.Warnings {
		diag, ok := catalog.Warnings[e.Warning]
		if !ok {
			t.Fatalf("%s: unknown warning name %q", jsonPath, e.Warning)
		}
		out.Warnings = append(out.Warnings, &Expected{*diag, span(e)})
	}

	sortFn := func(a, b *Expected) int {
		if x := cmp.Compare(a.Span.Start(), b.Span.Start()); x != 0 {
			return x
		}
		return cmp.Compare(a.Code, b.Code)
	}
	slices.SortFunc(out.Errors, sortFn)
	slices.SortFunc(out.Warnings, sortFn)
	return out
}
