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

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/penumbra-zone/schemata/internal/testutil"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.in)
		testutil.AssertNoError(t, err)
		testutil.ExpectEq(t, test.want, got)
	}

	_, err := ParseLevel("loud")
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, `unknown log level "loud"`, err.Error())
}

func TestNewFiltersByLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger, err := New(&buf, "warn")
	testutil.AssertNoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("schema", "shop.schemata").Msg("shown")

	out := buf.String()
	testutil.ExpectFalse(t, strings.Contains(out, "hidden"))
	testutil.ExpectContains(t, "shown", out)
	testutil.ExpectContains(t, "schema=shop.schemata", out)
}

func TestNewJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger, err := NewJSON(&buf, "debug")
	testutil.AssertNoError(t, err)

	logger.Debug().Int("files", 2).Msg("emitted")

	var event map[string]any
	testutil.AssertNoError(t, json.Unmarshal(buf.Bytes(), &event))
	testutil.ExpectEq(t, "debug", event["level"])
	testutil.ExpectEq(t, "emitted", event["message"])
	testutil.ExpectEq[any](t, float64(2), event["files"])
}
