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

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/penumbra-zone/schemata/internal/testutil"
)

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	testutil.AssertNoError(t, os.WriteFile(path, []byte(`
log_level: debug
jobs: 2
targets:
  - schema: shop.schemata
    output: keys
    go_package: example.com/shop/keys
    baseline: shop.lock.json
    lock: shop.lock.json
  - schema: /abs/other.schemata
    output: other
    language: rust
`), 0o644))

	cfg, err := Load(path)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "debug", cfg.LogLevel)
	testutil.ExpectEq(t, 2, cfg.Jobs)
	testutil.ExpectEq(t, path, cfg.Path)
	testutil.ExpectEq(t, 2, len(cfg.Targets))

	shop := cfg.Targets[0]
	testutil.ExpectEq(t, filepath.Join(dir, "shop.schemata"), shop.Schema)
	testutil.ExpectEq(t, filepath.Join(dir, "keys"), shop.Output)
	testutil.ExpectEq(t, DefaultLanguage, shop.Language)
	testutil.ExpectEq(t, "example.com/shop/keys", shop.GoPackage)
	testutil.ExpectEq(t, filepath.Join(dir, "shop.lock.json"), shop.Baseline)
	testutil.ExpectEq(t, filepath.Join(dir, "shop.lock.json"), shop.Lock)

	other := cfg.Targets[1]
	testutil.ExpectEq(t, "/abs/other.schemata", other.Schema)
	testutil.ExpectEq(t, "rust", other.Language)
	testutil.ExpectEq(t, "", other.Baseline)

	testutil.ExpectSliceEq(t, []string{shop.Schema, other.Schema}, cfg.Schemas())
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte("targets: [{schema: a.schemata, output: out}]\n"))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "info", cfg.LogLevel)
	testutil.ExpectEq(t, runtime.GOMAXPROCS(0), cfg.Jobs)
	testutil.ExpectEq(t, "", cfg.PluginPath)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("SCHEMATA_TEST_PLUGINS", "/opt/plugins")
	cfg, err := Parse([]byte(`
plugin_path: ${SCHEMATA_TEST_PLUGINS}
targets: [{schema: a.schemata, output: out}]
`))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "/opt/plugins", cfg.PluginPath)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no targets", "jobs: 1\n", "at least one target is required"},
		{"unknown field", "targts: []\n", "field targts not found"},
		{"log level", "log_level: loud\ntargets: [{schema: a, output: b}]\n", `log_level: unknown log level "loud"`},
		{"negative jobs", "jobs: -1\ntargets: [{schema: a, output: b}]\n", "jobs: must not be negative"},
		{"missing schema", "targets: [{output: b}]\n", "targets[0]: schema is required"},
		{"missing output", "targets: [{schema: a}]\n", "targets[0]: output is required"},
		{
			"shared output",
			"targets: [{schema: a, output: keys}, {schema: b, output: ./keys/}]\n",
			`targets[1]: output "./keys/" is also used by targets[0]`,
		},
		{
			"nested output",
			"targets: [{schema: a, output: keys}, {schema: b, output: keys/extra}]\n",
			`targets[1]: output "keys/extra" is inside the output of targets[0]`,
		},
		{
			"enclosing output",
			"targets: [{schema: a, output: gen/keys}, {schema: b, output: gen}]\n",
			`targets[1]: output "gen" contains the output of targets[0]`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.src))
			testutil.AssertError(t, err)
			testutil.ExpectContains(t, test.want, err.Error())
		})
	}
}

func TestParseSiblingOutputs(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("targets: [{schema: a, output: keys}, {schema: b, output: keys2}, {schema: c, output: ../keys}]\n"))
	testutil.AssertNoError(t, err)
}

func TestLoadSharedResolvedOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	testutil.AssertNoError(t, os.WriteFile(path, []byte(`
targets:
  - schema: a.schemata
    output: keys
  - schema: b.schemata
    output: `+filepath.Join(dir, "keys")+`
`), 0o644))

	_, err := Load(path)
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, "is also used by targets[0]", err.Error())
}
