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

package wasmhost_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/penumbra-zone/schemata"
	"github.com/penumbra-zone/schemata/codegen/golang"
	"github.com/penumbra-zone/schemata/codegen/plugin"
	"github.com/penumbra-zone/schemata/codegen/plugin/wasmhost"
	"github.com/penumbra-zone/schemata/internal/build"
	"github.com/penumbra-zone/schemata/internal/testutil"
	"github.com/penumbra-zone/schemata/keymodel"
)

func writePlugin(t *testing.T, dir, language string) string {
	t.Helper()
	path := filepath.Join(dir, "schemata-codegen-"+language+".wasm")
	testutil.AssertNoError(t, os.WriteFile(path, []byte("\x00asm\x01\x00\x00\x00"), 0o644))
	return path
}

func TestLocate(t *testing.T) {
	t.Parallel()
	first := t.TempDir()
	second := t.TempDir()
	want := writePlugin(t, second, "go")

	searchPath := strings.Join([]string{first, "", second}, string(os.PathListSeparator))
	got, err := wasmhost.Locate("go", searchPath)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, want, got)
}

func TestLocateMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	testutil.AssertNoError(t, os.Mkdir(filepath.Join(dir, "schemata-codegen-go.wasm"), 0o755))

	_, err := wasmhost.Locate("go", dir)
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, "schemata-codegen-go.wasm not found", err.Error())
}

func TestLocateFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	want := writePlugin(t, dir, "rust")

	t.Setenv(wasmhost.EnvPluginPath, dir)
	got, err := wasmhost.Locate("rust", "")
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, want, got)

	t.Setenv(wasmhost.EnvPluginPath, "")
	_, err = wasmhost.Locate("rust", "")
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, wasmhost.EnvPluginPath, err.Error())
}

func testRequest() *plugin.Request {
	return &plugin.Request{
		Model: &keymodel.Model{Format: keymodel.FormatVersion, Delimiter: "/"},
	}
}

func TestRunInvalidModule(t *testing.T) {
	t.Parallel()
	_, err := wasmhost.Run(context.Background(), []byte("not wasm"), testRequest())
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, "compile plugin", err.Error())
}

func TestRunMissingExports(t *testing.T) {
	t.Parallel()
	module := []byte("\x00asm\x01\x00\x00\x00")
	_, err := wasmhost.Run(context.Background(), module, testRequest())
	testutil.AssertError(t, err)
	testutil.ExpectContains(t, "plugin must export memory", err.Error())
}

func TestGeneratorMissingPlugin(t *testing.T) {
	t.Parallel()
	gen := &wasmhost.Generator{Language: "go", PluginPath: t.TempDir()}
	_, err := gen.Generate(context.Background(), testRequest().Model)
	testutil.AssertError(t, err)
}

// TestGoPlugin builds the Go emitter as a plugin and checks that it
// generates the same files as the in-process emitter.
func TestGoPlugin(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a WASM module")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not found")
	}
	t.Parallel()
	ctx := context.Background()

	pluginDir := t.TempDir()
	err := build.Plugin(
		ctx,
		"./cmd/schemata-codegen-go",
		filepath.Join(pluginDir, "schemata-codegen-go.wasm"),
		build.PluginOptions{Dir: "../../.."},
	)
	testutil.AssertNoError(t, err)

	result, err := schemata.CompileFile("../../../examples/shop/shop.schemata")
	testutil.AssertNoError(t, err)
	if result.Failed() {
		t.Fatalf("compile failed: %v", result.Diagnostics)
	}

	want, err := (&golang.Generator{}).Generate(ctx, result.Model)
	testutil.AssertNoError(t, err)

	gen := &wasmhost.Generator{
		Language:   "go",
		PluginPath: pluginDir,
		Options: map[string]string{
			golang.OptionPackage: result.Model.Options[golang.OptionPackage],
		},
	}
	got, err := gen.Generate(ctx, result.Model)
	testutil.AssertNoError(t, err)

	if len(got) != len(want) {
		t.Fatalf("plugin generated %d files, want %d", len(got), len(want))
	}
	for ii := range want {
		testutil.ExpectEq(t, want[ii].Path, got[ii].Path)
		testutil.ExpectNoDiff(t, string(want[ii].Content), string(got[ii].Content))
	}
}
