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

// Package wasmhost runs code generator plugins compiled to WASM.
package wasmhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	wasm "github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/codegen/plugin"
	"github.com/penumbra-zone/schemata/keymodel"
)

// EnvPluginPath is consulted when Generator.PluginPath is empty.
const EnvPluginPath = "SCHEMATA_PLUGIN_PATH"

// memoryLimitPages caps plugin memory at 1 GiB.
const memoryLimitPages = 16384

type Generator struct {
	// Language selects the plugin `schemata-codegen-<Language>.wasm`.
	Language string

	// PluginPath is a list of directories separated by
	// os.PathListSeparator.
	PluginPath string

	// Options are passed to the plugin unchanged.
	Options map[string]string
}

var _ codegen.Generator = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, model *keymodel.Model) ([]codegen.OutputFile, error) {
	pluginPath, err := Locate(g.Language, g.PluginPath)
	if err != nil {
		return nil, err
	}
	module, err := os.ReadFile(pluginPath)
	if err != nil {
		return nil, fmt.Errorf("wasmhost: %w", err)
	}
	files, err := Run(ctx, module, &plugin.Request{
		Model:   model,
		Options: g.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(pluginPath), err)
	}
	return files, nil
}

// Locate finds the plugin for language in searchPath, or in
// $SCHEMATA_PLUGIN_PATH if searchPath is empty.
func Locate(language, searchPath string) (string, error) {
	if searchPath == "" {
		searchPath = os.Getenv(EnvPluginPath)
	}
	if searchPath == "" {
		return "", fmt.Errorf("wasmhost: no plugin path set, use --plugin-path= or $%s", EnvPluginPath)
	}
	basename := fmt.Sprintf("schemata-codegen-%s.wasm", language)
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		pluginPath := filepath.Join(dir, basename)
		if info, err := os.Stat(pluginPath); err == nil && info.Mode().IsRegular() {
			return pluginPath, nil
		}
	}
	return "", fmt.Errorf("wasmhost: codegen plugin %s not found in plugin path %q", basename, searchPath)
}

// Run instantiates a plugin module and asks it to generate files for req.
func Run(ctx context.Context, module []byte, req *plugin.Request) ([]codegen.OutputFile, error) {
	requestBuf, err := plugin.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	runtimeConfig := wasm.NewRuntimeConfigInterpreter().
		WithMemoryLimitPages(memoryLimitPages).
		WithCloseOnContextDone(true)
	runtime := wasm.NewRuntimeWithConfig(ctx, runtimeConfig)
	defer runtime.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, fmt.Errorf("wasmhost: %w", err)
	}
	compiled, err := runtime.CompileModule(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("wasmhost: compile plugin: %w", err)
	}

	var stderr bytes.Buffer
	moduleConfig := wasm.NewModuleConfig().
		WithStartFunctions("_initialize").
		WithStderr(&stderr)
	mod, err := runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return nil, withStderr(fmt.Errorf("wasmhost: instantiate plugin: %w", err), &stderr)
	}

	mem := mod.Memory()
	wasmAlloc := mod.ExportedFunction(plugin.ExportAllocate)
	wasmGenerate := mod.ExportedFunction(plugin.ExportGenerate)
	if mem == nil || wasmAlloc == nil || wasmGenerate == nil {
		return nil, fmt.Errorf(
			"wasmhost: plugin must export memory, %s and %s",
			plugin.ExportAllocate, plugin.ExportGenerate,
		)
	}

	results, err := wasmAlloc.Call(ctx, uint64(len(requestBuf)))
	if err != nil {
		return nil, withStderr(fmt.Errorf("wasmhost: allocate request: %w", err), &stderr)
	}
	requestPtr := uint32(results[0])
	if requestPtr == 0 || !mem.Write(requestPtr, requestBuf) {
		return nil, errors.New("wasmhost: plugin returned an invalid request buffer")
	}

	results, err = wasmAlloc.Call(ctx, 4)
	if err != nil {
		return nil, withStderr(fmt.Errorf("wasmhost: allocate response pointer: %w", err), &stderr)
	}
	responsePtrPtr := uint32(results[0])

	results, err = wasmGenerate.Call(ctx, uint64(requestPtr), uint64(responsePtrPtr))
	if err != nil {
		return nil, withStderr(fmt.Errorf("wasmhost: generate: %w", err), &stderr)
	}
	rc := uint8(results[0])

	responsePtr, ok := mem.ReadUint32Le(responsePtrPtr)
	if !ok {
		return nil, errors.New("wasmhost: failed to read response pointer")
	}
	header, ok := mem.Read(responsePtr, plugin.HeaderLen)
	if !ok {
		return nil, errors.New("wasmhost: failed to read response message length")
	}
	responseLen, err := plugin.MessageLen(header)
	if err != nil {
		return nil, err
	}
	responseBuf, ok := mem.Read(responsePtr, responseLen)
	if !ok {
		return nil, errors.New("wasmhost: failed to read response message")
	}
	response, err := plugin.DecodeResponse(responseBuf)
	if err != nil {
		return nil, err
	}

	if rc != 0 || response.Error != "" {
		msg := sanitize(response.Error)
		if msg == "" {
			msg = fmt.Sprintf("plugin failed with status %d", rc)
		}
		return nil, withStderr(errors.New(msg), &stderr)
	}
	if len(response.Files) == 0 {
		return nil, errors.New("wasmhost: plugin did not generate any output files")
	}
	for _, file := range response.Files {
		if err := codegen.ValidatePath(file.Path); err != nil {
			return nil, fmt.Errorf("wasmhost: %w", err)
		}
	}
	return response.Files, nil
}

// sanitize makes plugin text safe to print: control characters other than
// newlines become U+FFFD and surrounding whitespace is trimmed.
func sanitize(msg string) string {
	msg = strings.Map(func(r rune) rune {
		if r != '\n' && unicode.IsControl(r) {
			return unicode.ReplacementChar
		}
		return r
	}, msg)
	return strings.TrimSpace(msg)
}

func withStderr(err error, stderr *bytes.Buffer) error {
	if text := sanitize(stderr.String()); text != "" {
		return fmt.Errorf("%w\nplugin stderr:\n%s", err, text)
	}
	return err
}
