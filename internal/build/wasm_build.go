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

// Package build compiles codegen plugins to WASM.
package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type PluginOptions struct {
	// GoBin is the go command. Defaults to "go" from $PATH.
	GoBin string

	// Dir is the directory the build runs in, normally the module root.
	Dir string
}

// Plugin builds the main package pkg as a WASI reactor module at output.
func Plugin(ctx context.Context, pkg, output string, opts PluginOptions) error {
	goBin := opts.GoBin
	if goBin == "" {
		goBin = "go"
	}
	output, err := filepath.Abs(output)
	if err != nil {
		return err
	}

	goArgs := []string{"build", "-buildmode=c-shared"}
	goArgs = append(goArgs, "-o="+output, pkg)

	cmd := exec.CommandContext(ctx, goBin, goArgs...)
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm", "CGO_ENABLED=0")
	cmd.Dir = opts.Dir
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build %s: %w\n%s", pkg, err, stderr.String())
	}
	return nil
}
