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

// Package codegen defines the interface between the compiler and code
// generators, and writes their output files.
package codegen

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/penumbra-zone/schemata/keymodel"
)

type Generator interface {
	Generate(ctx context.Context, model *keymodel.Model) ([]OutputFile, error)
}

// OutputFile is one generated file. Path is slash-separated and relative
// to the output directory.
type OutputFile struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// EmissionIOError reports a failure to write generated files. When it is
// returned, no generated file has been left in the output directory.
type EmissionIOError struct {
	Path string
	Err  error
}

var _ error = (*EmissionIOError)(nil)

func (err *EmissionIOError) Error() string {
	if err.Path == "" {
		return fmt.Sprintf("E%d: %v", err.Code(), err.Err)
	}
	return fmt.Sprintf("E%d: %s: %v", err.Code(), err.Path, err.Err)
}

func (err *EmissionIOError) Code() uint32 {
	return 5000
}

func (err *EmissionIOError) Unwrap() error {
	return err.Err
}

// ValidatePath checks that p names a file strictly inside the output
// directory.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("invalid output path %q: empty", p)
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("invalid output path %q: must be a relative slash-separated path", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid output path %q: bad path component %q", p, part)
		}
		if strings.HasPrefix(part, stagingPrefix) {
			return fmt.Errorf("invalid output path %q: reserved path component %q", p, part)
		}
	}
	if path.Clean(p) != p {
		return fmt.Errorf("invalid output path %q: not clean", p)
	}
	return nil
}
