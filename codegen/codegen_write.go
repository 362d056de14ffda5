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

package codegen

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const stagingPrefix = ".schemata-"

// WriteFiles writes files into dir. Every file is first written to a
// staging directory inside dir and then renamed into place. If any step
// fails, the files already moved are removed, the files they replaced are
// restored, and an *EmissionIOError is returned.
func WriteFiles(dir string, files []OutputFile) error {
	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		if err := ValidatePath(file.Path); err != nil {
			return &EmissionIOError{Path: file.Path, Err: err}
		}
		if _, dup := seen[file.Path]; dup {
			return &EmissionIOError{
				Path: file.Path,
				Err:  errors.New("output path generated more than once"),
			}
		}
		seen[file.Path] = struct{}{}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &EmissionIOError{Path: dir, Err: err}
	}
	staging, err := os.MkdirTemp(dir, stagingPrefix+"staging-")
	if err != nil {
		return &EmissionIOError{Path: dir, Err: err}
	}
	defer os.RemoveAll(staging)

	w := &stagedWrite{
		dir:    dir,
		newDir: filepath.Join(staging, "new"),
		oldDir: filepath.Join(staging, "old"),
	}
	if err := w.stage(files); err != nil {
		return err
	}
	if err := w.commit(files); err != nil {
		w.rollback()
		return err
	}
	return nil
}

type replacedFile struct {
	target string
	backup string
}

type stagedWrite struct {
	dir    string
	newDir string
	oldDir string

	createdDirs []string
	placed      []string
	replaced    []replacedFile
}

func (w *stagedWrite) stage(files []OutputFile) error {
	if err := os.Mkdir(w.oldDir, 0o700); err != nil {
		return &EmissionIOError{Path: w.oldDir, Err: err}
	}
	for _, file := range files {
		staged := filepath.Join(w.newDir, filepath.FromSlash(file.Path))
		if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
			return &EmissionIOError{Path: file.Path, Err: err}
		}
		if err := os.WriteFile(staged, file.Content, 0o644); err != nil {
			return &EmissionIOError{Path: file.Path, Err: err}
		}
	}
	return nil
}

func (w *stagedWrite) commit(files []OutputFile) error {
	for ii, file := range files {
		rel := filepath.FromSlash(file.Path)
		target := filepath.Join(w.dir, rel)
		if err := w.mkdirs(filepath.Dir(rel)); err != nil {
			return &EmissionIOError{Path: file.Path, Err: err}
		}

		info, err := os.Lstat(target)
		switch {
		case err == nil && info.IsDir():
			return &EmissionIOError{
				Path: file.Path,
				Err:  fmt.Errorf("%s is a directory", target),
			}
		case err == nil:
			backup := filepath.Join(w.oldDir, strconv.Itoa(ii))
			if err := os.Rename(target, backup); err != nil {
				return &EmissionIOError{Path: file.Path, Err: err}
			}
			w.replaced = append(w.replaced, replacedFile{target, backup})
		case !errors.Is(err, fs.ErrNotExist):
			return &EmissionIOError{Path: file.Path, Err: err}
		}

		staged := filepath.Join(w.newDir, rel)
		if err := os.Rename(staged, target); err != nil {
			return &EmissionIOError{Path: file.Path, Err: err}
		}
		w.placed = append(w.placed, target)
	}
	return nil
}

// mkdirs creates the missing parents of a relative path under w.dir,
// recording each one so that rollback can remove it.
func (w *stagedWrite) mkdirs(rel string) error {
	if rel == "." {
		return nil
	}
	if err := w.mkdirs(filepath.Dir(rel)); err != nil {
		return err
	}
	abs := filepath.Join(w.dir, rel)
	err := os.Mkdir(abs, 0o755)
	if err == nil {
		w.createdDirs = append(w.createdDirs, abs)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
			return nil
		}
	}
	return err
}

func (w *stagedWrite) rollback() {
	for ii := len(w.placed) - 1; ii >= 0; ii-- {
		os.Remove(w.placed[ii])
	}
	for ii := len(w.replaced) - 1; ii >= 0; ii-- {
		os.Rename(w.replaced[ii].backup, w.replaced[ii].target)
	}
	for ii := len(w.createdDirs) - 1; ii >= 0; ii-- {
		os.Remove(w.createdDirs[ii])
	}
}
