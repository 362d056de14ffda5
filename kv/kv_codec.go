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

package kv

import (
	"bytes"
	"errors"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Codec converts between a value type and its stored bytes.
type Codec[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (T, error)
}

type jsonCodec[T any] struct{}

func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var value T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&value); err != nil {
		return value, err
	}
	return value, nil
}

type yamlCodec[T any] struct{}

func YAML[T any]() Codec[T] {
	return yamlCodec[T]{}
}

func (yamlCodec[T]) Encode(value T) ([]byte, error) {
	return yaml.Marshal(value)
}

func (yamlCodec[T]) Decode(data []byte) (T, error) {
	var value T
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&value); err != nil {
		return value, err
	}
	return value, nil
}

type textCodec[T ~string] struct{}

// Text stores a string-like value as its UTF-8 bytes.
func Text[T ~string]() Codec[T] {
	return textCodec[T]{}
}

func (textCodec[T]) Encode(value T) ([]byte, error) {
	return []byte(value), nil
}

func (textCodec[T]) Decode(data []byte) (T, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text value is not valid UTF-8")
	}
	return T(data), nil
}

type rawCodec[T ~[]byte] struct{}

// Raw stores a byte-slice value unchanged.
func Raw[T ~[]byte]() Codec[T] {
	return rawCodec[T]{}
}

func (rawCodec[T]) Encode(value T) ([]byte, error) {
	return bytes.Clone(value), nil
}

func (rawCodec[T]) Decode(data []byte) (T, error) {
	return T(bytes.Clone(data)), nil
}
