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

// Package kv is the runtime used by generated key code.
//
// A Store holds raw key and value bytes. Generated code builds keys with
// KeyBuilder, parses them with KeyDecoder, and converts values with a
// Codec bound to the value type declared in the schema.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Get when no value is stored under a key.
var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, error)
}

// Key is implemented by every generated key type.
type Key interface {
	Bytes() []byte
	String() string
}

func Put[K Key, V any](
	ctx context.Context,
	store Store,
	key K,
	codec Codec[V],
	value V,
) error {
	encoded, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("kv: encode value for %s: %w", key.String(), err)
	}
	return store.Put(ctx, key.Bytes(), encoded)
}

func Get[K Key, V any](
	ctx context.Context,
	store Store,
	key K,
	codec Codec[V],
) (V, error) {
	var zero V
	encoded, err := store.Get(ctx, key.Bytes())
	if err != nil {
		return zero, err
	}
	value, err := codec.Decode(encoded)
	if err != nil {
		return zero, fmt.Errorf("kv: decode value for %s: %w", key.String(), err)
	}
	return value, nil
}
