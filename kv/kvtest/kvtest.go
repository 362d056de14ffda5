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

// Package kvtest checks that a kv.Store implementation behaves the way
// generated key code expects.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penumbra-zone/schemata/kv"
)

// RunStoreContract runs the shared Store contract against store. The store
// must start empty.
func RunStoreContract(t *testing.T, store kv.Store) {
	ctx := context.Background()

	t.Run("Put and Get", func(t *testing.T) {
		err := store.Put(ctx, []byte("contract/a"), []byte("value-a"))
		require.NoError(t, err, "Put should not return error")

		got, err := store.Get(ctx, []byte("contract/a"))
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, []byte("value-a"), got)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, []byte("contract/missing"))
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, []byte("contract/b"), []byte("first")))
		require.NoError(t, store.Put(ctx, []byte("contract/b"), []byte("second")))

		got, err := store.Get(ctx, []byte("contract/b"))
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("Binary Keys", func(t *testing.T) {
		key := []byte{'k', '/', 0x00, 0xFF, 0x2F, 0x80}
		value := []byte{0x00, 0x01, 0xFE}
		require.NoError(t, store.Put(ctx, key, value))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, got)

		_, err = store.Get(ctx, key[:len(key)-1])
		assert.ErrorIs(t, err, kv.ErrNotFound, "keys must match exactly")
	})

	t.Run("Empty Value", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, []byte("contract/empty"), []byte{}))

		got, err := store.Get(ctx, []byte("contract/empty"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Value Isolation", func(t *testing.T) {
		value := []byte("original")
		require.NoError(t, store.Put(ctx, []byte("contract/iso"), value))
		value[0] = 'X'

		got, err := store.Get(ctx, []byte("contract/iso"))
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), got)
	})
}
