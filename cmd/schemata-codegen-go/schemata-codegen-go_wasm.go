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

//go:build wasip1

package main

import (
	"context"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/codegen/golang"
	"github.com/penumbra-zone/schemata/codegen/plugin"
)

// buffers keeps allocations shared with the host reachable, keyed by
// their address in linear memory.
var buffers = make(map[uint32][]uint8)

func keep(buf []uint8) uint32 {
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	buffers[ptr] = buf
	return ptr
}

//go:wasmexport schemata_codegen_allocate
func schemataCodegenAllocate(size uint32) uint32 {
	if size > math.MaxInt32 {
		return 0
	}
	// Zero-sized buffers still need a distinct address.
	return keep(make([]uint8, int(size)+1)[:size])
}

//go:wasmexport schemata_codegen_generate
func schemataCodegenGenerate(requestPtr, responsePtrPtr uint32) uint32 {
	responseSlot, ok := buffers[responsePtrPtr]
	if !ok || len(responseSlot) < 4 {
		return 1
	}

	request, ok := buffers[requestPtr]
	delete(buffers, requestPtr)
	var response []uint8
	if !ok {
		response, _ = plugin.EncodeResponse(&plugin.Response{
			Error: "request buffer was not allocated by the plugin",
		})
		ok = false
	} else {
		response, ok = plugin.Handle(context.Background(), request, newGenerator)
	}

	binary.LittleEndian.PutUint32(responseSlot, keep(response))
	if !ok {
		return 1
	}
	return 0
}

func newGenerator(opts map[string]string) codegen.Generator {
	return &golang.Generator{ImportPath: opts[golang.OptionPackage]}
}
