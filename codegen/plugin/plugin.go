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

// Package plugin defines the messages exchanged with a code generator
// plugin.
//
// A plugin is a WASM module exporting two functions:
//
//	schemata_codegen_allocate(len u32) -> ptr
//	schemata_codegen_generate(request_ptr, response_ptr_ptr) -> u8
//
// The host allocates a buffer, writes an encoded Request into it and calls
// generate. The plugin stores the address of an encoded Response at
// response_ptr_ptr and returns 0, or non-zero if Response.Error is set.
//
// Messages are JSON documents preceded by their length as a 4-byte
// little-endian integer.
package plugin

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/keymodel"
)

const (
	ExportAllocate = "schemata_codegen_allocate"
	ExportGenerate = "schemata_codegen_generate"

	// HeaderLen is the size of the length prefix of a message.
	HeaderLen = 4
)

type Request struct {
	Model   *keymodel.Model   `json:"model"`
	Options map[string]string `json:"options,omitempty"`
}

type Response struct {
	Files []codegen.OutputFile `json:"files,omitempty"`
	Error string               `json:"error,omitempty"`
}

func EncodeRequest(req *Request) ([]byte, error) {
	return encode(req)
}

func DecodeRequest(buf []byte) (*Request, error) {
	req := &Request{}
	if err := decode(buf, req); err != nil {
		return nil, fmt.Errorf("plugin: decode request: %w", err)
	}
	if req.Model == nil {
		return nil, fmt.Errorf("plugin: decode request: missing model")
	}
	return req, nil
}

func EncodeResponse(resp *Response) ([]byte, error) {
	return encode(resp)
}

func DecodeResponse(buf []byte) (*Response, error) {
	resp := &Response{}
	if err := decode(buf, resp); err != nil {
		return nil, fmt.Errorf("plugin: decode response: %w", err)
	}
	return resp, nil
}

// MessageLen reads a message header and returns the total size of the
// message, including the header.
func MessageLen(header []byte) (uint32, error) {
	if len(header) < HeaderLen {
		return 0, fmt.Errorf("plugin: message header truncated (%d bytes)", len(header))
	}
	payloadLen := binary.LittleEndian.Uint32(header)
	if payloadLen > math.MaxUint32-HeaderLen {
		return 0, fmt.Errorf("plugin: message too large (%d bytes)", payloadLen)
	}
	return HeaderLen + payloadLen, nil
}

func encode(msg any) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32-HeaderLen {
		return nil, fmt.Errorf("plugin: message too large (%d bytes)", len(payload))
	}
	buf := make([]byte, HeaderLen, HeaderLen+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	return append(buf, payload...), nil
}

func decode(buf []byte, msg any) error {
	total, err := MessageLen(buf)
	if err != nil {
		return err
	}
	if uint64(len(buf)) < uint64(total) {
		return fmt.Errorf("message truncated: have %d of %d bytes", len(buf), total)
	}
	return json.Unmarshal(buf[HeaderLen:total], msg)
}

// Handle runs gen on an encoded request and returns the encoded response.
// ok is false if the response carries an error.
func Handle(
	ctx context.Context,
	request []byte,
	newGenerator func(opts map[string]string) codegen.Generator,
) (response []byte, ok bool) {
	resp := &Response{}
	if req, err := DecodeRequest(request); err != nil {
		resp.Error = err.Error()
	} else if files, err := newGenerator(req.Options).Generate(ctx, req.Model); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Files = files
	}

	buf, err := EncodeResponse(resp)
	if err != nil {
		buf, _ = EncodeResponse(&Response{
			Error: fmt.Sprintf("plugin: encode response: %v", err),
		})
		return buf, false
	}
	return buf, resp.Error == ""
}
