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

package keymodel

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/penumbra-zone/schemata/kv"
)

// KeyCodec encodes and decodes the keys of one pattern without generated
// code. It produces the same bytes as the generated key types.
//
// Segment values are typed by kind: int64, int32, uint64, uint32,
// uuid.UUID, []byte (bytes[N]) and string.
type KeyCodec struct {
	delim   byte
	pattern *Pattern
}

func NewKeyCodec(m *Model, p *Pattern) (*KeyCodec, error) {
	if len(m.Delimiter) != 1 {
		return nil, fmt.Errorf("keymodel: invalid delimiter %q", m.Delimiter)
	}
	if err := p.check(m.Delimiter); err != nil {
		return nil, fmt.Errorf("keymodel: pattern %s: %w", p.Name, err)
	}
	return &KeyCodec{
		delim:   m.Delimiter[0],
		pattern: p,
	}, nil
}

func (c *KeyCodec) Pattern() *Pattern {
	return c.pattern
}

func (c *KeyCodec) Encode(values []any) ([]byte, error) {
	vars := c.pattern.Variables()
	if len(values) != len(vars) {
		return nil, fmt.Errorf(
			"keymodel: pattern %s has %d variable segments, got %d values",
			c.pattern.Name, len(vars), len(values),
		)
	}
	b := kv.NewKeyBuilder(c.delim)
	for ii := range c.pattern.Segments {
		seg := &c.pattern.Segments[ii]
		if seg.IsLiteral() {
			b.Literal(seg.Literal)
			continue
		}
		if err := encodeSegment(b, seg, values[seg.Ordinal]); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func encodeSegment(b *kv.KeyBuilder, seg *Segment, value any) error {
	mismatch := func() error {
		return fmt.Errorf(
			"keymodel: segment %q (%s) does not accept %T",
			seg.Name, seg.Type.Layout(), value,
		)
	}
	switch seg.Type.Kind {
	case KindInt:
		v, ok := value.(int64)
		if !ok {
			return mismatch()
		}
		b.Int64(v)
	case KindInt32:
		v, ok := value.(int32)
		if !ok {
			return mismatch()
		}
		b.Int32(v)
	case KindUint:
		v, ok := value.(uint64)
		if !ok {
			return mismatch()
		}
		b.Uint64(v)
	case KindUint32:
		v, ok := value.(uint32)
		if !ok {
			return mismatch()
		}
		b.Uint32(v)
	case KindUUID:
		v, ok := value.(uuid.UUID)
		if !ok {
			return mismatch()
		}
		b.UUID(v)
	case KindBytes:
		v, ok := value.([]byte)
		if !ok {
			return mismatch()
		}
		if len(v) != seg.Type.Size {
			return fmt.Errorf(
				"keymodel: segment %q needs %d bytes, got %d",
				seg.Name, seg.Type.Size, len(v),
			)
		}
		b.Fixed(v)
	case KindString:
		v, ok := value.(string)
		if !ok {
			return mismatch()
		}
		enc, ok := kv.ParseEncoding(seg.Type.Encoding)
		if !ok {
			return fmt.Errorf(
				"keymodel: segment %q has unsupported encoding %q",
				seg.Name, seg.Type.Encoding,
			)
		}
		b.String(enc, v)
	default:
		return fmt.Errorf("keymodel: unknown segment kind %q", seg.Type.Kind)
	}
	return nil
}

// Decode returns the variable segment values of raw in ordinal order.
func (c *KeyCodec) Decode(raw []byte) ([]any, error) {
	d := kv.NewKeyDecoder(c.delim, raw)
	var values []any
	for ii := range c.pattern.Segments {
		seg := &c.pattern.Segments[ii]
		if seg.IsLiteral() {
			d.Literal(seg.Literal)
			continue
		}
		switch seg.Type.Kind {
		case KindInt:
			values = append(values, d.Int64())
		case KindInt32:
			values = append(values, d.Int32())
		case KindUint:
			values = append(values, d.Uint64())
		case KindUint32:
			values = append(values, d.Uint32())
		case KindUUID:
			values = append(values, d.UUID())
		case KindBytes:
			buf := make([]byte, seg.Type.Size)
			d.Fixed(buf)
			values = append(values, buf)
		case KindString:
			enc, ok := kv.ParseEncoding(seg.Type.Encoding)
			if !ok {
				return nil, fmt.Errorf(
					"keymodel: segment %q has unsupported encoding %q",
					seg.Name, seg.Type.Encoding,
				)
			}
			values = append(values, d.String(enc))
		default:
			return nil, fmt.Errorf("keymodel: unknown segment kind %q", seg.Type.Kind)
		}
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return values, nil
}

// ParseArgs converts command-line text into segment values: decimal
// integers, canonical UUIDs, hex for bytes[N] and plain text for strings.
func (c *KeyCodec) ParseArgs(args []string) ([]any, error) {
	vars := c.pattern.Variables()
	if len(args) != len(vars) {
		return nil, fmt.Errorf(
			"keymodel: pattern %s has %d variable segments, got %d arguments",
			c.pattern.Name, len(vars), len(args),
		)
	}
	values := make([]any, len(args))
	for ii, seg := range vars {
		value, err := parseArg(seg, args[ii])
		if err != nil {
			return nil, fmt.Errorf("keymodel: segment %q: %w", seg.Name, err)
		}
		values[ii] = value
	}
	return values, nil
}

func parseArg(seg *Segment, arg string) (any, error) {
	switch seg.Type.Kind {
	case KindInt:
		return strconv.ParseInt(arg, 10, 64)
	case KindInt32:
		v, err := strconv.ParseInt(arg, 10, 32)
		return int32(v), err
	case KindUint:
		return strconv.ParseUint(arg, 10, 64)
	case KindUint32:
		v, err := strconv.ParseUint(arg, 10, 32)
		return uint32(v), err
	case KindUUID:
		return uuid.Parse(arg)
	case KindBytes:
		return hex.DecodeString(arg)
	case KindString:
		return arg, nil
	}
	return nil, fmt.Errorf("unknown segment kind %q", seg.Type.Kind)
}

// FormatArg is the inverse of ParseArgs for one value.
func FormatArg(value any) string {
	switch v := value.(type) {
	case []byte:
		return hex.EncodeToString(v)
	case uuid.UUID:
		return v.String()
	case string:
		return v
	}
	return fmt.Sprintf("%d", value)
}

// Format renders a key the way generated key types do in String: literal
// segments as-is and variable segments as `{name=value}`, with integers in
// decimal, UUIDs in canonical form, bytes in hex and strings quoted.
func (c *KeyCodec) Format(values []any) string {
	var buf strings.Builder
	for ii := range c.pattern.Segments {
		seg := &c.pattern.Segments[ii]
		if ii > 0 {
			buf.WriteByte(c.delim)
		}
		if seg.IsLiteral() {
			buf.WriteString(seg.Literal)
			continue
		}
		var value any
		if seg.Ordinal < len(values) {
			value = values[seg.Ordinal]
		}
		switch v := value.(type) {
		case string:
			fmt.Fprintf(&buf, "{%s=%q}", seg.Name, v)
		case []byte:
			fmt.Fprintf(&buf, "{%s=%x}", seg.Name, v)
		case uuid.UUID:
			fmt.Fprintf(&buf, "{%s=%s}", seg.Name, v)
		default:
			fmt.Fprintf(&buf, "{%s=%d}", seg.Name, v)
		}
	}
	return buf.String()
}
