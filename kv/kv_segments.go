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
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidKey is wrapped by every error returned from KeyDecoder.
var ErrInvalidKey = errors.New("kv: invalid key")

// Encoding is the text encoding of a string segment. Every encoding maps
// a string to bytes that never contain the key delimiter, so a decoder can
// find the end of the segment.
type Encoding uint8

const (
	Hex Encoding = iota + 1
	Base32
	Base64URL
	Percent
)

var encodingNames = map[Encoding]string{
	Hex:       "hex",
	Base32:    "base32",
	Base64URL: "base64url",
	Percent:   "percent",
}

func ParseEncoding(name string) (Encoding, bool) {
	for enc, encName := range encodingNames {
		if encName == name {
			return enc, true
		}
	}
	return 0, false
}

func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Encoding(%d)", uint8(e))
}

var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Allows reports whether byte c can appear in the output of this encoding
// when keys are delimited by delim.
func (e Encoding) Allows(c, delim byte) bool {
	switch e {
	case Hex:
		return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
	case Base32:
		return (c >= 'A' && c <= 'Z') || (c >= '2' && c <= '7')
	case Base64URL:
		return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_'
	case Percent:
		return c == '%' || (c >= 0x21 && c <= 0x7E && c != delim)
	}
	return false
}

func (e Encoding) Encode(s string, delim byte) string {
	switch e {
	case Hex:
		return hex.EncodeToString([]byte(s))
	case Base32:
		return base32NoPadding.EncodeToString([]byte(s))
	case Base64URL:
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	case Percent:
		return percentEncode(s, delim)
	}
	panic(fmt.Sprintf("kv: unknown string encoding %d", uint8(e)))
}

// Decode accepts only canonical input: Encode(Decode(s)) == s.
func (e Encoding) Decode(s string, delim byte) (string, error) {
	var (
		decoded []byte
		err     error
	)
	switch e {
	case Hex:
		decoded, err = hex.DecodeString(s)
	case Base32:
		decoded, err = base32NoPadding.DecodeString(s)
	case Base64URL:
		decoded, err = base64.RawURLEncoding.DecodeString(s)
	case Percent:
		decoded, err = percentDecode(s)
	default:
		return "", fmt.Errorf("unknown string encoding %d", uint8(e))
	}
	if err != nil {
		return "", err
	}
	if e.Encode(string(decoded), delim) != s {
		return "", fmt.Errorf("non-canonical %s text %q", e, s)
	}
	return string(decoded), nil
}

func percentEncode(s string, delim byte) string {
	const upperhex = "0123456789ABCDEF"
	var buf []byte
	for ii := 0; ii < len(s); ii++ {
		c := s[ii]
		if c < 0x21 || c > 0x7E || c == '%' || c == delim {
			buf = append(buf, '%', upperhex[c>>4], upperhex[c&0x0F])
		} else {
			buf = append(buf, c)
		}
	}
	return string(buf)
}

func percentDecode(s string) ([]byte, error) {
	var buf []byte
	for ii := 0; ii < len(s); ii++ {
		if s[ii] != '%' {
			buf = append(buf, s[ii])
			continue
		}
		if ii+2 >= len(s) {
			return nil, fmt.Errorf("truncated escape in %q", s)
		}
		b, err := hex.DecodeString(s[ii+1 : ii+3])
		if err != nil {
			return nil, fmt.Errorf("invalid escape in %q", s)
		}
		buf = append(buf, b[0])
		ii += 2
	}
	return buf, nil
}

// KeyBuilder appends segments to a key, writing the delimiter between
// adjacent segments.
type KeyBuilder struct {
	delim byte
	buf   []byte
	n     int
}

func NewKeyBuilder(delim byte) *KeyBuilder {
	return &KeyBuilder{
		delim: delim,
		buf:   make([]byte, 0, 64),
	}
}

func (b *KeyBuilder) next() {
	if b.n > 0 {
		b.buf = append(b.buf, b.delim)
	}
	b.n++
}

func (b *KeyBuilder) Literal(s string) {
	b.next()
	b.buf = append(b.buf, s...)
}

// Int64 writes v big-endian with the sign bit flipped, so that byte order
// matches numeric order.
func (b *KeyBuilder) Int64(v int64) {
	b.next()
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(v)^(1<<63))
}

func (b *KeyBuilder) Int32(v int32) {
	b.next()
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v)^(1<<31))
}

func (b *KeyBuilder) Uint64(v uint64) {
	b.next()
	b.buf = binary.BigEndian.AppendUint64(b.buf, v)
}

func (b *KeyBuilder) Uint32(v uint32) {
	b.next()
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

func (b *KeyBuilder) UUID(v uuid.UUID) {
	b.next()
	b.buf = append(b.buf, v[:]...)
}

func (b *KeyBuilder) Fixed(v []byte) {
	b.next()
	b.buf = append(b.buf, v...)
}

func (b *KeyBuilder) String(enc Encoding, v string) {
	b.next()
	b.buf = append(b.buf, enc.Encode(v, b.delim)...)
}

func (b *KeyBuilder) Bytes() []byte {
	return b.buf
}

// KeyDecoder reads segments from a key in the order they were built. The
// first failure is sticky and reported by Finish.
type KeyDecoder struct {
	delim byte
	raw   []byte
	src   []byte
	n     int
	err   error
}

func NewKeyDecoder(delim byte, raw []byte) *KeyDecoder {
	return &KeyDecoder{
		delim: delim,
		raw:   raw,
		src:   raw,
	}
}

func (d *KeyDecoder) fail(format string, args ...any) {
	if d.err != nil {
		return
	}
	d.err = fmt.Errorf(
		"%w: byte %d: %s",
		ErrInvalidKey,
		len(d.raw)-len(d.src),
		fmt.Sprintf(format, args...),
	)
}

func (d *KeyDecoder) next() bool {
	if d.err != nil {
		return false
	}
	if d.n > 0 {
		if len(d.src) == 0 || d.src[0] != d.delim {
			d.fail("expected delimiter %q", d.delim)
			return false
		}
		d.src = d.src[1:]
	}
	d.n++
	return true
}

func (d *KeyDecoder) take(width int) []byte {
	if !d.next() {
		return nil
	}
	if len(d.src) < width {
		d.fail("expected %d bytes, have %d", width, len(d.src))
		return nil
	}
	out := d.src[:width]
	d.src = d.src[width:]
	return out
}

func (d *KeyDecoder) Literal(s string) {
	if !d.next() {
		return
	}
	if !bytes.HasPrefix(d.src, []byte(s)) {
		d.fail("expected literal %q", s)
		return
	}
	d.src = d.src[len(s):]
}

func (d *KeyDecoder) Int64() int64 {
	buf := d.take(8)
	if buf == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(buf) ^ (1 << 63))
}

func (d *KeyDecoder) Int32() int32 {
	buf := d.take(4)
	if buf == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(buf) ^ (1 << 31))
}

func (d *KeyDecoder) Uint64() uint64 {
	buf := d.take(8)
	if buf == nil {
		return 0
	}
	return binary.BigEndian.Uint64(buf)
}

func (d *KeyDecoder) Uint32() uint32 {
	buf := d.take(4)
	if buf == nil {
		return 0
	}
	return binary.BigEndian.Uint32(buf)
}

func (d *KeyDecoder) UUID() uuid.UUID {
	var v uuid.UUID
	if buf := d.take(16); buf != nil {
		copy(v[:], buf)
	}
	return v
}

// Fixed copies the next len(dst) bytes into dst.
func (d *KeyDecoder) Fixed(dst []byte) {
	if buf := d.take(len(dst)); buf != nil {
		copy(dst, buf)
	}
}

func (d *KeyDecoder) String(enc Encoding) string {
	if !d.next() {
		return ""
	}
	end := bytes.IndexByte(d.src, d.delim)
	if end < 0 {
		end = len(d.src)
	}
	decoded, err := enc.Decode(string(d.src[:end]), d.delim)
	if err != nil {
		d.fail("%s", err.Error())
		return ""
	}
	d.src = d.src[end:]
	return decoded
}

// Finish reports the first decoding failure, or an error if any bytes
// remain unread.
func (d *KeyDecoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.src) > 0 {
		d.fail("%d unexpected trailing bytes", len(d.src))
		return d.err
	}
	return nil
}
