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

package compiler

import (
	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/kv"
)

// Two key patterns collide if some byte string is a valid key of both.
//
// A pattern is compiled to a nondeterministic automaton over bytes.
// Literal bytes and the delimiter are single-byte edges, a fixed-width
// segment of width w is w edges that accept any byte, and a string segment
// accepts exactly the canonical output of its encoding. Collision is
// decided by a reachability search over pairs of automaton states.

type byteSet [4]uint64

func (s *byteSet) add(c byte) {
	s[c>>6] |= 1 << (c & 63)
}

func (s *byteSet) intersects(other *byteSet) bool {
	for ii := range s {
		if s[ii]&other[ii] != 0 {
			return true
		}
	}
	return false
}

func singleByte(c byte) byteSet {
	var s byteSet
	s.add(c)
	return s
}

func bytesOf(chars string) byteSet {
	var s byteSet
	for ii := 0; ii < len(chars); ii++ {
		s.add(chars[ii])
	}
	return s
}

var anyByte = byteSet{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}

const (
	lowerHexDigits    = "0123456789abcdef"
	upperHexDigits    = "0123456789ABCDEF"
	base32Alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

// alphabetTail is the set of symbols whose low padBits bits are zero. The
// last symbol of a canonical unpadded base32 or base64 text carries that
// many padding bits.
func alphabetTail(alphabet string, padBits uint) byteSet {
	var s byteSet
	for ii := 0; ii < len(alphabet); ii++ {
		if ii&(1<<padBits-1) == 0 {
			s.add(alphabet[ii])
		}
	}
	return s
}

type edge struct {
	set byteSet
	to  int
}

type automatonState struct {
	edges   []edge
	epsilon []int
}

type automaton struct {
	states []automatonState
	accept int
}

func (a *automaton) state() int {
	a.states = append(a.states, automatonState{})
	return len(a.states) - 1
}

func (a *automaton) edge(from, to int, set byteSet) {
	a.states[from].edges = append(a.states[from].edges, edge{set, to})
}

// step adds a fresh state reached from `from` on any byte in set.
func (a *automaton) step(from int, set byteSet) int {
	to := a.state()
	a.edge(from, to, set)
	return to
}

func patternAutomaton(p *keymodel.Pattern, delim byte) *automaton {
	a := &automaton{}
	cur := a.state()
	for ii, seg := range p.Segments {
		if ii > 0 {
			cur = a.step(cur, singleByte(delim))
		}
		if seg.IsLiteral() {
			for _, c := range []byte(seg.Literal) {
				cur = a.step(cur, singleByte(c))
			}
			continue
		}
		if width := seg.Type.Width(); width >= 0 {
			for range width {
				cur = a.step(cur, anyByte)
			}
			continue
		}
		enc, _ := kv.ParseEncoding(seg.Type.Encoding)
		cur = a.encoded(cur, enc, delim)
	}
	a.accept = cur
	return a
}

// encoded adds the canonical text of enc starting at state start and
// returns the state reached at its end.
func (a *automaton) encoded(start int, enc kv.Encoding, delim byte) int {
	switch enc {
	case kv.Hex:
		digits := bytesOf(lowerHexDigits)
		a.edge(a.step(start, digits), start, digits)
		return start
	case kv.Base32:
		return a.blocks(start, base32Alphabet, 8, map[int]uint{2: 2, 4: 4, 5: 1, 7: 3})
	case kv.Base64URL:
		return a.blocks(start, base64URLAlphabet, 4, map[int]uint{2: 4, 3: 2})
	case kv.Percent:
		return a.percent(start, delim)
	}
	return start
}

// blocks accepts whole blocks of n symbols followed by an optional short
// block. tails maps each legal short block length to the padding bits of
// its last symbol.
func (a *automaton) blocks(start int, alphabet string, n int, tails map[int]uint) int {
	symbols := bytesOf(alphabet)
	end := a.state()
	a.states[start].epsilon = append(a.states[start].epsilon, end)
	cur := start
	for ii := 1; ii <= n; ii++ {
		if padBits, ok := tails[ii]; ok {
			a.edge(cur, end, alphabetTail(alphabet, padBits))
		}
		if ii == n {
			a.edge(cur, start, symbols)
		} else {
			cur = a.step(cur, symbols)
		}
	}
	return end
}

// percent accepts printable bytes other than '%' and the delimiter, and
// '%' followed by two uppercase hex digits encoding a byte that is not
// printed as itself.
func (a *automaton) percent(start int, delim byte) int {
	var plain byteSet
	for c := range 256 {
		if c != '%' && kv.Percent.Allows(byte(c), delim) {
			plain.add(byte(c))
		}
	}
	a.edge(start, start, plain)
	escape := a.step(start, singleByte('%'))
	for hi := range 16 {
		var lo byteSet
		for ii := range 16 {
			c := byte(hi<<4 | ii)
			if c == '%' || !kv.Percent.Allows(c, delim) {
				lo.add(upperHexDigits[ii])
			}
		}
		if lo == (byteSet{}) {
			continue
		}
		high := a.step(escape, singleByte(upperHexDigits[hi]))
		a.edge(high, start, lo)
	}
	return start
}

// automataOverlap reports whether the languages of a and b intersect.
func automataOverlap(a, b *automaton) bool {
	type pair struct{ i, j int }
	seen := make(map[pair]struct{})
	stack := []pair{{0, 0}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if p.i == a.accept && p.j == b.accept {
			return true
		}
		for _, i := range a.states[p.i].epsilon {
			stack = append(stack, pair{i, p.j})
		}
		for _, j := range b.states[p.j].epsilon {
			stack = append(stack, pair{p.i, j})
		}
		for _, ea := range a.states[p.i].edges {
			for _, eb := range b.states[p.j].edges {
				if ea.set.intersects(&eb.set) {
					stack = append(stack, pair{ea.to, eb.to})
				}
			}
		}
	}
	return false
}

// checkOverlaps reports duplicate and colliding patterns within each
// collision scope: one namespace by default, the whole schema when the
// `collisions` option is "schema". Patterns with invalid segments are
// skipped.
func (v *validator) checkOverlaps() {
	var scopes [][]*keyInfo
	if v.schema.collisions == collisionsSchema {
		scopes = append(scopes, v.schema.allKeys())
	} else {
		for _, ns := range v.schema.namespaces {
			scopes = append(scopes, ns.keys)
		}
	}

	delim := v.schema.delimiter
	for _, keys := range scopes {
		type compiled struct {
			key      *keyInfo
			pattern  keymodel.Pattern
			layout   string
			template string
			matcher  *automaton
		}
		var patterns []*compiled
		for _, key := range keys {
			if v.invalidKeys[key] {
				continue
			}
			p := key.pattern()
			patterns = append(patterns, &compiled{
				key:      key,
				pattern:  p,
				layout:   p.Layout(string(delim)),
				template: p.Template(string(delim)),
				matcher:  patternAutomaton(&p, delim),
			})
		}

		for jj, later := range patterns {
			for _, earlier := range patterns[:jj] {
				if later.layout == earlier.layout {
					v.err(errDuplicatePattern(
						later.key.qualifiedName(),
						earlier.key.qualifiedName(),
						later.layout,
						later.key.node.Span(),
					))
					break
				}
			}
		}

		for jj, later := range patterns {
			for _, earlier := range patterns[:jj] {
				if later.layout == earlier.layout {
					continue
				}
				if automataOverlap(earlier.matcher, later.matcher) {
					v.err(errPrefixCollision(
						later.key.qualifiedName(),
						later.template,
						earlier.key.qualifiedName(),
						earlier.template,
						later.key.node.Span(),
					))
				}
			}
		}
	}
}
