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

package golang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/penumbra-zone/schemata/keymodel"
)

func (f *file) pattern(p *keymodel.Pattern) error {
	keyType := p.Name + "Key"
	owner := "key " + p.Name
	for _, ident := range []string{
		keyType,
		"Make" + keyType,
		"Decode" + keyType,
		keyType + "Prefix",
		"Put" + p.Name,
		"Get" + p.Name,
	} {
		if err := f.declare(ident, owner); err != nil {
			return err
		}
	}

	vars, err := f.variables(p)
	if err != nil {
		return err
	}
	valueType, codec, err := f.valueRef(p.ValueType)
	if err != nil {
		return err
	}
	kv := f.use(RuntimeImportPath)
	ctx := f.use("context")
	delim := f.model.Delimiter

	f.p("// %s is a key of the form %s.", keyType, p.Template(delim))
	if len(vars) == 0 {
		f.p("type %s struct{}", keyType)
	} else {
		f.p("type %s struct {", keyType)
		for _, v := range vars {
			f.p("\t%s %s", v.field, v.goType)
		}
		f.p("}")
	}
	f.p("")
	f.p("var _ %s.Key = %s{}", kv, keyType)
	f.p("")

	var params []string
	for _, v := range vars {
		params = append(params, v.field+" "+v.goType)
	}
	f.p("func Make%s(%s) %s {", keyType, strings.Join(params, ", "), keyType)
	if len(vars) == 0 {
		f.p("\treturn %s{}", keyType)
	} else {
		f.p("\treturn %s{", keyType)
		for _, v := range vars {
			f.p("\t\t%s: %s,", v.field, v.field)
		}
		f.p("\t}")
	}
	f.p("}")
	f.p("")

	for _, v := range vars {
		f.p("func (k %s) %s() %s {", keyType, v.accessor, v.goType)
		f.p("\treturn k.%s", v.field)
		f.p("}")
		f.p("")
	}

	if err := f.keyBytes(p, keyType, vars); err != nil {
		return err
	}
	f.keyString(p, keyType, vars)
	if err := f.keyDecode(p, keyType, vars); err != nil {
		return err
	}

	f.p("// %sPrefix returns the leading bytes shared by every %s.", keyType, keyType)
	f.p("func %sPrefix() []byte {", keyType)
	f.p("\treturn []byte(%s)", strconv.Quote(p.Prefix(delim)))
	f.p("}")
	f.p("")

	f.p(
		"func Put%s(ctx %s.Context, store %s.Store, key %s, value %s) error {",
		p.Name, ctx, kv, keyType, valueType,
	)
	f.p("\treturn %s.Put(ctx, store, key, %s, value)", kv, codec)
	f.p("}")
	f.p("")
	f.p(
		"func Get%s(ctx %s.Context, store %s.Store, key %s) (%s, error) {",
		p.Name, ctx, kv, keyType, valueType,
	)
	f.p("\treturn %s.Get(ctx, store, key, %s)", kv, codec)
	f.p("}")
	f.p("")
	return nil
}

func varsBySegment(vars []variable) map[*keymodel.Segment]variable {
	out := make(map[*keymodel.Segment]variable, len(vars))
	for _, v := range vars {
		out[v.seg] = v
	}
	return out
}

func (f *file) keyBytes(p *keymodel.Pattern, keyType string, vars []variable) error {
	kv := f.use(RuntimeImportPath)
	bySeg := varsBySegment(vars)

	f.p("func (k %s) Bytes() []byte {", keyType)
	f.p("\tb := %s.NewKeyBuilder(keyDelimiter)", kv)
	for ii := range p.Segments {
		seg := &p.Segments[ii]
		if seg.IsLiteral() {
			f.p("\tb.Literal(%s)", strconv.Quote(seg.Literal))
			continue
		}
		v := bySeg[seg]
		field := "k." + v.field
		ops := segmentKindOps[seg.Type.Kind]
		switch seg.Type.Kind {
		case keymodel.KindBytes:
			f.p("\tb.Fixed(%s[:])", field)
		case keymodel.KindString:
			enc, err := f.encodingRef(seg.Type)
			if err != nil {
				return err
			}
			if seg.Type.Name != "" {
				field = "string(" + field + ")"
			}
			f.p("\tb.String(%s, %s)", enc, field)
		default:
			if seg.Type.Name != "" {
				base, err := f.baseType(seg.Type)
				if err != nil {
					return err
				}
				field = base + "(" + field + ")"
			}
			f.p("\tb.%s(%s)", ops.builder, field)
		}
	}
	f.p("\treturn b.Bytes()")
	f.p("}")
	f.p("")
	return nil
}

// keyString renders `literal/{name=value}` with the same value formats as
// keymodel.KeyCodec.Format.
func (f *file) keyString(p *keymodel.Pattern, keyType string, vars []variable) {
	bySeg := varsBySegment(vars)
	delim := strings.ReplaceAll(f.model.Delimiter, "%", "%%")

	var verbs []string
	var args []string
	for ii := range p.Segments {
		seg := &p.Segments[ii]
		if seg.IsLiteral() {
			verbs = append(verbs, strings.ReplaceAll(seg.Literal, "%", "%%"))
			continue
		}
		v := bySeg[seg]
		field := "k." + v.field
		var verb string
		switch seg.Type.Kind {
		case keymodel.KindUUID:
			verb = "%s"
			if seg.Type.Name != "" {
				field = f.use(uuidImportPath) + ".UUID(" + field + ")"
			}
		case keymodel.KindBytes:
			verb = "%x"
			field += "[:]"
		case keymodel.KindString:
			verb = "%q"
		default:
			verb = "%d"
		}
		verbs = append(verbs, "{"+seg.Name+"="+verb+"}")
		args = append(args, field)
	}

	f.p("func (k %s) String() string {", keyType)
	if len(args) == 0 {
		f.p("\treturn %s", strconv.Quote(strings.ReplaceAll(strings.Join(verbs, delim), "%%", "%")))
	} else {
		fmtPkg := f.use("fmt")
		f.p("\treturn %s.Sprintf(%s, %s)", fmtPkg, strconv.Quote(strings.Join(verbs, delim)), strings.Join(args, ", "))
	}
	f.p("}")
	f.p("")
}

func (f *file) keyDecode(p *keymodel.Pattern, keyType string, vars []variable) error {
	kv := f.use(RuntimeImportPath)
	bySeg := varsBySegment(vars)

	f.p("// Decode%s parses the bytes returned by %s.Bytes.", keyType, keyType)
	f.p("func Decode%s(raw []byte) (%s, error) {", keyType, keyType)
	f.p("\tvar key %s", keyType)
	f.p("\td := %s.NewKeyDecoder(keyDelimiter, raw)", kv)
	for ii := range p.Segments {
		seg := &p.Segments[ii]
		if seg.IsLiteral() {
			f.p("\td.Literal(%s)", strconv.Quote(seg.Literal))
			continue
		}
		v := bySeg[seg]
		field := "key." + v.field
		ops := segmentKindOps[seg.Type.Kind]
		var read string
		switch seg.Type.Kind {
		case keymodel.KindBytes:
			f.p("\td.Fixed(%s[:])", field)
			continue
		case keymodel.KindString:
			enc, err := f.encodingRef(seg.Type)
			if err != nil {
				return err
			}
			read = fmt.Sprintf("d.String(%s)", enc)
		default:
			read = fmt.Sprintf("d.%s()", ops.builder)
		}
		if seg.Type.Name != "" {
			read = v.goType + "(" + read + ")"
		}
		f.p("\t%s = %s", field, read)
	}
	f.p("\tif err := d.Finish(); err != nil {")
	f.p("\t\treturn %s{}, err", keyType)
	f.p("\t}")
	f.p("\treturn key, nil")
	f.p("}")
	f.p("")
	return nil
}
