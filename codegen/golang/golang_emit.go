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
	"bytes"
	"fmt"
	"go/token"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/penumbra-zone/schemata/keymodel"
)

var reservedImports = map[string]string{
	"context":         "context",
	"fmt":             "fmt",
	uuidImportPath:    "uuid",
	RuntimeImportPath: "kv",
}

// Identifiers of generated local variables and parameters. An imported
// package may not use one of these names.
var localNames = []string{"b", "codec", "ctx", "d", "err", "k", "key", "raw", "store", "value"}

var majorVersionRe = regexp.MustCompile(`^v[0-9]+$`)

func (f *file) use(path string) string {
	if name, ok := f.imports[path]; ok {
		return name
	}
	name, ok := reservedImports[path]
	if !ok {
		name = f.uniqueImportName(defaultImportName(path))
	}
	f.imports[path] = name
	return name
}

func (f *file) importNameTaken(name string) bool {
	if token.IsKeyword(name) || slices.Contains(localNames, name) {
		return true
	}
	for _, reserved := range reservedImports {
		if reserved == name {
			return true
		}
	}
	for _, used := range f.imports {
		if used == name {
			return true
		}
	}
	return false
}

func (f *file) uniqueImportName(base string) string {
	name := base
	for ii := 2; f.importNameTaken(name); ii++ {
		name = base + strconv.Itoa(ii)
	}
	return name
}

func lastPathElem(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

func defaultImportName(path string) string {
	elem := lastPathElem(path)
	if majorVersionRe.MatchString(elem) && strings.Contains(path, "/") {
		elem = lastPathElem(path[:len(path)-len(elem)-1])
	}
	buf := []byte(elem)
	for ii, c := range buf {
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			buf[ii] = '_'
		}
	}
	if len(buf) == 0 || (buf[0] >= '0' && buf[0] <= '9') {
		buf = append([]byte("pkg"), buf...)
	}
	return string(buf)
}

func (f *file) writeImports(out *bytes.Buffer) {
	if len(f.imports) == 0 {
		return
	}
	var std, other []string
	for path := range f.imports {
		if first, _, _ := strings.Cut(path, "/"); strings.Contains(first, ".") {
			other = append(other, path)
		} else {
			std = append(std, path)
		}
	}
	slices.Sort(std)
	slices.Sort(other)

	out.WriteString("import (\n")
	for ii, group := range [][]string{std, other} {
		if ii > 0 && len(std) > 0 && len(group) > 0 {
			out.WriteString("\n")
		}
		for _, path := range group {
			if name := f.imports[path]; name != lastPathElem(path) {
				fmt.Fprintf(out, "\t%s %q\n", name, path)
			} else {
				fmt.Fprintf(out, "\t%q\n", path)
			}
		}
	}
	out.WriteString(")\n\n")
}

// declRef returns the Go type of a declaration given its qualified name.
func (f *file) declRef(qualifiedName string) (string, error) {
	nsName, name, ok := strings.Cut(qualifiedName, ".")
	if !ok {
		return "", fmt.Errorf("malformed declaration name %q", qualifiedName)
	}
	if nsName == f.ns.Name {
		return name, nil
	}
	if f.importPath == "" {
		return "", fmt.Errorf(
			"%s refers to %s in another package; set option %s",
			f.ns.Name, qualifiedName, OptionPackage,
		)
	}
	if !slices.Contains(f.deps, nsName) {
		f.deps = append(f.deps, nsName)
	}
	return f.use(f.importPath+"/"+nsName) + "." + name, nil
}

type segmentOps struct {
	// builder names the kv.KeyBuilder and kv.KeyDecoder methods.
	builder string
	goType  string
}

var segmentKindOps = map[keymodel.SegmentKind]segmentOps{
	keymodel.KindInt:    {"Int64", "int64"},
	keymodel.KindInt32:  {"Int32", "int32"},
	keymodel.KindUint:   {"Uint64", "uint64"},
	keymodel.KindUint32: {"Uint32", "uint32"},
	keymodel.KindUUID:   {"UUID", "UUID"},
	keymodel.KindBytes:  {"Fixed", ""},
	keymodel.KindString: {"String", "string"},
}

// baseType is the Go type of a segment kind, ignoring declared names.
func (f *file) baseType(t *keymodel.SegmentType) (string, error) {
	ops, ok := segmentKindOps[t.Kind]
	if !ok {
		return "", fmt.Errorf("unknown segment kind %q", t.Kind)
	}
	switch t.Kind {
	case keymodel.KindUUID:
		return f.use(uuidImportPath) + "." + ops.goType, nil
	case keymodel.KindBytes:
		return fmt.Sprintf("[%d]byte", t.Size), nil
	}
	return ops.goType, nil
}

func (f *file) segmentType(t *keymodel.SegmentType) (string, error) {
	if t.Name != "" {
		return f.declRef(t.Name)
	}
	return f.baseType(t)
}

var encodingConsts = map[string]string{
	"hex":       "Hex",
	"base32":    "Base32",
	"base64url": "Base64URL",
	"percent":   "Percent",
}

func (f *file) encodingRef(t *keymodel.SegmentType) (string, error) {
	name, ok := encodingConsts[t.Encoding]
	if !ok {
		return "", fmt.Errorf("unsupported string encoding %q", t.Encoding)
	}
	return f.use(RuntimeImportPath) + "." + name, nil
}

func (f *file) segmentDecl(decl *keymodel.SegmentDecl) error {
	if err := f.declare(decl.Name, "segment "+decl.Name); err != nil {
		return err
	}
	goType, err := f.segmentType(&decl.Type)
	if err != nil {
		return err
	}
	f.p("// %s is a %s key segment.", decl.Name, decl.Type.Layout())
	f.p("type %s %s", decl.Name, goType)
	f.p("")
	return nil
}

func (f *file) valueDecl(value *keymodel.ValueType) error {
	if _, bound := value.Options[OptionType]; bound {
		return nil
	}
	if err := f.declare(value.Name, "value "+value.Name); err != nil {
		return err
	}
	switch value.Format {
	case keymodel.FormatText:
		f.p("// %s holds a text value.", value.Name)
		f.p("type %s string", value.Name)
	case keymodel.FormatRaw:
		f.p("// %s holds a raw value.", value.Name)
		f.p("type %s []byte", value.Name)
	default:
		f.p("// %s holds an encoded %s document.", value.Name, value.Format)
		f.p("type %s []byte", value.Name)
	}
	f.p("")
	return nil
}

var codecFuncs = map[keymodel.ValueFormat]string{
	keymodel.FormatJSON: "JSON",
	keymodel.FormatYAML: "YAML",
	keymodel.FormatText: "Text",
	keymodel.FormatRaw:  "Raw",
}

// valueRef returns the Go type of a value type and an expression for its
// kv.Codec.
func (f *file) valueRef(qualifiedName string) (goType, codec string, err error) {
	value := f.model.ValueType(qualifiedName)
	if value == nil {
		return "", "", fmt.Errorf("value type %s not found", qualifiedName)
	}
	kv := f.use(RuntimeImportPath)
	if binding, bound := value.Options[OptionType]; bound {
		dot := strings.LastIndexByte(binding, '.')
		if dot <= 0 {
			return "", "", fmt.Errorf("malformed %s %q", OptionType, binding)
		}
		goType = f.use(binding[:dot]) + "." + binding[dot+1:]
		fn, ok := codecFuncs[value.Format]
		if !ok {
			return "", "", fmt.Errorf("unknown value format %q", value.Format)
		}
		return goType, fmt.Sprintf("%s.%s[%s]()", kv, fn, goType), nil
	}

	goType, err = f.declRef(qualifiedName)
	if err != nil {
		return "", "", err
	}
	if value.Format == keymodel.FormatText {
		return goType, fmt.Sprintf("%s.Text[%s]()", kv, goType), nil
	}
	return goType, fmt.Sprintf("%s.Raw[%s]()", kv, goType), nil
}

// initialisms are spelled in upper case in accessor names.
var initialisms = map[string]bool{
	"acl": true, "api": true, "cpu": true, "dns": true, "guid": true,
	"html": true, "http": true, "https": true, "id": true, "ip": true,
	"json": true, "rpc": true, "sha": true, "sql": true, "ssh": true,
	"tcp": true, "tls": true, "ttl": true, "udp": true, "uid": true,
	"uri": true, "url": true, "utf8": true, "uuid": true, "xml": true,
	"yaml": true,
}

// exportedName turns a segment variable name into an accessor name:
// `order_id` and `orderId` become `OrderID`.
func exportedName(name string) string {
	var buf strings.Builder
	for _, part := range strings.Split(name, "_") {
		for _, word := range camelWords(part) {
			if initialisms[strings.ToLower(word)] {
				buf.WriteString(strings.ToUpper(word))
				continue
			}
			r, size := utf8.DecodeRuneInString(word)
			buf.WriteRune(unicode.ToUpper(r))
			buf.WriteString(word[size:])
		}
	}
	out := buf.String()
	if out == "Bytes" || out == "String" {
		out += "Segment"
	}
	return out
}

// camelWords splits before each upper case letter that follows a lower
// case letter or digit: `userId` is `user`, `Id`.
func camelWords(s string) []string {
	var words []string
	start := 0
	for ii := 1; ii < len(s); ii++ {
		prev, c := s[ii-1], s[ii]
		if c >= 'A' && c <= 'Z' && ((prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')) {
			words = append(words, s[start:ii])
			start = ii
		}
	}
	if start < len(s) {
		words = append(words, s[start:])
	}
	return words
}

func fieldName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	out := string(unicode.ToLower(r)) + name[size:]
	if token.IsKeyword(out) {
		out += "_"
	}
	return out
}

type variable struct {
	seg      *keymodel.Segment
	field    string
	accessor string
	goType   string
}

func (f *file) variables(p *keymodel.Pattern) ([]variable, error) {
	var out []variable
	fields := make(map[string]string)
	accessors := make(map[string]string)
	for _, seg := range p.Variables() {
		v := variable{
			seg:      seg,
			field:    fieldName(seg.Name),
			accessor: exportedName(seg.Name),
		}
		if prev, ok := fields[v.field]; ok {
			return nil, fmt.Errorf("%s: segments %s and %s have the same field name", p.Name, prev, seg.Name)
		}
		if prev, ok := accessors[v.accessor]; ok {
			return nil, fmt.Errorf("%s: segments %s and %s have the same accessor name", p.Name, prev, seg.Name)
		}
		fields[v.field] = seg.Name
		accessors[v.accessor] = seg.Name

		goType, err := f.segmentType(seg.Type)
		if err != nil {
			return nil, err
		}
		v.goType = goType
		out = append(out, v)
	}
	return out, nil
}
