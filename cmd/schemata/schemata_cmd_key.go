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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/kv"
	"github.com/penumbra-zone/schemata/kv/redisstore"
	"github.com/penumbra-zone/schemata/kv/sqlitestore"
)

type cmdKey struct {
	*env
}

func (*cmdKey) help() *commandHelp {
	return &commandHelp{
		usage:   "key COMMAND",
		summary: "Encode, decode, read and write keys of a compiled key model",
	}
}

func (*cmdKey) flags(*pflag.FlagSet) {}

func (cmd *cmdKey) run(context.Context, []string) int {
	fmt.Fprintln(cmd.stderr, "usage: schemata key (encode|decode|get|put) MODEL.json PATTERN ...")
	return 2
}

func (cmd *cmdKey) subcommands() []command {
	return []command{
		&cmdKeyEncode{env: cmd.env},
		&cmdKeyDecode{env: cmd.env},
		&cmdKeyGet{env: cmd.env},
		&cmdKeyPut{env: cmd.env},
	}
}

// keyCodec loads a key model JSON file and returns the codec of the named
// pattern, which may be a canonical name or `namespace.Name`.
func keyCodec(modelPath, pattern string) (*keymodel.Model, *keymodel.KeyCodec, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, nil, err
	}
	model, err := keymodel.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", modelPath, err)
	}
	_, p := model.FindPattern(pattern)
	if p == nil {
		return nil, nil, fmt.Errorf("%s: no key pattern named %q", modelPath, pattern)
	}
	codec, err := keymodel.NewKeyCodec(model, p)
	if err != nil {
		return nil, nil, err
	}
	return model, codec, nil
}

func encodeArgs(argv []string) (*keymodel.Model, *keymodel.KeyCodec, []byte, error) {
	model, codec, err := keyCodec(argv[0], argv[1])
	if err != nil {
		return nil, nil, nil, err
	}
	values, err := codec.ParseArgs(argv[2:])
	if err != nil {
		return nil, nil, nil, err
	}
	key, err := codec.Encode(values)
	if err != nil {
		return nil, nil, nil, err
	}
	return model, codec, key, nil
}

type cmdKeyEncode struct {
	*env
	hex bool
}

func (*cmdKeyEncode) help() *commandHelp {
	return &commandHelp{
		usage:   "encode MODEL.json PATTERN [VALUE...]",
		summary: "Print the key bytes for the given segment values",
	}
}

func (cmd *cmdKeyEncode) flags(flags *pflag.FlagSet) {
	flags.BoolVar(&cmd.hex, "hex", false, "Print the key in hex")
}

func (cmd *cmdKeyEncode) run(_ context.Context, argv []string) int {
	if len(argv) < 2 {
		fmt.Fprintln(cmd.stderr, "usage: schemata key encode MODEL.json PATTERN [VALUE...]")
		return 2
	}
	_, _, key, err := encodeArgs(argv)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	if cmd.hex {
		fmt.Fprintln(cmd.stdout, hex.EncodeToString(key))
	} else {
		fmt.Fprintf(cmd.stdout, "%s\n", key)
	}
	return 0
}

type cmdKeyDecode struct {
	*env
	hex bool
}

func (*cmdKeyDecode) help() *commandHelp {
	return &commandHelp{
		usage:   "decode MODEL.json PATTERN KEY",
		summary: "Print the segment values of a key",
	}
}

func (cmd *cmdKeyDecode) flags(flags *pflag.FlagSet) {
	flags.BoolVar(&cmd.hex, "hex", false, "KEY is given in hex")
}

func (cmd *cmdKeyDecode) run(_ context.Context, argv []string) int {
	if len(argv) != 3 {
		fmt.Fprintln(cmd.stderr, "usage: schemata key decode MODEL.json PATTERN KEY")
		return 2
	}
	_, codec, err := keyCodec(argv[0], argv[1])
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	raw := []byte(argv[2])
	if cmd.hex {
		if raw, err = hex.DecodeString(argv[2]); err != nil {
			fmt.Fprintln(cmd.stderr, err)
			return 1
		}
	}
	values, err := codec.Decode(raw)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	fmt.Fprintln(cmd.stdout, codec.Format(values))
	return 0
}

// storeFlag selects a store by URL: `sqlite:PATH` or
// `redis://[:PASSWORD@]HOST:PORT[/DB][?prefix=P]`.
type storeFlag struct {
	url string
}

func (f *storeFlag) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.url, "store", "", "Store URL (sqlite:PATH or redis://HOST:PORT/DB)")
}

func (f *storeFlag) open() (kv.Store, io.Closer, error) {
	if f.url == "" {
		return nil, nil, errors.New("no store specified (set --store=)")
	}
	u, err := url.Parse(f.url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid store URL: %w", err)
	}
	switch u.Scheme {
	case "sqlite":
		path := u.Opaque
		if path == "" {
			path = u.Path
		}
		if path == "" {
			return nil, nil, fmt.Errorf("store URL %q has no database path", f.url)
		}
		store, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "redis":
		db := 0
		if name := strings.Trim(u.Path, "/"); name != "" {
			if db, err = strconv.Atoi(name); err != nil {
				return nil, nil, fmt.Errorf("store URL %q: invalid database %q", f.url, name)
			}
		}
		password, _ := u.User.Password()
		var opts []redisstore.Option
		if prefix := u.Query().Get("prefix"); prefix != "" {
			opts = append(opts, redisstore.WithPrefix(prefix))
		}
		store := redisstore.New(u.Host, password, db, opts...)
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unsupported store %q (use sqlite: or redis://)", u.Scheme)
}

type cmdKeyGet struct {
	*env
	store storeFlag
}

func (*cmdKeyGet) help() *commandHelp {
	return &commandHelp{
		usage:   "get MODEL.json PATTERN [VALUE...]",
		summary: "Read the value stored under a key",
	}
}

func (cmd *cmdKeyGet) flags(flags *pflag.FlagSet) {
	cmd.store.register(flags)
}

func (cmd *cmdKeyGet) run(ctx context.Context, argv []string) int {
	if len(argv) < 2 {
		fmt.Fprintln(cmd.stderr, "usage: schemata key get MODEL.json PATTERN [VALUE...] --store=URL")
		return 2
	}
	_, codec, key, err := encodeArgs(argv)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	store, closer, err := cmd.store.open()
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	defer closer.Close()

	value, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		fmt.Fprintf(cmd.stderr, "%s: not found\n", codec.Format(mustDecode(codec, key)))
		return 1
	}
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	if _, err := cmd.stdout.Write(value); err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	return 0
}

func mustDecode(codec *keymodel.KeyCodec, key []byte) []any {
	values, err := codec.Decode(key)
	if err != nil {
		panic(fmt.Sprintf("decoding a key encoded by the same codec: %v", err))
	}
	return values
}

type cmdKeyPut struct {
	*env
	store storeFlag
	value string
}

func (*cmdKeyPut) help() *commandHelp {
	return &commandHelp{
		usage:   "put MODEL.json PATTERN [VALUE...]",
		summary: "Store a value under a key, reading it from stdin unless --value is set",
	}
}

func (cmd *cmdKeyPut) flags(flags *pflag.FlagSet) {
	cmd.store.register(flags)
	flags.StringVar(&cmd.value, "value", "", "Value to store")
}

func (cmd *cmdKeyPut) run(ctx context.Context, argv []string) int {
	if len(argv) < 2 {
		fmt.Fprintln(cmd.stderr, "usage: schemata key put MODEL.json PATTERN [VALUE...] --store=URL")
		return 2
	}
	model, codec, key, err := encodeArgs(argv)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}

	value := []byte(cmd.value)
	if cmd.value == "" {
		if value, err = io.ReadAll(cmd.stdin); err != nil {
			fmt.Fprintln(cmd.stderr, err)
			return 1
		}
	}
	valueType := model.ValueType(codec.Pattern().ValueType)
	if valueType == nil {
		fmt.Fprintf(cmd.stderr, "value type %s is not in the key model\n", codec.Pattern().ValueType)
		return 1
	}
	if err := checkValue(valueType.Format, value); err != nil {
		fmt.Fprintf(cmd.stderr, "invalid %s value: %v\n", valueType.Format, err)
		return 1
	}

	store, closer, err := cmd.store.open()
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	defer closer.Close()

	if err := store.Put(ctx, key, value); err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	cmd.log.Debug().Str("key", codec.Format(mustDecode(codec, key))).Int("bytes", len(value)).Msg("stored")
	return 0
}

// checkValue rejects values the generated code could not decode.
func checkValue(format keymodel.ValueFormat, value []byte) error {
	var err error
	switch format {
	case keymodel.FormatJSON:
		_, err = kv.JSON[any]().Decode(value)
	case keymodel.FormatYAML:
		_, err = kv.YAML[any]().Decode(value)
	case keymodel.FormatText:
		_, err = kv.Text[string]().Decode(value)
	}
	return err
}
