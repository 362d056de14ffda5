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
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/penumbra-zone/schemata/internal/logging"
)

type command interface {
	help() *commandHelp
	flags(flags *pflag.FlagSet)
	run(ctx context.Context, argv []string) int
}

// commandGroup is a command with subcommands, such as `key`.
type commandGroup interface {
	command
	subcommands() []command
}

type commandHelp struct {
	usage   string
	summary string
}

// env is shared by all commands of one invocation.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logLevel    string
	logLevelSet bool
	log         zerolog.Logger
}

func (e *env) setLogLevel(level string) error {
	logger, err := logging.New(e.stderr, level)
	if err != nil {
		return err
	}
	e.log = logger
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], &env{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, e *env) int {
	exitCode := 0
	rootCmd := &cobra.Command{
		Use: "schemata [options] COMMAND",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetArgs(argv)
	rootCmd.SetIn(e.stdin)
	rootCmd.SetOut(e.stdout)
	rootCmd.SetErr(e.stderr)
	rootCmd.PersistentFlags().StringVar(
		&e.logLevel, "log-level", logging.DefaultLevel,
		"Log level (debug, info, warn, error)",
	)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		e.logLevelSet = cmd.Flags().Changed("log-level")
		return e.setLogLevel(e.logLevel)
	}
	rootCmd.RunE = func(*cobra.Command, []string) error {
		fmt.Fprint(e.stderr, rootCmd.UsageString())
		exitCode = 2
		return nil
	}

	commands := []command{
		&cmdCompile{env: e},
		&cmdCodegen{env: e},
		&cmdBuild{env: e},
		&cmdKey{env: e},
	}
	for _, cmd := range commands {
		rootCmd.AddCommand(cobraCommand(ctx, cmd, &exitCode))
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(e.stderr, err)
		return 2
	}
	return exitCode
}

func cobraCommand(ctx context.Context, cmd command, exitCode *int) *cobra.Command {
	help := cmd.help()
	cobraCmd := &cobra.Command{
		Use:   help.usage,
		Short: help.summary,
		RunE: func(_ *cobra.Command, args []string) error {
			*exitCode = cmd.run(ctx, args)
			return nil
		},
	}
	cmd.flags(cobraCmd.Flags())
	if group, ok := cmd.(commandGroup); ok {
		for _, sub := range group.subcommands() {
			cobraCmd.AddCommand(cobraCommand(ctx, sub, exitCode))
		}
	}
	return cobraCmd
}
