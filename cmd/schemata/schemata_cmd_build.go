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
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/penumbra-zone/schemata"
	"github.com/penumbra-zone/schemata/internal/config"
)

// rebuildDelay coalesces the bursts of events editors produce on save.
const rebuildDelay = 100 * time.Millisecond

type cmdBuild struct {
	*env
	configPath string
	watch      bool
	jobs       int
}

func (*cmdBuild) help() *commandHelp {
	return &commandHelp{
		usage:   "build",
		summary: "Generate code for every target in schemata.yaml",
	}
}

func (cmd *cmdBuild) flags(flags *pflag.FlagSet) {
	flags.StringVarP(&cmd.configPath, "config", "c", config.DefaultFile, "Build configuration")
	flags.BoolVar(&cmd.watch, "watch", false, "Rebuild when a schema or the configuration changes")
	flags.IntVarP(&cmd.jobs, "jobs", "j", 0, "Targets to build in parallel (default from the configuration)")
}

func (cmd *cmdBuild) run(ctx context.Context, argv []string) int {
	if len(argv) != 0 {
		fmt.Fprintln(cmd.stderr, "usage: schemata build [-c schemata.yaml] [--watch] [-j N]")
		return 2
	}
	cfg, err := cmd.loadConfig()
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}

	ok := cmd.buildAll(ctx, cfg)
	if !cmd.watch {
		if !ok {
			return 1
		}
		return 0
	}
	if err := cmd.watchLoop(ctx, cfg); err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	return 0
}

func (cmd *cmdBuild) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cmd.configPath)
	if err != nil {
		return nil, err
	}
	if !cmd.logLevelSet {
		if err := cmd.setLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

type targetResult struct {
	result *schemata.Result
	err    error
}

// buildAll builds every target and reports whether all succeeded. A failed
// target does not stop the others.
func (cmd *cmdBuild) buildAll(ctx context.Context, cfg *config.Config) bool {
	jobs := cmd.jobs
	if jobs <= 0 {
		jobs = cfg.Jobs
	}

	results := make([]targetResult, len(cfg.Targets))
	var group errgroup.Group
	group.SetLimit(jobs)
	for ii, target := range cfg.Targets {
		group.Go(func() error {
			result, err := cmd.buildTarget(ctx, cfg, target)
			results[ii] = targetResult{result, err}
			return nil
		})
	}
	_ = group.Wait()

	ok := true
	for ii, target := range cfg.Targets {
		res := results[ii]
		if res.result != nil {
			printDiagnostics(cmd.stderr, res.result.Diagnostics)
		}
		switch {
		case res.err != nil:
			fmt.Fprintf(cmd.stderr, "%s: %v\n", target.Schema, res.err)
			ok = false
		case res.result.Failed():
			ok = false
		default:
			cmd.log.Info().
				Str("schema", target.Schema).
				Str("output", target.Output).
				Msg("built")
		}
	}
	return ok
}

func (cmd *cmdBuild) buildTarget(
	ctx context.Context,
	cfg *config.Config,
	target config.Target,
) (*schemata.Result, error) {
	var opts []schemata.Option
	if target.Baseline != "" {
		opts = append(opts, schemata.WithBaselineFile(target.Baseline))
	}
	gen := newGenerator(generatorOptions{
		language:   target.Language,
		pluginPath: cfg.PluginPath,
		goPackage:  target.GoPackage,
	})
	result, err := schemata.Build(ctx, target.Schema, gen, target.Output, opts...)
	if err != nil || result.Failed() || target.Lock == "" {
		return result, err
	}
	return result, schemata.WriteLock(target.Lock, result.Model)
}

// watchLoop rebuilds on changes to the configuration file or any schema it
// names, until ctx is done. Only directories are watched, so that editors
// which save by renaming a new file into place are seen.
func (cmd *cmdBuild) watchLoop(ctx context.Context, cfg *config.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched, err := cmd.watchFiles(watcher, cfg)
	if err != nil {
		return err
	}
	cmd.log.Info().Int("files", len(watched)).Msg("watching for changes")

	var rebuild <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !watched[path] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cmd.log.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("file changed")
			rebuild = time.After(rebuildDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmd.log.Error().Err(err).Msg("file watcher error")

		case <-rebuild:
			rebuild = nil
			if newCfg, err := cmd.loadConfig(); err != nil {
				cmd.log.Error().Err(err).Msg("config reload failed, keeping old config")
			} else {
				cfg = newCfg
				if watched, err = cmd.watchFiles(watcher, cfg); err != nil {
					return err
				}
			}
			cmd.log.Info().Msg("rebuilding")
			cmd.buildAll(ctx, cfg)
		}
	}
}

func (cmd *cmdBuild) watchFiles(watcher *fsnotify.Watcher, cfg *config.Config) (map[string]bool, error) {
	files := append([]string{cmd.configPath}, cfg.Schemas()...)
	watched := make(map[string]bool, len(files))
	for _, file := range files {
		path, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		watched[path] = true
	}
	dirs := make(map[string]bool)
	for path := range watched {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watch directory: %w", err)
		}
	}
	return watched, nil
}
