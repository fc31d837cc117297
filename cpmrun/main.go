// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cpmrun runs CP/M-80 .COM programs on the Z80 emulator.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/goz80/cpm"
	"golang.org/x/term"
)

var (
	verbose   bool
	maxCycles uint64
	timeout   time.Duration
	jobs      int
)

func init() {
	flag.BoolVar(&verbose, "v", false, "log BDOS calls")
	flag.Uint64Var(&maxCycles, "max-cycles", 0, "stop a program after this many T-states (0 = no limit)")
	flag.DurationVar(&timeout, "timeout", 0, "stop after this long (0 = no limit)")
	flag.IntVar(&jobs, "j", 4, "number of programs to run at once")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: cpmrun [options] program.com [args...]")
		fmt.Println("       cpmrun [options] program.com program.com ...")
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	opts := []cpm.Option{cpm.WithLogger(logger), cpm.WithMaxCycles(maxCycles)}

	// Arguments after the first are passed to the program unless every
	// argument names a .COM file.
	args := flag.Args()
	if len(args) == 1 || !allPrograms(args) {
		if err := runOne(ctx, args[0], args[1:], opts); err != nil {
			exitOnError(err)
		}
		return
	}

	if err := runBatch(ctx, args, opts); err != nil {
		exitOnError(err)
	}
}

func allPrograms(args []string) bool {
	for _, a := range args {
		if !strings.EqualFold(filepath.Ext(a), ".com") {
			return false
		}
	}
	return true
}

func runOne(ctx context.Context, filename string, args []string, opts []cpm.Option) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	// Console input is read a character at a time on a terminal.
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, state)
	}

	m := cpm.New(append(opts, cpm.WithConsole(os.Stdin, os.Stdout))...)
	if err := m.Load(file, args); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	err = m.Run(ctx)
	s := m.Stats()
	m.Logger.Debug("finished",
		slog.String("program", filename),
		slog.Uint64("instructions", s.Instructions),
		slog.Uint64("cycles", s.Cycles),
		slog.Uint64("syscalls", s.Syscalls))
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	return nil
}

func runBatch(ctx context.Context, filenames []string, opts []cpm.Option) error {
	var batch []cpm.Job
	for _, filename := range filenames {
		image, err := os.ReadFile(filename)
		if err != nil {
			return err
		}
		batch = append(batch, cpm.Job{Name: filepath.Base(filename), Image: image})
	}

	results, err := cpm.RunBatch(ctx, batch, jobs, opts...)

	failed := 0
	for _, r := range results {
		fmt.Printf("==> %s <==\n", r.Name)
		os.Stdout.Write(bytes.ReplaceAll(r.Output, []byte("\r\n"), []byte("\n")))
		if len(r.Output) > 0 && r.Output[len(r.Output)-1] != '\n' {
			fmt.Println()
		}
		if r.Err != nil {
			failed++
			fmt.Printf("error: %v\n", r.Err)
		}
		fmt.Printf("(%d instructions, %d cycles)\n\n", r.Stats.Instructions, r.Stats.Cycles)
	}

	switch {
	case err != nil:
		return err
	case failed > 0:
		return fmt.Errorf("%d of %d programs failed", failed, len(results))
	}
	return nil
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
