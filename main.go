// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/goz80/host"
)

var (
	rom     string
	origin  string
	memSize int
)

func init() {
	flag.StringVar(&rom, "rom", "", "load a ROM image at $0000 and protect it")
	flag.StringVar(&origin, "org", "$0100", "load address for binary files")
	flag.IntVar(&memSize, "size", 0x10000, "memory size in bytes")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: goz80 [options] [file.bin ...] [script ...]")
		fmt.Println("Files ending in .bin, .com or .rom are loaded at the -org address.")
		fmt.Println("Other files are monitor scripts, run in order before the")
		fmt.Println("interactive session starts.")
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if memSize < 1 || memSize > 0x10000 {
		exitOnError(fmt.Errorf("memory size %d is out of range", memSize))
	}
	org, err := parseAddr(origin)
	if err != nil {
		exitOnError(err)
	}

	h := host.New(host.WithMemorySize(memSize))

	if rom != "" {
		n, err := h.LoadFile(rom, 0)
		if err != nil {
			exitOnError(err)
		}
		if n > 0 {
			h.SetROM(0, uint16(n-1))
		}
	}

	// Load binaries, then run commands contained in script files.
	for _, filename := range flag.Args() {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".bin", ".com", ".rom":
			if _, err := h.LoadFile(filename, org); err != nil {
				exitOnError(err)
			}
		default:
			file, err := os.Open(filename)
			if err != nil {
				exitOnError(err)
			}
			err = h.RunCommands(file, os.Stdout, false)
			file.Close()
			if errors.Is(err, host.ErrQuit) {
				return
			}
		}
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	// Run commands interactively.
	h.RunCommands(os.Stdin, os.Stdout, true)
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for {
		<-c
		h.Break()
	}
}

// Parse an address written in decimal, or in hex with a $ or 0x prefix.
func parseAddr(s string) (uint16, error) {
	base := 10
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address '%s'", s)
	}
	return uint16(v), nil
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
