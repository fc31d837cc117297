// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/beevik/term"
)

// A lineReader supplies the host with command lines.
type lineReader interface {
	readLine() (string, error)
}

// Create a reader for command lines from 'r'. An interactive session on a
// terminal gets a line editor, and the returned bool reports whether the
// editor draws its own prompt.
func newLineReader(r io.Reader, w io.Writer, interactive bool) (lineReader, bool) {
	if f, ok := r.(*os.File); ok && interactive && term.IsTerminal(int(f.Fd())) {
		return newTermReader(f, w), true
	}
	return &scanReader{bufio.NewScanner(r)}, false
}

type scanReader struct {
	s *bufio.Scanner
}

func (r *scanReader) readLine() (string, error) {
	if r.s.Scan() {
		return r.s.Text(), nil
	}
	if err := r.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// A termReader edits lines on a VT100 terminal with history and command
// autocompletion. Raw input mode is held only while a line is read, so
// Ctrl-C still interrupts a running CPU.
type termReader struct {
	fd int
	t  *term.Terminal
}

func newTermReader(f *os.File, w io.Writer) *termReader {
	rw := struct {
		io.Reader
		io.Writer
	}{f, w}

	t := term.NewTerminal(rw, "* ")
	t.AutoCompleteCallback = autocomplete
	t.HistoryTestCallback = func(line string) bool {
		return strings.TrimSpace(line) != ""
	}

	fd := int(f.Fd())
	if width, height, err := term.GetSize(fd); err == nil {
		t.SetSize(width, height)
	}
	return &termReader{fd: fd, t: t}
}

func (r *termReader) readLine() (string, error) {
	st, err := term.MakeRawInput(r.fd)
	if err != nil {
		return "", err
	}
	defer term.Restore(r.fd, st)

	line, err := r.t.ReadLine()
	if errors.Is(err, term.ErrPasteIndicator) {
		err = nil
	}
	return line, err
}

// Complete the command under the cursor when tab is pressed.
func autocomplete(line string, pos int, key rune) (newLine string, newPos int, ok bool) {
	if key != '\t' {
		return "", 0, false
	}

	matches := cmds.Autocomplete(line[:pos])
	prefix := commonPrefix(matches)
	if len(matches) == 1 {
		prefix += " "
	}
	if len(prefix) <= pos {
		return line, pos, true
	}
	return prefix + line[pos:], len(prefix), true
}
