// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpm

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// A Job is one program to run with RunBatch.
type Job struct {
	Name  string    // label used in logs and results
	Image []byte    // .COM image
	Args  []string  // command-line arguments
	Input io.Reader // console input; nil means none
}

// A Result holds the outcome of a single Job.
type Result struct {
	Name   string
	Output []byte
	Stats  Stats
	Err    error
}

// RunBatch runs each job on its own Machine, at most 'limit' at a time. A
// limit of zero or less runs every job at once. The options are applied
// to every machine after its console is set up. Results are returned in
// job order, and a program's failure is reported in its Result without
// stopping the others. The returned error is non-nil only when the
// context ends before every job has started.
func RunBatch(ctx context.Context, jobs []Job, limit int, opts ...Option) ([]Result, error) {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Name: job.Name, Err: err}
				return err
			}
			results[i] = runJob(ctx, job, opts)
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func runJob(ctx context.Context, job Job, opts []Option) Result {
	in := job.Input
	if in == nil {
		in = strings.NewReader("")
	}

	var out bytes.Buffer
	m := New(append([]Option{WithConsole(in, &out)}, opts...)...)
	m.Logger = m.Logger.With(slog.String("job", job.Name))

	r := Result{Name: job.Name}
	if r.Err = m.Load(bytes.NewReader(job.Image), job.Args); r.Err == nil {
		r.Err = m.Run(ctx)
	}
	if r.Err != nil {
		m.Logger.Error("program failed", slog.Any("err", r.Err))
	}

	r.Output = out.Bytes()
	r.Stats = m.Stats()
	return r
}
