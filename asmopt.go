/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package asmopt

import (
	"github.com/cloudwego/asmopt/internal/opt"
	"github.com/cloudwego/asmopt/internal/opts"
	"github.com/cloudwego/asmopt/ir"
	"golang.org/x/sync/errgroup"
)

// Metrics holds the counters recorded by every pass.
type Metrics = opt.Metrics

// Report describes one optimized unit.
type Report struct {
	Unit       string
	Before     int
	After      int
	SizeBefore uint32
	SizeAfter  uint32
	Rounds     int
	Changed    bool
	CapReached bool
	Metrics    *Metrics
}

func newOptions(options []Option) opts.Options {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}
	return o
}

// Optimize rewrites u in place to a smaller, semantically equivalent
// instruction stream. A MalformedError leaves u untouched. An InternalError
// aborts the unit, whose content must then be discarded.
func Optimize(u *ir.Unit, options ...Option) (*Report, error) {
	return optimize(u, newOptions(options))
}

func optimize(u *ir.Unit, o opts.Options) (*Report, error) {
	if err := opt.Validate(u); err != nil {
		return nil, err
	}

	/* measure the input */
	ret := &Report{
		Unit:       u.Name,
		Before:     len(u.Code),
		SizeBefore: codeSize(u.Code),
	}

	/* run the passes */
	ctx, sum, err := opt.Optimize(u, nil, o)
	if err != nil {
		return nil, err
	}

	/* fill the report */
	ret.After = len(u.Code)
	ret.SizeAfter = codeSize(u.Code)
	ret.Rounds = sum.Rounds
	ret.Changed = sum.Changed
	ret.CapReached = sum.CapReached
	ret.Metrics = ctx.Metrics
	return ret, nil
}

func codeSize(p []*ir.Instr) uint32 {
	n := uint32(0)
	for _, v := range p {
		n += v.Size()
	}
	return n
}

// OptimizeModule optimizes every unit of m concurrently. Units share no
// state, so the result is the same as optimizing them one after another.
// The reports are in the order of m.Units.
func OptimizeModule(m *ir.Module, options ...Option) ([]*Report, error) {
	var eg errgroup.Group
	o := newOptions(options)
	ret := make([]*Report, len(m.Units))

	/* one goroutine per unit */
	for i, u := range m.Units {
		i, u := i, u
		eg.Go(func() (err error) {
			ret[i], err = optimize(u, o)
			return
		})
	}

	/* wait for all the units */
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}
