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

package opt

import (
	"fmt"
	"sort"

	"github.com/cloudwego/asmopt/internal/opts"
	"github.com/cloudwego/asmopt/internal/utils"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("asmopt.opt")

// Pass is one rewrite rule. Passes keep no state across invocations.
type Pass interface {
	CanRun(ctx *Context) bool
	Run(ctx *Context) bool
}

type PassDescriptor struct {
	Pass     Pass
	Name     string
	Priority int
}

// DefaultPasses returns a fresh copy of the canonical pass list.
func DefaultPasses() []PassDescriptor {
	return []PassDescriptor{
		{Name: "PushPopElim", Priority: 0, Pass: new(PushPopElim)},
		{Name: "CopyElim", Priority: 10, Pass: new(CopyElim)},
		{Name: "Peephole", Priority: 20, Pass: new(Peephole)},
		{Name: "StrengthReduce", Priority: 30, Pass: new(StrengthReduce)},
		{Name: "ExternDedup", Priority: 40, Pass: new(ExternDedup)},
		{Name: "CopyProp", Priority: 50, Pass: new(CopyProp)},
		{Name: "JumpThread", Priority: 60, Pass: new(JumpThread)},
		{Name: "DeadCode", Priority: 70, Pass: new(DeadCode)},
		{Name: "Coalesce", Priority: 80, Pass: new(Coalesce)},
	}
}

// Driver runs a pass list to a fixpoint.
type Driver struct {
	passes []PassDescriptor
}

// NewDriver sorts passes by ascending priority, keeping the registration
// order of passes with equal priority.
func NewDriver(passes []PassDescriptor) *Driver {
	ret := &Driver{passes: append([]PassDescriptor(nil), passes...)}
	sort.SliceStable(ret.passes, func(i int, j int) bool {
		return ret.passes[i].Priority < ret.passes[j].Priority
	})
	return ret
}

// Passes returns the passes in execution order.
func (self *Driver) Passes() []PassDescriptor {
	return append([]PassDescriptor(nil), self.passes...)
}

// Run repeats full rounds over every enabled pass until a round changes
// nothing or the round cap is hit. Hitting the cap is not an error.
func (self *Driver) Run(ctx *Context) (Summary, error) {
	var ret Summary
	max := ctx.Options.MaxRounds

	/* zero means the default cap */
	if max <= 0 {
		max = opts.MaxRounds
	}

	/* run the rounds */
	for ret.Rounds < max {
		changed := false
		ret.Rounds++

		/* run every pass once */
		for _, p := range self.passes {
			if ctx.Options.IsDisabled(p.Name) {
				continue
			}
			if ok, err := self.apply(ctx, p); err != nil {
				return ret, err
			} else if ok {
				changed = true
			}
		}

		/* fixpoint reached */
		if !changed {
			return ret, nil
		}
		ret.Changed = true
	}

	/* the cap is only reported */
	ret.CapReached = true
	log.Warningf("unit %s: no fixpoint after %d rounds, keeping the current stream", ctx.unit.Name, ret.Rounds)
	return ret, nil
}

// RunPass runs a single pass once, outside of any round.
func RunPass(ctx *Context, p PassDescriptor) (bool, error) {
	return new(Driver).apply(ctx, p)
}

func (self *Driver) apply(ctx *Context, p PassDescriptor) (changed bool, err error) {
	ctx.pass = p.Name
	defer func() { ctx.pass = "" }()

	/* a panicking pass is a defect */
	defer func() {
		if v := recover(); v != nil {
			changed = false
			err = utils.EInternal(ctx.unit.Name, p.Name, fmt.Sprintf("panic: %v", v))
		}
	}()

	/* cheap opt-out */
	if !p.Pass.CanRun(ctx) {
		return false, nil
	}

	/* run the pass */
	if changed = p.Pass.Run(ctx); !changed {
		return false, nil
	}

	/* the stream must still be well-formed */
	if s := verify(ctx); s != "" {
		return false, utils.EInternal(ctx.unit.Name, p.Name, s)
	}

	/* log the change */
	log.Debugf("unit %s: pass %s changed the stream, %d instructions left", ctx.unit.Name, p.Name, ctx.Len())
	return true, nil
}
