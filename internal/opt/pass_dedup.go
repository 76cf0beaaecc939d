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
	"strings"

	"github.com/cloudwego/asmopt/ir"
)

// ExternDedup replaces a repeated call to a pure extern with identical
// arguments by a copy of the first call's result. The scope is a single
// basic block.
type ExternDedup struct{}

type _CallSite struct {
	args   []*ir.Value
	result *ir.Value
}

func (self _CallSite) refers(v *ir.Value) bool {
	return self.result == v || contains(self.args, v)
}

func (ExternDedup) CanRun(ctx *Context) bool {
	for i := 0; i < ctx.Len(); i++ {
		if p := ctx.Instr(i); p.Op == ir.OP_extern && p.Fn.Result && ctx.Classification().IsPure(p.Fn) {
			return true
		}
	}
	return false
}

func (self ExternDedup) Run(ctx *Context) bool {
	n := 0
	for self.once(ctx) {
		n++
	}
	ctx.Count("ExternsDeduped", n)
	return n != 0
}

func (self ExternDedup) once(ctx *Context) bool {
	for _, bb := range ctx.CFG().Blocks {
		if self.block(ctx, bb) {
			return true
		}
	}
	return false
}

func callKey(fn *ir.Extern, args []*ir.Value) string {
	buf := make([]string, 0, len(args)+1)
	buf = append(buf, fn.Name)
	for _, v := range args {
		buf = append(buf, fmt.Sprintf("%p", v))
	}
	return strings.Join(buf, "|")
}

func (self ExternDedup) block(ctx *Context, bb *BasicBlock) bool {
	sites := make(map[string]_CallSite)
	class := ctx.Classification()

	/* forget every call that references v */
	kill := func(v *ir.Value) {
		for k, s := range sites {
			if s.refers(v) {
				delete(sites, k)
			}
		}
	}

	/* scan the block */
	for i := bb.Start; i < bb.End; i++ {
		p := ctx.Instr(i)
		_, def := ctx.Refs(i)

		/* side-effecting calls invalidate everything */
		if p.Op == ir.OP_extern && !class.IsPure(p.Fn) {
			sites = make(map[string]_CallSite)
			continue
		}

		/* writes invalidate the calls reading or producing the value */
		for _, v := range def {
			kill(v)
		}

		/* only clean pure calls with a result */
		if p.Op != ir.OP_extern || !p.Fn.Result {
			continue
		}
		args, ok := ctx.ExternArgs(i)
		if !ok {
			continue
		}

		/* inputs and the result slot */
		n := len(args) - 1
		in := make([]*ir.Value, n)
		for k := 0; k < n; k++ {
			in[k] = ctx.Instr(args[k]).V
		}
		r := ctx.Instr(args[n]).V
		key := callKey(p.Fn, in)

		/* seen before with the same argument identities */
		if s, ok := sites[key]; ok && self.replace(ctx, args, i, s.result, r) {
			return true
		}

		/* a call overwriting one of its own inputs cannot be reused */
		if !contains(in, r) {
			sites[key] = _CallSite{args: in, result: r}
		}
	}
	return false
}

func (self ExternDedup) replace(ctx *Context, args []int, i int, src *ir.Value, dst *ir.Value) bool {
	if src.Type != dst.Type {
		return false
	}

	/* the interior of the call must not be reachable from elsewhere */
	for _, j := range args[1:] {
		if ctx.IsJumpTarget(j) {
			return false
		}
	}
	if ctx.IsJumpTarget(i) {
		return false
	}

	/* Copy(r1, r2) takes the place of the first push */
	start := args[0]
	ctx.ReplaceInstruction(start, ir.Copy(src, dst))
	for k := start + 1; k <= i; k++ {
		ctx.RemoveInstruction(start + 1)
	}
	return true
}
