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
	"github.com/cloudwego/asmopt/ir"
)

// CopyProp forward-substitutes the source of a copy for its target, up to
// the next write of either value or the end of the block.
type CopyProp struct{}

func (CopyProp) CanRun(ctx *Context) bool {
	for i := 0; i < ctx.Len(); i++ {
		if ctx.Instr(i).Op == ir.OP_copy {
			return true
		}
	}
	return false
}

func (self CopyProp) Run(ctx *Context) bool {
	n := 0
	for i := 0; i < ctx.Len(); i++ {
		if p := ctx.Instr(i); p.Op == ir.OP_copy && p.V != p.D && p.V.Type == p.D.Type {
			n += self.propagate(ctx, i)
		}
	}
	ctx.Count("CopiesPropagated", n)
	return n != 0
}

func (self CopyProp) propagate(ctx *Context, i int) int {
	n := 0
	p := ctx.Instr(i)
	s, t := p.V, p.D
	end := ctx.CFG().BlockOf(i).End

	/* substitute t with s when t is read */
	subst := func(k int, v *ir.Value) *ir.Value {
		if k == 0 && v == t {
			return s
		} else {
			return v
		}
	}

	/* walk the live window of the copy */
	for j := i + 1; j < end; j++ {
		q := ctx.Instr(j)

		/* a side-effecting call may change a field behind our back */
		if (s.Kind == ir.K_field || t.Kind == ir.K_field) && q.Op == ir.OP_extern && !ctx.Classification().IsPure(q.Fn) {
			break
		}

		/* rewrite the reads with a known position */
		if self.isRead(ctx, j) {
			n += ctx.RewriteOperands(j, subst)
		}

		/* stop at the first write of either side */
		if _, def := ctx.Refs(j); contains(def, s) || contains(def, t) {
			break
		}
	}
	return n
}

func (self CopyProp) isRead(ctx *Context, j int) bool {
	switch ctx.Instr(j).Op {
	case ir.OP_push:
		role := ctx.PushRole(j)
		return role == RoleRead || role == RoleDiscard
	case ir.OP_copy, ir.OP_jump_if_false, ir.OP_jump_indirect, ir.OP_return:
		return true
	default:
		return false
	}
}
