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

// Peephole folds constant branches and removes no-ops: NOPs and jumps to
// the very next instruction.
type Peephole struct{}

func (Peephole) CanRun(ctx *Context) bool {
	return ctx.Len() != 0
}

func (self Peephole) Run(ctx *Context) bool {
	changed := false
	for i := 0; i < ctx.Len(); {
		if self.rewrite(ctx, i) {
			changed = true
		} else {
			i++
		}
	}
	return changed
}

func (self Peephole) rewrite(ctx *Context, i int) bool {
	switch p := ctx.Instr(i); p.Op {
	case ir.OP_nop:
		return self.erase(ctx, i, "NopsRemoved")
	case ir.OP_jump:
		return i+1 < ctx.Len() && p.Br == ctx.Instr(i+1) && self.erase(ctx, i, "FallthroughJumpsRemoved")
	case ir.OP_jump_if_false:
		return self.fold(ctx, i)
	default:
		return false
	}
}

func (self Peephole) erase(ctx *Context, i int, counter string) bool {
	if !ctx.Erase(i) {
		return false
	}
	ctx.Count(counter, 1)
	return true
}

func (self Peephole) fold(ctx *Context, i int) bool {
	p := ctx.Instr(i)
	cond, ok := p.V.Bool()

	/* only constant conditions */
	if !ok {
		return false
	}

	/* a true condition never jumps */
	if cond {
		return self.erase(ctx, i, "BranchesFolded")
	}

	/* a false condition always jumps */
	ctx.ReplaceInstruction(i, ir.Jump(p.Br))
	ctx.Count("BranchesFolded", 1)
	return true
}
