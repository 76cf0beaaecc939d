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

// CopyElim removes redundant copies: self-copies, dead stores, copies into
// values that are never read, and copy chains through a single-use value.
type CopyElim struct{}

func (CopyElim) CanRun(ctx *Context) bool {
	for i := 0; i < ctx.Len(); i++ {
		if ctx.Instr(i).Op == ir.OP_copy {
			return true
		}
	}
	return false
}

func (self CopyElim) Run(ctx *Context) bool {
	changed := false
	for i := 0; i < ctx.Len(); {
		if ctx.Instr(i).Op == ir.OP_copy && self.rewrite(ctx, i) {
			changed = true
		} else {
			i++
		}
	}
	return changed
}

func (self CopyElim) rewrite(ctx *Context, i int) bool {
	p := ctx.Instr(i)

	/* Rule 1: self copies */
	if p.V == p.D {
		return self.erase(ctx, i, "SelfCopiesRemoved")
	}

	/* Rule 2: the target is overwritten before being read */
	if self.isDeadStore(ctx, i) {
		return self.erase(ctx, i, "DeadStoresRemoved")
	}

	/* Rule 3: the target is never read anywhere */
	if !p.D.IsStable() && len(ctx.GetValueUses(p.D)) == 0 {
		return self.erase(ctx, i, "UnusedCopiesRemoved")
	}

	/* Rule 4: fuse with the next copy */
	return self.fuse(ctx, i)
}

func (self CopyElim) erase(ctx *Context, i int, counter string) bool {
	if !ctx.Erase(i) {
		return false
	}
	ctx.Count(counter, 1)
	return true
}

func (self CopyElim) isDeadStore(ctx *Context, i int) bool {
	t := ctx.Instr(i).D
	bb := ctx.CFG().BlockOf(i)

	/* exported fields are always observable */
	if t.IsExportedField() {
		return false
	}

	/* scan forward until the end of the block */
	for j := i + 1; j < bb.End; j++ {
		use, def := ctx.Refs(j)
		q := ctx.Instr(j)

		/* read before being overwritten */
		if contains(use, t) {
			return false
		}

		/* overwritten */
		if contains(def, t) {
			return true
		}

		/* stable storage may be observed by a side-effecting call */
		if t.IsStable() && q.Op == ir.OP_extern && !ctx.Classification().IsPure(q.Fn) {
			return false
		}
	}
	return false
}

func (self CopyElim) fuse(ctx *Context, i int) bool {
	j := i + 1
	p := ctx.Instr(i)

	/* must be followed by a copy in the same block */
	if j >= ctx.Len() || ctx.Instr(j).Op != ir.OP_copy || ctx.IsJumpTarget(j) {
		return false
	}

	/* Copy(a, b); Copy(b, c) where b is read only there */
	q := ctx.Instr(j)
	a, b, c := p.V, p.D, q.D
	if q.V != b || b.IsStable() || a.Type != c.Type {
		return false
	}
	if use := ctx.GetValueUses(b); len(use) != 1 || use[0] != j {
		return false
	}

	/* Copy(a, c) takes the place of the first copy */
	ctx.ReplaceInstruction(i, ir.Copy(a, c))
	ctx.RemoveInstruction(j)
	ctx.Count("CopiesFused", 1)
	return true
}
