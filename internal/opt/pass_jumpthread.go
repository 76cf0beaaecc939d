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
	"github.com/cloudwego/asmopt/internal/opts"
	"github.com/cloudwego/asmopt/ir"
	"github.com/oleiade/lane"
)

// JumpThread collapses chains of unconditional jumps, so that every jump
// lands directly on the final destination of the chain.
type JumpThread struct{}

func (JumpThread) CanRun(ctx *Context) bool {
	for i := 0; i < ctx.Len(); i++ {
		if p := ctx.Instr(i); p.IsBranch() && p.Br.Op == ir.OP_jump {
			return true
		}
	}
	return false
}

func (self JumpThread) Run(ctx *Context) bool {
	n := 0
	for i := 0; i < ctx.Len(); i++ {
		if p := ctx.Instr(i); p.IsBranch() {
			if to := self.resolve(p, ctx.Options.MaxJumpChain); to != p.Br {
				n++
				ctx.Redirect(i, to)
			}
		}
	}
	ctx.Count("JumpsThreaded", n)
	return n != 0
}

// resolve follows the jump chain starting at the target of p for at most
// depth hops. Chains that loop back on themselves are left alone.
func (self JumpThread) resolve(p *ir.Instr, depth int) *ir.Instr {
	st := lane.NewStack()
	seen := map[*ir.Instr]bool{p: true}

	/* zero means the default depth */
	if depth <= 0 {
		depth = opts.MaxJumpChain
	}

	/* follow the chain */
	for st.Push(p.Br); ; {
		q := st.Head().(*ir.Instr)
		if seen[q] {
			return p.Br
		}
		if seen[q] = true; q.Op != ir.OP_jump || st.Size() > depth {
			return q
		}
		st.Push(q.Br)
	}
}
