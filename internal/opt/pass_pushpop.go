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

// PushPopElim removes a push that is immediately discarded by a pop.
type PushPopElim struct{}

func (PushPopElim) CanRun(ctx *Context) bool {
	return ctx.Len() >= 2
}

func (self PushPopElim) Run(ctx *Context) bool {
	n := 0
	for i := 0; i+1 < ctx.Len(); {
		p := ctx.Instr(i)
		q := ctx.Instr(i + 1)

		/* the pop must not be reachable from anywhere else */
		if p.Op != ir.OP_push || q.Op != ir.OP_pop || ctx.IsJumpTarget(i+1) {
			i++
			continue
		}

		/* remove the pair, the push may carry references */
		n++
		ctx.RemoveInstruction(i + 1)
		ctx.Erase(i)

		/* nested pairs become adjacent */
		if i > 0 {
			i--
		}
	}
	ctx.Count("PushPopsRemoved", n)
	return n != 0
}
