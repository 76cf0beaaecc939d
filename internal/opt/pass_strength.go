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

// StrengthReduce replaces pure arithmetic calls that are identities by a
// single copy of the surviving operand:
//
//	x + 0, 0 + x, x * 0, 0 * x    integers only
//	x - 0, x * 1, 1 * x, x / 1    integers and floats
//
// Division by anything but a constant one is never touched.
type StrengthReduce struct{}

func (StrengthReduce) CanRun(ctx *Context) bool {
	for i := 0; i < ctx.Len(); i++ {
		if p := ctx.Instr(i); p.Op == ir.OP_extern && ctx.Classification().Arith(p.Fn) != ArithNone {
			return true
		}
	}
	return false
}

func (self StrengthReduce) Run(ctx *Context) bool {
	n := 0
	for i := 0; i < ctx.Len(); i++ {
		if self.reduce(ctx, i) {
			n++
			i -= 3
		}
	}
	ctx.Count("IdentitiesReduced", n)
	return n != 0
}

func (self StrengthReduce) reduce(ctx *Context, i int) bool {
	p := ctx.Instr(i)
	if p.Op != ir.OP_extern {
		return false
	}

	/* must be a clean pure arithmetic call */
	op := ctx.Classification().Arith(p.Fn)
	if op == ArithNone || !ctx.Classification().IsPure(p.Fn) {
		return false
	}
	args, ok := ctx.ExternArgs(i)
	if !ok {
		return false
	}

	/* the interior of the call must not be reachable from elsewhere */
	if ctx.IsJumpTarget(args[1]) || ctx.IsJumpTarget(args[2]) || ctx.IsJumpTarget(i) {
		return false
	}

	/* find the surviving operand */
	x := ctx.Instr(args[0]).V
	y := ctx.Instr(args[1]).V
	r := ctx.Instr(args[2]).V
	v := survivor(op, x, y)

	/* the survivor must fit in the result slot */
	if v == nil || v.Type != r.Type {
		return false
	}

	/* Copy(v, r) takes the place of the first push */
	ctx.ReplaceInstruction(args[0], ir.Copy(v, r))
	ctx.RemoveInstruction(args[0] + 1)
	ctx.RemoveInstruction(args[0] + 1)
	ctx.RemoveInstruction(args[0] + 1)
	return true
}

func survivor(op ArithOp, x *ir.Value, y *ir.Value) *ir.Value {
	switch op {
	case ArithAdd:
		if isIntZero(y) {
			return x
		} else if isIntZero(x) {
			return y
		} else {
			return nil
		}
	case ArithSub:
		if y.IsZero() {
			return x
		} else {
			return nil
		}
	case ArithMul:
		if isIntZero(y) {
			return y
		} else if isIntZero(x) {
			return x
		} else if y.IsOne() {
			return x
		} else if x.IsOne() {
			return y
		} else {
			return nil
		}
	case ArithDiv:
		if y.IsOne() {
			return x
		} else {
			return nil
		}
	default:
		return nil
	}
}

func isIntZero(v *ir.Value) bool {
	return v.IsInteger() && v.IsZero()
}
