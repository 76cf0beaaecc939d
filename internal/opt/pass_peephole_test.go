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
	"testing"

	"github.com/cloudwego/asmopt/ir"
	"github.com/stretchr/testify/require"
)

func TestPeephole_FoldTrue(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	pb.JIF("L", pb.Const("SystemBoolean", true))
	pb.RET(a)
	pb.Label("L")
	pb.RET(b)
	ctx := newTestContext(pb.Build())
	require.True(t, runPass(t, ctx, "Peephole"))
	require.Equal(t, []ir.OpCode{ir.OP_return, ir.OP_return}, ops(ctx))
	require.Equal(t, 1, ctx.Metrics.Get("Peephole", "BranchesFolded"))
}

func TestPeephole_FoldFalse(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	pb.JIF("L", pb.Const("SystemBoolean", false))
	pb.RET(a)
	pb.Label("L")
	pb.RET(b)
	ctx := newTestContext(pb.Build())
	require.True(t, runPass(t, ctx, "Peephole"))
	require.Equal(t, []ir.OpCode{ir.OP_jump, ir.OP_return, ir.OP_return}, ops(ctx))
	require.Same(t, ctx.Instr(2), ctx.Instr(0).Br)
}

func TestPeephole_NonConstantBranch(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	pb.JIF("L", c)
	pb.RET(a)
	pb.Label("L")
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "Peephole"))
}

func TestPeephole_Nops(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	pb.NOP()
	pb.JIF("n", c)
	pb.RET(a)
	pb.Label("n")
	pb.NOP()
	pb.RET(b)
	ctx := newTestContext(pb.Build())

	/* the targeted nop hands its references to the next instruction */
	require.True(t, runPass(t, ctx, "Peephole"))
	require.Equal(t, []ir.OpCode{ir.OP_jump_if_false, ir.OP_return, ir.OP_return}, ops(ctx))
	require.Same(t, ctx.Instr(2), ctx.Instr(0).Br)
	require.Same(t, b, ctx.Instr(2).V)
	require.Equal(t, 2, ctx.Metrics.Get("Peephole", "NopsRemoved"))
}

func TestPeephole_TrailingTargetNop(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	pb.JIF("end", c)
	pb.RET(a)
	pb.Label("end")
	ctx := newTestContext(pb.Build())

	/* the landing site of the jump must survive */
	require.False(t, runPass(t, ctx, "Peephole"))
	require.Equal(t, []ir.OpCode{ir.OP_jump_if_false, ir.OP_return, ir.OP_nop}, ops(ctx))
}

func TestPeephole_FallthroughJump(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	pb.JMP("next")
	pb.Label("next")
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.True(t, runPass(t, ctx, "Peephole"))
	require.Equal(t, []ir.OpCode{ir.OP_return}, ops(ctx))
	require.Equal(t, 1, ctx.Metrics.Get("Peephole", "FallthroughJumpsRemoved"))
}
