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

func TestJumpThread_Chain(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	pb.JIF("L1", c)
	pb.RET(a)
	pb.Label("L1")
	pb.JMP("L2")
	pb.Label("L2")
	pb.JMP("L3")
	pb.Label("L3")
	pb.RET(b)
	ctx := newTestContext(pb.Build())

	require.True(t, runPass(t, ctx, "JumpThread"))
	require.Same(t, ctx.Instr(4), ctx.Instr(0).Br)
	require.Same(t, ctx.Instr(4), ctx.Instr(2).Br)
	require.Same(t, ctx.Instr(4), ctx.Instr(3).Br)
	require.Equal(t, 2, ctx.Metrics.Get("JumpThread", "JumpsThreaded"))
}

func TestJumpThread_DepthCap(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	pb.JIF("L1", c)
	pb.RET(a)
	pb.Label("L1")
	pb.JMP("L2")
	pb.Label("L2")
	pb.JMP("L3")
	pb.Label("L3")
	pb.JMP("L4")
	pb.Label("L4")
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	ctx.Options.MaxJumpChain = 1

	/* a single round follows one hop only */
	ok, err := RunPass(ctx, passByName("JumpThread"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, ctx.Instr(3), ctx.Instr(0).Br)
}

func TestJumpThread_Cycle(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	pb.JIF("L1", c)
	pb.RET(a)
	pb.Label("L1")
	pb.JMP("L2")
	pb.Label("L2")
	pb.JMP("L1")
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "JumpThread"))
	require.Same(t, ctx.Instr(2), ctx.Instr(0).Br)
}

func TestJumpThread_FoldedBranch(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	pb.JIF("L1", pb.Const("SystemBoolean", false))
	pb.Label("L1")
	pb.JMP("L2")
	pb.Export("_other")
	pb.RET(a)
	pb.Label("L2")
	pb.RET(b)
	ctx := newTestContext(pb.Build())
	runAll(t, ctx)

	/* folding then threading leaves a single jump */
	require.Equal(t, []ir.OpCode{ir.OP_jump, ir.OP_return, ir.OP_return}, ops(ctx))
	require.Same(t, ctx.Instr(2), ctx.Instr(0).Br)
	require.Same(t, b, ctx.Instr(2).V)
	require.Same(t, ctx.Instr(1), ctx.Unit().Exports[0].Entry)
}
