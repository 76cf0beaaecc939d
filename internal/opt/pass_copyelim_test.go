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

func TestCopyElim_SelfCopy(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	x := pb.Field("x", "SystemInt32", true)
	pb.COPY(a, x)
	pb.COPY(x, x)
	pb.CALL(fnLog, x)
	pb.RET(a)
	u := pb.Build()
	orig := append([]*ir.Instr(nil), u.Code...)
	ctx := newTestContext(u)

	/* only the self copy disappears */
	require.True(t, runPass(t, ctx, "CopyElim"))
	require.Equal(t, []*ir.Instr{orig[0], orig[2], orig[3], orig[4]}, ctx.Code())
	require.Equal(t, 1, ctx.Metrics.Get("CopyElim", "SelfCopiesRemoved"))
}

func TestCopyElim_DeadStore(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	v := pb.Local("t", "SystemInt32")
	pb.COPY(a, v)
	pb.COPY(b, v)
	pb.CALL(fnLog, v)
	pb.RET(a)
	u := pb.Build()
	second := u.Code[1]
	ctx := newTestContext(u)

	/* the first store is overwritten before any read */
	require.True(t, runPass(t, ctx, "CopyElim"))
	require.Equal(t, 4, ctx.Len())
	require.Same(t, second, ctx.Instr(0))
	require.Equal(t, 1, ctx.Metrics.Get("CopyElim", "DeadStoresRemoved"))
}

func TestCopyElim_ExportedFieldProtection(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	f := pb.Field("f", "SystemInt32", true)
	pb.COPY(a, f)
	pb.COPY(b, f)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "CopyElim"))
	require.Equal(t, 3, ctx.Len())

	/* not even the whole pipeline touches them */
	runAll(t, ctx)
	require.Equal(t, []ir.OpCode{ir.OP_copy, ir.OP_copy, ir.OP_return}, ops(ctx))
}

func TestCopyElim_FieldAcrossSideEffects(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	f := pb.Field("f", "SystemInt32", false)
	pb.COPY(a, f)
	pb.CALL(fnLog, a)
	pb.COPY(b, f)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "CopyElim"))

	/* without the call in between the store is dead */
	pb = ir.CreateBuilder("test")
	a = pb.Param("a", "SystemInt32")
	b = pb.Param("b", "SystemInt32")
	f = pb.Field("f", "SystemInt32", false)
	pb.COPY(a, f)
	pb.CALL(fnAddInt, a, b, a)
	pb.COPY(b, f)
	pb.RET(a)
	ctx = newTestContext(pb.Build())
	require.True(t, runPass(t, ctx, "CopyElim"))
	require.Equal(t, 6, ctx.Len())
}

func TestCopyElim_Fusion(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Temp("SystemInt32")
	c := pb.Local("c", "SystemInt32")
	pb.COPY(a, b)
	pb.COPY(b, c)
	pb.RET(c)
	ctx := newTestContext(pb.Build())
	require.True(t, runPass(t, ctx, "CopyElim"))
	require.Equal(t, []ir.OpCode{ir.OP_copy, ir.OP_return}, ops(ctx))
	require.Same(t, a, ctx.Instr(0).V)
	require.Same(t, c, ctx.Instr(0).D)
	require.Equal(t, 1, ctx.Metrics.Get("CopyElim", "CopiesFused"))
}

func TestCopyElim_FusionNeedsSingleUse(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Temp("SystemInt32")
	c := pb.Local("c", "SystemInt32")
	pb.COPY(a, b)
	pb.COPY(b, c)
	pb.CALL(fnLog, b)
	pb.RET(c)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "CopyElim"))
}

func TestCopyElim_UnusedCopy(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	v := pb.Temp("SystemInt32")
	pb.COPY(a, v)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.True(t, runPass(t, ctx, "CopyElim"))
	require.Equal(t, []ir.OpCode{ir.OP_return}, ops(ctx))
	require.Equal(t, 1, ctx.Metrics.Get("CopyElim", "UnusedCopiesRemoved"))
}
