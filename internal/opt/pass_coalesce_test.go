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

func TestCoalesce_DisjointTemps(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	t1 := pb.Temp("SystemInt32")
	t2 := pb.Temp("SystemInt32")
	pb.COPY(a, t1)
	pb.CALL(fnLog, t1)
	pb.COPY(b, t2)
	pb.CALL(fnLog, t2)
	pb.RET(a)
	u := pb.Build()
	ctx := newTestContext(u)

	require.True(t, runPass(t, ctx, "Coalesce"))
	require.Same(t, t1, ctx.Instr(3).D)
	require.Same(t, t1, ctx.Instr(4).V)
	require.Equal(t, 1, ctx.Metrics.Get("Coalesce", "ValuesCoalesced"))

	/* the merged slot is gone from the declarations */
	ctx.Finish()
	require.Contains(t, u.Values, t1)
	require.NotContains(t, u.Values, t2)
}

func TestCoalesce_Overlap(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	t1 := pb.Temp("SystemInt32")
	t2 := pb.Temp("SystemInt32")
	pb.COPY(a, t1)
	pb.COPY(b, t2)
	pb.CALL(fnLog, t1)
	pb.CALL(fnLog, t2)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "Coalesce"))
}

func TestCoalesce_DifferentTypes(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemSingle")
	t1 := pb.Temp("SystemInt32")
	t2 := pb.Temp("SystemSingle")
	pb.COPY(a, t1)
	pb.CALL(fnLog, t1)
	pb.COPY(b, t2)
	pb.CALL(fnLog, t2)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "Coalesce"))
}

func TestCoalesce_LiveAtEntry(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	x := pb.Local("x", "SystemInt32")
	y := pb.Local("y", "SystemInt32")
	pb.CALL(fnLog, x)
	pb.COPY(a, y)
	pb.CALL(fnLog, y)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "Coalesce"))
}

func TestCoalesce_StableValues(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	b := pb.Param("b", "SystemInt32")
	f := pb.Field("f", "SystemInt32", false)
	g := pb.Field("g", "SystemInt32", false)
	pb.COPY(a, f)
	pb.CALL(fnLog, f)
	pb.COPY(b, g)
	pb.CALL(fnLog, g)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.False(t, runPass(t, ctx, "Coalesce"))
}

func TestCoalesce_Escaped(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	t1 := pb.Temp("SystemInt32")
	t2 := pb.Temp("SystemInt32")
	pb.COPY(a, t1)
	pb.PUSH(t1)
	pb.JIF("L", c)
	pb.Label("L")
	pb.EXTERN(fnLog)
	pb.COPY(a, t2)
	pb.CALL(fnLog, t2)
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	require.True(t, ctx.IsEscaped(t1))
	require.False(t, runPass(t, ctx, "Coalesce"))
}

func TestCoalesce_Loop(t *testing.T) {
	pb := ir.CreateBuilder("test")
	n := pb.Param("n", "SystemInt32")
	i := pb.Local("i", "SystemInt32")
	s := pb.Local("s", "SystemInt32")
	c := pb.Local("c", "SystemBoolean")
	pb.COPY(pb.Const("SystemInt32", int32(0)), i)
	pb.Label("loop")
	pb.CALL(fnLtInt, i, n, c)
	pb.JIF("done", c)
	pb.CALL(fnAddInt, i, pb.Const("SystemInt32", int32(1)), i)
	pb.JMP("loop")
	pb.Label("done")
	pb.COPY(n, s)
	pb.CALL(fnLog, s)
	pb.RET(n)
	ctx := newTestContext(pb.Build())

	/* s lives after the loop only, i is dead by then */
	require.True(t, runPass(t, ctx, "Coalesce"))
	require.Same(t, i, ctx.Instr(11).D)
	require.Same(t, i, ctx.Instr(12).V)
}
