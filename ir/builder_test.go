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

package ir

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var fnAdd = &Extern{Name: "SystemInt32.__op_Addition__SystemInt32_SystemInt32__SystemInt32", Params: 2, Result: true}

func sampleUnit() *Unit {
	pb := CreateBuilder("sample")
	n := pb.Param("n", "SystemInt32")
	c := pb.Param("c", "SystemBoolean")
	s := pb.Local("s", "SystemInt32")
	k := pb.Addr("k", "tail")
	pb.Export("_start")
	pb.COPY(pb.Const("SystemInt32", int32(0)), s)
	pb.JIF("tail", c)
	pb.CALL(fnAdd, s, n, s)
	pb.JMP("done")
	pb.Label("tail")
	pb.PUSH(k)
	pb.POP()
	pb.Label("done")
	pb.RET(s)
	return pb.Build()
}

func TestBuilder_Labels(t *testing.T) {
	u := sampleUnit()
	require.Len(t, u.Code, 10)
	require.Same(t, u.Code[7], u.Code[1].Br)
	require.Same(t, u.Code[9], u.Code[6].Br)
	require.Same(t, u.Code[0], u.Export("_start").Entry)
	p, ok := u.Code[7].V.Address()
	require.True(t, ok)
	require.Same(t, u.Code[7], p)
	require.Nil(t, u.Export("_other"))

	/* ids are sequential */
	for i, v := range u.Values {
		require.Equal(t, i+1, v.Id)
	}
}

func TestBuilder_TrailingLabel(t *testing.T) {
	pb := CreateBuilder("trailing")
	pb.JMP("end")
	pb.Label("end")
	u := pb.Build()
	require.Len(t, u.Code, 2)
	require.Equal(t, OP_nop, u.Code[1].Op)
	require.Same(t, u.Code[1], u.Code[0].Br)
}

func TestBuilder_Errors(t *testing.T) {
	require.Panics(t, func() {
		pb := CreateBuilder("dup")
		pb.Label("x")
		pb.NOP()
		pb.Label("x")
	})
	require.Panics(t, func() {
		pb := CreateBuilder("unresolved")
		pb.JMP("nowhere")
		pb.Build()
	})
	require.Panics(t, func() {
		pb := CreateBuilder("arity")
		pb.CALL(fnAdd, pb.Const("SystemInt32", int32(1)))
	})
}

func TestUnit_String(t *testing.T) {
	u := sampleUnit()
	text := u.String()
	require.True(t, strings.HasPrefix(text, ".unit sample\n.data\n"))
	require.Contains(t, text, "    .export _start")
	require.Contains(t, text, "param SystemInt32 n")
	require.Contains(t, text, "const SystemUInt32 k = &L_004c")
	require.Contains(t, text, "jump_if_false L_004c, c")
	require.Contains(t, text, "00004c | L_004c:")
	require.Contains(t, text, "extern        \""+fnAdd.Name+"\"")
}

func TestInstr_Sizes(t *testing.T) {
	u := sampleUnit()
	addr := Layout(u.Code)
	require.Equal(t, uint32(0), addr[u.Code[0]])
	require.Equal(t, uint32(20), addr[u.Code[1]])
	require.Equal(t, uint32(36), addr[u.Code[2]])
	require.Equal(t, uint32(76), addr[u.Code[7]])
	require.Equal(t, uint32(88), addr[u.Code[9]])
}

func TestValue_Constants(t *testing.T) {
	pb := CreateBuilder("values")
	require.True(t, pb.Const("SystemInt32", int32(0)).IsZero())
	require.False(t, pb.Const("SystemSingle", float32(math.Copysign(0, -1))).IsZero())
	require.True(t, pb.Const("SystemInt64", int64(1)).IsOne())
	require.True(t, pb.Const("SystemDouble", 1.0).IsOne())
	require.True(t, pb.Const("SystemInt32", int32(5)).IsInteger())
	require.True(t, pb.Const("SystemSingle", float32(5)).IsFloat())
	require.False(t, pb.Local("x", "SystemInt32").IsZero())
	require.False(t, pb.Param("p", "SystemInt32").IsInteger())

	/* only booleans have a truth value */
	v, ok := pb.Const("SystemBoolean", true).Bool()
	require.True(t, ok)
	require.True(t, v)
	_, ok = pb.Const("SystemInt32", int32(1)).Bool()
	require.False(t, ok)

	/* storage identity */
	require.True(t, pb.Field("f", "SystemInt32", true).IsExportedField())
	require.False(t, pb.Field("g", "SystemInt32", false).IsExportedField())
	require.True(t, pb.Param("q", "SystemInt32").IsStable())
	require.False(t, pb.Temp("SystemInt32").IsStable())
}
