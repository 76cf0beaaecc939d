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

	"github.com/cloudwego/asmopt/internal/utils"
	"github.com/cloudwego/asmopt/ir"
	"github.com/stretchr/testify/require"
)

type recordPass struct {
	name   string
	trace  *[]string
	change func(ctx *Context) bool
}

func (self recordPass) CanRun(ctx *Context) bool {
	return true
}

func (self recordPass) Run(ctx *Context) bool {
	*self.trace = append(*self.trace, self.name)
	if self.change == nil {
		return false
	} else {
		return self.change(ctx)
	}
}

func trivialUnit() *ir.Unit {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	pb.NOP()
	pb.RET(a)
	return pb.Build()
}

func TestDriver_Ordering(t *testing.T) {
	var trace []string
	drv := NewDriver([]PassDescriptor{
		{Name: "b", Priority: 10, Pass: recordPass{name: "b", trace: &trace}},
		{Name: "a", Priority: 0, Pass: recordPass{name: "a", trace: &trace}},
		{Name: "c", Priority: 10, Pass: recordPass{name: "c", trace: &trace}},
	})
	sum, err := drv.Run(newTestContext(trivialUnit()))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, trace)
	require.Equal(t, Summary{Rounds: 1}, sum)
}

func TestDriver_DefaultOrder(t *testing.T) {
	var names []string
	for _, p := range NewDriver(DefaultPasses()).Passes() {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{
		"PushPopElim",
		"CopyElim",
		"Peephole",
		"StrengthReduce",
		"ExternDedup",
		"CopyProp",
		"JumpThread",
		"DeadCode",
		"Coalesce",
	}, names)
}

func TestDriver_DisabledPass(t *testing.T) {
	ctx := newTestContext(trivialUnit())
	ctx.Options.Disable("Peephole")
	sum := runAll(t, ctx)
	require.False(t, sum.Changed)
	require.Equal(t, []ir.OpCode{ir.OP_nop, ir.OP_return}, ops(ctx))
}

func TestDriver_RoundCap(t *testing.T) {
	var trace []string
	always := func(ctx *Context) bool { return true }
	ctx := newTestContext(trivialUnit())
	ctx.Options.MaxRounds = 3
	sum, err := NewDriver([]PassDescriptor{
		{Name: "x", Pass: recordPass{name: "x", trace: &trace, change: always}},
	}).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Summary{Rounds: 3, Changed: true, CapReached: true}, sum)
	require.Len(t, trace, 3)
}

func TestDriver_Fixpoint(t *testing.T) {
	ctx := newTestContext(trivialUnit())
	sum := runAll(t, ctx)
	require.Equal(t, Summary{Rounds: 2, Changed: true}, sum)
	require.Equal(t, []ir.OpCode{ir.OP_return}, ops(ctx))
	require.Equal(t, 1, ctx.Metrics.Get("Peephole", "NopsRemoved"))
}

func TestDriver_PanickingPass(t *testing.T) {
	var trace []string
	ctx := newTestContext(trivialUnit())
	_, err := NewDriver([]PassDescriptor{
		{Name: "boom", Pass: recordPass{name: "boom", trace: &trace, change: func(ctx *Context) bool { panic("oops") }}},
	}).Run(ctx)
	require.Error(t, err)
	require.IsType(t, utils.InternalError{}, err)
	require.Equal(t, "boom", err.(utils.InternalError).Pass)
}

func TestDriver_BrokenStream(t *testing.T) {
	var trace []string
	ctx := newTestContext(trivialUnit())
	orphan := ir.Nop()
	breaker := func(ctx *Context) bool {
		ctx.ReplaceInstruction(0, ir.Jump(orphan))
		return true
	}
	_, err := RunPass(ctx, PassDescriptor{Name: "breaker", Pass: recordPass{name: "breaker", trace: &trace, change: breaker}})
	require.Error(t, err)
	require.IsType(t, utils.InternalError{}, err)
	require.Contains(t, err.Error(), "jump target is outside the unit")
}

func TestValidate_Malformed(t *testing.T) {
	a := &ir.Value{Id: 1, Name: "a", Kind: ir.K_param, Type: "SystemInt32"}
	k := &ir.Value{Id: 2, Kind: ir.K_const, Type: "SystemInt32", Const: int32(1)}
	ret := ir.Return(a)
	for _, tc := range []struct {
		name   string
		unit   *ir.Unit
		reason string
	}{
		{"nil", &ir.Unit{Code: []*ir.Instr{nil}}, "nil instruction"},
		{"dup", &ir.Unit{Code: []*ir.Instr{ret, ret}}, "more than once"},
		{"target", &ir.Unit{Code: []*ir.Instr{ir.Jump(ir.Nop())}}, "outside the unit"},
		{"const", &ir.Unit{Code: []*ir.Instr{ir.Copy(a, k)}}, "copy into constant"},
		{"operand", &ir.Unit{Code: []*ir.Instr{ir.Push(nil)}}, "missing value operand"},
		{"extern", &ir.Unit{Code: []*ir.Instr{ir.Call(nil)}}, "without a signature"},
		{"opcode", &ir.Unit{Code: []*ir.Instr{{Op: ir.OpCode(0xee)}}}, "invalid opcode"},
		{"export", &ir.Unit{Code: []*ir.Instr{ir.Return(a)}, Exports: []*ir.Export{{Name: "_x", Entry: ir.Nop()}}}, "outside the unit"},
		{"address", &ir.Unit{Code: []*ir.Instr{ir.Return(a)}, Values: []*ir.Value{{Kind: ir.K_const, Const: ir.Nop()}}}, "points outside"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.unit)
			require.Error(t, err)
			require.IsType(t, utils.MalformedError{}, err)
			require.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestValidate_WellFormed(t *testing.T) {
	require.NoError(t, Validate(deadBlockUnit()))
	require.NoError(t, Validate(&ir.Unit{Name: "empty"}))
}
