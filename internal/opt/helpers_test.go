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

	"github.com/cloudwego/asmopt/internal/opts"
	"github.com/cloudwego/asmopt/ir"
	"github.com/stretchr/testify/require"
)

var (
	fnAddInt = &ir.Extern{Name: binop("SystemInt32", "op_Addition", "SystemInt32"), Params: 2, Result: true}
	fnSubInt = &ir.Extern{Name: binop("SystemInt32", "op_Subtraction", "SystemInt32"), Params: 2, Result: true}
	fnMulInt = &ir.Extern{Name: binop("SystemInt32", "op_Multiply", "SystemInt32"), Params: 2, Result: true}
	fnDivInt = &ir.Extern{Name: binop("SystemInt32", "op_Division", "SystemInt32"), Params: 2, Result: true}
	fnAddF32 = &ir.Extern{Name: binop("SystemSingle", "op_Addition", "SystemSingle"), Params: 2, Result: true}
	fnMulF32 = &ir.Extern{Name: binop("SystemSingle", "op_Multiply", "SystemSingle"), Params: 2, Result: true}
	fnLtInt  = &ir.Extern{Name: binop("SystemInt32", "op_LessThan", "SystemBoolean"), Params: 2, Result: true}
	fnLog    = &ir.Extern{Name: "UnityEngineDebug.__Log__SystemObject__SystemVoid", Params: 1}
	fnRand   = &ir.Extern{Name: "UnityEngineRandom.__get_value__SystemSingle", Result: true}
)

func passByName(name string) PassDescriptor {
	for _, p := range DefaultPasses() {
		if p.Name == name {
			return p
		}
	}
	panic("no such pass: " + name)
}

func newTestContext(u *ir.Unit) *Context {
	if err := Validate(u); err != nil {
		panic(err)
	}
	return NewContext(u, DefaultClassification(), opts.GetDefaultOptions())
}

// runPass runs a single pass until it stops changing the stream.
func runPass(t *testing.T, ctx *Context, name string) bool {
	changed := false
	for {
		ok, err := RunPass(ctx, passByName(name))
		require.NoError(t, err)
		if !ok {
			return changed
		}
		changed = true
	}
}

func runAll(t *testing.T, ctx *Context) Summary {
	sum, err := NewDriver(DefaultPasses()).Run(ctx)
	require.NoError(t, err)
	return sum
}

func ops(ctx *Context) []ir.OpCode {
	ret := make([]ir.OpCode, ctx.Len())
	for i := range ret {
		ret[i] = ctx.Instr(i).Op
	}
	return ret
}
