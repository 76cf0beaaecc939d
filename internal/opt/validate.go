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
	"fmt"

	"github.com/cloudwego/asmopt/internal/utils"
	"github.com/cloudwego/asmopt/ir"
)

// Validate checks the input contract of the optimizer: every opcode is
// known, every operand is present, and every jump target, export entry and
// address constant resolves to an instruction of the unit.
func Validate(u *ir.Unit) error {
	idx := make(map[*ir.Instr]int, len(u.Code))
	for i, p := range u.Code {
		if p == nil {
			return utils.EMalformed(u.Name, i, "nil instruction")
		} else if _, ok := idx[p]; ok {
			return utils.EMalformed(u.Name, i, "instruction appears more than once in the stream")
		}
		idx[p] = i
	}

	/* check every instruction */
	for i, p := range u.Code {
		if err := checkInstr(p, idx); err != "" {
			return utils.EMalformed(u.Name, i, err)
		}
	}

	/* check the export table */
	for _, e := range u.Exports {
		if e == nil || e.Entry == nil {
			return utils.EMalformed(u.Name, -1, "export without an entry")
		} else if _, ok := idx[e.Entry]; !ok {
			return utils.EMalformedf(u.Name, -1, "entry of export %s is outside the unit", e.Name)
		}
	}

	/* check the declared address constants */
	for _, v := range u.Values {
		if v == nil {
			return utils.EMalformed(u.Name, -1, "nil value declaration")
		} else if p, ok := v.Address(); ok {
			if _, ok = idx[p]; !ok {
				return utils.EMalformedf(u.Name, -1, "address constant %s points outside the unit", v)
			}
		}
	}
	return nil
}

func checkInstr(p *ir.Instr, idx map[*ir.Instr]int) string {
	switch p.Op {
	case ir.OP_nop, ir.OP_pop:
		return ""
	case ir.OP_push, ir.OP_jump_indirect, ir.OP_return:
		return checkValue(p.V, idx)
	case ir.OP_copy:
		if s := checkValue(p.V, idx); s != "" {
			return s
		} else if s = checkValue(p.D, idx); s != "" {
			return s
		} else if p.D.IsConst() {
			return fmt.Sprintf("copy into constant %s", p.D)
		} else {
			return ""
		}
	case ir.OP_jump:
		return checkTarget(p.Br, idx)
	case ir.OP_jump_if_false:
		if s := checkValue(p.V, idx); s != "" {
			return s
		} else {
			return checkTarget(p.Br, idx)
		}
	case ir.OP_extern:
		if p.Fn == nil {
			return "extern without a signature"
		} else if p.Fn.Params < 0 {
			return fmt.Sprintf("extern %s has a negative parameter count", p.Fn)
		} else {
			return ""
		}
	default:
		return fmt.Sprintf("invalid opcode 0x%02x", uint8(p.Op))
	}
}

func checkValue(v *ir.Value, idx map[*ir.Instr]int) string {
	if v == nil {
		return "missing value operand"
	} else if p, ok := v.Address(); ok {
		return checkTarget(p, idx)
	} else {
		return ""
	}
}

func checkTarget(p *ir.Instr, idx map[*ir.Instr]int) string {
	if p == nil {
		return "missing jump target"
	} else if _, ok := idx[p]; !ok {
		return "jump target is outside the unit"
	} else {
		return ""
	}
}

// verify checks the invariants every pass must preserve.
func verify(ctx *Context) string {
	u := &ir.Unit{
		Name:    ctx.unit.Name,
		Code:    ctx.code,
		Exports: ctx.unit.Exports,
		Values:  ctx.unit.Values,
	}
	if err := Validate(u); err != nil {
		return err.Error()
	} else {
		return ""
	}
}
