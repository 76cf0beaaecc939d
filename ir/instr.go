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
	"fmt"
)

type OpCode uint8

const (
	OP_nop           OpCode = iota // no operation
	OP_push                        // V -> stack
	OP_pop                         // stack -> (discarded)
	OP_copy                        // V -> D
	OP_jump                        // Br.PC -> PC
	OP_jump_if_false               // if !V { Br.PC -> PC }
	OP_jump_indirect               // *V -> PC
	OP_extern                      // Fn(stack[-n:]...)
	OP_return                      // V -> result, halt
)

var _OpNames = [...]string{
	OP_nop:           "nop",
	OP_push:          "push",
	OP_pop:           "pop",
	OP_copy:          "copy",
	OP_jump:          "jump",
	OP_jump_if_false: "jump_if_false",
	OP_jump_indirect: "jump_indirect",
	OP_extern:        "extern",
	OP_return:        "return",
}

var _OpSizes = [...]uint32{
	OP_nop:           4,
	OP_push:          8,
	OP_pop:           4,
	OP_copy:          20,
	OP_jump:          8,
	OP_jump_if_false: 16,
	OP_jump_indirect: 8,
	OP_extern:        8,
	OP_return:        16,
}

func (self OpCode) String() string {
	if int(self) < len(_OpNames) {
		return _OpNames[self]
	} else {
		return fmt.Sprintf("OpCode(%d)", self)
	}
}

// Extern is the signature of an external function. A call consumes Params
// input slots from the stack, plus one more slot receiving the result when
// Result is set. The result slot is always pushed last.
type Extern struct {
	Name   string
	Params int
	Result bool
}

// Arity is the number of stack slots consumed by a call.
func (self *Extern) Arity() int {
	if self.Result {
		return self.Params + 1
	} else {
		return self.Params
	}
}

func (self *Extern) String() string {
	return fmt.Sprintf("%q", self.Name)
}

type Instr struct {
	Op OpCode
	V  *Value
	D  *Value
	Br *Instr
	Fn *Extern
}

func Nop() *Instr                               { return &Instr{Op: OP_nop} }
func Push(v *Value) *Instr                      { return &Instr{Op: OP_push, V: v} }
func Pop() *Instr                               { return &Instr{Op: OP_pop} }
func Copy(src *Value, dst *Value) *Instr        { return &Instr{Op: OP_copy, V: src, D: dst} }
func Jump(to *Instr) *Instr                     { return &Instr{Op: OP_jump, Br: to} }
func JumpIfFalse(to *Instr, cond *Value) *Instr { return &Instr{Op: OP_jump_if_false, V: cond, Br: to} }
func JumpIndirect(v *Value) *Instr              { return &Instr{Op: OP_jump_indirect, V: v} }
func Call(fn *Extern) *Instr                    { return &Instr{Op: OP_extern, Fn: fn} }
func Return(v *Value) *Instr                    { return &Instr{Op: OP_return, V: v} }

// Size is the encoded size of the instruction in bytes.
func (self *Instr) Size() uint32 {
	if int(self.Op) < len(_OpSizes) {
		return _OpSizes[self.Op]
	} else {
		panic(fmt.Sprintf("invalid OpCode: 0x%02x", self.Op))
	}
}

// IsBranch reports whether the instruction has a direct jump target.
func (self *Instr) IsBranch() bool {
	return self.Op == OP_jump || self.Op == OP_jump_if_false
}

// IsTerminator reports whether control never falls through the instruction.
func (self *Instr) IsTerminator() bool {
	return self.Op == OP_jump || self.Op == OP_jump_indirect || self.Op == OP_return
}

// EndsBlock reports whether the instruction closes a basic block.
func (self *Instr) EndsBlock() bool {
	return self.IsBranch() || self.IsTerminator()
}

// Operands returns pointers to every value operand slot of the instruction,
// so that rewrites can be applied in place.
func (self *Instr) Operands() []**Value {
	switch self.Op {
	case OP_push, OP_jump_if_false, OP_jump_indirect, OP_return:
		return []**Value{&self.V}
	case OP_copy:
		return []**Value{&self.V, &self.D}
	case OP_nop, OP_pop, OP_jump, OP_extern:
		return nil
	default:
		panic(fmt.Sprintf("invalid OpCode: 0x%02x", self.Op))
	}
}

// Clone returns a shallow copy of the instruction with a new identity.
func (self *Instr) Clone() *Instr {
	ret := new(Instr)
	*ret = *self
	return ret
}

func (self *Instr) String() string {
	return self.Disassemble(nil)
}

// Disassemble formats the instruction, naming jump targets with refs.
func (self *Instr) Disassemble(refs map[*Instr]string) string {
	switch self.Op {
	case OP_nop:
		return "nop"
	case OP_push:
		return fmt.Sprintf("push          %s", self.V)
	case OP_pop:
		return "pop"
	case OP_copy:
		return fmt.Sprintf("copy          %s, %s", self.V, self.D)
	case OP_jump:
		return fmt.Sprintf("jump          %s", label(refs, self.Br))
	case OP_jump_if_false:
		return fmt.Sprintf("jump_if_false %s, %s", label(refs, self.Br), self.V)
	case OP_jump_indirect:
		return fmt.Sprintf("jump_indirect %s", self.V)
	case OP_extern:
		return fmt.Sprintf("extern        %s", self.Fn)
	case OP_return:
		return fmt.Sprintf("return        %s", self.V)
	default:
		panic(fmt.Sprintf("invalid OpCode: 0x%02x", self.Op))
	}
}

func label(refs map[*Instr]string, p *Instr) string {
	if s, ok := refs[p]; ok {
		return s
	} else {
		return fmt.Sprintf("*%p", p)
	}
}
