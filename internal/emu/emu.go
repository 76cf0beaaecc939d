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

package emu

import (
	"errors"
	"fmt"

	"github.com/cloudwego/asmopt/ir"
)

const (
	_DefaultStepLimit = 1000000
)

var (
	ErrStepLimit      = errors.New("emu: step limit exceeded")
	ErrStackUnderflow = errors.New("emu: stack underflow")
)

// HostFunc implements an extern. It receives the input slots and returns
// the value stored into the result slot, if the extern has one.
type HostFunc func(args []interface{}) (interface{}, error)

// Call is one observable extern invocation.
type Call struct {
	Name string
	Args []interface{}
}

func (self Call) String() string {
	return fmt.Sprintf("%s%v", self.Name, self.Args)
}

type _Host struct {
	fn   HostFunc
	pure bool
}

// Emulator executes a unit instruction by instruction. The heap maps every
// value to its current content; constants start with their payload.
type Emulator struct {
	PC     int
	Ret    interface{}
	Trace  []Call
	Steps  int
	Limit  int
	code   []*ir.Instr
	heap   map[*ir.Value]interface{}
	stack  []*ir.Value
	index  map[*ir.Instr]int
	hosts  map[string]_Host
	halted bool
}

// LoadUnit prepares an emulator that starts at the entry of the named
// export, or at the first instruction if entry is empty.
func LoadUnit(u *ir.Unit, entry string) (*Emulator, error) {
	ret := &Emulator{
		Limit: _DefaultStepLimit,
		code:  u.Code,
		heap:  make(map[*ir.Value]interface{}),
		index: make(map[*ir.Instr]int, len(u.Code)),
		hosts: make(map[string]_Host),
	}

	/* instruction index */
	for i, p := range u.Code {
		ret.index[p] = i
	}

	/* constants hold their payload */
	for _, v := range u.Values {
		if v.IsConst() {
			ret.heap[v] = v.Const
		}
	}
	for _, p := range u.Code {
		for _, r := range p.Operands() {
			if (*r).IsConst() {
				ret.heap[*r] = (*r).Const
			}
		}
	}

	/* find the entry point */
	if entry == "" {
		return ret, nil
	} else if e := u.Export(entry); e == nil {
		return nil, fmt.Errorf("emu: unit %s has no export named %s", u.Name, entry)
	} else if pc, ok := ret.index[e.Entry]; !ok {
		return nil, fmt.Errorf("emu: export %s of unit %s is outside the stream", entry, u.Name)
	} else {
		ret.PC = pc
		return ret, nil
	}
}

// Register installs the implementation of an extern. Calls to impure
// externs are recorded in the trace.
func (self *Emulator) Register(name string, fn HostFunc, pure bool) *Emulator {
	self.hosts[name] = _Host{fn: fn, pure: pure}
	return self
}

// RegisterAll installs every host function of the table.
func (self *Emulator) RegisterAll(tab HostTable) *Emulator {
	for name, h := range tab {
		self.hosts[name] = h
	}
	return self
}

func (self *Emulator) Get(v *ir.Value) interface{}    { return self.heap[v] }
func (self *Emulator) Set(v *ir.Value, x interface{}) { self.heap[v] = x }

var dispatchTab = [...]func(e *Emulator, p *ir.Instr) error{
	ir.OP_nop:           (*Emulator).emu_OP_nop,
	ir.OP_push:          (*Emulator).emu_OP_push,
	ir.OP_pop:           (*Emulator).emu_OP_pop,
	ir.OP_copy:          (*Emulator).emu_OP_copy,
	ir.OP_jump:          (*Emulator).emu_OP_jump,
	ir.OP_jump_if_false: (*Emulator).emu_OP_jump_if_false,
	ir.OP_jump_indirect: (*Emulator).emu_OP_jump_indirect,
	ir.OP_extern:        (*Emulator).emu_OP_extern,
	ir.OP_return:        (*Emulator).emu_OP_return,
}

func (self *Emulator) emu_OP_nop(_ *ir.Instr) error {
	return nil
}

func (self *Emulator) emu_OP_push(p *ir.Instr) error {
	self.stack = append(self.stack, p.V)
	return nil
}

func (self *Emulator) emu_OP_pop(_ *ir.Instr) error {
	if len(self.stack) == 0 {
		return ErrStackUnderflow
	}
	self.stack = self.stack[:len(self.stack)-1]
	return nil
}

func (self *Emulator) emu_OP_copy(p *ir.Instr) error {
	self.heap[p.D] = self.heap[p.V]
	return nil
}

func (self *Emulator) emu_OP_jump(p *ir.Instr) error {
	return self.branch(p.Br)
}

func (self *Emulator) emu_OP_jump_if_false(p *ir.Instr) error {
	if v, ok := self.heap[p.V].(bool); !ok {
		return fmt.Errorf("emu: condition %s is not a boolean: %v", p.V, self.heap[p.V])
	} else if !v {
		return self.branch(p.Br)
	} else {
		return nil
	}
}

func (self *Emulator) emu_OP_jump_indirect(p *ir.Instr) error {
	if v, ok := self.heap[p.V].(*ir.Instr); !ok {
		return fmt.Errorf("emu: indirect target %s is not an address: %v", p.V, self.heap[p.V])
	} else if v == nil {
		self.halted = true
		return nil
	} else {
		return self.branch(v)
	}
}

func (self *Emulator) emu_OP_extern(p *ir.Instr) error {
	n := p.Fn.Arity()
	h, ok := self.hosts[p.Fn.Name]

	/* must be implemented */
	if !ok {
		return fmt.Errorf("emu: extern %s is not registered", p.Fn)
	}
	if len(self.stack) < n {
		return ErrStackUnderflow
	}

	/* collect the slots */
	slots := self.stack[len(self.stack)-n:]
	self.stack = self.stack[:len(self.stack)-n]
	args := make([]interface{}, p.Fn.Params)
	for i := range args {
		args[i] = self.heap[slots[i]]
	}

	/* record side-effecting calls */
	if !h.pure {
		self.Trace = append(self.Trace, Call{Name: p.Fn.Name, Args: args})
	}

	/* call the host */
	ret, err := h.fn(args)
	if err != nil {
		return fmt.Errorf("emu: extern %s: %w", p.Fn, err)
	}
	if p.Fn.Result {
		self.heap[slots[n-1]] = ret
	}
	return nil
}

func (self *Emulator) emu_OP_return(p *ir.Instr) error {
	self.Ret = self.heap[p.V]
	self.halted = true
	return nil
}

func (self *Emulator) branch(to *ir.Instr) error {
	if pc, ok := self.index[to]; !ok {
		return fmt.Errorf("emu: jump target *%p is outside the stream", to)
	} else {
		self.PC = pc - 1
		return nil
	}
}

// Run executes until the routine returns, an indirect jump to a null
// address halts it, or control falls off the end of the stream.
func (self *Emulator) Run() error {
	for !self.halted && self.PC < len(self.code) {
		p := self.code[self.PC]

		/* guard against runaway loops */
		if self.Steps++; self.Limit > 0 && self.Steps > self.Limit {
			return ErrStepLimit
		}

		/* check for illegal opcodes */
		if int(p.Op) >= len(dispatchTab) || dispatchTab[p.Op] == nil {
			return fmt.Errorf("emu: illegal OpCode: %#02x", p.Op)
		}

		/* execute and advance */
		if err := dispatchTab[p.Op](self, p); err != nil {
			return err
		}
		if !self.halted {
			self.PC++
		}
	}
	return nil
}
