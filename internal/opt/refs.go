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

	"github.com/cloudwego/asmopt/ir"
	"github.com/oleiade/lane"
)

// Role is the stack effect of a push.
type Role uint8

const (
	RoleNone    Role = iota // not a push
	RoleRead                // input of a clean extern call
	RoleWrite               // result slot of a clean extern call
	RoleDiscard             // consumed by a pop
	RoleUnknown             // cannot be pinned to a clean call in the same block
)

func (self Role) String() string {
	switch self {
	case RoleNone:
		return "none"
	case RoleRead:
		return "read"
	case RoleWrite:
		return "write"
	case RoleDiscard:
		return "discard"
	case RoleUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Role(%d)", self)
	}
}

type _InstrRefs struct {
	use []*ir.Value
	def []*ir.Value
}

type _RefTable struct {
	ins     []_InstrRefs
	roles   []Role
	calls   map[int][]int
	uses    map[*ir.Value][]int
	defs    map[*ir.Value][]int
	escaped map[*ir.Value]bool
	opaque  []int
}

func buildRefTable(p []*ir.Instr, cfg *CFG) *_RefTable {
	ret := &_RefTable{
		ins:     make([]_InstrRefs, len(p)),
		roles:   make([]Role, len(p)),
		calls:   make(map[int][]int),
		uses:    make(map[*ir.Value][]int),
		defs:    make(map[*ir.Value][]int),
		escaped: make(map[*ir.Value]bool),
	}

	/* simulate the stack of every block */
	for _, bb := range cfg.Blocks {
		ret.simulate(p, bb)
	}

	/* operand references */
	for i, v := range p {
		switch v.Op {
		case ir.OP_push:
			ret.push(i, v.V)
		case ir.OP_copy:
			ret.ins[i].use = append(ret.ins[i].use, v.V)
			ret.ins[i].def = append(ret.ins[i].def, v.D)
		case ir.OP_jump_if_false, ir.OP_jump_indirect, ir.OP_return:
			ret.ins[i].use = append(ret.ins[i].use, v.V)
		}
	}

	/* externs consuming stack slots from another block may touch any escaped value */
	for _, i := range ret.opaque {
		for _, v := range p {
			if v.Op == ir.OP_push && ret.escaped[v.V] && !contains(ret.ins[i].def, v.V) {
				ret.ins[i].use = append(ret.ins[i].use, v.V)
				ret.ins[i].def = append(ret.ins[i].def, v.V)
			}
		}
	}

	/* build the reverse tables */
	for i := range p {
		for _, v := range ret.ins[i].use {
			ret.uses[v] = append(ret.uses[v], i)
		}
		for _, v := range ret.ins[i].def {
			ret.defs[v] = append(ret.defs[v], i)
		}
	}
	return ret
}

func (self *_RefTable) push(i int, v *ir.Value) {
	switch self.roles[i] {
	case RoleRead, RoleDiscard:
		self.ins[i].use = append(self.ins[i].use, v)
	case RoleWrite:
		self.ins[i].def = append(self.ins[i].def, v)
	default:
		self.escaped[v] = true
		self.ins[i].use = append(self.ins[i].use, v)
		self.ins[i].def = append(self.ins[i].def, v)
	}
}

func (self *_RefTable) simulate(p []*ir.Instr, bb *BasicBlock) {
	st := lane.NewStack()

	/* mark every push as unknown until proven otherwise */
	for i := bb.Start; i < bb.End; i++ {
		if p[i].Op == ir.OP_push {
			self.roles[i] = RoleUnknown
		}
	}

	/* run the stack */
	for i := bb.Start; i < bb.End; i++ {
		switch v := p[i]; v.Op {
		case ir.OP_push:
			st.Push(i)
		case ir.OP_pop:
			if !st.Empty() {
				self.roles[st.Pop().(int)] = RoleDiscard
			}
		case ir.OP_extern:
			self.call(p, i, st)
		}
	}
}

func (self *_RefTable) call(p []*ir.Instr, i int, st *lane.Stack) {
	n := p[i].Fn.Arity()
	args := make([]int, n)

	/* pop the arguments, pushed last comes out first */
	for k := n - 1; k >= 0; k-- {
		if st.Empty() {
			self.opaque = append(self.opaque, i)
			self.dirty(p, i, args[k+1:])
			return
		}
		args[k] = st.Pop().(int)
	}

	/* a clean call has its arguments pushed right before it */
	for k, j := range args {
		if j != i-n+k {
			self.dirty(p, i, args)
			return
		}
	}

	/* assign the roles */
	for k, j := range args {
		if k == n-1 && p[i].Fn.Result {
			self.roles[j] = RoleWrite
		} else {
			self.roles[j] = RoleRead
		}
	}
	self.calls[i] = args
}

func (self *_RefTable) dirty(p []*ir.Instr, i int, args []int) {
	for _, j := range args {
		self.ins[i].use = append(self.ins[i].use, p[j].V)
		self.ins[i].def = append(self.ins[i].def, p[j].V)
	}
}

func contains(vs []*ir.Value, v *ir.Value) bool {
	for _, p := range vs {
		if p == v {
			return true
		}
	}
	return false
}
