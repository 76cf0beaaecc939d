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
	"github.com/cloudwego/asmopt/internal/opts"
	"github.com/cloudwego/asmopt/ir"
)

// Addresses is a snapshot of instruction addresses. It can only be obtained
// from Context.EnsureInstructionAddresses, which guarantees it is fresh.
type Addresses struct {
	pc  []uint32
	rev map[uint32]int
	end uint32
}

// Of returns the address of the i-th instruction.
func (self Addresses) Of(i int) uint32 {
	return self.pc[i]
}

// Index returns the instruction index at address pc.
func (self Addresses) Index(pc uint32) (int, bool) {
	i, ok := self.rev[pc]
	return i, ok
}

// End returns the address right after the last instruction.
func (self Addresses) End() uint32 {
	return self.end
}

// Context is the mutable working set of one compilation unit. Passes read
// and mutate the instruction stream exclusively through it.
type Context struct {
	Metrics *Metrics
	Options opts.Options

	pass      string
	unit      *ir.Unit
	code      []*ir.Instr
	class     *Classification
	addrs     Addresses
	addrDirty bool
	cfg       *CFG
	refs      *_RefTable
	targets   map[*ir.Instr]int
	merged    map[*ir.Value]bool
}

// NewContext takes ownership of u for the duration of one optimization run.
// The unit is not validated, see Validate.
func NewContext(u *ir.Unit, class *Classification, o opts.Options) *Context {
	if class == nil {
		class = DefaultClassification()
	}
	return &Context{
		Metrics:   NewMetrics(),
		Options:   o,
		unit:      u,
		code:      append([]*ir.Instr(nil), u.Code...),
		class:     class,
		addrDirty: true,
		merged:    make(map[*ir.Value]bool),
	}
}

func (self *Context) Unit() *ir.Unit                  { return self.unit }
func (self *Context) Len() int                        { return len(self.code) }
func (self *Context) Instr(i int) *ir.Instr           { return self.code[i] }
func (self *Context) Classification() *Classification { return self.class }

// Code returns a copy of the current instruction list.
func (self *Context) Code() []*ir.Instr {
	return append([]*ir.Instr(nil), self.code...)
}

// Count records a counter for the pass currently being run.
func (self *Context) Count(counter string, delta int) {
	if delta != 0 {
		self.Metrics.RecordPassMetric(self.pass, counter, delta)
	}
}

func (self *Context) invalidate(structural bool) {
	self.cfg = nil
	self.refs = nil
	self.targets = nil
	self.addrDirty = self.addrDirty || structural
}

// ReplaceInstruction replaces the i-th instruction in place. Every reference
// to the old instruction is transferred to the new one.
func (self *Context) ReplaceInstruction(i int, ins *ir.Instr) {
	old := self.code[i]
	self.code[i] = ins

	/* transfer the references */
	if old != ins {
		self.Retarget(old, ins)
	}

	/* addresses only move if the size changed */
	self.invalidate(old.Size() != ins.Size())
}

// RemoveInstruction deletes the i-th instruction. References to it are NOT
// retargeted, the caller must do that before removing a jump target.
func (self *Context) RemoveInstruction(i int) {
	copy(self.code[i:], self.code[i+1:])
	self.code[len(self.code)-1] = nil
	self.code = self.code[:len(self.code)-1]
	self.invalidate(true)
}

// InsertInstruction inserts ins before the i-th instruction.
func (self *Context) InsertInstruction(i int, ins *ir.Instr) {
	self.code = append(self.code, nil)
	copy(self.code[i+1:], self.code[i:])
	self.code[i] = ins
	self.invalidate(true)
}

// RewriteOperands rewrites the operands of the i-th instruction with fn,
// which receives the operand position (0 for V, 1 for D) and the current
// value. The instruction is replaced by a rewritten clone if anything
// changed. Returns the number of operands changed.
func (self *Context) RewriteOperands(i int, fn func(k int, v *ir.Value) *ir.Value) int {
	n := 0
	q := self.code[i].Clone()

	/* rewrite every operand slot */
	for k, r := range q.Operands() {
		if v := fn(k, *r); v != *r {
			*r = v
			n++
		}
	}

	/* replace the instruction only if something changed */
	if n != 0 {
		self.ReplaceInstruction(i, q)
	}
	return n
}

// Redirect changes the jump target of the i-th instruction.
func (self *Context) Redirect(i int, to *ir.Instr) {
	self.code[i].Br = to
	self.invalidate(false)
}

// Erase removes the i-th instruction, which must be a semantic no-op at its
// position. Its references move to the next instruction. A referenced last
// instruction degrades into a NOP instead. Returns false if nothing changed.
func (self *Context) Erase(i int) bool {
	p := self.code[i]

	/* not referenced, simply remove it */
	if !self.IsJumpTarget(i) {
		self.RemoveInstruction(i)
		return true
	}

	/* referenced last instruction, keep a NOP as the landing site */
	if i == len(self.code)-1 {
		if p.Op == ir.OP_nop {
			return false
		} else {
			self.ReplaceInstruction(i, ir.Nop())
			return true
		}
	}

	/* move the references, then remove */
	self.Retarget(p, self.code[i+1])
	self.RemoveInstruction(i)
	return true
}

// Retarget rewrites every jump, export entry and address constant that
// references from so that it references to.
func (self *Context) Retarget(from *ir.Instr, to *ir.Instr) {
	for _, p := range self.code {
		if p.IsBranch() && p.Br == from {
			p.Br = to
		}
	}
	for _, e := range self.unit.Exports {
		if e.Entry == from {
			e.Entry = to
		}
	}
	for _, v := range self.Values() {
		if p, ok := v.Address(); ok && p == from {
			v.Const = to
		}
	}
	self.invalidate(false)
}

// Values returns every value declared by the unit or referenced by code,
// in declaration order followed by first-reference order.
func (self *Context) Values() []*ir.Value {
	seen := make(map[*ir.Value]bool, len(self.unit.Values))
	ret := make([]*ir.Value, 0, len(self.unit.Values))

	/* add a value once */
	add := func(v *ir.Value) {
		if v != nil && !seen[v] {
			seen[v] = true
			ret = append(ret, v)
		}
	}

	/* declared values, then referenced ones */
	for _, v := range self.unit.Values {
		add(v)
	}
	for _, p := range self.code {
		for _, r := range p.Operands() {
			add(*r)
		}
	}
	return ret
}

// EnsureInstructionAddresses recomputes instruction addresses if the stream
// was mutated since the last call, and returns the fresh snapshot.
func (self *Context) EnsureInstructionAddresses() Addresses {
	if !self.addrDirty {
		return self.addrs
	}

	/* recompute every address */
	pc := uint32(0)
	ret := Addresses{
		pc:  make([]uint32, len(self.code)),
		rev: make(map[uint32]int, len(self.code)),
	}
	for i, p := range self.code {
		ret.pc[i] = pc
		ret.rev[pc] = i
		pc += p.Size()
	}

	/* clear the dirty flag */
	ret.end = pc
	self.addrs = ret
	self.addrDirty = false
	return ret
}

// CFG returns the control-flow graph of the current instruction list,
// building it if needed.
func (self *Context) CFG() *CFG {
	if self.cfg == nil {
		self.cfg = BuildCFG(self.code, self.entries(), self.addressTaken())
	}
	return self.cfg
}

func (self *Context) entries() []*ir.Instr {
	ret := make([]*ir.Instr, 0, len(self.unit.Exports))
	for _, e := range self.unit.Exports {
		ret = append(ret, e.Entry)
	}
	return ret
}

func (self *Context) addressTaken() []*ir.Instr {
	var ret []*ir.Instr
	for _, v := range self.Values() {
		if p, ok := v.Address(); ok {
			ret = append(ret, p)
		}
	}
	return ret
}

func (self *Context) targetTable() map[*ir.Instr]int {
	if self.targets != nil {
		return self.targets
	}

	/* count every reference */
	ret := make(map[*ir.Instr]int)
	for _, p := range self.code {
		if p.IsBranch() {
			ret[p.Br]++
		}
	}
	for _, p := range self.entries() {
		ret[p]++
	}
	for _, p := range self.addressTaken() {
		ret[p]++
	}

	/* cache the table */
	self.targets = ret
	return ret
}

// IsJumpTarget reports whether the i-th instruction is referenced by a jump,
// an export entry or an address constant.
func (self *Context) IsJumpTarget(i int) bool {
	return self.targetTable()[self.code[i]] != 0
}

// IsExternallyReachable reports whether the i-th instruction is an export
// entry or the target of an address constant.
func (self *Context) IsExternallyReachable(i int) bool {
	p := self.code[i]
	for _, e := range self.entries() {
		if e == p {
			return true
		}
	}
	for _, q := range self.addressTaken() {
		if q == p {
			return true
		}
	}
	return false
}

// IndexOf returns the index of ins in the current stream, or -1.
func (self *Context) IndexOf(ins *ir.Instr) int {
	for i, p := range self.code {
		if p == ins {
			return i
		}
	}
	return -1
}

func (self *Context) refTable() *_RefTable {
	if self.refs == nil {
		self.refs = buildRefTable(self.code, self.CFG())
	}
	return self.refs
}

// GetValueUses returns the indices of every instruction that reads v.
func (self *Context) GetValueUses(v *ir.Value) []int {
	return append([]int(nil), self.refTable().uses[v]...)
}

// GetValueDefs returns the indices of every instruction that writes v.
func (self *Context) GetValueDefs(v *ir.Value) []int {
	return append([]int(nil), self.refTable().defs[v]...)
}

// Refs returns the values read and written by the i-th instruction. A push
// whose stack effect is unknown both reads and writes its value, and an
// extern whose arguments are not a clean contiguous push run references
// every value it may consume.
func (self *Context) Refs(i int) (use []*ir.Value, def []*ir.Value) {
	r := &self.refTable().ins[i]
	return r.use, r.def
}

// PushRole returns the stack role of the i-th instruction.
func (self *Context) PushRole(i int) Role {
	return self.refTable().roles[i]
}

// ExternArgs returns the push indices consumed by the extern at index i, in
// push order, if they form a clean contiguous run right before it.
func (self *Context) ExternArgs(i int) ([]int, bool) {
	args, ok := self.refTable().calls[i]
	return args, ok
}

// IsEscaped reports whether v is pushed somewhere with an unknown stack
// effect, so that its reads and writes cannot be pinned to a position.
func (self *Context) IsEscaped(v *ir.Value) bool {
	return self.refTable().escaped[v]
}

// Merge records that v was coalesced into another value and no longer
// needs storage.
func (self *Context) Merge(v *ir.Value) {
	self.merged[v] = true
}

// Finish writes the optimized stream back into the unit and returns it.
func (self *Context) Finish() *ir.Unit {
	self.unit.Code = self.Code()

	/* drop the storage of coalesced values */
	if len(self.merged) != 0 {
		vals := self.unit.Values[:0]
		for _, v := range self.unit.Values {
			if !self.merged[v] {
				vals = append(vals, v)
			}
		}
		self.unit.Values = vals
	}
	return self.unit
}
