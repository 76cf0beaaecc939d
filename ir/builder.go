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

// Builder assembles a Unit, resolving symbolic labels to instructions. A
// label binds to the next instruction emitted after it.
type Builder struct {
	name  string
	code  []*Instr
	vals  []*Value
	exps  []string
	marks []string
	refs  map[string]*Instr
	pends map[string][]*Instr
	addrs map[string][]*Value
}

func CreateBuilder(name string) *Builder {
	return &Builder{
		name:  name,
		refs:  make(map[string]*Instr),
		pends: make(map[string][]*Instr),
		addrs: make(map[string][]*Value),
	}
}

func (self *Builder) value(v *Value) *Value {
	v.Id = len(self.vals) + 1
	self.vals = append(self.vals, v)
	return v
}

func (self *Builder) add(ins *Instr) *Instr {
	for _, lb := range self.marks {
		self.bind(lb, ins)
	}
	self.marks = self.marks[:0]
	self.code = append(self.code, ins)
	return ins
}

func (self *Builder) bind(lb string, ins *Instr) {
	self.refs[lb] = ins

	/* patch all the pending jumps */
	for _, p := range self.pends[lb] {
		p.Br = ins
	}

	/* patch all the pending address constants */
	for _, v := range self.addrs[lb] {
		v.Const = ins
	}

	/* mark the label as resolved */
	delete(self.pends, lb)
	delete(self.addrs, lb)
}

func (self *Builder) jmp(p *Instr, to string) *Instr {
	if lb, ok := self.refs[to]; ok {
		p.Br = lb
	} else {
		self.pends[to] = append(self.pends[to], p)
	}
	return self.add(p)
}

// Label binds name to the next emitted instruction.
func (self *Builder) Label(name string) {
	if _, ok := self.refs[name]; ok {
		panic("label " + name + " has already been linked")
	}
	for _, lb := range self.marks {
		if lb == name {
			panic("label " + name + " has already been linked")
		}
	}
	self.marks = append(self.marks, name)
}

// Export declares an entry point named name at the next emitted instruction.
// The entry point is also usable as a label.
func (self *Builder) Export(name string) {
	self.Label(name)
	self.exps = append(self.exps, name)
}

func (self *Builder) Const(typ string, v interface{}) *Value {
	return self.value(&Value{Kind: K_const, Type: typ, Const: v})
}

func (self *Builder) NamedConst(name string, typ string, v interface{}) *Value {
	return self.value(&Value{Name: name, Kind: K_const, Type: typ, Const: v})
}

// Addr creates an address constant pointing at the instruction bound to label.
func (self *Builder) Addr(name string, label string) *Value {
	v := self.value(&Value{Name: name, Kind: K_const, Type: "SystemUInt32"})
	if p, ok := self.refs[label]; ok {
		v.Const = p
	} else {
		self.addrs[label] = append(self.addrs[label], v)
	}
	return v
}

func (self *Builder) Param(name string, typ string) *Value {
	return self.value(&Value{Name: name, Kind: K_param, Type: typ})
}

func (self *Builder) Local(name string, typ string) *Value {
	return self.value(&Value{Name: name, Kind: K_local, Type: typ})
}

func (self *Builder) Temp(typ string) *Value {
	return self.value(&Value{Kind: K_temp, Type: typ})
}

func (self *Builder) Field(name string, typ string, exported bool) *Value {
	return self.value(&Value{Name: name, Kind: K_field, Type: typ, Exported: exported})
}

func (self *Builder) NOP() *Instr                        { return self.add(Nop()) }
func (self *Builder) PUSH(v *Value) *Instr               { return self.add(Push(v)) }
func (self *Builder) POP() *Instr                        { return self.add(Pop()) }
func (self *Builder) COPY(src *Value, dst *Value) *Instr { return self.add(Copy(src, dst)) }
func (self *Builder) JMP(to string) *Instr               { return self.jmp(Jump(nil), to) }
func (self *Builder) JIF(to string, cond *Value) *Instr  { return self.jmp(JumpIfFalse(nil, cond), to) }
func (self *Builder) JMPI(v *Value) *Instr               { return self.add(JumpIndirect(v)) }
func (self *Builder) EXTERN(fn *Extern) *Instr           { return self.add(Call(fn)) }
func (self *Builder) RET(v *Value) *Instr                { return self.add(Return(v)) }

// CALL pushes args in order and calls fn. When fn has a result, the result
// slot must be the last argument.
func (self *Builder) CALL(fn *Extern, args ...*Value) *Instr {
	if len(args) != fn.Arity() {
		panic(fmt.Sprintf("extern %s expects %d slots, got %d", fn, fn.Arity(), len(args)))
	}
	for _, v := range args {
		self.PUSH(v)
	}
	return self.EXTERN(fn)
}

// Build finishes the unit. Labels bound past the last instruction are
// anchored on a trailing NOP.
func (self *Builder) Build() *Unit {
	if len(self.marks) != 0 {
		self.NOP()
	}

	/* check for unresolved labels */
	for key := range self.pends {
		panic("labels are not fully resolved: " + key)
	}
	for key := range self.addrs {
		panic("address labels are not fully resolved: " + key)
	}

	/* build the export table */
	ret := &Unit{
		Name:   self.name,
		Code:   self.code,
		Values: self.vals,
	}
	for _, name := range self.exps {
		ret.Exports = append(ret.Exports, &Export{Name: name, Entry: self.refs[name]})
	}
	return ret
}
