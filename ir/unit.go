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
	"sort"
	"strings"
)

// Export is an externally invocable entry point of a unit.
type Export struct {
	Name  string
	Entry *Instr
}

// Unit is the instruction stream of one compilation unit, together with its
// entry points and every value it declares.
type Unit struct {
	Name    string
	Code    []*Instr
	Exports []*Export
	Values  []*Value
}

// Module is a set of independent compilation units.
type Module struct {
	Units []*Unit
}

// Layout computes the address of every instruction in p.
func Layout(p []*Instr) map[*Instr]uint32 {
	pc := uint32(0)
	ret := make(map[*Instr]uint32, len(p))

	/* assign addresses sequentially */
	for _, v := range p {
		ret[v] = pc
		pc += v.Size()
	}
	return ret
}

// Export returns the entry point with the given name.
func (self *Unit) Export(name string) *Export {
	for _, e := range self.Exports {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Labels names every instruction that is referenced by a jump, an export or
// an address constant.
func (self *Unit) Labels() map[*Instr]string {
	addr := Layout(self.Code)
	refs := make(map[*Instr]string)

	/* exported entry points keep their own names */
	for _, e := range self.Exports {
		if e.Entry != nil {
			refs[e.Entry] = e.Name
		}
	}

	/* name other targets by address */
	mark := func(p *Instr) {
		if _, ok := refs[p]; !ok && p != nil {
			if pc, ok := addr[p]; ok {
				refs[p] = fmt.Sprintf("L_%04x", pc)
			} else {
				refs[p] = fmt.Sprintf("L_%p", p)
			}
		}
	}

	/* jump targets and address constants */
	for _, v := range self.Code {
		if v.IsBranch() {
			mark(v.Br)
		}
	}
	for _, v := range self.Values {
		if p, ok := v.Address(); ok {
			mark(p)
		}
	}
	return refs
}

func (self *Unit) String() string {
	refs := self.Labels()
	addr := Layout(self.Code)
	buf := []string{fmt.Sprintf(".unit %s", self.Name), ".data"}

	/* dump the data section */
	for _, v := range self.Values {
		if p, ok := v.Address(); ok {
			buf = append(buf, fmt.Sprintf("    %s %s %s = &%s", v.Kind, v.Type, v, label(refs, p)))
		} else {
			buf = append(buf, "    "+v.describe())
		}
	}

	/* dump the export table, sorted by name */
	exps := append([]*Export(nil), self.Exports...)
	sort.Slice(exps, func(i int, j int) bool { return exps[i].Name < exps[j].Name })
	buf = append(buf, ".code")

	/* every exported entry */
	for _, e := range exps {
		buf = append(buf, fmt.Sprintf("    .export %s", e.Name))
	}

	/* dump every instruction */
	for _, v := range self.Code {
		if lb, ok := refs[v]; ok {
			buf = append(buf, fmt.Sprintf("%06x | %s:", addr[v], lb))
		}
		buf = append(buf, fmt.Sprintf("%06x |     %s", addr[v], v.Disassemble(refs)))
	}

	/* join them together */
	return strings.Join(buf, "\n")
}
