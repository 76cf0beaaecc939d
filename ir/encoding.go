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

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("ir: cannot create CBOR encoding mode: " + err.Error())
	}
	encMode = em
}

type _WireValue struct {
	Id       int         `cbor:"id"`
	Name     string      `cbor:"name,omitempty"`
	Kind     Kind        `cbor:"kind"`
	Type     string      `cbor:"type,omitempty"`
	Const    interface{} `cbor:"const"`
	Addr     *uint32     `cbor:"addr,omitempty"`
	Exported bool        `cbor:"exported,omitempty"`
}

type _WireExtern struct {
	Name   string `cbor:"name"`
	Params int    `cbor:"params"`
	Result bool   `cbor:"result,omitempty"`
}

type _WireInstr struct {
	Op OpCode  `cbor:"op"`
	V  int     `cbor:"v,omitempty"`
	D  int     `cbor:"d,omitempty"`
	Br *uint32 `cbor:"br,omitempty"`
	Fn int     `cbor:"fn,omitempty"`
}

type _WireExport struct {
	Name string `cbor:"name"`
	Addr uint32 `cbor:"addr"`
}

type _WireUnit struct {
	Name    string        `cbor:"name"`
	Values  []_WireValue  `cbor:"values"`
	Externs []_WireExtern `cbor:"externs,omitempty"`
	Code    []_WireInstr  `cbor:"code"`
	Exports []_WireExport `cbor:"exports,omitempty"`
}

type _WireModule struct {
	Units []_WireUnit `cbor:"units"`
}

// Marshal encodes a module into its CBOR wire form. Jump targets, export
// entries and address constants are encoded as instruction addresses.
func Marshal(m *Module) ([]byte, error) {
	ret := _WireModule{Units: make([]_WireUnit, 0, len(m.Units))}

	/* encode every unit */
	for _, u := range m.Units {
		if wu, err := encodeUnit(u); err != nil {
			return nil, err
		} else {
			ret.Units = append(ret.Units, wu)
		}
	}
	return encMode.Marshal(ret)
}

// Unmarshal decodes a module from its CBOR wire form. Every address must
// resolve to the start of an instruction in the same unit.
func Unmarshal(data []byte) (*Module, error) {
	var wm _WireModule
	var ret Module

	/* decode the wire structure */
	if err := cbor.Unmarshal(data, &wm); err != nil {
		return nil, err
	}

	/* rebuild every unit */
	for i := range wm.Units {
		if u, err := decodeUnit(&wm.Units[i]); err != nil {
			return nil, err
		} else {
			ret.Units = append(ret.Units, u)
		}
	}
	return &ret, nil
}

func encodeUnit(u *Unit) (_WireUnit, error) {
	addr := Layout(u.Code)
	vids := make(map[*Value]int, len(u.Values))
	fids := make(map[*Extern]int)
	ret := _WireUnit{Name: u.Name}

	/* value ids are positional, so duplicated or missing ids are harmless */
	vals := make([]*Value, 0, len(u.Values))
	addv := func(v *Value) {
		if _, ok := vids[v]; !ok && v != nil {
			vals = append(vals, v)
			vids[v] = len(vals)
		}
	}

	/* declared values first, then anything only referenced by code */
	for _, v := range u.Values {
		addv(v)
	}
	for _, p := range u.Code {
		for _, r := range p.Operands() {
			addv(*r)
		}
	}

	/* encode the instructions */
	for i, p := range u.Code {
		w := _WireInstr{Op: p.Op}
		if p.IsBranch() {
			if pc, ok := addr[p.Br]; !ok {
				return ret, fmt.Errorf("ir: jump target of instruction %d is not in unit %s", i, u.Name)
			} else {
				w.Br = &pc
			}
		}
		if ops := p.Operands(); len(ops) != 0 {
			w.V = vids[p.V]
		}
		if p.Op == OP_copy {
			w.D = vids[p.D]
		}
		if p.Op == OP_extern {
			if _, ok := fids[p.Fn]; !ok {
				fids[p.Fn] = len(ret.Externs) + 1
				ret.Externs = append(ret.Externs, _WireExtern{Name: p.Fn.Name, Params: p.Fn.Params, Result: p.Fn.Result})
			}
			w.Fn = fids[p.Fn]
		}
		ret.Code = append(ret.Code, w)
	}

	/* encode the values */
	for _, v := range vals {
		w := _WireValue{Id: vids[v], Name: v.Name, Kind: v.Kind, Type: v.Type, Exported: v.Exported}
		if p, ok := v.Address(); ok {
			if pc, ok := addr[p]; !ok {
				return ret, fmt.Errorf("ir: address constant %s is not in unit %s", v, u.Name)
			} else {
				w.Addr = &pc
			}
		} else {
			w.Const = v.Const
		}
		ret.Values = append(ret.Values, w)
	}

	/* encode the export table */
	for _, e := range u.Exports {
		if pc, ok := addr[e.Entry]; !ok {
			return ret, fmt.Errorf("ir: entry of export %s is not in unit %s", e.Name, u.Name)
		} else {
			ret.Exports = append(ret.Exports, _WireExport{Name: e.Name, Addr: pc})
		}
	}
	return ret, nil
}

func decodeUnit(w *_WireUnit) (*Unit, error) {
	pc := uint32(0)
	ret := &Unit{Name: w.Name}
	vals := make(map[int]*Value, len(w.Values))
	fns := make([]*Extern, 0, len(w.Externs))
	ins := make(map[uint32]*Instr, len(w.Code))

	/* rebuild the externs */
	for _, f := range w.Externs {
		fns = append(fns, &Extern{Name: f.Name, Params: f.Params, Result: f.Result})
	}

	/* rebuild the values, address constants are resolved later */
	for _, v := range w.Values {
		if _, ok := vals[v.Id]; ok || v.Id <= 0 {
			return nil, fmt.Errorf("ir: invalid or duplicated value id %d in unit %s", v.Id, w.Name)
		}
		vals[v.Id] = &Value{Id: v.Id, Name: v.Name, Kind: v.Kind, Type: v.Type, Const: decodeConst(v.Type, v.Const), Exported: v.Exported}
		ret.Values = append(ret.Values, vals[v.Id])
	}

	/* value lookup */
	value := func(i int, id int) (*Value, error) {
		if v, ok := vals[id]; !ok {
			return nil, fmt.Errorf("ir: instruction %d of unit %s references unknown value %d", i, w.Name, id)
		} else {
			return v, nil
		}
	}

	/* rebuild the instructions */
	for i, p := range w.Code {
		var err error
		q := &Instr{Op: p.Op}

		/* check the opcode */
		if int(p.Op) >= len(_OpNames) {
			return nil, fmt.Errorf("ir: invalid opcode 0x%02x at instruction %d of unit %s", p.Op, i, w.Name)
		}

		/* resolve the operands */
		if len(q.Operands()) != 0 {
			if q.V, err = value(i, p.V); err != nil {
				return nil, err
			}
		}
		if p.Op == OP_copy {
			if q.D, err = value(i, p.D); err != nil {
				return nil, err
			}
		}
		if p.Op == OP_extern {
			if p.Fn <= 0 || p.Fn > len(fns) {
				return nil, fmt.Errorf("ir: instruction %d of unit %s references unknown extern %d", i, w.Name, p.Fn)
			}
			q.Fn = fns[p.Fn-1]
		}

		/* assign the address */
		ins[pc] = q
		pc += q.Size()
		ret.Code = append(ret.Code, q)
	}

	/* resolve the jump targets */
	for i, p := range w.Code {
		if ret.Code[i].IsBranch() {
			if p.Br == nil {
				return nil, fmt.Errorf("ir: instruction %d of unit %s has no jump target", i, w.Name)
			} else if br, ok := ins[*p.Br]; !ok {
				return nil, fmt.Errorf("ir: unresolved jump address %#x at instruction %d of unit %s", *p.Br, i, w.Name)
			} else {
				ret.Code[i].Br = br
			}
		}
	}

	/* resolve the address constants */
	for _, v := range w.Values {
		if v.Addr != nil {
			if br, ok := ins[*v.Addr]; !ok {
				return nil, fmt.Errorf("ir: unresolved address %#x in constant %d of unit %s", *v.Addr, v.Id, w.Name)
			} else {
				vals[v.Id].Const = br
			}
		}
	}

	/* resolve the export table */
	for _, e := range w.Exports {
		if br, ok := ins[e.Addr]; !ok {
			return nil, fmt.Errorf("ir: export %s address %#x is outside unit %s", e.Name, e.Addr, w.Name)
		} else {
			ret.Exports = append(ret.Exports, &Export{Name: e.Name, Entry: br})
		}
	}
	return ret, nil
}

// decodeConst restores the Go type of a constant payload from its VM type,
// since CBOR only keeps the sign and the width class of numbers.
func decodeConst(typ string, x interface{}) interface{} {
	switch v := x.(type) {
	case uint64:
		return convertInt(typ, int64(v), x)
	case int64:
		return convertInt(typ, v, x)
	case float32:
		return convertFloat(typ, float64(v), x)
	case float64:
		return convertFloat(typ, v, x)
	default:
		return x
	}
}

func convertInt(typ string, v int64, x interface{}) interface{} {
	switch typ {
	case "SystemByte":
		return uint8(v)
	case "SystemSByte":
		return int8(v)
	case "SystemInt16":
		return int16(v)
	case "SystemUInt16":
		return uint16(v)
	case "SystemInt32":
		return int32(v)
	case "SystemUInt32":
		return uint32(v)
	case "SystemInt64":
		return v
	case "SystemUInt64":
		if u, ok := x.(uint64); ok {
			return u
		}
		return uint64(v)
	case "SystemSingle":
		return float32(v)
	case "SystemDouble":
		return float64(v)
	default:
		return x
	}
}

func convertFloat(typ string, v float64, x interface{}) interface{} {
	switch typ {
	case "SystemSingle":
		return float32(v)
	case "SystemDouble":
		return v
	default:
		return x
	}
}
