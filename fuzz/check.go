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

package fuzz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/asmopt/internal/emu"
	"github.com/cloudwego/asmopt/ir"
	"github.com/davecgh/go-spew/spew"
)

var dumper = spew.ConfigState{
	Indent:   "    ",
	SortKeys: true,
}

// Inputs are the initial contents of parameters and fields, by name.
type Inputs map[string]interface{}

// Outcome is everything an observer outside the unit can see of one run.
type Outcome struct {
	Ret    interface{}
	Trace  []emu.Call
	Fields map[string]interface{}
	Err    error
}

func (self Outcome) String() string {
	keys := make([]string, 0, len(self.Fields))
	for k := range self.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	/* dump the fields in order */
	buf := make([]string, 0, len(keys))
	for _, k := range keys {
		buf = append(buf, fmt.Sprintf("%s=%v", k, self.Fields[k]))
	}
	return fmt.Sprintf("ret=%v trace=%v fields={%s} err=%v", self.Ret, self.Trace, strings.Join(buf, " "), self.Err)
}

// Equal reports whether two successful runs are indistinguishable from
// outside the unit.
func (self Outcome) Equal(other Outcome) bool {
	return self.Err == nil && other.Err == nil &&
		dumper.Sdump(self.Ret) == dumper.Sdump(other.Ret) &&
		dumper.Sdump(self.Trace) == dumper.Sdump(other.Trace) &&
		dumper.Sdump(self.Fields) == dumper.Sdump(other.Fields)
}

// RandomInputs derives the inputs of a generated program from seed.
func RandomInputs(seed int64) Inputs {
	rnd := newFaker(seed)
	return Inputs{
		"p0": int32(rnd.Number(-100, 100)),
		"p1": int32(rnd.Number(-100, 100)),
		"p2": int32(rnd.Number(-100, 100)),
		"f0": int32(rnd.Number(-100, 100)),
		"f1": int32(rnd.Number(-100, 100)),
		"c0": rnd.Bool(),
	}
}

// Execute runs u from the named export on the default host functions.
func Execute(u *ir.Unit, entry string, in Inputs) Outcome {
	vm, err := emu.LoadUnit(u, entry)
	if err != nil {
		return Outcome{Err: err}
	}

	/* install the inputs */
	vm.RegisterAll(emu.DefaultHosts())
	for _, v := range u.Values {
		if x, ok := in[v.Name]; ok && (v.Kind == ir.K_param || v.Kind == ir.K_field) {
			vm.Set(v, x)
		}
	}

	/* run to completion */
	ret := Outcome{Err: vm.Run()}
	ret.Ret = vm.Ret
	ret.Trace = vm.Trace
	ret.Fields = make(map[string]interface{})

	/* collect the fields */
	for _, v := range u.Values {
		if v.Kind == ir.K_field {
			ret.Fields[v.Name] = vm.Get(v)
		}
	}
	return ret
}
