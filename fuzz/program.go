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

	gofakeit "github.com/brianvoe/gofakeit/v6"
	"github.com/cloudwego/asmopt/ir"
)

const (
	Int32 = "SystemInt32"
	Bool  = "SystemBoolean"
)

const (
	_ZeroSeed = 0x5eed
)

var (
	FnAdd = &ir.Extern{Name: "SystemInt32.__op_Addition__SystemInt32_SystemInt32__SystemInt32", Params: 2, Result: true}
	FnSub = &ir.Extern{Name: "SystemInt32.__op_Subtraction__SystemInt32_SystemInt32__SystemInt32", Params: 2, Result: true}
	FnMul = &ir.Extern{Name: "SystemInt32.__op_Multiply__SystemInt32_SystemInt32__SystemInt32", Params: 2, Result: true}
	FnDiv = &ir.Extern{Name: "SystemInt32.__op_Division__SystemInt32_SystemInt32__SystemInt32", Params: 2, Result: true}
	FnLt  = &ir.Extern{Name: "SystemInt32.__op_LessThan__SystemInt32_SystemInt32__SystemBoolean", Params: 2, Result: true}
	FnLog = &ir.Extern{Name: "UnityEngineDebug.__Log__SystemObject__SystemVoid", Params: 1}
)

// Program generates random loop-free units. The same seed always yields
// the same program, with fresh instruction and value identities.
type Program struct {
	Size int
	rnd  *gofakeit.Faker
	pb   *ir.Builder
	srcs []*ir.Value
	dsts []*ir.Value
	tmps []*ir.Value
	cond []*ir.Value
	lbls []string
	nlbl int
}

func NewProgram(size int) *Program {
	return &Program{Size: size}
}

// Generate builds the unit for seed. Every program has the exports
// "_start" and "_other". Both entries initialize every local before use,
// so any path through the unit reads defined values only.
func (self *Program) Generate(seed int64) *ir.Unit {
	self.rnd = newFaker(seed)
	self.pb = ir.CreateBuilder(fmt.Sprintf("fuzz_%d", seed))
	self.srcs, self.dsts, self.tmps, self.cond = nil, nil, nil, nil
	self.lbls, self.nlbl = nil, 0
	self.declare()

	/* the first entry */
	self.pb.Export("_start")
	self.init()
	self.body(self.Size / 2)
	self.pb.RET(self.operand())

	/* the second entry */
	self.pb.Export("_other")
	self.init()
	self.body(self.Size - self.Size/2)
	self.bindAll()
	self.pb.RET(self.operand())
	return self.pb.Build()
}

// newFaker never hands out a randomly seeded generator, gofakeit reseeds
// from the clock when given zero.
func newFaker(seed int64) *gofakeit.Faker {
	if seed == 0 {
		seed = _ZeroSeed
	}
	return gofakeit.New(seed)
}

func (self *Program) declare() {
	for i := 0; i < 3; i++ {
		self.srcs = append(self.srcs, self.pb.Param(fmt.Sprintf("p%d", i), Int32))
	}
	for i := 0; i < 3; i++ {
		self.dsts = append(self.dsts, self.pb.Local(fmt.Sprintf("l%d", i), Int32))
	}
	for i := 0; i < 3; i++ {
		self.tmps = append(self.tmps, self.pb.Temp(Int32))
	}
	self.dsts = append(self.dsts, self.tmps...)
	self.dsts = append(self.dsts, self.pb.Field("f0", Int32, true))
	self.dsts = append(self.dsts, self.pb.Field("f1", Int32, false))
	self.cond = append(self.cond, self.pb.Param("c0", Bool), self.pb.Local("b0", Bool))
	self.srcs = append(self.srcs, self.dsts...)
}

func (self *Program) init() {
	for _, v := range self.dsts {
		if v.Kind == ir.K_local || v.Kind == ir.K_temp {
			self.pb.COPY(self.pb.Const(Int32, int32(0)), v)
		}
	}
	self.pb.COPY(self.pb.Const(Bool, false), self.cond[1])
}

func (self *Program) pick(vs []*ir.Value) *ir.Value {
	return vs[self.rnd.Number(0, len(vs)-1)]
}

func (self *Program) constant() *ir.Value {
	return self.pb.Const(Int32, int32(self.rnd.Number(-8, 8)))
}

func (self *Program) operand() *ir.Value {
	if self.rnd.Number(0, 3) == 0 {
		return self.constant()
	} else {
		return self.pick(self.srcs)
	}
}

func (self *Program) label() string {
	self.nlbl++
	name := fmt.Sprintf("L%d", self.nlbl)
	self.lbls = append(self.lbls, name)
	return name
}

func (self *Program) bind() {
	if len(self.lbls) != 0 {
		k := self.rnd.Number(0, len(self.lbls)-1)
		self.pb.Label(self.lbls[k])
		self.lbls = append(self.lbls[:k], self.lbls[k+1:]...)
	}
}

func (self *Program) bindAll() {
	for _, lb := range self.lbls {
		self.pb.Label(lb)
	}
	self.lbls = nil
}

func (self *Program) body(n int) {
	for i := 0; i < n; i++ {
		self.statement()
	}
}

func (self *Program) statement() {
	switch self.rnd.Number(0, 13) {
	case 0, 1:
		self.pb.COPY(self.operand(), self.pick(self.dsts))
	case 2:
		v := self.pick(self.dsts)
		self.pb.COPY(v, v)
	case 3, 4:
		fn := []*ir.Extern{FnAdd, FnSub, FnMul}[self.rnd.Number(0, 2)]
		self.pb.CALL(fn, self.operand(), self.operand(), self.pick(self.dsts))
	case 5:
		fn := []*ir.Extern{FnAdd, FnMul}[self.rnd.Number(0, 1)]
		x, y := self.pick(self.srcs), self.pick(self.srcs)
		self.pb.CALL(fn, x, y, self.pick(self.tmps))
		self.pb.CALL(fn, x, y, self.pick(self.dsts))
	case 6:
		x := self.pick(self.srcs)
		if self.rnd.Bool() {
			self.pb.CALL(FnAdd, x, self.pb.Const(Int32, int32(0)), self.pick(self.dsts))
		} else {
			self.pb.CALL(FnMul, self.pb.Const(Int32, int32(1)), x, self.pick(self.dsts))
		}
	case 7:
		d := int32(self.rnd.Number(1, 4))
		if self.rnd.Bool() {
			d = -d
		}
		self.pb.CALL(FnDiv, self.operand(), self.pb.Const(Int32, d), self.pick(self.dsts))
	case 8, 9:
		self.pb.CALL(FnLog, self.operand())
	case 10:
		self.pb.PUSH(self.operand())
		self.pb.POP()
	case 11:
		self.pb.NOP()
	case 12:
		self.pb.CALL(FnLt, self.operand(), self.operand(), self.cond[1])
		self.pb.JIF(self.label(), self.pick(self.cond))
	case 13:
		if self.rnd.Bool() {
			self.pb.JMP(self.label())
		} else {
			self.pb.JIF(self.label(), self.pb.Const(Bool, self.rnd.Bool()))
		}
	}

	/* land some of the pending jumps */
	if self.rnd.Number(0, 2) == 0 {
		self.bind()
	}
}
