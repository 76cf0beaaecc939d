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
)

// ArithOp identifies an arithmetic extern eligible for identity-law
// simplification.
type ArithOp uint8

const (
	ArithNone ArithOp = iota
	ArithAdd
	ArithSub
	ArithMul
	ArithDiv
)

func (self ArithOp) String() string {
	switch self {
	case ArithNone:
		return "none"
	case ArithAdd:
		return "add"
	case ArithSub:
		return "sub"
	case ArithMul:
		return "mul"
	case ArithDiv:
		return "div"
	default:
		return fmt.Sprintf("ArithOp(%d)", self)
	}
}

// Classification is the explicitly maintained side-effect table of externs.
// Nothing is inferred from a name: an extern absent from the table is
// treated as impure.
type Classification struct {
	pure  map[string]bool
	arith map[string]ArithOp
}

func NewClassification() *Classification {
	return &Classification{
		pure:  make(map[string]bool),
		arith: make(map[string]ArithOp),
	}
}

// AddPure marks externs as pure: their result depends only on their
// arguments and they have no observable side effect.
func (self *Classification) AddPure(names ...string) {
	for _, n := range names {
		self.pure[n] = true
	}
}

// AddArith marks externs as pure binary arithmetic of the given kind.
func (self *Classification) AddArith(op ArithOp, names ...string) {
	for _, n := range names {
		self.pure[n] = true
		self.arith[n] = op
	}
}

func (self *Classification) IsPure(fn *ir.Extern) bool {
	return fn != nil && self.pure[fn.Name]
}

func (self *Classification) Arith(fn *ir.Extern) ArithOp {
	if fn == nil || fn.Params != 2 || !fn.Result {
		return ArithNone
	} else {
		return self.arith[fn.Name]
	}
}

// Clone returns an independent copy of the table.
func (self *Classification) Clone() *Classification {
	ret := NewClassification()
	for k := range self.pure {
		ret.pure[k] = true
	}
	for k, v := range self.arith {
		ret.arith[k] = v
	}
	return ret
}

var (
	_NumericTypes = []string{
		"SystemByte",
		"SystemSByte",
		"SystemInt16",
		"SystemUInt16",
		"SystemInt32",
		"SystemUInt32",
		"SystemInt64",
		"SystemUInt64",
		"SystemSingle",
		"SystemDouble",
	}
	_VectorTypes = []string{
		"UnityEngineVector2",
		"UnityEngineVector3",
		"UnityEngineVector4",
	}
	_ComparisonOps = []string{
		"op_Equality",
		"op_Inequality",
		"op_LessThan",
		"op_LessThanOrEqual",
		"op_GreaterThan",
		"op_GreaterThanOrEqual",
	}
	_MathFuncs = []string{
		"UnityEngineMathf.__Abs__SystemSingle__SystemSingle",
		"UnityEngineMathf.__Sqrt__SystemSingle__SystemSingle",
		"UnityEngineMathf.__Sin__SystemSingle__SystemSingle",
		"UnityEngineMathf.__Cos__SystemSingle__SystemSingle",
		"UnityEngineMathf.__Floor__SystemSingle__SystemSingle",
		"UnityEngineMathf.__Min__SystemSingle_SystemSingle__SystemSingle",
		"UnityEngineMathf.__Max__SystemSingle_SystemSingle__SystemSingle",
		"UnityEngineMathf.__Clamp__SystemSingle_SystemSingle_SystemSingle__SystemSingle",
		"UnityEngineMathf.__Lerp__SystemSingle_SystemSingle_SystemSingle__SystemSingle",
		"SystemMath.__Abs__SystemInt32__SystemInt32",
		"SystemMath.__Min__SystemInt32_SystemInt32__SystemInt32",
		"SystemMath.__Max__SystemInt32_SystemInt32__SystemInt32",
		"SystemBoolean.__op_UnaryNegation__SystemBoolean__SystemBoolean",
		"SystemBoolean.__op_ConditionalAnd__SystemBoolean_SystemBoolean__SystemBoolean",
		"SystemBoolean.__op_ConditionalOr__SystemBoolean_SystemBoolean__SystemBoolean",
	}
	_Getters = []string{
		"UnityEngineVector3.__get_magnitude__SystemSingle",
		"UnityEngineVector3.__get_normalized__UnityEngineVector3",
		"UnityEngineVector3.__get_x__SystemSingle",
		"UnityEngineVector3.__get_y__SystemSingle",
		"UnityEngineVector3.__get_z__SystemSingle",
		"UnityEngineTransform.__get_position__UnityEngineVector3",
		"UnityEngineTransform.__get_rotation__UnityEngineQuaternion",
	}
)

func binop(typ string, op string, ret string) string {
	return fmt.Sprintf("%s.__%s__%s_%s__%s", typ, op, typ, typ, ret)
}

// DefaultClassification returns the built-in conservative allow-list:
// operators on numeric and vector types, math functions and value getters.
func DefaultClassification() *Classification {
	ret := NewClassification()

	/* numeric operators */
	for _, t := range _NumericTypes {
		ret.AddArith(ArithAdd, binop(t, "op_Addition", t))
		ret.AddArith(ArithSub, binop(t, "op_Subtraction", t))
		ret.AddArith(ArithMul, binop(t, "op_Multiply", t))
		ret.AddArith(ArithDiv, binop(t, "op_Division", t))
		for _, op := range _ComparisonOps {
			ret.AddPure(binop(t, op, "SystemBoolean"))
		}
	}

	/* vector operators are pure but their identities are not checked */
	for _, t := range _VectorTypes {
		ret.AddPure(binop(t, "op_Addition", t), binop(t, "op_Subtraction", t))
		ret.AddPure(fmt.Sprintf("%s.__Dot__%s_%s__SystemSingle", t, t, t))
	}

	/* math functions and getters */
	ret.AddPure(_MathFuncs...)
	ret.AddPure(_Getters...)
	return ret
}
