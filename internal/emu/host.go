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
)

var (
	ErrDivideByZero = errors.New("divide by zero")
)

// HostTable maps extern names to their implementations.
type HostTable map[string]_Host

func NewHostTable() HostTable {
	return make(HostTable)
}

func (self HostTable) Add(name string, fn HostFunc, pure bool) HostTable {
	self[name] = _Host{fn: fn, pure: pure}
	return self
}

// IsPure reports whether the extern is registered as free of side effects.
func (self HostTable) IsPure(name string) bool {
	return self[name].pure
}

const (
	LogExtern    = "UnityEngineDebug.__Log__SystemObject__SystemVoid"
	RandomExtern = "UnityEngineRandom.__get_value__SystemSingle"
)

var (
	_IntegerTypes = []string{
		"SystemByte",
		"SystemSByte",
		"SystemInt16",
		"SystemUInt16",
		"SystemInt32",
		"SystemUInt32",
		"SystemInt64",
		"SystemUInt64",
	}
	_FloatTypes = []string{
		"SystemSingle",
		"SystemDouble",
	}
)

func binop(typ string, op string, ret string) string {
	return fmt.Sprintf("%s.__%s__%s_%s__%s", typ, op, typ, typ, ret)
}

// DefaultHosts implements the numeric operators, the boolean operators and
// two side-effecting externs: a logger and a deterministic random source.
func DefaultHosts() HostTable {
	ret := NewHostTable()

	/* numeric operators */
	for _, t := range append(append([]string(nil), _IntegerTypes...), _FloatTypes...) {
		ret.Add(binop(t, "op_Addition", t), arith('+'), true)
		ret.Add(binop(t, "op_Subtraction", t), arith('-'), true)
		ret.Add(binop(t, "op_Multiply", t), arith('*'), true)
		ret.Add(binop(t, "op_Division", t), arith('/'), true)
		ret.Add(binop(t, "op_Equality", "SystemBoolean"), compare(func(c int) bool { return c == 0 }), true)
		ret.Add(binop(t, "op_Inequality", "SystemBoolean"), compare(func(c int) bool { return c != 0 }), true)
		ret.Add(binop(t, "op_LessThan", "SystemBoolean"), compare(func(c int) bool { return c < 0 }), true)
		ret.Add(binop(t, "op_LessThanOrEqual", "SystemBoolean"), compare(func(c int) bool { return c <= 0 }), true)
		ret.Add(binop(t, "op_GreaterThan", "SystemBoolean"), compare(func(c int) bool { return c > 0 }), true)
		ret.Add(binop(t, "op_GreaterThanOrEqual", "SystemBoolean"), compare(func(c int) bool { return c >= 0 }), true)
	}

	/* boolean operators */
	ret.Add("SystemBoolean.__op_UnaryNegation__SystemBoolean__SystemBoolean", func(args []interface{}) (interface{}, error) {
		v, ok := args[0].(bool)
		return !v, typeCheck(ok, args[0])
	}, true)
	ret.Add("SystemBoolean.__op_ConditionalAnd__SystemBoolean_SystemBoolean__SystemBoolean", func(args []interface{}) (interface{}, error) {
		x, ok1 := args[0].(bool)
		y, ok2 := args[1].(bool)
		return x && y, typeCheck(ok1 && ok2, args)
	}, true)

	/* side effects */
	ret.Add(LogExtern, func([]interface{}) (interface{}, error) { return nil, nil }, false)
	ret.Add(RandomExtern, random(), false)
	return ret
}

func typeCheck(ok bool, v interface{}) error {
	if ok {
		return nil
	} else {
		return fmt.Errorf("unexpected operand: %v", v)
	}
}

func random() HostFunc {
	seed := uint32(2463534242)
	return func([]interface{}) (interface{}, error) {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		return float32(seed%1000) / 1000, nil
	}
}

func toInt(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// like converts the int64 result back into the Go type of v.
func like(v interface{}, r int64) interface{} {
	switch v.(type) {
	case int8:
		return int8(r)
	case int16:
		return int16(r)
	case int32:
		return int32(r)
	case int64:
		return r
	case uint:
		return uint(r)
	case uint8:
		return uint8(r)
	case uint16:
		return uint16(r)
	case uint32:
		return uint32(r)
	case uint64:
		return uint64(r)
	default:
		return int(r)
	}
}

func arith(op byte) HostFunc {
	return func(args []interface{}) (interface{}, error) {
		x, y := args[0], args[1]

		/* integer arithmetic */
		if a, ok := toInt(x); ok {
			b, ok := toInt(y)
			if !ok {
				return nil, typeCheck(false, y)
			}
			switch op {
			case '+':
				return like(x, a+b), nil
			case '-':
				return like(x, a-b), nil
			case '*':
				return like(x, a*b), nil
			default:
				if b == 0 {
					return nil, ErrDivideByZero
				}
				return like(x, a/b), nil
			}
		}

		/* floating-point arithmetic */
		a, ok1 := toFloat(x)
		b, ok2 := toFloat(y)
		if !ok1 || !ok2 {
			return nil, typeCheck(false, args)
		}

		/* compute in the width of the left operand */
		var r float64
		switch op {
		case '+':
			r = a + b
		case '-':
			r = a - b
		case '*':
			r = a * b
		default:
			r = a / b
		}
		if _, ok := x.(float32); ok {
			return float32(r), nil
		} else {
			return r, nil
		}
	}
}

func compare(pred func(int) bool) HostFunc {
	return func(args []interface{}) (interface{}, error) {
		c := 0
		x, y := args[0], args[1]

		/* integers first, then floats */
		if a, ok := toInt(x); ok {
			if b, ok := toInt(y); !ok {
				return nil, typeCheck(false, y)
			} else if a < b {
				c = -1
			} else if a > b {
				c = 1
			}
		} else if a, ok := toFloat(x); ok {
			if b, ok := toFloat(y); !ok {
				return nil, typeCheck(false, y)
			} else if a < b {
				c = -1
			} else if a > b {
				c = 1
			}
		} else {
			return nil, typeCheck(false, x)
		}
		return pred(c), nil
	}
}
