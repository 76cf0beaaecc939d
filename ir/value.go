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
	"math"
)

// Kind is the storage class of a Value.
type Kind uint8

const (
	K_const Kind = iota // immediate constant, never written
	K_param             // routine parameter, storage fixed by the calling convention
	K_local             // user-visible local
	K_temp              // compiler-internal temporary
	K_field             // persisted field of the owning object
)

var _KindNames = [...]string{
	K_const: "const",
	K_param: "param",
	K_local: "local",
	K_temp:  "temp",
	K_field: "field",
}

func (self Kind) String() string {
	if int(self) < len(_KindNames) {
		return _KindNames[self]
	} else {
		return fmt.Sprintf("kind(%d)", self)
	}
}

// Value is a named heap slot of the VM. Two values are the same value if and
// only if they are the same pointer, content equality means nothing.
type Value struct {
	Id       int
	Name     string
	Kind     Kind
	Type     string
	Const    interface{}
	Exported bool
}

func (self *Value) String() string {
	if self.Name != "" {
		return self.Name
	} else {
		return fmt.Sprintf("%%%s%d", self.Kind, self.Id)
	}
}

// IsConst reports whether the value is an immediate constant.
func (self *Value) IsConst() bool {
	return self.Kind == K_const
}

// IsExportedField reports whether the value is a field observed outside the
// compilation unit (serialized or synchronized).
func (self *Value) IsExportedField() bool {
	return self.Kind == K_field && self.Exported
}

// IsStable reports whether the storage identity of the value is part of an
// external contract, which is the case for everything but locals and
// temporaries.
func (self *Value) IsStable() bool {
	return self.Kind != K_local && self.Kind != K_temp
}

// Address returns the target instruction of an address constant.
func (self *Value) Address() (*Instr, bool) {
	if self.Kind != K_const {
		return nil, false
	} else if p, ok := self.Const.(*Instr); !ok || p == nil {
		return nil, false
	} else {
		return p, true
	}
}

// Bool returns the payload of a boolean constant.
func (self *Value) Bool() (bool, bool) {
	if self.Kind != K_const {
		return false, false
	} else {
		v, ok := self.Const.(bool)
		return v, ok
	}
}

// IsInteger reports whether the value is a constant with an integer payload.
func (self *Value) IsInteger() bool {
	if self.Kind != K_const {
		return false
	}
	switch self.Const.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the value is a constant with a floating-point payload.
func (self *Value) IsFloat() bool {
	if self.Kind != K_const {
		return false
	}
	switch self.Const.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

// IsZero reports whether the value is a numeric constant equal to zero.
func (self *Value) IsZero() bool {
	v, ok := self.numeric()
	return ok && v == 0 && !math.Signbit(v)
}

// IsOne reports whether the value is a numeric constant equal to one.
func (self *Value) IsOne() bool {
	v, ok := self.numeric()
	return ok && v == 1
}

func (self *Value) numeric() (float64, bool) {
	if self.Kind != K_const {
		return 0, false
	}
	switch v := self.Const.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func (self *Value) describe() string {
	if p, ok := self.Address(); ok {
		return fmt.Sprintf("%s %s %s = &%p", self.Kind, self.Type, self, p)
	} else if self.Kind == K_const {
		return fmt.Sprintf("%s %s %s = %v", self.Kind, self.Type, self, self.Const)
	} else if self.Exported {
		return fmt.Sprintf("%s %s %s [exported]", self.Kind, self.Type, self)
	} else {
		return fmt.Sprintf("%s %s %s", self.Kind, self.Type, self)
	}
}
