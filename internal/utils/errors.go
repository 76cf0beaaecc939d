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

package utils

import (
    `fmt`
)

// MalformedError occures when a unit violates the input contract of the
// optimizer, such as an unresolved jump target or an export address outside
// of the instruction stream.
type MalformedError struct {
    Unit   string
    Index  int
    Reason string
}

func (self MalformedError) Error() string {
    if self.Index < 0 {
        return fmt.Sprintf("MalformedError(%s): %s", self.Unit, self.Reason)
    } else {
        return fmt.Sprintf("MalformedError(%s) at instruction %d: %s", self.Unit, self.Index, self.Reason)
    }
}

// InternalError occures when an optimization pass breaks an invariant of the
// instruction stream. It is a defect of the optimizer, never of the input.
type InternalError struct {
    Unit   string
    Pass   string
    Reason string
}

func (self InternalError) Error() string {
    return fmt.Sprintf("InternalError(%s): pass %s: %s", self.Unit, self.Pass, self.Reason)
}

func EMalformed(unit string, index int, reason string) MalformedError {
    return MalformedError {
        Unit   : unit,
        Index  : index,
        Reason : reason,
    }
}

func EMalformedf(unit string, index int, format string, args ...interface{}) MalformedError {
    return EMalformed(unit, index, fmt.Sprintf(format, args...))
}

func EInternal(unit string, pass string, reason string) InternalError {
    return InternalError {
        Unit   : unit,
        Pass   : pass,
        Reason : reason,
    }
}
