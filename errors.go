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

package asmopt

import (
    `github.com/cloudwego/asmopt/internal/utils`
)

// MalformedError occures when a unit violates the input contract of the
// optimizer. The unit is left untouched.
type MalformedError = utils.MalformedError

// InternalError occures when an optimization pass breaks an invariant of the
// instruction stream. It indicates a defect of the optimizer.
type InternalError = utils.InternalError
