/*
 * Copyright 2022 CloudWeGo Authors
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

package opts

import (
	"os"
	"strconv"
)

const (
	_DefaultMaxRounds    = 50 // cutoff at 50 fixpoint rounds
	_DefaultMaxJumpChain = 10 // cutoff at 10 hops when threading jumps
)

var (
	MaxRounds    = parseOrDefault("ASMOPT_MAX_ROUNDS", _DefaultMaxRounds, 1)
	MaxJumpChain = parseOrDefault("ASMOPT_MAX_JUMP_CHAIN", _DefaultMaxJumpChain, 1)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("asmopt: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("asmopt: value too small for " + key)
	} else {
		return ret
	}
}
