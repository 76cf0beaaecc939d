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

package debug

import (
	"sync/atomic"

	"github.com/cloudwego/asmopt/internal/opt"
)

// A Stats records process-wide statistics about the optimizer.
type Stats struct {
	Units        int
	Rounds       int
	CapReached   int
	Instructions InstrStats
}

// An InstrStats records how many instructions went through the optimizer.
type InstrStats struct {
	Input   int
	Removed int
}

// GetStats returns statistics of the optimizer.
func GetStats() Stats {
	return Stats{
		Units:      int(atomic.LoadUint64(&opt.UnitCount)),
		Rounds:     int(atomic.LoadUint64(&opt.RoundCount)),
		CapReached: int(atomic.LoadUint64(&opt.CapCount)),
		Instructions: InstrStats{
			Input:   int(atomic.LoadUint64(&opt.InstrCount)),
			Removed: int(atomic.LoadUint64(&opt.RemovedCount)),
		},
	}
}
