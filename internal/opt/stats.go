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
	"sync/atomic"

	"github.com/cloudwego/asmopt/internal/opts"
	"github.com/cloudwego/asmopt/ir"
)

var (
	UnitCount    uint64 = 0
	RoundCount   uint64 = 0
	CapCount     uint64 = 0
	InstrCount   uint64 = 0
	RemovedCount uint64 = 0
)

// Optimize validates u, runs the default pass list over it and writes the
// optimized stream back into u.
func Optimize(u *ir.Unit, class *Classification, o opts.Options) (*Context, Summary, error) {
	if err := Validate(u); err != nil {
		return nil, Summary{}, err
	}

	/* extend the classification with the configured externs */
	if len(o.PureExterns) != 0 {
		if class == nil {
			class = DefaultClassification()
		} else {
			class = class.Clone()
		}
		class.AddPure(o.PureExterns...)
	}

	/* run to a fixpoint */
	ctx := NewContext(u, class, o)
	sum, err := NewDriver(DefaultPasses()).Run(ctx)
	if err != nil {
		return ctx, sum, err
	}

	/* record the statistics */
	n := len(u.Code)
	ctx.Finish()
	atomic.AddUint64(&UnitCount, 1)
	atomic.AddUint64(&RoundCount, uint64(sum.Rounds))
	atomic.AddUint64(&InstrCount, uint64(n))
	atomic.AddUint64(&RemovedCount, uint64(n-len(u.Code)))

	/* the cap is only counted */
	if sum.CapReached {
		atomic.AddUint64(&CapCount, 1)
	}
	return ctx, sum, nil
}
