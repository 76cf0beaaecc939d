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

// DeadCode removes every block that cannot be reached from the entry, an
// export entry or an address-taken instruction.
type DeadCode struct{}

func (DeadCode) CanRun(ctx *Context) bool {
	return len(ctx.CFG().Blocks) > 1
}

func (self DeadCode) Run(ctx *Context) bool {
	nb := 0
	ni := 0
	cfg := ctx.CFG()
	reach := cfg.Reachable()

	/* remove backwards so that indices stay valid */
	for k := len(cfg.Blocks) - 1; k >= 0; k-- {
		if bb := cfg.Blocks[k]; !reach[bb] {
			nb++
			ni += bb.Len()
			for i := bb.Last(); i >= bb.Start; i-- {
				ctx.RemoveInstruction(i)
			}
		}
	}

	/* update the counters */
	ctx.Count("DeadBlocksRemoved", nb)
	ctx.Count("DeadInstructionsRemoved", ni)
	return nb != 0
}
