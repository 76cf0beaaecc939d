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
	"sort"

	"github.com/cloudwego/asmopt/ir"
	"github.com/oleiade/lane"
)

type _ValueSet map[*ir.Value]struct{}

func (self _ValueSet) add(v *ir.Value) bool {
	if _, ok := self[v]; ok {
		return false
	} else {
		self[v] = struct{}{}
		return true
	}
}

func (self _ValueSet) has(v *ir.Value) bool {
	_, ok := self[v]
	return ok
}

// Liveness holds the live-in and live-out sets of every block.
type Liveness struct {
	In  map[*BasicBlock]_ValueSet
	Out map[*BasicBlock]_ValueSet
}

// IsLiveIn reports whether v is read in bb (or after it) before being written.
func (self *Liveness) IsLiveIn(bb *BasicBlock, v *ir.Value) bool {
	return self.In[bb].has(v)
}

func (self *Liveness) IsLiveOut(bb *BasicBlock, v *ir.Value) bool {
	return self.Out[bb].has(v)
}

// ComputeLiveness solves the backward liveness equations over the CFG of
// the context with a worklist.
func ComputeLiveness(ctx *Context) *Liveness {
	cfg := ctx.CFG()
	use := make(map[*BasicBlock]_ValueSet, len(cfg.Blocks))
	def := make(map[*BasicBlock]_ValueSet, len(cfg.Blocks))
	ret := &Liveness{
		In:  make(map[*BasicBlock]_ValueSet, len(cfg.Blocks)),
		Out: make(map[*BasicBlock]_ValueSet, len(cfg.Blocks)),
	}

	/* local use and def sets */
	for _, bb := range cfg.Blocks {
		u, d := make(_ValueSet), make(_ValueSet)
		for i := bb.Start; i < bb.End; i++ {
			ru, rd := ctx.Refs(i)
			for _, v := range ru {
				if !d.has(v) {
					u.add(v)
				}
			}
			for _, v := range rd {
				d.add(v)
			}
		}
		use[bb], def[bb] = u, d
		ret.In[bb], ret.Out[bb] = make(_ValueSet), make(_ValueSet)
	}

	/* seed the worklist in reverse order */
	q := lane.NewQueue()
	queued := make(map[*BasicBlock]bool, len(cfg.Blocks))
	for i := len(cfg.Blocks) - 1; i >= 0; i-- {
		q.Enqueue(cfg.Blocks[i])
		queued[cfg.Blocks[i]] = true
	}

	/* iterate until no live-in set grows */
	for !q.Empty() {
		bb := q.Dequeue().(*BasicBlock)
		queued[bb] = false

		/* out = union of the successors' in */
		out := ret.Out[bb]
		for _, s := range bb.Succs {
			for v := range ret.In[s] {
				out.add(v)
			}
		}

		/* in = use + (out - def) */
		grown := false
		in := ret.In[bb]
		for v := range use[bb] {
			grown = in.add(v) || grown
		}
		for v := range out {
			if !def[bb].has(v) {
				grown = in.add(v) || grown
			}
		}

		/* predecessors need to be recomputed */
		if grown {
			for _, p := range bb.Preds {
				if !queued[p] {
					queued[p] = true
					q.Enqueue(p)
				}
			}
		}
	}
	return ret
}

// Interval is the closed instruction index range [Start, End].
type Interval struct {
	Start int
	End   int
}

func (self Interval) Len() int {
	return self.End - self.Start + 1
}

func (self Interval) Overlaps(other Interval) bool {
	return self.Start <= other.End && other.Start <= self.End
}

func (self Interval) String() string {
	return fmt.Sprintf("[%d, %d]", self.Start, self.End)
}

func (self *Interval) extend(i int) {
	if i < self.Start {
		self.Start = i
	}
	if i > self.End {
		self.End = i
	}
}

// LiveRange is the interval of a value.
type LiveRange struct {
	Value    *ir.Value
	Interval Interval
}

// LiveIntervals computes, for every non-constant value referenced by the
// stream, the hull of its references and of every position where it is live.
func LiveIntervals(ctx *Context, lv *Liveness) map[*ir.Value]Interval {
	cfg := ctx.CFG()
	ret := make(map[*ir.Value]Interval)

	/* extend the interval of v to cover i */
	mark := func(v *ir.Value, i int) {
		if v.IsConst() {
			return
		}
		if r, ok := ret[v]; !ok {
			ret[v] = Interval{i, i}
		} else {
			r.extend(i)
			ret[v] = r
		}
	}

	/* every reference */
	for i := 0; i < ctx.Len(); i++ {
		use, def := ctx.Refs(i)
		for _, v := range use {
			mark(v, i)
		}
		for _, v := range def {
			mark(v, i)
		}
	}

	/* every block boundary where the value is live */
	for _, bb := range cfg.Blocks {
		for v := range lv.In[bb] {
			mark(v, bb.Start)
		}
		for v := range lv.Out[bb] {
			mark(v, bb.Last())
		}
	}
	return ret
}

// LiveRanges returns the intervals sorted by start, then by value id.
func LiveRanges(ctx *Context) []LiveRange {
	iv := LiveIntervals(ctx, ComputeLiveness(ctx))
	ret := make([]LiveRange, 0, len(iv))

	/* flatten the map */
	for v, r := range iv {
		ret = append(ret, LiveRange{Value: v, Interval: r})
	}

	/* sort by start position */
	sort.Slice(ret, func(i int, j int) bool {
		if ret[i].Interval.Start != ret[j].Interval.Start {
			return ret[i].Interval.Start < ret[j].Interval.Start
		} else {
			return ret[i].Value.Id < ret[j].Value.Id
		}
	})
	return ret
}
