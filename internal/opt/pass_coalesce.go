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
	"sort"

	"github.com/cloudwego/asmopt/ir"
	"gonum.org/v1/gonum/graph/simple"
)

// Coalesce merges locals and temporaries of the same type whose live
// intervals never overlap into one storage slot. Candidates are placed
// greedily, widest interval first; ties are broken by the first reference,
// then by value id. A candidate joins the first group it does not
// interfere with, and every member of a group is renamed to the group's
// first (widest) member.
type Coalesce struct{}

type _Candidate struct {
	Value    *ir.Value
	Interval Interval
}

type _SlotGroup struct {
	primary *ir.Value
	members []int
}

func (Coalesce) CanRun(ctx *Context) bool {
	return ctx.Len() != 0
}

func (self Coalesce) Run(ctx *Context) bool {
	cands := self.candidates(ctx)
	if len(cands) < 2 {
		return false
	}

	/* build the interference graph */
	g := simple.NewUndirectedGraph()
	for k := range cands {
		g.AddNode(simple.Node(k))
	}
	for k := range cands {
		for l := k + 1; l < len(cands); l++ {
			if cands[k].Value.Type == cands[l].Value.Type && cands[k].Interval.Overlaps(cands[l].Interval) {
				g.SetEdge(g.NewEdge(simple.Node(k), simple.Node(l)))
			}
		}
	}

	/* place every candidate in the first compatible group */
	var groups []*_SlotGroup
	repl := make(map[*ir.Value]*ir.Value)
	for k, c := range cands {
		if grp := self.place(g, cands, groups, k); grp != nil {
			grp.members = append(grp.members, k)
			repl[c.Value] = grp.primary
		} else {
			groups = append(groups, &_SlotGroup{primary: c.Value, members: []int{k}})
		}
	}

	/* nothing to merge */
	if len(repl) == 0 {
		return false
	}

	/* rename every reference */
	for i := 0; i < ctx.Len(); i++ {
		ctx.RewriteOperands(i, func(_ int, v *ir.Value) *ir.Value {
			if r, ok := repl[v]; ok {
				return r
			} else {
				return v
			}
		})
	}

	/* the secondaries no longer need storage */
	for v := range repl {
		ctx.Merge(v)
	}
	ctx.Count("ValuesCoalesced", len(repl))
	return true
}

func (self Coalesce) place(g *simple.UndirectedGraph, cands []_Candidate, groups []*_SlotGroup, k int) *_SlotGroup {
	for _, grp := range groups {
		if cands[grp.members[0]].Value.Type != cands[k].Value.Type {
			continue
		}
		if !self.interferes(g, grp, k) {
			return grp
		}
	}
	return nil
}

func (self Coalesce) interferes(g *simple.UndirectedGraph, grp *_SlotGroup, k int) bool {
	for _, m := range grp.members {
		if g.HasEdgeBetween(int64(m), int64(k)) {
			return true
		}
	}
	return false
}

func (self Coalesce) candidates(ctx *Context) []_Candidate {
	lv := ComputeLiveness(ctx)
	iv := LiveIntervals(ctx, lv)
	cfg := ctx.CFG()
	ret := make([]_Candidate, 0, len(iv))

	/* Phase 1: locals and temporaries with a pinned position, never read before written */
	for v, r := range iv {
		if v.IsStable() || ctx.IsEscaped(v) {
			continue
		}
		if !self.isLiveAtRoot(cfg, lv, v) {
			ret = append(ret, _Candidate{Value: v, Interval: r})
		}
	}

	/* Phase 2: widest first, then by position, then by id */
	sort.Slice(ret, func(i int, j int) bool {
		a, b := ret[i], ret[j]
		if a.Interval.Len() != b.Interval.Len() {
			return a.Interval.Len() > b.Interval.Len()
		} else if a.Interval.Start != b.Interval.Start {
			return a.Interval.Start < b.Interval.Start
		} else {
			return a.Value.Id < b.Value.Id
		}
	})
	return ret
}

func (self Coalesce) isLiveAtRoot(cfg *CFG, lv *Liveness, v *ir.Value) bool {
	for _, bb := range cfg.Roots {
		if lv.IsLiveIn(bb, v) {
			return true
		}
	}
	return false
}
