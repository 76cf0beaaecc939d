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
	"strings"

	"github.com/cloudwego/asmopt/ir"
	"github.com/oleiade/lane"
)

// BasicBlock is the half-open instruction range [Start, End) of the stream.
type BasicBlock struct {
	Id    int
	Start int
	End   int
	Succs []*BasicBlock
	Preds []*BasicBlock
}

func (self *BasicBlock) Len() int  { return self.End - self.Start }
func (self *BasicBlock) Last() int { return self.End - 1 }

func (self *BasicBlock) String() string {
	return fmt.Sprintf("bb_%d[%d:%d]", self.Id, self.Start, self.End)
}

func (self *BasicBlock) link(to *BasicBlock) {
	for _, p := range self.Succs {
		if p == to {
			return
		}
	}
	self.Succs = append(self.Succs, to)
	to.Preds = append(to.Preds, self)
}

// CFG is the control-flow graph of an instruction stream. Blocks are
// numbered by their start index.
type CFG struct {
	Blocks []*BasicBlock
	Entry  *BasicBlock
	Roots  []*BasicBlock
	Taken  []*BasicBlock
	index  []int
}

// BlockOf returns the block containing the i-th instruction.
func (self *CFG) BlockOf(i int) *BasicBlock {
	return self.Blocks[self.index[i]]
}

// Reachable returns the set of blocks reachable from any root.
func (self *CFG) Reachable() map[*BasicBlock]bool {
	q := lane.NewQueue()
	ret := make(map[*BasicBlock]bool, len(self.Blocks))

	/* seed with the roots */
	for _, bb := range self.Roots {
		if !ret[bb] {
			ret[bb] = true
			q.Enqueue(bb)
		}
	}

	/* traverse the graph with BFS */
	for !q.Empty() {
		for _, p := range q.Dequeue().(*BasicBlock).Succs {
			if !ret[p] {
				ret[p] = true
				q.Enqueue(p)
			}
		}
	}
	return ret
}

func (self *CFG) String() string {
	buf := make([]string, 0, len(self.Blocks))
	for _, bb := range self.Blocks {
		succ := make([]string, 0, len(bb.Succs))
		for _, p := range bb.Succs {
			succ = append(succ, fmt.Sprintf("bb_%d", p.Id))
		}
		buf = append(buf, fmt.Sprintf("%s -> [%s]", bb, strings.Join(succ, ", ")))
	}
	return strings.Join(buf, "\n")
}

// GraphBuilder partitions an instruction stream into basic blocks.
type GraphBuilder struct {
	Pin   map[int]bool
	Index map[*ir.Instr]int
}

func CreateGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		Pin:   make(map[int]bool),
		Index: make(map[*ir.Instr]int),
	}
}

func (self *GraphBuilder) pin(p *ir.Instr) {
	if i, ok := self.Index[p]; ok {
		self.Pin[i] = true
	}
}

func (self *GraphBuilder) scan(p []*ir.Instr, entries []*ir.Instr, taken []*ir.Instr) {
	for i, v := range p {
		self.Index[v] = i
	}

	/* the first instruction, every external entry and every address-taken instruction */
	self.Pin[0] = true
	for _, v := range entries {
		self.pin(v)
	}
	for _, v := range taken {
		self.pin(v)
	}

	/* jump targets and the instruction after a block end */
	for i, v := range p {
		if v.IsBranch() {
			self.pin(v.Br)
		}
		if v.EndsBlock() {
			self.Pin[i+1] = true
		}
	}
}

func (self *GraphBuilder) blockOf(cfg *CFG, p *ir.Instr) *BasicBlock {
	if i, ok := self.Index[p]; !ok {
		return nil
	} else {
		return cfg.Blocks[cfg.index[i]]
	}
}

func (self *GraphBuilder) rootOf(cfg *CFG, dst *[]*BasicBlock, p *ir.Instr) {
	if bb := self.blockOf(cfg, p); bb != nil {
		for _, v := range *dst {
			if v == bb {
				return
			}
		}
		*dst = append(*dst, bb)
	}
}

// Build partitions p into blocks and links them. Roots are the entry block,
// every export entry block and every address-taken block, in that order.
func (self *GraphBuilder) Build(p []*ir.Instr, entries []*ir.Instr, taken []*ir.Instr) *CFG {
	ret := &CFG{index: make([]int, len(p))}

	/* empty streams have no blocks */
	if len(p) == 0 {
		return ret
	}

	/* partition into blocks */
	self.scan(p, entries, taken)
	for i := range p {
		if self.Pin[i] {
			ret.Blocks = append(ret.Blocks, &BasicBlock{Id: i, Start: i})
		}
		bb := ret.Blocks[len(ret.Blocks)-1]
		bb.End = i + 1
		ret.index[i] = len(ret.Blocks) - 1
	}

	/* collect the roots */
	ret.Entry = ret.Blocks[0]
	ret.Roots = append(ret.Roots, ret.Entry)
	for _, v := range entries {
		self.rootOf(ret, &ret.Roots, v)
	}
	for _, v := range taken {
		self.rootOf(ret, &ret.Roots, v)
		self.rootOf(ret, &ret.Taken, v)
	}

	/* link the blocks */
	for i, bb := range ret.Blocks {
		last := p[bb.Last()]

		/* fall through to the next block */
		if !last.IsTerminator() && i+1 < len(ret.Blocks) {
			bb.link(ret.Blocks[i+1])
		}

		/* direct jumps */
		if last.IsBranch() {
			if to := self.blockOf(ret, last.Br); to != nil {
				bb.link(to)
			}
		}

		/* indirect jumps may land on any address-taken block */
		if last.Op == ir.OP_jump_indirect {
			for _, to := range ret.Taken {
				bb.link(to)
			}
		}
	}
	return ret
}

// BuildCFG builds the control-flow graph of p.
func BuildCFG(p []*ir.Instr, entries []*ir.Instr, taken []*ir.Instr) *CFG {
	return CreateGraphBuilder().Build(p, entries, taken)
}
