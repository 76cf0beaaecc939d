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
	"testing"

	"github.com/cloudwego/asmopt/ir"
	"github.com/stretchr/testify/require"
)

func blockIds(bbs []*BasicBlock) []int {
	ret := make([]int, len(bbs))
	for i, bb := range bbs {
		ret[i] = bb.Id
	}
	return ret
}

func TestCFG_Build(t *testing.T) {
	pb := ir.CreateBuilder("test")
	c := pb.Param("c", "SystemBoolean")
	a := pb.Param("a", "SystemInt32")
	pb.JIF("L1", c)
	pb.PUSH(a)
	pb.JMP("L2")
	pb.Label("L1")
	pb.POP()
	pb.Label("L2")
	pb.RET(a)
	pb.Export("_e")
	pb.RET(a)
	ctx := newTestContext(pb.Build())
	cfg := ctx.CFG()
	println(cfg.String())

	/* blocks are numbered by their start index */
	require.Equal(t, []int{0, 1, 3, 4, 5}, blockIds(cfg.Blocks))
	require.Same(t, cfg.Blocks[0], cfg.Entry)
	require.Equal(t, []int{0, 5}, blockIds(cfg.Roots))

	/* edges */
	require.Equal(t, []int{1, 3}, blockIds(cfg.Blocks[0].Succs))
	require.Equal(t, []int{4}, blockIds(cfg.Blocks[1].Succs))
	require.Equal(t, []int{4}, blockIds(cfg.Blocks[2].Succs))
	require.Empty(t, cfg.Blocks[3].Succs)
	require.Equal(t, []int{1, 3}, blockIds(cfg.Blocks[3].Preds))
	require.Same(t, cfg.Blocks[1], cfg.BlockOf(2))

	/* the export block is reachable without predecessors */
	reach := cfg.Reachable()
	require.Len(t, reach, 5)
	require.Empty(t, cfg.Blocks[4].Preds)
}

func TestCFG_JumpIndirect(t *testing.T) {
	pb := ir.CreateBuilder("test")
	a := pb.Param("a", "SystemInt32")
	r := pb.Addr("r", "back")
	pb.JMPI(r)
	pb.RET(a)
	pb.Label("back")
	pb.RET(a)
	cfg := newTestContext(pb.Build()).CFG()

	/* indirect jumps may land on every address-taken block */
	require.Equal(t, []int{0, 1, 2}, blockIds(cfg.Blocks))
	require.Equal(t, []int{2}, blockIds(cfg.Blocks[0].Succs))
	require.Equal(t, []int{0, 2}, blockIds(cfg.Roots))
	require.Equal(t, []int{2}, blockIds(cfg.Taken))
	require.False(t, cfg.Reachable()[cfg.Blocks[1]])
}

func TestCFG_Empty(t *testing.T) {
	cfg := BuildCFG(nil, nil, nil)
	require.Nil(t, cfg.Entry)
	require.Empty(t, cfg.Blocks)
	require.Empty(t, cfg.Reachable())
}
