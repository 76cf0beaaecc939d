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
	"fmt"
	"io"
	"sort"

	"github.com/ajstarks/svgo"
	"github.com/cloudwego/asmopt/internal/opt"
	"github.com/cloudwego/asmopt/internal/opts"
	"github.com/cloudwego/asmopt/ir"
)

const (
	_RowHeight = 24
	_CharWidth = 9
	_Margin    = 100
)

// DrawLiveRanges renders the instruction stream of u with one column per
// local or temporary, showing its live interval. References are drawn as
// circles, filled for reads and hollow for writes.
func DrawLiveRanges(w io.Writer, u *ir.Unit) error {
	if err := opt.Validate(u); err != nil {
		return err
	}

	/* compute the intervals */
	ctx := opt.NewContext(u, nil, opts.GetDefaultOptions())
	lr := opt.LiveRanges(ctx)
	refs := u.Labels()
	maxi := 0
	maxw := 0

	/* only storage the optimizer may reuse */
	vals := make([]opt.LiveRange, 0, len(lr))
	for _, r := range lr {
		if !r.Value.IsStable() {
			vals = append(vals, r)
		}
	}

	/* sort the columns by kind, then by name */
	sort.SliceStable(vals, func(i int, j int) bool {
		k1, k2 := vals[i].Value.Kind, vals[j].Value.Kind
		return k1 < k2 || (k1 == k2 && vals[i].Value.Id < vals[j].Value.Id)
	})

	/* measure the text */
	for _, p := range u.Code {
		if s := p.Disassemble(refs); len(s) > maxi {
			maxi = len(s)
		}
	}
	for _, r := range vals {
		if s := r.Value.String(); len(s) > maxw {
			maxw = len(s)
		}
	}

	/* canvas size */
	insw := maxi*_CharWidth + 120
	regw := (maxw+1)*8 + 16
	p := svg.New(w)
	p.Start(len(vals)*regw+insw+_Margin, len(u.Code)*_RowHeight+_Margin)
	p.Rect(0, 0, len(vals)*regw+insw+_Margin, len(u.Code)*_RowHeight+_Margin, "fill:white")

	/* the instructions, with a separator at every block start */
	cfg := ctx.CFG()
	for i, v := range u.Code {
		h := 95 + i*_RowHeight
		if bb := cfg.BlockOf(i); bb.Start == i {
			p.Text(16, 100+i*_RowHeight, fmt.Sprintf("bb_%d", bb.Id), "fill:gray;font-size:16px;font-family:monospace")
			p.Line(10, 84+i*_RowHeight, insw+5, 84+i*_RowHeight, "stroke:lightgray")
		}
		p.Text(insw, 100+i*_RowHeight, v.Disassemble(refs), "fill:black;font-size:16px;font-family:monospace;text-anchor:end")
		p.Line(insw+10, h, len(vals)*regw+insw+50, h, "stroke:gray")
	}

	/* one column per value */
	for k, r := range vals {
		x := insw + k*regw + 50
		p.Text(x, 70, r.Value.String(), "fill:black;font-size:16px;font-family:monospace;text-anchor:middle")
		p.Line(x, 95+r.Interval.Start*_RowHeight, x, 95+r.Interval.End*_RowHeight, "stroke:black;stroke-width:3")

		/* every reference */
		for i := r.Interval.Start; i <= r.Interval.End; i++ {
			use, def := ctx.Refs(i)
			if contains(def, r.Value) {
				p.Circle(x, 95+i*_RowHeight, 4, "fill:white;stroke:black;stroke-width:2")
			} else if contains(use, r.Value) {
				p.Circle(x, 95+i*_RowHeight, 4, "fill:black;stroke:black;stroke-width:2")
			}
		}
	}

	/* finish the document */
	p.End()
	return nil
}

func contains(vs []*ir.Value, v *ir.Value) bool {
	for _, p := range vs {
		if p == v {
			return true
		}
	}
	return false
}
