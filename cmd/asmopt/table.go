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

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cloudwego/asmopt"
	"github.com/olekukonko/tablewriter"
)

func renderReports(w io.Writer, rpts []*asmopt.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Unit", "Pass", "Counter", "Value"})
	table.SetAutoMergeCells(true)
	table.SetRowLine(true)

	/* one row per counter */
	for _, rpt := range rpts {
		for _, pass := range rpt.Metrics.Passes() {
			for _, name := range rpt.Metrics.Counters(pass) {
				table.Append([]string{rpt.Unit, pass, name, strconv.Itoa(rpt.Metrics.Get(pass, name))})
			}
		}
	}

	/* totals */
	for _, rpt := range rpts {
		table.Append([]string{rpt.Unit, "", "rounds", fmt.Sprintf("%d (cap reached: %v)", rpt.Rounds, rpt.CapReached)})
		table.Append([]string{rpt.Unit, "", "instructions", fmt.Sprintf("%d -> %d", rpt.Before, rpt.After)})
	}
	table.Render()
}
