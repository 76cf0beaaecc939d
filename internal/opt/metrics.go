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
	"strings"
)

// Metrics is a per-pass counter store. It is advisory only and never
// affects optimization decisions.
type Metrics struct {
	counters map[string]map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]map[string]int)}
}

func (self *Metrics) RecordPassMetric(pass string, counter string, delta int) {
	m, ok := self.counters[pass]
	if !ok {
		m = make(map[string]int)
		self.counters[pass] = m
	}
	m[counter] += delta
}

// Get returns the value of a counter, zero if it was never recorded.
func (self *Metrics) Get(pass string, counter string) int {
	return self.counters[pass][counter]
}

// Passes returns the names of every pass that recorded a counter, sorted.
func (self *Metrics) Passes() []string {
	ret := make([]string, 0, len(self.counters))
	for k := range self.counters {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Counters returns the counter names of a pass, sorted.
func (self *Metrics) Counters(pass string) []string {
	ret := make([]string, 0, len(self.counters[pass]))
	for k := range self.counters[pass] {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Merge adds every counter of other into self.
func (self *Metrics) Merge(other *Metrics) {
	for p, m := range other.counters {
		for c, v := range m {
			self.RecordPassMetric(p, c, v)
		}
	}
}

func (self *Metrics) String() string {
	buf := make([]string, 0, len(self.counters))
	for _, p := range self.Passes() {
		for _, c := range self.Counters(p) {
			buf = append(buf, fmt.Sprintf("%s.%s=%d", p, c, self.counters[p][c]))
		}
	}
	return strings.Join(buf, " ")
}

// Summary describes one driver run.
type Summary struct {
	Rounds     int
	Changed    bool
	CapReached bool
}

func (self Summary) String() string {
	return fmt.Sprintf("pass ran %d rounds, changed=%t", self.Rounds, self.Changed)
}
