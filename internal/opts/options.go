/*
 * Copyright 2022 CloudWeGo Authors
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

package opts

type Options struct {
	MaxRounds      int
	MaxJumpChain   int
	DisabledPasses map[string]bool
	PureExterns    []string
}

func (self *Options) IsDisabled(pass string) bool {
	return self.DisabledPasses[pass]
}

func (self *Options) Disable(passes ...string) {
	if self.DisabledPasses == nil {
		self.DisabledPasses = make(map[string]bool, len(passes))
	}
	for _, p := range passes {
		self.DisabledPasses[p] = true
	}
}

func GetDefaultOptions() Options {
	return Options{
		MaxRounds:    MaxRounds,
		MaxJumpChain: MaxJumpChain,
	}
}
