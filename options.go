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

package asmopt

import (
	"fmt"

	"github.com/cloudwego/asmopt/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithMaxRounds sets the maximum number of fixpoint rounds over the pass
// list. Reaching the cap is not an error: the stream produced by the last
// round is kept and the cap is reported in the Report.
//
// The default value of this option is "50".
func WithMaxRounds(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("asmopt: invalid round cap: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxRounds = n }
	}
}

// WithMaxJumpChain sets how many jumps are followed when threading a chain
// of unconditional jumps.
//
// The default value of this option is "10".
func WithMaxJumpChain(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("asmopt: invalid jump chain depth: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxJumpChain = n }
	}
}

// WithDisabledPasses skips the named passes.
func WithDisabledPasses(names ...string) Option {
	return func(o *opts.Options) { o.Disable(names...) }
}

// WithPureExterns adds extern signatures to the purity allow-list. Only
// externs without side effects whose result depends on the arguments alone
// may be listed.
func WithPureExterns(names ...string) Option {
	return func(o *opts.Options) { o.PureExterns = append(o.PureExterns, names...) }
}

// WithConfig loads options from a TOML file, see LoadOptions.
func WithConfig(path string) Option {
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		panic("asmopt: " + err.Error())
	}
	return func(o *opts.Options) {
		if err := cfg.Apply(o); err != nil {
			panic("asmopt: " + err.Error())
		}
	}
}

// LoadOptions reads a TOML file into a list of options. Unlike WithConfig
// it reports errors instead of panicking.
func LoadOptions(path string) ([]Option, error) {
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err = cfg.Apply(new(opts.Options)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []Option{func(o *opts.Options) { _ = cfg.Apply(o) }}, nil
}

// SetMaxRounds sets the default round cap for every optimization from now
// on.
//
// This value can also be configured with the `ASMOPT_MAX_ROUNDS`
// environment variable.
//
// Returns the old opts.MaxRounds value.
func SetMaxRounds(n int) int {
	n, opts.MaxRounds = opts.MaxRounds, n
	return n
}

// SetMaxJumpChain sets the default jump chain depth for every optimization
// from now on.
//
// This value can also be configured with the `ASMOPT_MAX_JUMP_CHAIN`
// environment variable.
//
// Returns the old opts.MaxJumpChain value.
func SetMaxJumpChain(n int) int {
	n, opts.MaxJumpChain = opts.MaxJumpChain, n
	return n
}
