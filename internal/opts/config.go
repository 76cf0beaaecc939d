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

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk form of Options.
//
//	max_rounds      = 50
//	max_jump_chain  = 10
//	disabled_passes = ["Coalesce"]
//	pure_externs    = ["UnityEngineMathf.__Abs__SystemSingle__SystemSingle"]
type Config struct {
	MaxRounds      int      `toml:"max_rounds"`
	MaxJumpChain   int      `toml:"max_jump_chain"`
	DisabledPasses []string `toml:"disabled_passes"`
	PureExterns    []string `toml:"pure_externs"`
}

// LoadConfig reads a TOML configuration file. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)

	/* add file name to decoding errors */
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	/* check for unknown keys */
	if keys := md.Undecoded(); len(keys) != 0 {
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.String())
		}
		return cfg, fmt.Errorf("%s: unknown configuration keys: %s", path, strings.Join(names, ", "))
	}
	return cfg, nil
}

// DecodeConfig parses a TOML configuration from text.
func DecodeConfig(text string) (Config, error) {
	var cfg Config
	_, err := toml.Decode(text, &cfg)
	return cfg, err
}

// Apply merges the configuration into o. Zero values keep the current setting.
func (self Config) Apply(o *Options) error {
	if self.MaxRounds < 0 {
		return fmt.Errorf("invalid max_rounds: %d", self.MaxRounds)
	} else if self.MaxRounds != 0 {
		o.MaxRounds = self.MaxRounds
	}
	if self.MaxJumpChain < 0 {
		return fmt.Errorf("invalid max_jump_chain: %d", self.MaxJumpChain)
	} else if self.MaxJumpChain != 0 {
		o.MaxJumpChain = self.MaxJumpChain
	}
	o.Disable(self.DisabledPasses...)
	o.PureExterns = append(o.PureExterns, self.PureExterns...)
	return nil
}
