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
	"os"

	"github.com/tliron/commonlog"
	"gopkg.in/urfave/cli.v1"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("asmopt.cli")

var (
	verboseFlag = cli.IntFlag{
		Name:  "verbose, v",
		Usage: "log verbosity, 0 is quiet, 4 logs every pass",
		Value: 1,
	}
	logFileFlag = cli.StringFlag{
		Name:  "log",
		Usage: "write the log to `FILE` instead of stderr",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "asmopt"
	app.Usage = "optimize stack VM assembly units"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{verboseFlag, logFileFlag}
	app.Before = func(ctx *cli.Context) error {
		if path := ctx.GlobalString(logFileFlag.Name); path != "" {
			commonlog.Configure(ctx.GlobalInt("verbose"), &path)
		} else {
			commonlog.Configure(ctx.GlobalInt("verbose"), nil)
		}
		return nil
	}
	app.Commands = []cli.Command{
		optimizeCommand,
		disCommand,
		runCommand,
		liveRangesCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
