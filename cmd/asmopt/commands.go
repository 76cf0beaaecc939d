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
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/asmopt"
	"github.com/cloudwego/asmopt/debug"
	"github.com/cloudwego/asmopt/internal/emu"
	"github.com/cloudwego/asmopt/ir"
	"github.com/davecgh/go-spew/spew"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration `FILE`",
	}
	disableFlag = cli.StringSliceFlag{
		Name:  "disable",
		Usage: "skip the named pass, may be repeated",
	}
	maxRoundsFlag = cli.IntFlag{
		Name:  "max-rounds",
		Usage: "cap on fixpoint rounds, 0 keeps the default",
	}
	outputFlag = cli.StringFlag{
		Name:  "out, o",
		Usage: "output `FILE`, defaults to stdout",
	}
	metricsFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "print the per-pass counters",
	}
	rawFlag = cli.BoolFlag{
		Name:  "raw",
		Usage: "dump the in-memory structures instead of disassembling",
	}
	unitFlag = cli.StringFlag{
		Name:  "unit, u",
		Usage: "name of the unit, defaults to the first one",
	}
	entryFlag = cli.StringFlag{
		Name:  "entry, e",
		Usage: "export to start from, defaults to the first instruction",
	}
	setFlag = cli.StringSliceFlag{
		Name:  "set",
		Usage: "initial content of a parameter or field, as name=value",
	}
)

var (
	optimizeCommand = cli.Command{
		Action:      optimizeAction,
		Name:        "optimize",
		Usage:       "Optimize every unit of a module",
		ArgsUsage:   "<module.cbor>",
		Flags:       []cli.Flag{configFlag, disableFlag, maxRoundsFlag, outputFlag, metricsFlag},
		Description: `The optimize command runs the pass pipeline over every unit and writes the optimized module.`,
	}
	disCommand = cli.Command{
		Action:    disAction,
		Name:      "dis",
		Usage:     "Disassemble a module",
		ArgsUsage: "<module.cbor>",
		Flags:     []cli.Flag{rawFlag, unitFlag},
	}
	runCommand = cli.Command{
		Action:    runAction,
		Name:      "run",
		Usage:     "Execute a unit on the reference emulator",
		ArgsUsage: "<module.cbor>",
		Flags:     []cli.Flag{unitFlag, entryFlag, setFlag},
	}
	liveRangesCommand = cli.Command{
		Action:    liveRangesAction,
		Name:      "liveranges",
		Usage:     "Render the live ranges of a unit as SVG",
		ArgsUsage: "<module.cbor>",
		Flags:     []cli.Flag{unitFlag, outputFlag},
	}
)

func loadModule(ctx *cli.Context) (*ir.Module, error) {
	if ctx.NArg() != 1 {
		return nil, fmt.Errorf("%s: expected exactly one module file", ctx.Command.Name)
	}
	buf, err := ioutil.ReadFile(ctx.Args().First())
	if err != nil {
		return nil, err
	}
	return ir.Unmarshal(buf)
}

func selectUnit(ctx *cli.Context, m *ir.Module) (*ir.Unit, error) {
	name := ctx.String("unit")
	for _, u := range m.Units {
		if name == "" || u.Name == name {
			return u, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("module is empty")
	} else {
		return nil, fmt.Errorf("module has no unit named %s", name)
	}
}

func openOutput(ctx *cli.Context) (io.WriteCloser, error) {
	if path := ctx.String("out"); path == "" {
		return nopCloser{os.Stdout}, nil
	} else {
		return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

func optimizeAction(ctx *cli.Context) error {
	m, err := loadModule(ctx)
	if err != nil {
		return err
	}

	/* collect the options */
	var options []asmopt.Option
	if path := ctx.String(configFlag.Name); path != "" {
		if options, err = asmopt.LoadOptions(path); err != nil {
			return err
		}
	}
	if names := ctx.StringSlice(disableFlag.Name); len(names) != 0 {
		options = append(options, asmopt.WithDisabledPasses(names...))
	}
	if n := ctx.Int(maxRoundsFlag.Name); n > 0 {
		options = append(options, asmopt.WithMaxRounds(n))
	}

	/* optimize all the units */
	rpts, err := asmopt.OptimizeModule(m, options...)
	if err != nil {
		return err
	}
	for _, rpt := range rpts {
		if rpt.CapReached {
			log.Warningf("unit %s did not reach a fixpoint in %d rounds", rpt.Unit, rpt.Rounds)
		}
		log.Infof("unit %s: %d -> %d instructions, %d -> %d bytes", rpt.Unit, rpt.Before, rpt.After, rpt.SizeBefore, rpt.SizeAfter)
	}

	/* print the counters */
	if ctx.Bool(metricsFlag.Name) {
		renderReports(os.Stderr, rpts)
	}

	/* write the module */
	buf, err := ir.Marshal(m)
	if err != nil {
		return err
	}
	out, err := openOutput(ctx)
	if err != nil {
		return err
	}
	if _, err = out.Write(buf); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func disAction(ctx *cli.Context) error {
	m, err := loadModule(ctx)
	if err != nil {
		return err
	}

	/* a single unit */
	if ctx.String(unitFlag.Name) != "" {
		u, err := selectUnit(ctx, m)
		if err != nil {
			return err
		}
		m = &ir.Module{Units: []*ir.Unit{u}}
	}

	/* dump or disassemble */
	for _, u := range m.Units {
		if ctx.Bool(rawFlag.Name) {
			spew.Fdump(os.Stdout, u)
		} else {
			fmt.Println(u)
			fmt.Println()
		}
	}
	return nil
}

func parseInput(v *ir.Value, text string) (interface{}, error) {
	switch v.Type {
	case "SystemBoolean":
		return strconv.ParseBool(text)
	case "SystemSingle":
		x, err := strconv.ParseFloat(text, 32)
		return float32(x), err
	case "SystemDouble":
		return strconv.ParseFloat(text, 64)
	case "SystemInt32":
		x, err := strconv.ParseInt(text, 0, 32)
		return int32(x), err
	case "SystemInt64":
		return strconv.ParseInt(text, 0, 64)
	case "SystemString":
		return text, nil
	default:
		return nil, fmt.Errorf("cannot parse a value of type %s", v.Type)
	}
}

func runAction(ctx *cli.Context) error {
	m, err := loadModule(ctx)
	if err != nil {
		return err
	}
	u, err := selectUnit(ctx, m)
	if err != nil {
		return err
	}
	vm, err := emu.LoadUnit(u, ctx.String(entryFlag.Name))
	if err != nil {
		return err
	}

	/* index the named values */
	vm.RegisterAll(emu.DefaultHosts())
	vals := make(map[string]*ir.Value)
	for _, v := range u.Values {
		if v.Name != "" {
			vals[v.Name] = v
		}
	}

	/* set the inputs */
	for _, kv := range ctx.StringSlice(setFlag.Name) {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			return fmt.Errorf("invalid input %q, expected name=value", kv)
		}
		v, ok := vals[kv[:i]]
		if !ok {
			return fmt.Errorf("unit %s has no value named %s", u.Name, kv[:i])
		}
		x, err := parseInput(v, kv[i+1:])
		if err != nil {
			return fmt.Errorf("input %s: %w", kv[:i], err)
		}
		vm.Set(v, x)
	}

	/* run and print the trace */
	err = vm.Run()
	for _, c := range vm.Trace {
		fmt.Println(c)
	}
	if err != nil {
		return err
	}
	fmt.Printf("return %v after %d steps\n", vm.Ret, vm.Steps)
	return nil
}

func liveRangesAction(ctx *cli.Context) error {
	m, err := loadModule(ctx)
	if err != nil {
		return err
	}
	u, err := selectUnit(ctx, m)
	if err != nil {
		return err
	}
	out, err := openOutput(ctx)
	if err != nil {
		return err
	}
	if err = debug.DrawLiveRanges(out, u); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
