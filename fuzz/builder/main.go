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
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"

	gofakeit "github.com/brianvoe/gofakeit/v6"
	"github.com/cloudwego/asmopt/fuzz"
	"github.com/cloudwego/asmopt/ir"
)

var (
	OutputDir  string
	MaxFileNum int64
	UnitsPer   int
	Size       int
	Seed       int64
)

func init() {
	flag.StringVar(&OutputDir, "out", "testdata", "output directory")
	flag.Int64Var(&MaxFileNum, "max-file-num", 100, "max number of files to generate")
	flag.IntVar(&UnitsPer, "units", 4, "units per module")
	flag.IntVar(&Size, "size", 40, "statements per unit")
	flag.Int64Var(&Seed, "seed", 0, "seed of the first module, 0 picks a random one")
}

func checkArgs() {
	if OutputDir == "" || MaxFileNum <= 0 || UnitsPer <= 0 || Size <= 0 {
		flag.Usage()
		os.Exit(1)
	}
}

func main() {
	flag.Parse()
	checkArgs()

	/* pick a seed if not specified */
	if Seed == 0 {
		Seed = int64(gofakeit.Uint32())
	}
	if err := os.MkdirAll(OutputDir, 0o755); err != nil {
		log.Fatal(fmt.Errorf("create output directory %s failed: %w", OutputDir, err))
	}

	/* generate the modules */
	gen := fuzz.NewProgram(Size)
	for no := int64(1); no <= MaxFileNum; no++ {
		m := new(ir.Module)
		for i := 0; i < UnitsPer; i++ {
			m.Units = append(m.Units, gen.Generate(Seed))
			Seed++
		}
		buf, err := ir.Marshal(m)
		if err != nil {
			log.Fatal(fmt.Errorf("encode module %d failed: %w", no, err))
		}
		err = ioutil.WriteFile(filepath.Join(OutputDir, strconv.FormatInt(no, 10)+".cbor"), buf, 0o644)
		if err != nil {
			log.Fatal(fmt.Errorf("write module %d failed: %w", no, err))
		}
	}
	log.Printf("wrote %d modules to %s, next seed is %d\n", MaxFileNum, OutputDir, Seed)
}
