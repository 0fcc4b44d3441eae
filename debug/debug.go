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

package debug

import (
	"fmt"
	"strings"

	"github.com/cloudwego/loopvec/internal/vect"
	"github.com/cloudwego/loopvec/ir"
	"golang.org/x/arch/x86/x86asm"
)

// A Stats records statistics about the vectorizer.
type Stats struct {
	Analyzed   int
	Vectorized int
	Prologues  int
	Epilogues  int
	Rejected   map[string]int
}

// GetStats returns statistics of the vectorizer since the process started
// or the last call to ResetStats.
func GetStats() Stats {
	st := &vect.GlobalStats
	ret := Stats{
		Analyzed:   int(st.Analyzed.Load()),
		Vectorized: int(st.Vectorized.Load()),
		Prologues:  int(st.Prologues.Load()),
		Epilogues:  int(st.Epilogues.Load()),
		Rejected:   make(map[string]int),
	}

	/* only the reasons that happened */
	for _, r := range vect.Reasons() {
		if n := st.Rejected[r].Load(); n != 0 {
			ret.Rejected[r.String()] = int(n)
		}
	}
	return ret
}

// ResetStats clears the statistics.
func ResetStats() {
	vect.GlobalStats.Reset()
}

// DumpDot renders the CFG of fn in the Graphviz dot language.
func DumpDot(fn *ir.Func) string {
	return ir.Dot(fn)
}

// Disassemble decodes AMD64 machine code, one instruction per line.
func Disassemble(buf []byte) (string, error) {
	var pc int
	var sb strings.Builder

	/* decode every instruction */
	for pc < len(buf) {
		ins, err := x86asm.Decode(buf[pc:], 64)
		if err != nil {
			return sb.String(), fmt.Errorf("invalid instruction at offset %#x: %w", pc, err)
		}
		fmt.Fprintf(&sb, "%04x  %s\n", pc, x86asm.GoSyntax(ins, uint64(pc), nil))
		pc += ins.Len
	}
	return sb.String(), nil
}
