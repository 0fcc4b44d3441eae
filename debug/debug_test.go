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
	"testing"

	"github.com/cloudwego/loopvec"
	"github.com/cloudwego/loopvec/ir"
	"github.com/cloudwego/loopvec/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func negate(n int64) *ir.Func {
	b := ir.NewBuilder("negate")
	x := b.Array("x", ir.TI32, 64, ir.Static)
	b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, n), 1, func(i ir.Reg) {
		v := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(x), i, 4))
		b.Store(b.Unary(ir.IrOpNegate, v), ir.IndexAddr(ir.DeclAddr(x), i, 4))
	})
	b.Return()
	return b.Build()
}

func TestDebug_GetStats(t *testing.T) {
	ResetStats()
	tg := loopvec.WithTarget(target.NewGeneric(16))
	loopvec.VectorizeLoops(negate(64), tg)
	loopvec.VectorizeLoops(negate(2), tg)

	/* one of each */
	st := GetStats()
	assert.Equal(t, 2, st.Analyzed)
	assert.Equal(t, 1, st.Vectorized)
	assert.Equal(t, map[string]int{"iteration count too small": 1}, st.Rejected)

	/* and back to zero */
	ResetStats()
	assert.Zero(t, GetStats().Analyzed)
}

func TestDebug_DumpDot(t *testing.T) {
	fn := negate(64)
	loopvec.VectorizeLoops(fn, loopvec.WithTarget(target.NewGeneric(16)))
	dot := DumpDot(fn)
	assert.Contains(t, dot, "digraph CFG {")
	assert.Contains(t, dot, "START ->")
}

func TestDebug_Disassemble(t *testing.T) {
	buf, err := target.AMD64{ISA: target.SSE2}.Encode(&ir.IrBinaryExpr{Op: ir.IrOpAdd}, ir.TF32.Vector(4))
	require.NoError(t, err)
	src, err := Disassemble(buf)
	require.NoError(t, err)
	assert.Contains(t, src, "ADDPS")

	/* truncated instructions are reported */
	_, err = Disassemble(buf[:len(buf)-1])
	assert.Error(t, err)
}
