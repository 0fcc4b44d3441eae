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

package loopvec

import (
	"testing"

	"github.com/cloudwego/loopvec/internal/emu"
	"github.com/cloudwego/loopvec/ir"
	"github.com/cloudwego/loopvec/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// saxpy creates y[i] = a * x[i] + y[i] over n elements, returning y[n-1].
func saxpy(restrict bool) *ir.Func {
	b := ir.NewBuilder("saxpy")
	n := b.Param("n", ir.TI64)
	a := b.Param("a", ir.TI32)
	x := b.Array("x", ir.TI32, 128, ir.Static)
	y, _ := b.PtrParam("y", ir.TI32, restrict)
	b.CountedLoop(b.Int(ir.TI64, 0), n, 1, func(i ir.Reg) {
		v := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(x), i, 4))
		w := b.Load(ir.TI32, ir.IndexAddr(ir.DerefAddr(y), i, 4))
		b.Store(b.Binary(ir.IrOpAdd, b.Binary(ir.IrOpMul, a, v), w), ir.IndexAddr(ir.DerefAddr(y), i, 4))
	})
	b.Return()
	return b.Build()
}

// fill creates x[i] = i + 1 over 64 elements.
func fill() *ir.Func {
	b := ir.NewBuilder("fill")
	x := b.Array("x", ir.TI32, 64, ir.Static)
	b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
		v := b.Binary(ir.IrOpAdd, b.Int(ir.TI32, 1), b.Int(ir.TI32, 0))
		b.Store(v, ir.IndexAddr(ir.DeclAddr(x), i, 4))
	})
	b.Return()
	return b.Build()
}

func TestVectorizeLoops_Accepted(t *testing.T) {
	fn := fill()
	errs := VectorizeLoops(fn, WithTarget(target.NewGeneric(16)))
	require.NoError(t, Explain(errs))

	/* every element was written */
	e := emu.New(fn)
	_, err := e.Run()
	require.NoError(t, err)
	x := e.Lookup("x")
	require.NotNil(t, x)
	for i := 0; i < 64; i++ {
		assert.Equal(t, int64(1), e.LoadInt(e.AddrOf(x)+uint64(i*4), ir.I32), "x[%d]", i)
	}
}

func TestVectorizeLoops_Rejected(t *testing.T) {
	fn := saxpy(true)
	err := Explain(VectorizeLoops(fn, WithTarget(target.NewGeneric(32))))
	require.Error(t, err)
	assert.Equal(t, []Reason{UnsupportedMisalignment}, Rejections(err))
	assert.Contains(t, err.Error(), "not vectorized: unsupported misalignment")
}

func TestVectorizeLoops_Options(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tg := target.NewGeneric(32)

	/* narrowed to 16 bytes */
	errs := VectorizeLoops(fill(), WithTarget(tg), WithVectorBytes(16), WithVerbose(true), WithLogger(zap.New(core)))
	require.Empty(t, errs)
	ok := logs.FilterMessageSnippet("vectorized: ").All()
	require.Len(t, ok, 1)
	assert.Equal(t, int64(4), ok[0].ContextMap()["vf"])

	/* nothing is logged without verbose mode */
	VectorizeLoops(fill(), WithTarget(tg), WithVerbose(false), WithLogger(zap.New(core)))
	assert.Equal(t, 1, logs.Len())
}

func TestVectorizeLoops_InvalidOptions(t *testing.T) {
	assert.Panics(t, func() { WithVectorBytes(24) })
	assert.Panics(t, func() { WithVectorBytes(8) })
	assert.Panics(t, func() { WithTarget(nil) })
	assert.Panics(t, func() { WithLogger(nil) })
	assert.NotPanics(t, func() { WithVectorBytes(0) })
}
