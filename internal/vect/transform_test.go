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

package vect

import (
    `testing`

    `github.com/brianvoe/gofakeit/v6`
    `github.com/cloudwego/loopvec/ir`
    `github.com/cloudwego/loopvec/target`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

// doWhile emits a loop without a guard. The body runs with i = lo and
// then again while i op hi holds after i += step. The builder is left at
// the block after the loop.
func doWhile(b *ir.Builder, lo ir.Reg, hi ir.Reg, step int64, op ir.IrBinaryOp, body func(i ir.Reg)) {
    hdr := b.NewBlock()
    latch := b.NewBlock()
    exit := b.NewBlock()

    /* i = lo */
    t := b.Func().TypeOf(lo)
    i := b.Var(t)
    b.Assign(i, lo)
    b.Jump(hdr)

    /* body, increment and test */
    b.At(hdr)
    body(i)
    b.Update(i, ir.IrOpAdd, i, b.Int(t, step))
    b.Branch(b.Binary(op, i, hi), latch, exit)

    /* empty latch */
    b.At(latch)
    b.Jump(hdr)
    b.At(exit)
}

// buildTested creates
//
//     j = 0
//     do { p[j] += 1; j++; i += step } while (i op n)
//     return j
//
// with i starting at lo, so that i and j advance at different rates.
func buildTested(op ir.IrBinaryOp, lo int64, step int64) *ir.Func {
    b := ir.NewBuilder("tested")
    n := b.Param("n", ir.TI64)
    p, _ := b.PtrParam("p", ir.TI32, false)
    j := b.Var(ir.TI64)
    b.Assign(j, b.Int(ir.TI64, 0))

    /* the loop */
    doWhile(b, b.Int(ir.TI64, lo), n, step, op, func(ir.Reg) {
        v := b.Load(ir.TI32, ir.IndexAddr(ir.DerefAddr(p), j, 4))
        b.Store(b.Binary(ir.IrOpAdd, v, b.Int(ir.TI32, 1)), ir.IndexAddr(ir.DerefAddr(p), j, 4))
        b.Update(j, ir.IrOpAdd, j, b.Int(ir.TI64, 1))
    })

    /* the number of iterations */
    b.Return(j)
    return b.Build()
}

// buildMap creates a[i] = f(b[i], c[i]) for i in [0, n).
func buildMap(name string, elem ir.Type, f func(b *ir.Builder, x ir.Reg, y ir.Reg) ir.Reg) *ir.Func {
    b := ir.NewBuilder(name)
    n := b.Param("n", ir.TI64)
    a := b.Array("a", elem, 64, ir.Static)
    x := b.Array("b", elem, 64, ir.Static)
    y := b.Array("c", elem, 64, ir.Static)
    b.CountedLoop(b.Int(ir.TI64, 0), n, 1, func(i ir.Reg) {
        u := b.Load(elem, ir.IndexAddr(ir.DeclAddr(x), i, elem.Size()))
        v := b.Load(elem, ir.IndexAddr(ir.DeclAddr(y), i, elem.Size()))
        b.Store(f(b, u, v), ir.IndexAddr(ir.DeclAddr(a), i, elem.Size()))
    })
    b.Return()
    return b.Build()
}

// withCopy passes the stored value of the loop through a copy, which the
// SSA construction would otherwise have removed.
func withCopy(fn *ir.Func) *ir.Func {
    hdr := fn.Loops.Loops[0].Header
    for i, p := range hdr.Ins {
        if st, ok := p.(*ir.IrStore); ok {
            r := fn.NewReg(fn.TypeOf(st.V))
            hdr.InsertAt(i, &ir.IrCopy { R: r, V: st.V })
            st.V = r
            return fn
        }
    }
    panic("no store in the loop")
}

func isVector(fn *ir.Func, match func(p ir.IrNode) (ir.Reg, bool)) func(p ir.IrNode) bool {
    return func(p ir.IrNode) bool {
        r, ok := match(p)
        return ok && fn.TypeOf(r).IsVector()
    }
}

func vecUnary(p ir.IrNode) (ir.Reg, bool) {
    v, ok := p.(*ir.IrUnaryExpr)
    if !ok { return ir.Rz, false }
    return v.R, true
}

func vecCopy(p ir.IrNode) (ir.Reg, bool) {
    v, ok := p.(*ir.IrCopy)
    if !ok { return ir.Rz, false }
    return v.R, true
}

func isBlend(p ir.IrNode) bool {
    _, ok := p.(*ir.IrBlend)
    return ok
}

func checkMap(t *testing.T, build func() *ir.Func, tg target.Target, match func(fn *ir.Func) func(p ir.IrNode) bool) {
    ctx := newTestContext(tg)
    fn := build()
    require.Empty(t, Vectorize(ctx, fn), fn.Name)
    assert.Equal(t, 1, countNodes(fn, isVecStore), fn.Name)
    assert.NotZero(t, countNodes(fn, match(fn)), fn.String())

    /* with and without leftover iterations */
    for _, n := range []int { 0, 1, 4, 7, 16, 33, 64 } {
        checkEquivalent(t, build(), fn, noArgs(uint64(n)))
    }
}

func TestTransform_Select(t *testing.T) {
    for _, elem := range []ir.Type { ir.TI32, ir.TF32, ir.TI64, ir.TF64 } {
        for _, op := range []ir.IrBinaryOp { ir.IrCmpLt, ir.IrCmpGe, ir.IrCmpEq } {
            build := func() *ir.Func {
                return buildMap("select", elem, func(b *ir.Builder, x ir.Reg, y ir.Reg) ir.Reg {
                    return b.Select(op, x, y, x, y)
                })
            }
            checkMap(t, build, target.NewGeneric(16), func(*ir.Func) func(p ir.IrNode) bool {
                return isBlend
            })
        }
    }
}

func TestTransform_SelectInvariant(t *testing.T) {
    build := func() *ir.Func {
        return buildMap("clamp", ir.TF32, func(b *ir.Builder, x ir.Reg, _ ir.Reg) ir.Reg {
            lim := b.Float(ir.TF32, 100)
            return b.Select(ir.IrCmpGt, x, lim, lim, x)
        })
    }
    checkMap(t, build, target.NewGeneric(32), func(*ir.Func) func(p ir.IrNode) bool {
        return isBlend
    })
}

func TestTransform_Unary(t *testing.T) {
    for _, tc := range []struct {
        elem ir.Type
        op   ir.IrUnaryOp
    } {
        { ir.TI32, ir.IrOpNegate },
        { ir.TI32, ir.IrOpAbs },
        { ir.TI32, ir.IrOpNot },
        { ir.TI16, ir.IrOpNegate },
        { ir.TF32, ir.IrOpNegate },
        { ir.TF32, ir.IrOpAbs },
        { ir.TF64, ir.IrOpNegate },
    } {
        build := func() *ir.Func {
            return buildMap("unary", tc.elem, func(b *ir.Builder, x ir.Reg, y ir.Reg) ir.Reg {
                return b.Binary(ir.IrOpAdd, b.Unary(tc.op, x), y)
            })
        }
        checkMap(t, build, target.NewGeneric(16), func(fn *ir.Func) func(p ir.IrNode) bool {
            return isVector(fn, vecUnary)
        })
    }
}

func TestTransform_UnaryUnsupported(t *testing.T) {
    tg := target.NewGeneric(16)
    tg.NoUnary = map[ir.IrUnaryOp]bool { ir.IrOpAbs: true }
    fn := buildMap("abs", ir.TI32, func(b *ir.Builder, x ir.Reg, _ ir.Reg) ir.Reg {
        return b.Unary(ir.IrOpAbs, x)
    })

    /* the scalar loop is kept */
    errs := Vectorize(newTestContext(tg), fn)
    require.Len(t, errs, 1)
    var f Failure
    require.ErrorAs(t, errs[0], &f)
    assert.Equal(t, UnsupportedOperation, f.Reason)
    assert.Equal(t, 0, countNodes(fn, isVecStore))
}

func TestTransform_Assignment(t *testing.T) {
    for _, elem := range []ir.Type { ir.TI32, ir.TF32 } {
        build := func() *ir.Func {
            return withCopy(buildMap("copy", elem, func(b *ir.Builder, x ir.Reg, y ir.Reg) ir.Reg {
                return b.Binary(ir.IrOpMul, x, y)
            }))
        }
        checkMap(t, build, target.NewGeneric(16), func(fn *ir.Func) func(p ir.IrNode) bool {
            return isVector(fn, vecCopy)
        })
    }
}

func TestTransform_ExitComparisons(t *testing.T) {
    for _, tc := range []struct {
        name string
        op   ir.IrBinaryOp
        lo   int64
        step int64
        min  int
        max  int
    } {
        { "le-stride-2", ir.IrCmpLe, 0, 2, -3, 40 },
        { "le-stride-3", ir.IrCmpLe, 1, 3, -3, 60 },
        { "ge-stride-1", ir.IrCmpGe, 40, -1, -3, 45 },
        { "ge-stride-3", ir.IrCmpGe, 60, -3, -3, 64 },
        { "lt-stride-2", ir.IrCmpLt, 0, 2, -3, 40 },
        { "ne-stride-1", ir.IrCmpNe, 0, 1, 1, 40 },
        { "ne-stride-4", ir.IrCmpNe, 0, -4, -40, -4 },
    } {
        for _, vb := range []int { 16, 32 } {
            ctx := newTestContext(peeling(vb, target.MisalignNative))
            fn := buildTested(tc.op, tc.lo, tc.step)
            require.Empty(t, Vectorize(ctx, fn), tc.name)
            assert.Equal(t, 1, countNodes(fn, isVecStore), tc.name)
            assert.Equal(t, int64(1), ctx.Stats.Epilogues.Load(), tc.name)

            /* the count includes the first iteration even if the test fails immediately */
            for i := 0; i < 8; i++ {
                off := gofakeit.Number(0, vb / 4 - 1) * 4
                n := gofakeit.Number(tc.min, tc.max)
                if tc.op == ir.IrCmpNe && (int64(n) - tc.lo) % tc.step != 0 {
                    continue
                }
                checkEquivalent(t, buildTested(tc.op, tc.lo, tc.step), fn, scaleSetup(off, n))
            }
        }
    }
}

func TestTransform_InclusiveStridedBound(t *testing.T) {
    for _, off := range []int { 0, 4, 8, 12 } {
        ctx := newTestContext(peeling(16, target.MisalignNative))
        fn := buildTested(ir.IrCmpLe, 0, 2)
        require.Empty(t, Vectorize(ctx, fn))

        /* i reaches 2 after the first iteration, which already fails i <= 1 */
        for _, n := range []int { -1, 0, 1, 2, 3, 7 } {
            checkEquivalent(t, buildTested(ir.IrCmpLe, 0, 2), fn, scaleSetup(off, n))
        }
    }
}
