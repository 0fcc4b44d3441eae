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
    `github.com/cloudwego/loopvec/internal/emu`
    `github.com/cloudwego/loopvec/ir`
    `github.com/cloudwego/loopvec/target`
    `github.com/davecgh/go-spew/spew`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
    `go.uber.org/zap`
    `go.uber.org/zap/zapcore`
    `go.uber.org/zap/zaptest/observer`
)

type _Region struct {
    addr uint64
    size int
}

type _Setup func(e *emu.Emulator, f *gofakeit.Faker) ([]uint64, []_Region)

func newTestContext(t target.Target) *PassContext {
    ctx := NewContext(t, nil)
    ctx.Stats = new(Stats)
    return ctx
}

func peeling(n int, load target.MisalignSupport) target.Generic {
    t := target.NewGeneric(n)
    t.LoadMode = load
    t.PeelForAlign = true
    return t
}

func countNodes(fn *ir.Func, match func(p ir.IrNode) bool) (n int) {
    for _, bb := range fn.Blocks {
        for _, p := range bb.Ins {
            if match(p) {
                n++
            }
        }
    }
    return
}

func isVecStore(p ir.IrNode) bool {
    _, ok := p.(*ir.IrVecStore)
    return ok
}

func isStore(p ir.IrNode) bool {
    _, ok := p.(*ir.IrStore)
    return ok
}

func fill(e *emu.Emulator, fn *ir.Func, f *gofakeit.Faker) {
    for _, d := range fn.Decls {
        base := e.AddrOf(d)
        size := d.Elem.Size()
        for i := 0; i < d.Len; i++ {
            if addr := base + uint64(i * size); d.Elem.Kind.IsFloat() {
                e.StoreFloat(addr, d.Elem.Kind, f.Float64Range(-1000, 1000))
            } else {
                e.StoreInt(addr, d.Elem.Kind, int64(f.Number(-1000, 1000)))
            }
        }
    }
}

func noArgs(values ...uint64) _Setup {
    return func(*emu.Emulator, *gofakeit.Faker) ([]uint64, []_Region) {
        return values, nil
    }
}

// checkEquivalent runs both functions over the same random memory and
// compares the results and every byte they may have written.
func checkEquivalent(t *testing.T, ref *ir.Func, vec *ir.Func, setup _Setup) {
    seed := gofakeit.Int64()
    er := emu.New(ref)
    ev := emu.New(vec)

    /* same contents in both */
    fill(er, ref, gofakeit.New(seed))
    fill(ev, vec, gofakeit.New(seed))
    a1, m1 := setup(er, gofakeit.New(seed + 1))
    a2, m2 := setup(ev, gofakeit.New(seed + 1))

    /* run them */
    r1, err := er.Run(a1...)
    require.NoError(t, err, ref.String())
    r2, err := ev.Run(a2...)
    require.NoError(t, err, vec.String())
    assert.Equal(t, r1, r2, "args %v", a1)

    /* compare the memory */
    require.Equal(t, len(ref.Decls), len(vec.Decls))
    for i, d := range ref.Decls {
        assert.Equal(t, er.Contents(d), ev.Contents(vec.Decls[i]), "%s with args %v", d.Name, a1)
    }
    for i := range m1 {
        assert.Equal(t, er.Bytes(m1[i].addr, m1[i].size), ev.Bytes(m2[i].addr, m2[i].size), "region %d with args %v", i, a1)
    }
}

// buildAdd creates a[i] = b[i] + c[i] for i in [0, n), returning the final
// value of i. A negative n makes it a parameter.
func buildAdd(n int64) *ir.Func {
    var hi ir.Reg
    b := ir.NewBuilder("add")

    /* the bound */
    if n < 0 {
        hi = b.Param("n", ir.TI64)
    }

    /* the arrays */
    a := b.Array("a", ir.TI32, 64, ir.Static)
    x := b.Array("b", ir.TI32, 64, ir.Static)
    y := b.Array("c", ir.TI32, 64, ir.Static)

    /* constant bound */
    if n >= 0 {
        hi = b.Int(ir.TI64, n)
    }

    /* the loop */
    _, i := b.CountedLoop(b.Int(ir.TI64, 0), hi, 1, func(i ir.Reg) {
        u := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(x), i, 4))
        v := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(y), i, 4))
        b.Store(b.Binary(ir.IrOpAdd, u, v), ir.IndexAddr(ir.DeclAddr(a), i, 4))
    })

    /* return the induction */
    b.Return(i)
    return b.Build()
}

// buildParamStore is buildAdd storing through a pointer parameter.
func buildParamStore() *ir.Func {
    b := ir.NewBuilder("param")
    n := b.Param("n", ir.TI64)
    p, _ := b.PtrParam("p", ir.TI32, true)
    x := b.Array("b", ir.TI32, 64, ir.Static)
    y := b.Array("c", ir.TI32, 64, ir.Static)
    b.CountedLoop(b.Int(ir.TI64, 0), n, 1, func(i ir.Reg) {
        u := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(x), i, 4))
        v := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(y), i, 4))
        b.Store(b.Binary(ir.IrOpAdd, u, v), ir.IndexAddr(ir.DerefAddr(p), i, 4))
    })
    b.Return()
    return b.Build()
}

// buildScale creates p[i] = p[i] * 3 + 1 for i in [0, n).
func buildScale() *ir.Func {
    b := ir.NewBuilder("scale")
    n := b.Param("n", ir.TI64)
    p, _ := b.PtrParam("p", ir.TI32, false)
    b.CountedLoop(b.Int(ir.TI64, 0), n, 1, func(i ir.Reg) {
        v := b.Load(ir.TI32, ir.IndexAddr(ir.DerefAddr(p), i, 4))
        v = b.Binary(ir.IrOpMul, v, b.Int(ir.TI32, 3))
        b.Store(b.Binary(ir.IrOpAdd, v, b.Int(ir.TI32, 1)), ir.IndexAddr(ir.DerefAddr(p), i, 4))
    })
    b.Return()
    return b.Build()
}

// buildShift creates a[i + st] = a[i + ld] + 1 for i in [0, n).
func buildShift(ld int64, st int64) *ir.Func {
    b := ir.NewBuilder("shift")
    n := b.Param("n", ir.TI64)
    a := b.Array("a", ir.TI32, 80, ir.Static)

    /* i + k, or i itself */
    at := func(i ir.Reg, k int64) ir.Reg {
        if k == 0 {
            return i
        } else {
            return b.Binary(ir.IrOpAdd, i, b.Int(ir.TI64, k))
        }
    }

    /* the loop */
    b.CountedLoop(b.Int(ir.TI64, 0), n, 1, func(i ir.Reg) {
        v := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(a), at(i, ld), 4))
        b.Store(b.Binary(ir.IrOpAdd, v, b.Int(ir.TI32, 1)), ir.IndexAddr(ir.DeclAddr(a), at(i, st), 4))
    })
    b.Return()
    return b.Build()
}

func scaleSetup(off int, n int) _Setup {
    return func(e *emu.Emulator, f *gofakeit.Faker) ([]uint64, []_Region) {
        p := e.Alloc(256, 32, off)
        for i := 0; i < 64; i++ {
            e.StoreInt(p + uint64(i * 4), ir.I32, int64(f.Number(-1000, 1000)))
        }
        return []uint64 { uint64(n), p }, []_Region { { addr: p, size: 256 } }
    }
}

func TestVectorize_AlignedConstantTrip(t *testing.T) {
    ctx := newTestContext(target.NewGeneric(32))
    fn := buildAdd(64)
    errs := Vectorize(ctx, fn)
    require.Empty(t, errs)

    /* one vector loop, no scalar copy left */
    require.Len(t, fn.Loops.Loops, 1, fn.String())
    assert.Equal(t, 1, countNodes(fn, isVecStore))
    assert.Equal(t, 0, countNodes(fn, isStore))
    assert.Equal(t, int64(1), ctx.Stats.Vectorized.Load())
    assert.Equal(t, int64(0), ctx.Stats.Epilogues.Load())
    assert.Equal(t, int64(0), ctx.Stats.Prologues.Load())

    /* every array was aligned to the vector size */
    for _, d := range fn.Decls {
        assert.Equal(t, 32, d.Align, d.Name)
    }

    /* same results as the scalar loop */
    checkEquivalent(t, buildAdd(64), fn, noArgs())
}

func TestVectorize_RuntimeTripCount(t *testing.T) {
    for i := 0; i < 16; i++ {
        n := gofakeit.Number(0, 64)
        ctx := newTestContext(target.NewGeneric(32))
        fn := buildAdd(-1)
        require.Empty(t, Vectorize(ctx, fn))
        assert.Equal(t, int64(1), ctx.Stats.Epilogues.Load())
        assert.Equal(t, 1, countNodes(fn, isVecStore))

        /* the vector loop and the scalar epilogue */
        require.Len(t, fn.Loops.Loops, 2, fn.String())
        checkEquivalent(t, buildAdd(-1), fn, noArgs(uint64(n)))

        /* the final induction value */
        ret, err := emu.New(fn).Run(uint64(n))
        require.NoError(t, err)
        assert.Equal(t, []uint64 { uint64(n) }, ret)
    }
}

func TestVectorize_MisalignedParamStore(t *testing.T) {
    ctx := newTestContext(target.NewGeneric(32))
    fn := buildParamStore()
    errs := Vectorize(ctx, fn)

    /* rejected, nothing was vectorized */
    require.Len(t, errs, 1)
    var f Failure
    require.ErrorAs(t, errs[0], &f)
    assert.Equal(t, UnsupportedMisalignment, f.Reason)
    assert.NotEmpty(t, f.Loop)
    assert.Equal(t, 0, countNodes(fn, isVecStore))
    assert.Equal(t, 1, countNodes(fn, isStore))
    assert.Equal(t, int64(1), ctx.Stats.Rejected[UnsupportedMisalignment].Load())

    /* the function still does the same thing */
    checkEquivalent(t, buildParamStore(), fn, func(e *emu.Emulator, f *gofakeit.Faker) ([]uint64, []_Region) {
        p := e.Alloc(256, 32, 4)
        return []uint64 { 37, p }, []_Region { { addr: p, size: 256 } }
    })
}

func TestVectorize_DependenceDistance(t *testing.T) {
    for _, vb := range []int { 8, 16, 32 } {
        ctx := newTestContext(peeling(vb, target.MisalignNative))
        fn := buildShift(0, 1)
        errs := Vectorize(ctx, fn)
        require.Len(t, errs, 1)
        var f Failure
        require.ErrorAs(t, errs[0], &f)
        assert.Equal(t, DataDependence, f.Reason, "vector of %d bytes", vb)
        assert.Equal(t, 0, countNodes(fn, isVecStore))
    }
}

func TestVectorize_ForwardDependence(t *testing.T) {
    ctx := newTestContext(target.NewGeneric(16))
    fn := buildShift(8, 0)

    /* a[i] = a[i + 8] + 1 only reads elements that are written later */
    require.Empty(t, Vectorize(ctx, fn))
    assert.Equal(t, 1, countNodes(fn, isVecStore))

    /* with and without leftover iterations */
    for _, n := range []int { 1, 3, 8, 15, 40, 72 } {
        checkEquivalent(t, buildShift(8, 0), fn, noArgs(uint64(n)))
    }
}

func TestVectorize_AlignmentPrologue(t *testing.T) {
    for _, mode := range []target.MisalignSupport {
        target.MisalignNative,
        target.MisalignSoftwarePipelined,
    } {
        for _, mask := range []bool { false, true } {
            for i := 0; i < 8; i++ {
                tg := peeling(16, mode)
                tg.MaskForLoad = mask
                ctx := newTestContext(tg)
                fn := buildScale()

                /* accepted with a prologue and an epilogue */
                require.Empty(t, Vectorize(ctx, fn), "%s", mode)
                assert.Equal(t, int64(1), ctx.Stats.Prologues.Load())
                assert.Equal(t, int64(1), ctx.Stats.Epilogues.Load())
                require.Len(t, fn.Loops.Loops, 3, fn.String())

                /* any misalignment and any number of iterations */
                off := gofakeit.Number(0, 7) * 4
                n := gofakeit.Number(0, 64)
                checkEquivalent(t, buildScale(), fn, scaleSetup(off, n))
            }
        }
    }
}

func TestVectorize_Rejections(t *testing.T) {
    reduce := func() *ir.Func {
        b := ir.NewBuilder("reduce")
        a := b.Array("a", ir.TI32, 64, ir.Static)
        s := b.Var(ir.TI32)
        b.Assign(s, b.Int(ir.TI32, 0))
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
            b.Update(s, ir.IrOpAdd, s, b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(a), i, 4)))
        })
        b.Return(s)
        return b.Build()
    }

    /* two element sizes in the same loop */
    mixed := func() *ir.Func {
        b := ir.NewBuilder("mixed")
        a := b.Array("a", ir.TI32, 64, ir.Static)
        c := b.Array("c", ir.TI64, 64, ir.Static)
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
            b.Store(b.Int(ir.TI32, 1), ir.IndexAddr(ir.DeclAddr(a), i, 4))
            b.Store(b.Int(ir.TI64, 2), ir.IndexAddr(ir.DeclAddr(c), i, 8))
        })
        b.Return()
        return b.Build()
    }

    /* column access of a matrix */
    column := func() *ir.Func {
        b := ir.NewBuilder("column")
        a := b.Array("a", ir.TI32, 256, ir.Static)
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 16), 1, func(i ir.Reg) {
            b.Store(b.Int(ir.TI32, 1), ir.IndexAddr(ir.IndexAddr(ir.DeclAddr(a), i, 64), b.Int(ir.TI64, 0), 4))
        })
        b.Return()
        return b.Build()
    }

    /* calls may touch any memory */
    call := func() *ir.Func {
        b := ir.NewBuilder("call")
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
            b.Call("f", nil, i)
        })
        b.Return()
        return b.Build()
    }

    /* the exit depends on the data */
    sentinel := func() *ir.Func {
        b := ir.NewBuilder("sentinel")
        a := b.Array("a", ir.TI32, 64, ir.Static)
        i := b.Var(ir.TI64)
        hdr, latch, exit := b.NewBlock(), b.NewBlock(), b.NewBlock()
        b.Assign(i, b.Int(ir.TI64, 0))
        b.Jump(hdr)
        b.At(hdr)
        v := b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(a), i, 4))
        b.Store(b.Binary(ir.IrOpAdd, v, b.Int(ir.TI32, 1)), ir.IndexAddr(ir.DeclAddr(a), i, 4))
        b.Update(i, ir.IrOpAdd, i, b.Int(ir.TI64, 1))
        b.Branch(b.Binary(ir.IrCmpNe, v, b.Int(ir.TI32, 0)), latch, exit)
        b.At(latch)
        b.Jump(hdr)
        b.At(exit)
        b.Return(i)
        return b.Build()
    }

    /* the test is at the top, so the latch does the work */
    topTested := func() *ir.Func {
        b := ir.NewBuilder("top")
        a := b.Array("a", ir.TI32, 64, ir.Static)
        i := b.Var(ir.TI64)
        hdr, body, exit := b.NewBlock(), b.NewBlock(), b.NewBlock()
        b.Assign(i, b.Int(ir.TI64, 0))
        b.Jump(hdr)
        b.At(hdr)
        b.Branch(b.Binary(ir.IrCmpLt, i, b.Int(ir.TI64, 64)), body, exit)
        b.At(body)
        b.Store(b.Int(ir.TI32, 1), ir.IndexAddr(ir.DeclAddr(a), i, 4))
        b.Update(i, ir.IrOpAdd, i, b.Int(ir.TI64, 1))
        b.Jump(hdr)
        b.At(exit)
        b.Return()
        return b.Build()
    }

    /* the exit block merges the induction, so it cannot be shared with an epilogue */
    exitPhi := func() *ir.Func {
        b := ir.NewBuilder("exitphi")
        n := b.Param("n", ir.TI64)
        a := b.Array("a", ir.TI32, 64, ir.Static)
        doWhile(b, b.Int(ir.TI64, 0), n, 1, ir.IrCmpLt, func(i ir.Reg) {
            b.Store(b.Int(ir.TI32, 1), ir.IndexAddr(ir.DeclAddr(a), i, 4))
        })
        b.Return()
        fn := b.Build()

        /* return i through a Phi node in the exit block */
        lp := fn.Loops.Loops[0]
        exit := lp.Exits()[0][1]
        for _, p := range lp.Header.Phi {
            if !p.R.IsMem() {
                r := fn.NewReg(ir.TI64)
                phi := &ir.IrPhi { R: r }
                phi.SetArg(lp.Header, p.R)
                exit.Phi = append(exit.Phi, phi)
                exit.Term = &ir.IrReturn { R: []ir.Reg { r } }
            }
        }
        fn.Rebuild()
        return fn
    }

    /* a[i] = i */
    induction := func() *ir.Func {
        b := ir.NewBuilder("iota")
        a := b.Array("a", ir.TI64, 64, ir.Static)
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
            b.Store(i, ir.IndexAddr(ir.DeclAddr(a), i, 8))
        })
        b.Return()
        return b.Build()
    }

    /* the last loaded value is used after the loop */
    last := func() *ir.Func {
        var v ir.Reg
        b := ir.NewBuilder("last")
        a := b.Array("a", ir.TI32, 64, ir.Static)
        doWhile(b, b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, ir.IrCmpLt, func(i ir.Reg) {
            v = b.Load(ir.TI32, ir.IndexAddr(ir.DeclAddr(a), i, 4))
            b.Store(b.Binary(ir.IrOpAdd, v, b.Int(ir.TI32, 1)), ir.IndexAddr(ir.DeclAddr(a), i, 4))
        })
        b.Return(v)
        return b.Build()
    }

    /* a[i * i] = 1 */
    squares := func() *ir.Func {
        b := ir.NewBuilder("squares")
        a := b.Array("a", ir.TI32, 64, ir.Static)
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 8), 1, func(i ir.Reg) {
            b.Store(b.Int(ir.TI32, 1), ir.IndexAddr(ir.DeclAddr(a), b.Binary(ir.IrOpMul, i, i), 4))
        })
        b.Return()
        return b.Build()
    }

    /* *q[i] = 1 */
    gather := func() *ir.Func {
        b := ir.NewBuilder("gather")
        q := b.Array("q", ir.TPtr, 64, ir.Static)
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
            p := b.Load(ir.TPtr, ir.IndexAddr(ir.DeclAddr(q), i, 8))
            b.Store(b.Int(ir.TI32, 1), ir.DerefAddr(p))
        })
        b.Return()
        return b.Build()
    }

    /* s = s + 0 never changes */
    still := func() *ir.Func {
        b := ir.NewBuilder("still")
        a := b.Array("a", ir.TI32, 64, ir.Static)
        s := b.Var(ir.TI32)
        b.Assign(s, b.Int(ir.TI32, 7))
        b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
            b.Update(s, ir.IrOpAdd, s, b.Int(ir.TI32, 0))
            b.Store(b.Int(ir.TI32, 1), ir.IndexAddr(ir.DeclAddr(a), i, 4))
        })
        b.Return(s)
        return b.Build()
    }

    /* check every one of them */
    for _, tc := range []struct {
        name   string
        fn     *ir.Func
        reason Reason
    } {
        { "reduction", reduce(), UnsupportedScalarCycle },
        { "mixed", mixed(), MixedVectorWidths },
        { "too-short", buildAdd(3), IterationCountTooSmall },
        { "column", column(), UnsupportedAccessPattern },
        { "call", call(), UnsupportedDataRef },
        { "sentinel", sentinel(), BadLoopForm },
        { "top-tested", topTested(), BadLoopForm },
        { "exit-phi", exitPhi(), CannotConstructEpilogue },
        { "induction", induction(), UnsupportedOperation },
        { "last", last(), UnsupportedOperation },
        { "squares", squares(), UnsupportedDataRef },
        { "gather", gather(), UnsupportedDataRef },
        { "still", still(), UnsupportedScalarCycle },
    } {
        ctx := newTestContext(target.NewGeneric(16))
        errs := Vectorize(ctx, tc.fn)
        require.Len(t, errs, 1, tc.name)
        var f Failure
        require.ErrorAs(t, errs[0], &f, tc.name)
        assert.Equal(t, tc.reason, f.Reason, "%s: %s", tc.name, spew.Sdump(f))
        assert.Equal(t, int64(1), ctx.Stats.Rejected[tc.reason].Load(), tc.name)
    }
}

func TestVectorize_MisalignedStoreNeedsPeeling(t *testing.T) {
    tg := target.NewGeneric(16)
    tg.LoadMode = target.MisalignNative
    require.Equal(t, target.MisalignNone, tg.Misaligned(target.AccessStore))

    /* misaligned loads are fine, the store is not */
    fn := buildScale()
    errs := Vectorize(newTestContext(tg), fn)
    require.Len(t, errs, 1)
    var f Failure
    require.ErrorAs(t, errs[0], &f)
    assert.Equal(t, UnsupportedMisalignment, f.Reason)
    assert.Contains(t, f.Error(), "store")
    assert.Equal(t, 0, countNodes(fn, isVecStore))

    /* unless the loop can be peeled */
    tg.PeelForAlign = true
    fn = buildScale()
    require.Empty(t, Vectorize(newTestContext(tg), fn))
    checkEquivalent(t, buildScale(), fn, scaleSetup(4, 29))
}

func TestVectorize_ForcedAlignmentIsIdempotent(t *testing.T) {
    ctx := newTestContext(target.NewGeneric(16))
    fn := buildShift(0, 1)
    a := fn.Decls[0]
    require.Equal(t, 4, a.Align)

    /* rejected, but the array is aligned anyway */
    errs := Vectorize(ctx, fn)
    require.Len(t, errs, 1)
    assert.Equal(t, 16, a.Align)

    /* running again gives the same answer */
    again := Vectorize(ctx, fn)
    require.Len(t, again, 1)
    assert.Equal(t, 16, a.Align)
    assert.Equal(t, errs[0].(Failure).Reason, again[0].(Failure).Reason)
}

func TestVectorize_Diagnostics(t *testing.T) {
    core, logs := observer.New(zapcore.InfoLevel)
    ctx := NewContext(target.NewGeneric(32), zap.New(core))
    ctx.Stats = new(Stats)

    /* one accepted, one rejected */
    Vectorize(ctx, buildAdd(64))
    Vectorize(ctx, buildParamStore())

    /* the accepted loop */
    ok := logs.FilterMessageSnippet("vectorized: loop_").All()
    require.Len(t, ok, 1)
    assert.Equal(t, int64(8), ok[0].ContextMap()["vf"])
    assert.Equal(t, "add", ok[0].ContextMap()["func"])

    /* the rejected loop */
    bad := logs.FilterMessage("not vectorized: unsupported misalignment").All()
    require.Len(t, bad, 1)
    assert.Equal(t, "unsupported misalignment", bad[0].ContextMap()["reason"])
    assert.Equal(t, "param", bad[0].ContextMap()["func"])

    /* and the counters */
    assert.Equal(t, int64(2), ctx.Stats.Analyzed.Load())
    assert.Equal(t, int64(1), ctx.Stats.Vectorized.Load())
}
