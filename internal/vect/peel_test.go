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
    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

// peelAdd splits the loop of buildAdd(-1) after min(k, n) iterations.
func peelAdd(t *testing.T, k int64, prologue bool) *ir.Func {
    fn := buildAdd(-1)
    fn.Rebuild()
    require.Len(t, fn.Loops.Loops, 1)

    /* normalize the loop */
    info, err := analyzeForm(fn, fn.Loops.Loops[0])
    require.NoError(t, err)

    /* first = min(k, n) */
    pre := info.Preheader
    n := scev.Materialize(fn, pre, info.TripCount, ir.TI64)
    c := fn.NewReg(ir.TI64)
    first := fn.NewReg(ir.TI64)
    pre.Append(
        &ir.IrConstInt   { R: c, V: k },
        &ir.IrBinaryExpr { R: first, X: n, Y: c, Op: ir.IrOpMin },
    )

    /* the original loop runs first when it is not a prologue */
    pl := peelLoop(fn, info.Loop, first, n, prologue)
    if !prologue {
        rewriteExitTest(fn, info.Header, info.Latch, pl.Entry, first)
        fn.Rebuild()
    }

    /* the second copy must be entered from the merge block */
    require.NotNil(t, pl.Guard)
    require.NotNil(t, pl.Merge)
    assert.Contains(t, pl.Second.Pred, pl.Merge)
    return fn
}

func TestPeel_Equivalence(t *testing.T) {
    for _, prologue := range []bool { true, false } {
        for _, k := range []int64 { 0, 1, 3, 8, 100 } {
            fn := peelAdd(t, k, prologue)
            require.Len(t, fn.Loops.Loops, 2, fn.String())

            /* any number of iterations, including none */
            for i := 0; i < 8; i++ {
                n := gofakeit.Number(0, 64)
                checkEquivalent(t, buildAdd(-1), fn, noArgs(uint64(n)))
            }
        }
    }
}

// buildCount creates a function returning the peel count for a store of
// elem through its pointer parameter, with vectors of vb bytes.
func buildCount(elem ir.Type, vb int) *ir.Func {
    var n, p ir.Reg
    b := ir.NewBuilder("count")
    b.Param("n", ir.TI64)
    b.PtrParam("p", elem, false)
    b.Return()
    fn := b.Build()

    /* find the parameters after the SSA conversion */
    for _, ins := range fn.Root.Ins {
        if v, ok := ins.(*ir.IrParam); ok {
            switch v.Id {
                case 0: n = v.R
                case 1: p = v.R
            }
        }
    }

    /* a single store at p */
    vf := vb / elem.Size()
    info := &LoopInfo {
        Func      : fn,
        Preheader : fn.Root,
        VF        : vf,
        Stmts     : []StmtInfo {{ VecType: elem.Vector(vf) }},
        Refs      : []DataRef {{ Write: true, Elem: elem, Address: scev.InvariantOf(scev.Sym(p)) }},
        Peel      : Peel { Kind: PeelForAlignment, Ref: 0 },
    }

    /* return the count */
    ret := peelCount(info, n)
    fn.Root.Term = &ir.IrReturn { R: []ir.Reg { ret } }
    return fn
}

func TestPeel_Count(t *testing.T) {
    for _, elem := range []ir.Type { ir.TI16, ir.TI32, ir.TI64 } {
        for _, vb := range []int { 16, 32 } {
            fn := buildCount(elem, vb)
            size := elem.Size()
            vf := vb / size

            /* every element misalignment */
            for i := 0; i < 32; i++ {
                e := emu.New(fn)
                off := gofakeit.Number(0, vf - 1) * size
                n := gofakeit.Number(0, 40)
                p := e.Alloc(256, vb, off)

                /* run it */
                ret, err := e.Run(uint64(n), p)
                require.NoError(t, err)
                require.Len(t, ret, 1)

                /* compare with the closed form */
                want := (vf - off / size) & (vf - 1)
                if n < want {
                    want = n
                }

                /* the store is aligned after the peeled iterations */
                assert.Equal(t, uint64(want), ret[0], "elem %s, vb %d, off %d, n %d", elem, vb, off, n)
                if want < n {
                    assert.Zero(t, (p + ret[0] * uint64(size)) % uint64(vb), "elem %s, vb %d, off %d", elem, vb, off)
                }
            }
        }
    }
}
