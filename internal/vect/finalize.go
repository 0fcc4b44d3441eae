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
    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
)

// _Bounds are the values computed in the preheader of the vector loop.
type _Bounds struct {
    n     ir.Reg
    ratio ir.Reg
    rvf   ir.Reg
}

// _Snapshot keeps the evolutions of the values that are needed after the
// loop, taken before the loop is split.
type _Snapshot struct {
    phis []ir.Reg
    live []ir.Reg
    evo  map[ir.Reg]scev.Chrec
}

func takeSnapshot(info *LoopInfo) *_Snapshot {
    ret := &_Snapshot { evo: make(map[ir.Reg]scev.Chrec) }

    /* carried values */
    for _, p := range info.Header.Phi {
        if !p.R.IsMem() {
            ret.phis = append(ret.phis, p.R)
            ret.evo[p.R] = info.ev.Of(p.R)
        }
    }

    /* values used after the loop */
    for _, r := range liveOuts(info.Func, info.Loop) {
        if !r.IsMem() {
            ret.live = append(ret.live, r)
            ret.evo[r] = info.ev.Of(r)
        }
    }
    return ret
}

// emitBounds computes the number of iterations, the number of vector
// iterations and the number of scalar iterations they cover at the end
// of the preheader.
func emitBounds(info *LoopInfo) _Bounds {
    fn := info.Func
    pre := info.Preheader
    lg := int64(log2(info.VF))

    /* n, n >> log2(VF), (n >> log2(VF)) << log2(VF) */
    n := scev.Materialize(fn, pre, info.TripCount, ir.TI64)
    ratio := fn.NewReg(ir.TI64)
    rvf := fn.NewReg(ir.TI64)
    sh := fn.NewReg(ir.TI64)

    /* add to the preheader */
    pre.Append(
        &ir.IrConstInt   { R: sh, V: lg },
        &ir.IrBinaryExpr { R: ratio, X: n, Y: sh, Op: ir.IrOpShr },
        &ir.IrBinaryExpr { R: rvf, X: ratio, Y: sh, Op: ir.IrOpShl },
    )

    /* all done */
    return _Bounds {
        n     : n,
        ratio : ratio,
        rvf   : rvf,
    }
}

// finalize fixes up the values leaving the vector loop and makes it run
// ratio times. pl is the epilogue split, or nil if every iteration is
// covered by the vector loop.
func finalize(info *LoopInfo, pl *Peeled, b _Bounds, snap *_Snapshot) {
    fn := info.Func
    last := scev.Sub(scev.Sym(b.rvf), scev.Const(1))

    /* the scalar epilogue continues from iteration rvf */
    if pl != nil {
        for _, r := range snap.phis {
            if mp := pl.MergeOf(r); mp != nil {
                mp.SetArg(pl.Guard, scev.Materialize(fn, pl.Guard, snap.evo[r].At(scev.Sym(b.rvf)), fn.TypeOf(r)))
            }
        }

        /* values used after the loop, when the epilogue is skipped */
        for _, r := range snap.live {
            if jp := pl.JoinOf(r); jp != nil {
                jp.SetArg(pl.Guard, scev.Materialize(fn, pl.Guard, snap.evo[r].At(last), fn.TypeOf(r)))
            }
        }
    } else if len(snap.live) != 0 {
        outs := outsideBlocks(fn, info.Loop)
        exit := splitEdge(fn, info.Header, info.Exit)

        /* recompute them on the exit edge */
        for _, r := range snap.live {
            v := scev.Materialize(fn, exit, snap.evo[r].At(last), fn.TypeOf(r))
            for _, bb := range outs {
                replaceUsesIn(bb, r, v)
            }
        }
    }

    /* the vector loop runs ratio times */
    rewriteExitTest(fn, info.Header, info.Latch, info.Preheader, b.ratio)
}

func log2(v int) int {
    n := 0
    for v > 1 {
        v >>= 1
        n++
    }
    return n
}
