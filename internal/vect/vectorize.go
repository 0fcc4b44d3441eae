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
    `errors`
    `sort`

    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
    `go.uber.org/zap`
)

// Vectorize vectorizes every innermost loop of fn that passes all the
// analysis gates. It returns the reasons of the rejected loops, which are
// also logged through the context. The CFG of fn is up to date afterwards.
func Vectorize(ctx *PassContext, fn *ir.Func) []error {
    var ret []error
    fn.Rebuild()

    /* remember the headers, the loops are rediscovered after every change */
    hdrs := candidates(fn)
    for _, hdr := range hdrs {
        lp := fn.Loops.LoopOf(hdr)

        /* the loop might have been split by an earlier transformation */
        if lp == nil || lp.Header != hdr {
            continue
        }

        /* try to vectorize it */
        if err := vectorizeLoop(ctx, fn, lp); err != nil {
            ret = append(ret, err)
        }
    }

    /* all done */
    return ret
}

// candidates returns the headers of the innermost loops, deepest first.
func candidates(fn *ir.Func) []*ir.BasicBlock {
    lps := fn.Loops.Innermost()
    ret := make([]*ir.BasicBlock, 0, len(lps))

    /* order by depth, then by header */
    sort.SliceStable(lps, func(i int, j int) bool {
        if lps[i].Depth != lps[j].Depth {
            return lps[i].Depth > lps[j].Depth
        } else {
            return lps[i].Header.Id < lps[j].Header.Id
        }
    })

    /* extract the headers */
    for _, lp := range lps {
        ret = append(ret, lp.Header)
    }
    return ret
}

func vectorizeLoop(ctx *PassContext, fn *ir.Func, lp *ir.Loop) error {
    name := lp.String()
    ctx.Stats.Analyzed.Inc()

    /* run the gates */
    info, err := analyze(ctx, fn, lp)
    if err != nil {
        var f Failure
        if !errors.As(err, &f) {
            panic(err)
        }

        /* record the reason */
        f.Loop = name
        ctx.Stats.reject(f.Reason)
        ctx.Log.Info("not vectorized: " + f.Reason.String(),
            zap.String("func", fn.Name),
            zap.String("loop", name),
            zap.Stringer("reason", f.Reason),
            zap.String("note", f.Note),
        )
        return f
    }

    /* transform the loop */
    apply(ctx, info)
    ctx.Stats.Vectorized.Inc()

    /* log the decision */
    ctx.Log.Info("vectorized: " + name,
        zap.String("func", fn.Name),
        zap.String("loop", name),
        zap.Int("vf", info.VF),
        zap.Stringer("peel", info.Peel),
        zap.Bool("epilogue", info.Epilogue),
    )
    return nil
}

// analyze runs the analysis gates in order, stopping at the first one that
// rejects the loop.
func analyze(ctx *PassContext, fn *ir.Func, lp *ir.Loop) (*LoopInfo, error) {
    info, err := analyzeForm(fn, lp)
    if err != nil {
        return nil, err
    }

    /* the remaining gates only look at the loop */
    for _, gate := range []func() error {
        func() error { return collectRefs(info) },
        func() error { return analyzeCycles(info) },
        func() error { return analyzeAlignment(info, ctx.Target) },
        func() error { return analyzeOperations(info, ctx.Target) },
        func() error { return analyzeDependences(info) },
        func() error { return analyzeAccessPatterns(info) },
    } {
        if err = gate(); err != nil {
            return nil, err
        }
    }

    /* the loop can be vectorized */
    return info, nil
}

// apply transforms an accepted loop.
func apply(ctx *PassContext, info *LoopInfo) {
    var pl *Peeled
    fn := info.Func

    /* Phase 1: Peel the iterations before the aligned store */
    if info.Peel.Kind == PeelForAlignment {
        n := scev.Materialize(fn, info.Preheader, info.TripCount, ir.TI64)
        peelLoop(fn, info.Loop, peelCount(info, n), n, true)
        info.reload()
        ctx.Stats.Prologues.Inc()
    }

    /* Phase 2: Split off the scalar epilogue */
    b := emitBounds(info)
    snap := takeSnapshot(info)

    /* the epilogue runs the iterations after rvf */
    if info.Epilogue {
        pl = peelLoop(fn, info.Loop, b.rvf, b.n, false)
        info.Loop = fn.Loops.LoopOf(info.Header)
        info.Preheader = pl.Entry
        info.Exit = pl.Guard
        info.Blocks = info.Loop.Blocks
        ctx.Stats.Epilogues.Inc()
    }

    /* Phase 3: Vectorize the statements */
    newTransformer(ctx, info).run()
    finalize(info, pl, b, snap)

    /* Phase 4: Clean up and repair the memory chains */
    fn.Rebuild()
    ir.TDCE(fn)

    /* rename the memory if any vector access was created */
    if len(ctx.Renames()) != 0 {
        fn.RenameMemory()
        ctx.clearRenames()
    }
}

// peelCount computes how many scalar iterations are needed before the
// peeled store reaches a vector boundary, at the end of the preheader:
//
//     min(n, (VF - ((addr & (VB - 1)) >> log2(elem))) & (VF - 1))
//
func peelCount(info *LoopInfo, n ir.Reg) ir.Reg {
    fn := info.Func
    pre := info.Preheader
    ref := info.Ref(info.Peel.Ref)
    vb := info.Stmt(ref.Stmt).VecType.Size()

    /* the address of the first store */
    addr := emitAddress(fn, pre, ref)
    cm := fn.NewReg(ir.TI64)
    cs := fn.NewReg(ir.TI64)
    cv := fn.NewReg(ir.TI64)
    cl := fn.NewReg(ir.TI64)

    /* intermediate values */
    low := fn.NewReg(ir.TI64)
    idx := fn.NewReg(ir.TI64)
    rem := fn.NewReg(ir.TI64)
    cnt := fn.NewReg(ir.TI64)
    ret := fn.NewReg(ir.TI64)

    /* compute the peel count */
    pre.Append(
        &ir.IrConstInt   { R: cm, V: int64(vb - 1) },
        &ir.IrConstInt   { R: cs, V: int64(log2(ref.Elem.Size())) },
        &ir.IrConstInt   { R: cv, V: int64(info.VF) },
        &ir.IrConstInt   { R: cl, V: int64(info.VF - 1) },
        &ir.IrBinaryExpr { R: low, X: addr, Y: cm, Op: ir.IrOpAnd },
        &ir.IrBinaryExpr { R: idx, X: low, Y: cs, Op: ir.IrOpShr },
        &ir.IrBinaryExpr { R: rem, X: cv, Y: idx, Op: ir.IrOpSub },
        &ir.IrBinaryExpr { R: cnt, X: rem, Y: cl, Op: ir.IrOpAnd },
        &ir.IrBinaryExpr { R: ret, X: n, Y: cnt, Op: ir.IrOpMin },
    )
    return ret
}

// reload refreshes the loop info after iterations were peeled off the
// front of the loop. The statements are unchanged, but the loop now starts
// from the merged values.
func (self *LoopInfo) reload() {
    fn := self.Func
    self.Loop = fn.Loops.LoopOf(self.Header)

    /* the loop must still be there */
    if self.Loop == nil || self.Loop.Header != self.Header {
        panic("vectorize: loop disappeared after peeling: " + self.Header.String())
    }

    /* refresh the shape */
    self.Latch = self.Loop.Latches[0]
    self.Preheader = self.Loop.Preheader()
    self.Exit = self.Loop.Exits()[0][1]
    self.Blocks = self.Loop.Blocks

    /* the evolutions start from the merged values */
    self.ev = scev.Analyze(fn, self.Loop)
    self.TripCount = self.ev.TripCount()

    /* the trip count must still be computable */
    if self.TripCount == nil {
        panic("vectorize: lost the trip count after peeling: " + self.Loop.String())
    }

    /* recompute the access functions, keeping the misalignments */
    for i := range self.Refs {
        if err := self.describe(&self.Refs[i]); err != nil {
            panic("vectorize: reference changed after peeling: " + err.Error())
        }
    }
}
