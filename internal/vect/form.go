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

// analyzeForm checks the shape of the loop and creates its LoopInfo. The
// loop is normalized to have a dedicated preheader and a dedicated exit
// block, which does not change what the function computes.
func analyzeForm(fn *ir.Func, loop *ir.Loop) (*LoopInfo, error) {
    hdr := loop.Header
    if err := checkShape(loop); err != nil {
        return nil, err
    }

    /* the exit test must be a comparison in the header */
    br, ok := hdr.Term.(*ir.IrBranch)
    if !ok {
        return nil, failf(BadLoopForm, "header of %s does not end with a branch", loop)
    }

    /* find the comparison */
    cmp := findCompare(hdr, br.V)
    if cmp == nil {
        return nil, failf(BadLoopForm, "exit test of %s is not a comparison in the header", loop)
    }

    /* normalize the entry and the exit */
    if normalize(fn, loop) {
        fn.Rebuild()
        loop = fn.Loops.LoopOf(hdr)
    }

    /* the shape might not survive the normalization if the CFG was odd */
    if loop == nil || loop.Header != hdr || loop.Preheader() == nil {
        return nil, failf(BadLoopForm, "cannot create a preheader for bb_%d", hdr.Id)
    }

    /* find the latch and the exit */
    latch := loop.Latches[0]
    exit := loop.Exits()[0][1]

    /* the number of iterations must be known */
    ev := scev.Analyze(fn, loop)
    n := ev.TripCount()

    /* check for unknown or impossible counts */
    if n == nil {
        return nil, failf(BadLoopForm, "cannot determine the number of iterations of %s", loop)
    } else if c, ok := scev.IsConst(n); ok && c <= 0 {
        return nil, failf(BadLoopForm, "%s never iterates", loop)
    }

    /* create the loop info */
    return &LoopInfo {
        Func       : fn,
        Loop       : loop,
        Header     : hdr,
        Latch      : latch,
        Preheader  : loop.Preheader(),
        Exit       : exit,
        Blocks     : loop.Blocks,
        ExitCond   : cmp,
        ExitBranch : br,
        TripCount  : n,
        Peel       : Peel { Kind: PeelNone, Ref: NoRef },
        ev         : ev,
        index      : make(map[ir.IrNode]StmtId),
    }, nil
}

func checkShape(loop *ir.Loop) error {
    hdr := loop.Header
    exits := loop.Exits()

    /* only innermost loops */
    if len(loop.Inner) != 0 {
        return failf(BadLoopForm, "%s is not an innermost loop", loop)
    }

    /* a header and an empty latch */
    if len(loop.Blocks) != 2 || len(loop.Latches) != 1 || loop.Latches[0] == hdr {
        return failf(BadLoopForm, "%s has %d blocks, expected a header and a latch", loop, len(loop.Blocks))
    }

    /* the latch must jump back without doing anything */
    latch := loop.Latches[0]
    if j, ok := latch.Term.(*ir.IrJump); !ok || j.To != hdr || len(latch.Ins) != 0 || len(latch.Phi) != 0 {
        return failf(BadLoopForm, "latch of %s is not empty", loop)
    }

    /* exactly one entry */
    if n := len(loop.Entries()); n != 1 {
        return failf(BadLoopForm, "%s has %d entries", loop, n)
    }

    /* exactly one exit, leaving from the header */
    if len(exits) != 1 || exits[0][0] != hdr {
        return failf(BadLoopForm, "%s does not have a single exit from the header", loop)
    }

    /* all checked */
    return nil
}

func findCompare(bb *ir.BasicBlock, r ir.Reg) *ir.IrBinaryExpr {
    for _, p := range bb.Ins {
        if v, ok := p.(*ir.IrBinaryExpr); ok && v.R == r {
            if v.Op.IsCompare() {
                return v
            } else {
                return nil
            }
        }
    }
    return nil
}

// normalize inserts a dedicated preheader and a dedicated exit block when
// the loop does not have them. It reports whether the CFG changed.
func normalize(fn *ir.Func, loop *ir.Loop) bool {
    ret := false
    hdr := loop.Header
    entry := loop.Entries()[0]

    /* the preheader must fall through to the header */
    if _, ok := entry.Term.(*ir.IrJump); !ok {
        ret = true
        splitEdge(fn, entry, hdr)
    }

    /* the exit block must be reached from the loop only */
    if exit := loop.Exits()[0][1]; len(exit.Pred) != 1 {
        ret = true
        splitEdge(fn, hdr, exit)
    }

    /* all done */
    return ret
}

// splitEdge inserts an empty block on the edge from -> to.
func splitEdge(fn *ir.Func, from *ir.BasicBlock, to *ir.BasicBlock) *ir.BasicBlock {
    bb := fn.NewBlock()
    bb.Term = &ir.IrJump { To: to }
    bb.Pred = []*ir.BasicBlock { from }
    from.ReplaceSucc(to, bb)
    to.ReplacePred(from, bb)
    return bb
}
