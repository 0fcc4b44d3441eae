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
    `github.com/cloudwego/loopvec/ir`
)

type _Merge struct {
    Orig ir.Reg
    Phi  *ir.IrPhi
}

// Peeled describes a loop that was split into two consecutive copies. The
// first copy runs the first First iterations, the second copy runs the
// rest:
//
//     P:  if first == 0 goto M else goto E1
//     E1: first loop, exits to G
//     G:  if first == n goto J else goto M
//     M:  merge the carried values, second loop, exits to X2
//     X2: goto J
//     J:  merge the values used after the loop, goto X
//
type Peeled struct {
    Prologue bool
    Entry    *ir.BasicBlock
    Guard    *ir.BasicBlock
    Merge    *ir.BasicBlock
    Join     *ir.BasicBlock
    First    *ir.BasicBlock
    Second   *ir.BasicBlock
    Clone    *ir.CloneResult
    merges   []_Merge
    joins    []_Merge
}

// peelLoop splits a loop with a preheader and a dedicated exit block into
// two copies, the first one running first of the n iterations. With
// prologue set the copy runs first and its exit test is replaced to stop
// after first iterations, otherwise the original loop runs first and the
// caller is responsible for its exit test. Both first and n must be
// defined in the preheader. The CFG is rebuilt afterwards.
func peelLoop(fn *ir.Func, loop *ir.Loop, first ir.Reg, n ir.Reg, prologue bool) *Peeled {
    hdr := loop.Header
    pre := loop.Preheader()
    latch := loop.Latches[0]
    exit := loop.Exits()[0][1]

    /* the loop must be in the normalized form */
    if pre == nil || len(exit.Pred) != 1 {
        panic("peelLoop: loop is not normalized: " + loop.String())
    }

    /* Phase 1: Clone the loop */
    live := liveOuts(fn, loop)
    outs := outsideBlocks(fn, loop)
    init := make([]ir.Reg, len(hdr.Phi))
    for i, p := range hdr.Phi { init[i] = p.Arg(pre) }
    cr := fn.CloneBlocks(loop.Blocks)

    /* decide which copy runs first */
    ret := &Peeled { Prologue: prologue, Clone: cr }
    h1, l1, h2, l2 := hdr, latch, cr.Block(hdr), cr.Block(latch)
    v1, v2 := identity, cr.Reg

    /* the copy runs first for prologues */
    if prologue {
        h1, l1, h2, l2 = h2, l2, h1, l1
        v1, v2 = v2, v1
    }

    /* Phase 2: Create the guards and the merge blocks */
    ret.First = h1
    ret.Second = h2
    ret.Entry = fn.NewBlock()
    ret.Guard = fn.NewBlock()
    ret.Merge = fn.NewBlock()
    ret.Join = fn.NewBlock()
    x2 := fn.NewBlock()

    /* skip the first loop if it has nothing to do */
    c0 := compareConst(fn, pre, first, ir.IrCmpEq, 0)
    pre.Term = &ir.IrBranch { V: c0, T: ret.Merge, F: ret.Entry }
    ret.Entry.Term = &ir.IrJump { To: h1 }
    h1.ReplacePred(pre, ret.Entry)

    /* skip the second loop if the first one did everything */
    c1 := fn.NewReg(ir.TBool)
    ret.Guard.Append(&ir.IrBinaryExpr { R: c1, X: first, Y: n, Op: ir.IrCmpEq })
    ret.Guard.Term = &ir.IrBranch { V: c1, T: ret.Join, F: ret.Merge }
    h1.ReplaceSucc(exit, ret.Guard)

    /* merge the carried values before the second loop */
    h2.ReplacePred(pre, ret.Merge)
    for i, p := range hdr.Phi {
        p1 := h1.Phi[i]
        p2 := h2.Phi[i]
        mp := &ir.IrPhi { R: newLike(fn, p.R) }

        /* from the preheader or the first loop */
        mp.SetArg(pre, init[i])
        mp.SetArg(ret.Guard, p1.Arg(l1))
        p2.SetArg(ret.Merge, mp.R)

        /* add to the merge block */
        ret.Merge.Phi = append(ret.Merge.Phi, mp)
        ret.merges = append(ret.merges, _Merge { Orig: p.R, Phi: mp })
    }

    /* enter the second loop */
    ret.Merge.Term = &ir.IrJump { To: h2 }
    h2.ReplaceSucc(exit, x2)
    x2.Term = &ir.IrJump { To: ret.Join }

    /* Phase 3: Merge the values used after the loop */
    for _, r := range live {
        jp := &ir.IrPhi { R: newLike(fn, r) }
        jp.SetArg(ret.Guard, v1(r))
        jp.SetArg(x2, v2(r))

        /* replace the uses after the loop */
        for _, bb := range outs {
            replaceUsesIn(bb, r, jp.R)
        }

        /* add to the join block */
        ret.Join.Phi = append(ret.Join.Phi, jp)
        ret.joins = append(ret.joins, _Merge { Orig: r, Phi: jp })
    }

    /* continue to the original exit */
    ret.Join.Term = &ir.IrJump { To: exit }
    exit.ReplacePred(hdr, ret.Join)

    /* the prologue stops after the peeled iterations */
    if prologue {
        rewriteExitTest(fn, h1, l1, ret.Entry, first)
    }

    /* Phase 4: Rebuild the CFG */
    fn.Rebuild()
    return ret
}

// MergeOf returns the phi merging the carried value r before the second
// loop.
func (self *Peeled) MergeOf(r ir.Reg) *ir.IrPhi {
    for _, m := range self.merges {
        if m.Orig == r {
            return m.Phi
        }
    }
    return nil
}

// JoinOf returns the phi merging the value r after the second loop.
func (self *Peeled) JoinOf(r ir.Reg) *ir.IrPhi {
    for _, m := range self.joins {
        if m.Orig == r {
            return m.Phi
        }
    }
    return nil
}

// rewriteExitTest makes the loop stop after n iterations, counting with a
// new induction starting from 0 in entry.
func rewriteExitTest(fn *ir.Func, hdr *ir.BasicBlock, latch *ir.BasicBlock, entry *ir.BasicBlock, n ir.Reg) {
    br := hdr.Term.(*ir.IrBranch)
    c0 := fn.NewReg(ir.TI64)
    c1 := fn.NewReg(ir.TI64)
    cn := fn.NewReg(ir.TI64)
    cv := fn.NewReg(ir.TI64)
    cc := fn.NewReg(ir.TBool)

    /* the counter starts at 0 */
    entry.Append(&ir.IrConstInt { R: c0, V: 0 })
    phi := &ir.IrPhi { R: cv }
    phi.SetArg(entry, c0)
    phi.SetArg(latch, cn)
    hdr.Phi = append(hdr.Phi, phi)

    /* keep looping while the counter is below n */
    op := ir.IrCmpLt
    if br.T != latch {
        op = ir.IrCmpGe
    }

    /* count this iteration and test */
    hdr.Append(
        &ir.IrConstInt   { R: c1, V: 1 },
        &ir.IrBinaryExpr { R: cn, X: cv, Y: c1, Op: ir.IrOpAdd },
        &ir.IrBinaryExpr { R: cc, X: cn, Y: n, Op: op },
    )

    /* replace the condition */
    br.V = cc
}

func compareConst(fn *ir.Func, bb *ir.BasicBlock, x ir.Reg, op ir.IrBinaryOp, v int64) ir.Reg {
    c := fn.NewReg(fn.TypeOf(x))
    r := fn.NewReg(ir.TBool)
    bb.Append(
        &ir.IrConstInt   { R: c, V: v },
        &ir.IrBinaryExpr { R: r, X: x, Y: c, Op: op },
    )
    return r
}

func identity(r ir.Reg) ir.Reg {
    return r
}

func newLike(fn *ir.Func, r ir.Reg) ir.Reg {
    if r.IsMem() {
        return fn.NewMem()
    } else {
        return fn.NewReg(fn.TypeOf(r))
    }
}

func outsideBlocks(fn *ir.Func, loop *ir.Loop) (r []*ir.BasicBlock) {
    for _, bb := range fn.Blocks {
        if !loop.Contains(bb) {
            r = append(r, bb)
        }
    }
    return
}

func replaceUsesIn(bb *ir.BasicBlock, old ir.Reg, to ir.Reg) {
    for _, p := range bb.Phi {
        replaceUse(p, old, to)
    }
    for _, p := range bb.Ins {
        replaceUse(p, old, to)
    }
    replaceUse(bb.Term, old, to)
}

func replaceUse(p ir.IrNode, old ir.Reg, to ir.Reg) {
    if u, ok := p.(ir.IrUsages); ok {
        for _, r := range u.Usages() {
            if *r == old {
                *r = to
            }
        }
    }
}
