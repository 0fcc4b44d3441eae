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

package scev

import (
    `github.com/cloudwego/loopvec/ir`
)

func swapCompare(op ir.IrBinaryOp) ir.IrBinaryOp {
    switch op {
        case ir.IrCmpLt : return ir.IrCmpGt
        case ir.IrCmpLe : return ir.IrCmpGe
        case ir.IrCmpGt : return ir.IrCmpLt
        case ir.IrCmpGe : return ir.IrCmpLe
        default         : return op
    }
}

// ExitTest returns the comparison controlling the only exit of the loop,
// normalized so that the loop keeps iterating while it is true, and the
// evolutions of its operands with the evolving operand first.
func (self *Evolution) ExitTest() (op ir.IrBinaryOp, x Chrec, y Chrec, ok bool) {
    exits := self.loop.Exits()
    hdr := self.loop.Header

    /* must exit from the header */
    if len(exits) != 1 || exits[0][0] != hdr {
        return
    }

    /* the header must end with a conditional branch */
    br, isbr := hdr.Term.(*ir.IrBranch)
    if !isbr {
        return
    }

    /* fed by a comparison */
    cmp, iscmp := self.du.Def[br.V].(*ir.IrBinaryExpr)
    if !iscmp || !cmp.Op.IsCompare() {
        return
    }

    /* normalize the condition to "continue while true" */
    if op = cmp.Op; !self.loop.Contains(br.T) {
        op = op.Inverse()
    }

    /* put the evolving side first */
    if x, y = self.Of(cmp.X), self.Of(cmp.Y); x.Kind == Invariant && y.Kind != Invariant {
        x, y, op = y, x, swapCompare(op)
    }

    /* all done */
    ok = true
    return
}

// TripCount returns the number of times the loop header executes, or nil
// if it cannot be determined. The body executes at least once, so the
// result is never less than 1.
func (self *Evolution) TripCount() Expr {
    var n Expr
    op, x, y, ok := self.ExitTest()

    /* must compare an affine value against an invariant */
    if !ok || x.Kind != Affine || y.Kind != Invariant {
        return nil
    }

    /* the step must be a known constant */
    s, ok := IsConst(x.Step)
    if !ok {
        return nil
    }

    /* iteration k tests x0 + k * s */
    x0 := x.Init
    bound := y.Init

    /* find the first failing iteration, "x <= b" is "x < b + 1" since the
     * truncated quotient must never be taken of a value below -s */
    switch {
        case op == ir.IrCmpLt && s > 0 : n = Add(Div(Add(Sub(bound, x0), Const(s - 1)), Const(s)), Const(1))
        case op == ir.IrCmpLe && s > 0 : n = Add(Div(Add(Sub(bound, x0), Const(s)), Const(s)), Const(1))
        case op == ir.IrCmpGt && s < 0 : n = Add(Div(Add(Sub(x0, bound), Const(-s - 1)), Const(-s)), Const(1))
        case op == ir.IrCmpGe && s < 0 : n = Add(Div(Add(Sub(x0, bound), Const(-s)), Const(-s)), Const(1))
        case op == ir.IrCmpNe && s == 1  : n = Add(Sub(bound, x0), Const(1))
        case op == ir.IrCmpNe && s == -1 : n = Add(Sub(x0, bound), Const(1))
        default                          : return nil
    }

    /* the body runs at least once */
    return Max(n, Const(1))
}
