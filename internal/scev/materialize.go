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

var _BinaryOps = [...]ir.IrBinaryOp {
    OpAdd: ir.IrOpAdd,
    OpSub: ir.IrOpSub,
    OpMul: ir.IrOpMul,
    OpDiv: ir.IrOpDiv,
    OpShr: ir.IrOpShr,
    OpMin: ir.IrOpMin,
    OpMax: ir.IrOpMax,
}

// Materialize emits instructions computing e of type t at the end of bb,
// and returns the register holding the result.
func Materialize(fn *ir.Func, bb *ir.BasicBlock, e Expr, t ir.Type) ir.Reg {
    switch v := e.(type) {
        case Sym: {
            return ir.Reg(v)
        }

        /* constants */
        case Const: {
            r := fn.NewReg(t)
            bb.Append(&ir.IrConstInt { R: r, V: int64(v) })
            return r
        }

        /* operators */
        case *Binary: {
            x := Materialize(fn, bb, v.X, t)
            y := Materialize(fn, bb, v.Y, t)
            r := fn.NewReg(t)
            bb.Append(&ir.IrBinaryExpr { R: r, X: x, Y: y, Op: _BinaryOps[v.Op] })
            return r
        }

        /* should not happen */
        default: {
            panic("scev: invalid expression")
        }
    }
}
