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

package emu

import (
    `math`

    `github.com/cloudwego/loopvec/ir`
)

func b2u(v bool) uint64 {
    if v {
        return 1
    } else {
        return 0
    }
}

// normalize sign-extends an integer result to the width of k.
func normalize(k ir.Kind, v uint64) uint64 {
    switch k {
        case ir.Bool : return v & 1
        case ir.I8   : return uint64(int8(v))
        case ir.I16  : return uint64(int16(v))
        case ir.I32  : return uint64(int32(v))
        case ir.F32  : return v & math.MaxUint32
        default      : return v
    }
}

func unaryop(op ir.IrUnaryOp, k ir.Kind, v uint64) uint64 {
    if k.IsFloat() {
        x := bitsfloat(k, v)
        switch op {
            case ir.IrOpNegate : return floatbits(k, -x)
            case ir.IrOpAbs    : return floatbits(k, math.Abs(x))
            default            : panic(Fault { Reason: "invalid float operation: " + op.String() })
        }
    }

    /* integer operations */
    x := int64(v)
    switch op {
        case ir.IrOpNegate : return normalize(k, uint64(-x))
        case ir.IrOpNot    : return normalize(k, ^v)
        case ir.IrOpAbs    : if x < 0 { return normalize(k, uint64(-x)) } else { return v }
        default            : panic("unreachable")
    }
}

func binaryop(op ir.IrBinaryOp, k ir.Kind, a uint64, b uint64) uint64 {
    if k.IsFloat() {
        return floatop(op, k, a, b)
    }

    /* signed integer operations */
    x, y := int64(a), int64(b)
    switch op {
        case ir.IrOpAdd : return normalize(k, uint64(x + y))
        case ir.IrOpSub : return normalize(k, uint64(x - y))
        case ir.IrOpMul : return normalize(k, uint64(x * y))
        case ir.IrOpAnd : return normalize(k, a & b)
        case ir.IrOpOr  : return normalize(k, a | b)
        case ir.IrOpXor : return normalize(k, a ^ b)
        case ir.IrCmpEq : return b2u(x == y)
        case ir.IrCmpNe : return b2u(x != y)
        case ir.IrCmpLt : return b2u(x < y)
        case ir.IrCmpLe : return b2u(x <= y)
        case ir.IrCmpGt : return b2u(x > y)
        case ir.IrCmpGe : return b2u(x >= y)
        case ir.IrOpMin : if x < y { return a } else { return b }
        case ir.IrOpMax : if x > y { return a } else { return b }
    }

    /* operations with special cases */
    switch op {
        case ir.IrOpDiv: {
            if y == 0 {
                panic(Fault { Reason: "integer division by zero" })
            } else {
                return normalize(k, uint64(x / y))
            }
        }

        /* shifts by more than the width produce 0 or the sign */
        case ir.IrOpShl: {
            if y < 0 || y >= 64 {
                return 0
            } else {
                return normalize(k, a << uint(y))
            }
        }

        /* shifts are arithmetic, integers are signed */
        case ir.IrOpShr: {
            if y < 0 || y >= 64 {
                return normalize(k, uint64(x >> 63))
            } else {
                return normalize(k, uint64(x >> uint(y)))
            }
        }

        /* should not happen */
        default: {
            panic("unreachable")
        }
    }
}

func floatop(op ir.IrBinaryOp, k ir.Kind, a uint64, b uint64) uint64 {
    x := bitsfloat(k, a)
    y := bitsfloat(k, b)

    /* single precision rounds every result */
    ret := func(v float64) uint64 {
        return floatbits(k, v)
    }

    /* apply the operator */
    switch op {
        case ir.IrOpAdd : return ret(x + y)
        case ir.IrOpSub : return ret(x - y)
        case ir.IrOpMul : return ret(x * y)
        case ir.IrOpDiv : return ret(x / y)
        case ir.IrOpMin : return ret(math.Min(x, y))
        case ir.IrOpMax : return ret(math.Max(x, y))
        case ir.IrOpAnd : return a & b
        case ir.IrOpOr  : return a | b
        case ir.IrOpXor : return a ^ b
        case ir.IrCmpEq : return b2u(x == y)
        case ir.IrCmpNe : return b2u(x != y)
        case ir.IrCmpLt : return b2u(x < y)
        case ir.IrCmpLe : return b2u(x <= y)
        case ir.IrCmpGt : return b2u(x > y)
        case ir.IrCmpGe : return b2u(x >= y)
        default         : panic(Fault { Reason: "invalid float operation: " + op.String() })
    }
}

// lanebytes spreads the lanes of a vector of kind k into bytes.
func lanebytes(k ir.Kind, v Value) []byte {
    var m Memory
    n := k.Size()
    m.buf = make([]byte, n * len(v))

    /* store every lane */
    for i, x := range v {
        m.Store(_MemBase + uint64(i * n), k, x)
    }
    return m.buf
}

// bytelanes packs bytes back into a vector of kind k.
func bytelanes(k ir.Kind, buf []byte) Value {
    n := k.Size()
    m := Memory { buf: buf }
    ret := make(Value, len(buf) / n)

    /* load every lane */
    for i := range ret {
        ret[i] = m.Load(_MemBase + uint64(i * n), k)
    }
    return ret
}
