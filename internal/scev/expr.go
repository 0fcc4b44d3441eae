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
    `fmt`
    `sort`
    `strings`

    `github.com/cloudwego/loopvec/ir`
)

// Expr is a symbolic loop-invariant integer expression.
type Expr interface {
    fmt.Stringer
    expr()
}

type (
    Const int64
    Sym   ir.Reg
)

type Op uint8

const (
    OpAdd Op = iota
    OpSub
    OpMul
    OpDiv
    OpShr
    OpMin
    OpMax
)

type Binary struct {
    Op Op
    X  Expr
    Y  Expr
}

func (Const)   expr() {}
func (Sym)     expr() {}
func (*Binary) expr() {}

func (self Const) String() string {
    return fmt.Sprintf("%d", int64(self))
}

func (self Sym) String() string {
    return ir.Reg(self).String()
}

func (self *Binary) String() string {
    switch self.Op {
        case OpAdd : return fmt.Sprintf("(%s + %s)", self.X, self.Y)
        case OpSub : return fmt.Sprintf("(%s - %s)", self.X, self.Y)
        case OpMul : return fmt.Sprintf("(%s * %s)", self.X, self.Y)
        case OpDiv : return fmt.Sprintf("(%s / %s)", self.X, self.Y)
        case OpShr : return fmt.Sprintf("(%s >> %s)", self.X, self.Y)
        case OpMin : return fmt.Sprintf("min(%s, %s)", self.X, self.Y)
        case OpMax : return fmt.Sprintf("max(%s, %s)", self.X, self.Y)
        default    : panic("unreachable")
    }
}

// IsConst returns the value of e if it is a constant.
func IsConst(e Expr) (int64, bool) {
    if c, ok := e.(Const); ok {
        return int64(c), true
    } else {
        return 0, false
    }
}

// Equal checks if two expressions are structurally equal.
func Equal(a Expr, b Expr) bool {
    return a.String() == b.String()
}

/** Linear Forms **/

type _Term struct {
    k string
    e Expr
    c int64
}

// _Linear is c + Σ(coef * atom), atoms are arbitrary non-linear expressions.
type _Linear struct {
    c int64
    t map[string]*_Term
}

func linearOf(e Expr) _Linear {
    switch v := e.(type) {
        case Const: {
            return _Linear { c: int64(v) }
        }

        /* linear combinations */
        case *Binary: {
            switch v.Op {
                case OpAdd: return linearOf(v.X).add(linearOf(v.Y), 1)
                case OpSub: return linearOf(v.X).add(linearOf(v.Y), -1)
                case OpMul: {
                    if c, ok := IsConst(v.Y); ok {
                        return linearOf(v.X).scale(c)
                    } else if c, ok = IsConst(v.X); ok {
                        return linearOf(v.Y).scale(c)
                    }
                }
            }
        }
    }

    /* everything else is an atom */
    k := e.String()
    return _Linear { t: map[string]*_Term { k: { k: k, e: e, c: 1 } } }
}

func (self _Linear) add(other _Linear, sign int64) _Linear {
    ret := _Linear { c: self.c + sign * other.c, t: make(map[string]*_Term) }
    for k, v := range self.t  { ret.t[k] = &_Term { k: k, e: v.e, c: v.c } }
    for k, v := range other.t {
        if p, ok := ret.t[k]; ok {
            p.c += sign * v.c
        } else {
            ret.t[k] = &_Term { k: k, e: v.e, c: sign * v.c }
        }
    }
    return ret
}

func (self _Linear) scale(c int64) _Linear {
    ret := _Linear { c: self.c * c, t: make(map[string]*_Term, len(self.t)) }
    for k, v := range self.t { ret.t[k] = &_Term { k: k, e: v.e, c: v.c * c } }
    return ret
}

func (self _Linear) expr() Expr {
    var ret Expr
    var buf []*_Term

    /* collect the non-zero terms */
    for _, v := range self.t {
        if v.c != 0 {
            buf = append(buf, v)
        }
    }

    /* sort by key for a stable shape */
    sort.Slice(buf, func(i int, j int) bool {
        return strings.Compare(buf[i].k, buf[j].k) < 0
    })

    /* add the terms */
    for _, v := range buf {
        var x Expr
        var neg bool

        /* build the scaled atom */
        switch {
            case v.c ==  1 : x = v.e
            case v.c == -1 : x, neg = v.e, true
            default        : x = &Binary { Op: OpMul, X: v.e, Y: Const(v.c) }
        }

        /* accumulate */
        switch {
            case ret == nil : if neg { ret = &Binary { Op: OpSub, X: Const(0), Y: x } } else { ret = x }
            case neg        : ret = &Binary { Op: OpSub, X: ret, Y: x }
            default         : ret = &Binary { Op: OpAdd, X: ret, Y: x }
        }
    }

    /* add the constant */
    switch {
        case ret == nil  : return Const(self.c)
        case self.c == 0 : return ret
        case self.c < 0  : return &Binary { Op: OpSub, X: ret, Y: Const(-self.c) }
        default          : return &Binary { Op: OpAdd, X: ret, Y: Const(self.c) }
    }
}

/** Folding Constructors **/

func Add(x Expr, y Expr) Expr {
    return linearOf(x).add(linearOf(y), 1).expr()
}

func Sub(x Expr, y Expr) Expr {
    return linearOf(x).add(linearOf(y), -1).expr()
}

func Mul(x Expr, y Expr) Expr {
    if c, ok := IsConst(y); ok {
        return linearOf(x).scale(c).expr()
    } else if c, ok = IsConst(x); ok {
        return linearOf(y).scale(c).expr()
    } else {
        return &Binary { Op: OpMul, X: x, Y: y }
    }
}

func Div(x Expr, y Expr) Expr {
    a, ok1 := IsConst(x)
    b, ok2 := IsConst(y)

    /* check for constant folding */
    switch {
        case ok2 && b == 0   : panic("scev: division by zero")
        case ok1 && ok2      : return Const(a / b)
        case ok2 && b == 1   : return x
        default              : return &Binary { Op: OpDiv, X: x, Y: y }
    }
}

func Shr(x Expr, y Expr) Expr {
    a, ok1 := IsConst(x)
    b, ok2 := IsConst(y)

    /* check for constant folding */
    switch {
        case ok1 && ok2 : return Const(a >> uint(b))
        case ok2 && b == 0 : return x
        default            : return &Binary { Op: OpShr, X: x, Y: y }
    }
}

func Min(x Expr, y Expr) Expr {
    a, ok1 := IsConst(x)
    b, ok2 := IsConst(y)

    /* check for constant folding */
    switch {
        case ok1 && ok2 && a < b : return x
        case ok1 && ok2          : return y
        case Equal(x, y)         : return x
        default                  : return &Binary { Op: OpMin, X: x, Y: y }
    }
}

func Max(x Expr, y Expr) Expr {
    a, ok1 := IsConst(x)
    b, ok2 := IsConst(y)

    /* check for constant folding */
    switch {
        case ok1 && ok2 && a > b : return x
        case ok1 && ok2          : return y
        case Equal(x, y)         : return x
        default                  : return &Binary { Op: OpMax, X: x, Y: y }
    }
}

// Eval computes the value of e, looking up symbols with env.
func Eval(e Expr, env func(ir.Reg) int64) int64 {
    switch v := e.(type) {
        case Const   : return int64(v)
        case Sym     : return env(ir.Reg(v))
        case *Binary : break
        default      : panic("unreachable")
    }

    /* evaluate the operands */
    b := e.(*Binary)
    x := Eval(b.X, env)
    y := Eval(b.Y, env)

    /* apply the operator */
    switch b.Op {
        case OpAdd : return x + y
        case OpSub : return x - y
        case OpMul : return x * y
        case OpDiv : return x / y
        case OpShr : return x >> uint64(y)
        case OpMin : if x < y { return x } else { return y }
        case OpMax : if x > y { return x } else { return y }
        default    : panic("unreachable")
    }
}
