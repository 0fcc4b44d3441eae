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

const (
    _MaxDepth = 32
)

// Evolution answers scalar evolution queries for one loop. Results are
// cached, so the Evolution must be discarded after the loop is modified.
type Evolution struct {
    fn    *ir.Func
    du    *ir.DefUse
    loop  *ir.Loop
    memo  map[ir.Reg]Chrec
    busy  map[ir.Reg]bool
    taint bool
}

// Analyze prepares the scalar evolution analysis of a loop.
func Analyze(fn *ir.Func, loop *ir.Loop) *Evolution {
    return &Evolution {
        fn   : fn,
        du   : fn.DefUse(),
        loop : loop,
        memo : make(map[ir.Reg]Chrec),
        busy : make(map[ir.Reg]bool),
    }
}

func (self *Evolution) Func() *ir.Func {
    return self.fn
}

func (self *Evolution) Loop() *ir.Loop {
    return self.loop
}

func (self *Evolution) DefUse() *ir.DefUse {
    return self.du
}

// InLoop checks if r is defined inside the loop.
func (self *Evolution) InLoop(r ir.Reg) bool {
    bb, ok := self.du.Block[r]
    return ok && self.loop.Contains(bb)
}

// Of returns the evolution of r in the loop.
func (self *Evolution) Of(r ir.Reg) Chrec {
    if v, ok := self.memo[r]; ok {
        return v
    }

    /* values defined outside of the loop never change */
    if !self.InLoop(r) {
        v := invariant(self.outside(r, 0))
        self.memo[r] = v
        return v
    }

    /* recursive evolutions are resolved by the cycle that is being built */
    if self.busy[r] {
        self.taint = true
        return unknown
    }

    /* compute the evolution, results depending on an unfinished cycle are not cached */
    old := self.taint
    self.taint = false
    ret := self.compute(r)

    /* update the cache */
    if !self.taint {
        self.memo[r] = ret
    }

    /* restore the taint */
    self.taint = self.taint || old
    return ret
}

func (self *Evolution) outside(r ir.Reg, depth int) Expr {
    if depth > _MaxDepth {
        return Sym(r)
    }

    /* expand simple arithmetic, so that offsets can be compared */
    switch p := self.du.Def[r].(type) {
        case *ir.IrConstInt : return Const(p.V)
        case *ir.IrCopy     : return self.outside(p.V, depth + 1)
        case *ir.IrLEA      : return Add(self.outside(p.Mem, depth + 1), Mul(self.outside(p.Off, depth + 1), Const(p.Scale)))
        case *ir.IrBinaryExpr: {
            x := self.outside(p.X, depth + 1)
            y := self.outside(p.Y, depth + 1)

            /* only linear operations are expanded */
            switch p.Op {
                case ir.IrOpAdd : return Add(x, y)
                case ir.IrOpSub : return Sub(x, y)
                case ir.IrOpMul : if _, ok := IsConst(y); ok { return Mul(x, y) }
                case ir.IrOpShl : if c, ok := IsConst(y); ok && c >= 0 && c < 63 { return Mul(x, Const(1 << c)) }
            }
        }
    }

    /* keep it as a symbol */
    return Sym(r)
}

func (self *Evolution) compute(r ir.Reg) Chrec {
    switch p := self.du.Def[r].(type) {
        case *ir.IrConstInt : return invariant(Const(p.V))
        case *ir.IrCopy     : return self.Of(p.V)
        case *ir.IrLEA      : return self.Of(p.Mem).add(self.Of(p.Off).scale(Const(p.Scale)), 1)
        case *ir.IrPhi      : return self.phi(p)
        case *ir.IrBinaryExpr: {
            x := self.Of(p.X)
            y := self.Of(p.Y)

            /* combine the evolutions */
            switch p.Op {
                case ir.IrOpAdd : return x.add(y, 1)
                case ir.IrOpSub : return x.add(y, -1)
                case ir.IrOpMul : return x.mul(y)
                case ir.IrOpShl : if c, ok := y.ConstStep(); ok && c == 0 { return shl(x, y) }
            }
        }
    }

    /* everything else is not analyzable */
    return unknown
}

func shl(x Chrec, y Chrec) Chrec {
    if c, ok := IsConst(y.Init); !ok || c < 0 || c >= 63 {
        return unknown
    } else {
        return x.scale(Const(1 << c))
    }
}

func (self *Evolution) phi(p *ir.IrPhi) Chrec {
    var ni int
    var nl int
    var init ir.Reg
    var next ir.Reg

    /* only the header Phi nodes form cycles of this loop */
    if self.du.Block[p.R] != self.loop.Header {
        return unknown
    }

    /* split the arguments into the entry and the latch values */
    for bb, r := range p.V {
        if self.loop.Contains(bb) {
            nl, next = nl + 1, *r
        } else {
            ni, init = ni + 1, *r
        }
    }

    /* must have exactly one entry and one latch */
    if ni != 1 || nl != 1 {
        return unknown
    }

    /* the initial value must be invariant */
    ci := self.Of(init)
    if ci.Kind != Invariant {
        return unknown
    }

    /* build the cycle */
    self.busy[p.R] = true
    step, kind := self.cycle(next, p.R, 0)
    delete(self.busy, p.R)

    /* construct the evolution */
    switch kind {
        case Affine      : return affine(ci.Init, step)
        case Polynomial  : return polynomial(ci.Init, 2)
        case Exponential : return Chrec { Kind: Exponential, Init: ci.Init, Step: step }
        default          : return unknown
    }
}

// cycle computes the per-iteration increment of r relative to the Phi node
// phi, given that r is computed from phi inside the loop.
func (self *Evolution) cycle(r ir.Reg, phi ir.Reg, depth int) (Expr, Kind) {
    if r == phi {
        return Const(0), Affine
    } else if depth > _MaxDepth || !self.InLoop(r) {
        return nil, Unknown
    }

    /* check the definition */
    switch p := self.du.Def[r].(type) {
        case *ir.IrCopy: {
            return self.cycle(p.V, phi, depth + 1)
        }

        /* pointer increments */
        case *ir.IrLEA: {
            if self.reaches(p.Mem, phi, 0) {
                return self.increment(p.Mem, phi, self.Of(p.Off).scale(Const(p.Scale)), 1, depth)
            }
        }

        /* arithmetic */
        case *ir.IrBinaryExpr: {
            switch p.Op {
                case ir.IrOpAdd: {
                    if self.reaches(p.X, phi, 0) {
                        return self.increment(p.X, phi, self.Of(p.Y), 1, depth)
                    } else if self.reaches(p.Y, phi, 0) {
                        return self.increment(p.Y, phi, self.Of(p.X), 1, depth)
                    }
                }

                /* only x - invariant keeps the cycle linear */
                case ir.IrOpSub: {
                    if self.reaches(p.X, phi, 0) && !self.reaches(p.Y, phi, 0) {
                        return self.increment(p.X, phi, self.Of(p.Y), -1, depth)
                    }
                }

                /* i = i * c is geometric */
                case ir.IrOpMul: {
                    if p.X == phi && self.Of(p.Y).Kind == Invariant {
                        return self.Of(p.Y).Init, Exponential
                    } else if p.Y == phi && self.Of(p.X).Kind == Invariant {
                        return self.Of(p.X).Init, Exponential
                    }
                }

                /* i = i << c is geometric as well */
                case ir.IrOpShl: {
                    if c, ok := IsConst(self.Of(p.Y).Init); ok && p.X == phi && self.Of(p.Y).Kind == Invariant && c >= 0 && c < 63 {
                        return Const(1 << c), Exponential
                    }
                }
            }
        }
    }

    /* not a recognizable cycle */
    return nil, Unknown
}

func (self *Evolution) increment(r ir.Reg, phi ir.Reg, inc Chrec, sign int64, depth int) (Expr, Kind) {
    s, k := self.cycle(r, phi, depth + 1)

    /* the chained part must be analyzable */
    switch {
        case k == Unknown || k == Exponential   : return nil, Unknown
        case inc.Kind == Unknown                : return nil, Unknown
        case inc.Kind == Exponential            : return nil, Unknown
        case k == Polynomial                    : return nil, Polynomial
        case inc.Kind == Affine                 : return nil, Polynomial
        case inc.Kind == Polynomial             : return nil, Polynomial
        case sign > 0                           : return Add(s, inc.Init), Affine
        default                                 : return Sub(s, inc.Init), Affine
    }
}

// reaches checks if r is computed from phi within one iteration of the loop.
func (self *Evolution) reaches(r ir.Reg, phi ir.Reg, depth int) bool {
    if r == phi {
        return true
    } else if depth > _MaxDepth || !self.InLoop(r) {
        return false
    }

    /* Phi nodes cut the iteration */
    def, ok := self.du.Def[r].(ir.IrUsages)
    if _, isphi := def.(*ir.IrPhi); !ok || isphi {
        return false
    }

    /* check all the operands */
    for _, v := range def.Usages() {
        if !v.IsMem() && self.reaches(*v, phi, depth + 1) {
            return true
        }
    }
    return false
}
