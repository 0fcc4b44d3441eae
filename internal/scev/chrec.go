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
)

type Kind uint8

const (
    Invariant Kind = iota
    Affine
    Polynomial
    Exponential
    Unknown
)

func (self Kind) String() string {
    switch self {
        case Invariant   : return "invariant"
        case Affine      : return "affine"
        case Polynomial  : return "polynomial"
        case Exponential : return "exponential"
        case Unknown     : return "unknown"
        default          : panic("unreachable")
    }
}

// Chrec is a chain of recurrences describing how a value evolves across
// the iterations of one loop. An affine chrec has the value Init + k * Step
// at iteration k.
type Chrec struct {
    Kind   Kind
    Init   Expr
    Step   Expr
    Degree int
}

var unknown = Chrec { Kind: Unknown }

func invariant(e Expr) Chrec {
    return Chrec { Kind: Invariant, Init: e, Step: Const(0) }
}

func affine(init Expr, step Expr) Chrec {
    if c, ok := IsConst(step); ok && c == 0 {
        return invariant(init)
    } else {
        return Chrec { Kind: Affine, Init: init, Step: step, Degree: 1 }
    }
}

func polynomial(init Expr, degree int) Chrec {
    return Chrec { Kind: Polynomial, Init: init, Degree: degree }
}

func (self Chrec) String() string {
    switch self.Kind {
        case Invariant   : return self.Init.String()
        case Affine      : return fmt.Sprintf("{%s, +, %s}", self.Init, self.Step)
        case Polynomial  : return fmt.Sprintf("{%s, +, ...}^%d", self.Init, self.Degree)
        case Exponential : return fmt.Sprintf("{%s, *, %s}", self.Init, self.Step)
        default          : return "<unknown>"
    }
}

// IsAffine returns true for invariant and degree-1 evolutions.
func (self Chrec) IsAffine() bool {
    return self.Kind == Invariant || self.Kind == Affine
}

// ConstStep returns the step of an affine evolution if it is a constant.
// Invariant evolutions have a step of 0.
func (self Chrec) ConstStep() (int64, bool) {
    if !self.IsAffine() {
        return 0, false
    } else {
        return IsConst(self.Step)
    }
}

// At returns the value at iteration k.
func (self Chrec) At(k Expr) Expr {
    if !self.IsAffine() {
        panic("scev: evaluating a non-affine evolution: " + self.String())
    } else {
        return Add(self.Init, Mul(k, self.Step))
    }
}

// InvariantOf returns the evolution of a value that never changes.
func InvariantOf(e Expr) Chrec {
    return invariant(e)
}

// Plus returns the evolution of the sum of two values.
func (self Chrec) Plus(other Chrec) Chrec {
    return self.add(other, 1)
}

// Times returns the evolution of the value scaled by an invariant c.
func (self Chrec) Times(c Expr) Chrec {
    return self.scale(c)
}

func (self Chrec) add(other Chrec, sign int64) Chrec {
    switch {
        case self.Kind == Unknown || other.Kind == Unknown         : return unknown
        case self.Kind == Exponential || other.Kind == Exponential : return unknown
        case self.Kind == Polynomial || other.Kind == Polynomial   : return polynomial(self.addInit(other, sign), maxInt(self.Degree, other.Degree))
        default                                                    : return affine(self.addInit(other, sign), self.addStep(other, sign))
    }
}

func (self Chrec) addInit(other Chrec, sign int64) Expr {
    if sign > 0 {
        return Add(self.Init, other.Init)
    } else {
        return Sub(self.Init, other.Init)
    }
}

func (self Chrec) addStep(other Chrec, sign int64) Expr {
    if sign > 0 {
        return Add(self.Step, other.Step)
    } else {
        return Sub(self.Step, other.Step)
    }
}

func (self Chrec) mul(other Chrec) Chrec {
    switch {
        case self.Kind == Unknown || other.Kind == Unknown : return unknown
        case self.Kind == Invariant                        : return other.scale(self.Init)
        case other.Kind == Invariant                       : return self.scale(other.Init)
        case self.Kind == Exponential                      : return unknown
        case other.Kind == Exponential                     : return unknown
        default                                            : return polynomial(Mul(self.Init, other.Init), self.Degree + other.Degree)
    }
}

func (self Chrec) scale(c Expr) Chrec {
    switch self.Kind {
        case Invariant   : return invariant(Mul(self.Init, c))
        case Affine      : return affine(Mul(self.Init, c), Mul(self.Step, c))
        case Polynomial  : return polynomial(Mul(self.Init, c), self.Degree)
        case Exponential : return Chrec { Kind: Exponential, Init: Mul(self.Init, c), Step: self.Step }
        default          : return unknown
    }
}

func maxInt(a int, b int) int {
    if a > b {
        return a
    } else {
        return b
    }
}
