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

package ir

import (
    `fmt`
    `sort`
    `strings`
)

type IrNode interface {
    fmt.Stringer
    irnode()
}

func (*IrPhi)         irnode() {}
func (*IrParam)       irnode() {}
func (*IrAddrOf)      irnode() {}
func (*IrConstInt)    irnode() {}
func (*IrConstFloat)  irnode() {}
func (*IrCopy)        irnode() {}
func (*IrUnaryExpr)   irnode() {}
func (*IrBinaryExpr)  irnode() {}
func (*IrSelect)      irnode() {}
func (*IrLEA)         irnode() {}
func (*IrLoad)        irnode() {}
func (*IrStore)       irnode() {}
func (*IrCall)        irnode() {}
func (*IrSplat)       irnode() {}
func (*IrVecConst)    irnode() {}
func (*IrVecLoad)     irnode() {}
func (*IrVecStore)    irnode() {}
func (*IrBlend)       irnode() {}
func (*IrRealignMask) irnode() {}
func (*IrRealignLoad) irnode() {}
func (*IrJump)        irnode() {}
func (*IrBranch)      irnode() {}
func (*IrReturn)      irnode() {}

type IrUsages interface {
    IrNode
    Usages() []*Reg
}

type IrDefinitions interface {
    IrNode
    Definitions() []*Reg
}

// IrMemoryOp is implemented by every node that reads or writes memory.
// MemUse is the memory state the node observes, MemDef is the memory
// state it produces (nil for pure reads).
type IrMemoryOp interface {
    IrNode
    MemUse() *Reg
    MemDef() *Reg
}

type IrPhi struct {
    R Reg
    V map[*BasicBlock]*Reg
}

func (self *IrPhi) String() string {
    nb := len(self.V)
    ret := make([]string, 0, nb)
    phi := make([]struct{b int; r Reg}, 0, nb)

    /* add each path */
    for bb, reg := range self.V {
        phi = append(phi, struct{b int; r Reg}{b: bb.Id, r: *reg})
    }

    /* sort by basic block ID */
    sort.Slice(phi, func(i int, j int) bool {
        return phi[i].b < phi[j].b
    })

    /* dump as string */
    for _, p := range phi {
        ret = append(ret, fmt.Sprintf("bb_%d: %s", p.b, p.r))
    }

    /* join them together */
    return fmt.Sprintf(
        "%s = φ(%s)",
        self.R,
        strings.Join(ret, ", "),
    )
}

func (self *IrPhi) Usages() (r []*Reg) {
    r = make([]*Reg, 0, len(self.V))
    for _, v := range self.V { r = append(r, v) }
    return
}

func (self *IrPhi) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// Arg returns the incoming value from block bb.
func (self *IrPhi) Arg(bb *BasicBlock) Reg {
    if r, ok := self.V[bb]; !ok {
        panic(fmt.Sprintf("phi %s has no argument for bb_%d", self.R, bb.Id))
    } else {
        return *r
    }
}

// SetArg sets the incoming value from block bb.
func (self *IrPhi) SetArg(bb *BasicBlock, r Reg) {
    if self.V == nil {
        self.V = make(map[*BasicBlock]*Reg)
    }
    self.V[bb] = regnewref(r)
}

type IrParam struct {
    R  Reg
    Id int
}

func (self *IrParam) String() string {
    return fmt.Sprintf("%s = param #%d", self.R, self.Id)
}

func (self *IrParam) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrAddrOf struct {
    R    Reg
    Decl *Decl
}

func (self *IrAddrOf) String() string {
    return fmt.Sprintf("%s = &%s", self.R, self.Decl.Name)
}

func (self *IrAddrOf) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrConstInt struct {
    R Reg
    V int64
}

func (self *IrConstInt) String() string {
    return fmt.Sprintf("%s = const %d", self.R, self.V)
}

func (self *IrConstInt) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrConstFloat struct {
    R Reg
    V float64
}

func (self *IrConstFloat) String() string {
    return fmt.Sprintf("%s = const %g", self.R, self.V)
}

func (self *IrConstFloat) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrCopy struct {
    R Reg
    V Reg
}

func (self *IrCopy) String() string {
    return fmt.Sprintf("%s = %s", self.R, self.V)
}

func (self *IrCopy) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrCopy) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type (
    IrUnaryOp  uint8
    IrBinaryOp uint8
)

const (
    IrOpNegate IrUnaryOp = iota
    IrOpNot
    IrOpAbs
)

const (
    IrOpAdd IrBinaryOp = iota
    IrOpSub
    IrOpMul
    IrOpDiv
    IrOpAnd
    IrOpOr
    IrOpXor
    IrOpShl
    IrOpShr
    IrOpMin
    IrOpMax
    IrCmpEq
    IrCmpNe
    IrCmpLt
    IrCmpLe
    IrCmpGt
    IrCmpGe
)

func (self IrUnaryOp) String() string {
    switch self {
        case IrOpNegate : return "neg"
        case IrOpNot    : return "not"
        case IrOpAbs    : return "abs"
        default         : panic("unreachable")
    }
}

func (self IrBinaryOp) String() string {
    switch self {
        case IrOpAdd : return "+"
        case IrOpSub : return "-"
        case IrOpMul : return "*"
        case IrOpDiv : return "/"
        case IrOpAnd : return "&"
        case IrOpOr  : return "|"
        case IrOpXor : return "^"
        case IrOpShl : return "<<"
        case IrOpShr : return ">>"
        case IrOpMin : return "min"
        case IrOpMax : return "max"
        case IrCmpEq : return "=="
        case IrCmpNe : return "!="
        case IrCmpLt : return "<"
        case IrCmpLe : return "<="
        case IrCmpGt : return ">"
        case IrCmpGe : return ">="
        default      : panic("unreachable")
    }
}

func (self IrBinaryOp) IsCompare() bool {
    return self >= IrCmpEq && self <= IrCmpGe
}

// Inverse returns the comparison that is true exactly when self is false.
func (self IrBinaryOp) Inverse() IrBinaryOp {
    switch self {
        case IrCmpEq : return IrCmpNe
        case IrCmpNe : return IrCmpEq
        case IrCmpLt : return IrCmpGe
        case IrCmpLe : return IrCmpGt
        case IrCmpGt : return IrCmpLe
        case IrCmpGe : return IrCmpLt
        default      : panic("not a comparison: " + self.String())
    }
}

type IrUnaryExpr struct {
    R  Reg
    V  Reg
    Op IrUnaryOp
}

func (self *IrUnaryExpr) String() string {
    return fmt.Sprintf("%s = %s %s", self.R, self.Op, self.V)
}

func (self *IrUnaryExpr) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrUnaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrBinaryExpr struct {
    R  Reg
    X  Reg
    Y  Reg
    Op IrBinaryOp
}

func (self *IrBinaryExpr) String() string {
    switch self.Op {
        case IrOpMin, IrOpMax : return fmt.Sprintf("%s = %s(%s, %s)", self.R, self.Op, self.X, self.Y)
        default               : return fmt.Sprintf("%s = %s %s %s", self.R, self.X, self.Op, self.Y)
    }
}

func (self *IrBinaryExpr) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrBinaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrSelect is R = (X Op Y) ? T : F.
type IrSelect struct {
    R  Reg
    X  Reg
    Y  Reg
    T  Reg
    F  Reg
    Op IrBinaryOp
}

func (self *IrSelect) String() string {
    return fmt.Sprintf("%s = %s %s %s ? %s : %s", self.R, self.X, self.Op, self.Y, self.T, self.F)
}

func (self *IrSelect) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y, &self.T, &self.F }
}

func (self *IrSelect) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrLEA is R = Mem + Off * Scale.
type IrLEA struct {
    R     Reg
    Mem   Reg
    Off   Reg
    Scale int64
}

func (self *IrLEA) String() string {
    return fmt.Sprintf("%s = &(%s)[%s * %d]", self.R, self.Mem, self.Off, self.Scale)
}

func (self *IrLEA) Usages() []*Reg {
    return []*Reg { &self.Mem, &self.Off }
}

func (self *IrLEA) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrLoad struct {
    R   Reg
    M   Reg
    Mem Addr
}

func (self *IrLoad) String() string {
    return fmt.Sprintf("%s = load %s {%s}", self.R, self.Mem, self.M)
}

func (self *IrLoad) Usages() []*Reg {
    return addrUsages(self.Mem, []*Reg { &self.M })
}

func (self *IrLoad) Definitions() []*Reg {
    return []*Reg { &self.R }
}

func (self *IrLoad) MemUse() *Reg { return &self.M }
func (self *IrLoad) MemDef() *Reg { return nil }

type IrStore struct {
    V   Reg
    M   Reg
    D   Reg
    Mem Addr
}

func (self *IrStore) String() string {
    return fmt.Sprintf("%s = store %s -> %s {%s}", self.D, self.V, self.Mem, self.M)
}

func (self *IrStore) Usages() []*Reg {
    return addrUsages(self.Mem, []*Reg { &self.V, &self.M })
}

func (self *IrStore) Definitions() []*Reg {
    return []*Reg { &self.D }
}

func (self *IrStore) MemUse() *Reg { return &self.M }
func (self *IrStore) MemDef() *Reg { return &self.D }

// IrCall calls an opaque function that may read and write any memory.
type IrCall struct {
    Fn  string
    M   Reg
    D   Reg
    In  []Reg
    Out []Reg
}

func (self *IrCall) String() string {
    in := make([]string, 0, len(self.In))
    out := make([]string, 0, len(self.Out))

    /* dump args and rets */
    for _, r := range self.In  { in = append(in, r.String()) }
    for _, r := range self.Out { out = append(out, r.String()) }

    /* join them together */
    return fmt.Sprintf(
        "{%s}, %s = call %s(%s) {%s}",
        strings.Join(out, ", "),
        self.D,
        self.Fn,
        strings.Join(in, ", "),
        self.M,
    )
}

func (self *IrCall) Usages() []*Reg {
    return append(regsliceref(self.In), &self.M)
}

func (self *IrCall) Definitions() []*Reg {
    return append(regsliceref(self.Out), &self.D)
}

func (self *IrCall) MemUse() *Reg { return &self.M }
func (self *IrCall) MemDef() *Reg { return &self.D }

// IrSplat broadcasts a scalar value into every lane of a vector.
type IrSplat struct {
    R Reg
    V Reg
}

func (self *IrSplat) String() string {
    return fmt.Sprintf("%s = splat %s", self.R, self.V)
}

func (self *IrSplat) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrSplat) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrVecConst is a vector with the same constant bit pattern in every lane.
type IrVecConst struct {
    R    Reg
    Bits uint64
}

func (self *IrVecConst) String() string {
    return fmt.Sprintf("%s = vconst {%#x, ...}", self.R, self.Bits)
}

func (self *IrVecConst) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrVecLoad loads a whole vector from Ptr. With Floor set the address is
// first rounded down to a multiple of the vector size. Aligned records
// whether the address is known to be aligned.
type IrVecLoad struct {
    R       Reg
    M       Reg
    Ptr     Reg
    Floor   bool
    Aligned bool
}

func (self *IrVecLoad) String() string {
    var op string
    switch {
        case self.Floor   : op = "vload.floor"
        case self.Aligned : op = "vload.aligned"
        default           : op = "vload.unaligned"
    }
    return fmt.Sprintf("%s = %s %s {%s}", self.R, op, self.Ptr, self.M)
}

func (self *IrVecLoad) Usages() []*Reg {
    return []*Reg { &self.Ptr, &self.M }
}

func (self *IrVecLoad) Definitions() []*Reg {
    return []*Reg { &self.R }
}

func (self *IrVecLoad) MemUse() *Reg { return &self.M }
func (self *IrVecLoad) MemDef() *Reg { return nil }

// IrVecStore stores a whole vector to an aligned address.
type IrVecStore struct {
    V   Reg
    M   Reg
    D   Reg
    Ptr Reg
}

func (self *IrVecStore) String() string {
    return fmt.Sprintf("%s = vstore %s -> *%s {%s}", self.D, self.V, self.Ptr, self.M)
}

func (self *IrVecStore) Usages() []*Reg {
    return []*Reg { &self.V, &self.Ptr, &self.M }
}

func (self *IrVecStore) Definitions() []*Reg {
    return []*Reg { &self.D }
}

func (self *IrVecStore) MemUse() *Reg { return &self.M }
func (self *IrVecStore) MemDef() *Reg { return &self.D }

// IrBlend selects lanes from T where Mask is set and from F elsewhere.
type IrBlend struct {
    R    Reg
    Mask Reg
    T    Reg
    F    Reg
}

func (self *IrBlend) String() string {
    return fmt.Sprintf("%s = blend %s, %s, %s", self.R, self.Mask, self.T, self.F)
}

func (self *IrBlend) Usages() []*Reg {
    return []*Reg { &self.Mask, &self.T, &self.F }
}

func (self *IrBlend) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrRealignMask computes the realignment shift for loads starting at Ptr,
// in bytes, for vectors of Size bytes: Size - ((-Ptr) & (Size - 1)).
type IrRealignMask struct {
    R    Reg
    Ptr  Reg
    Size int
}

func (self *IrRealignMask) String() string {
    return fmt.Sprintf("%s = realign_mask.%d %s", self.R, self.Size, self.Ptr)
}

func (self *IrRealignMask) Usages() []*Reg {
    return []*Reg { &self.Ptr }
}

func (self *IrRealignMask) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrRealignLoad extracts one vector starting at byte Off of the
// concatenation Lo:Hi.
type IrRealignLoad struct {
    R   Reg
    Lo  Reg
    Hi  Reg
    Off Reg
}

func (self *IrRealignLoad) String() string {
    return fmt.Sprintf("%s = realign_load %s, %s, %s", self.R, self.Lo, self.Hi, self.Off)
}

func (self *IrRealignLoad) Usages() []*Reg {
    return []*Reg { &self.Lo, &self.Hi, &self.Off }
}

func (self *IrRealignLoad) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// HasSideEffects returns true if the node must not be removed even when
// none of its definitions are used.
func HasSideEffects(p IrNode) bool {
    switch p.(type) {
        case *IrStore, *IrVecStore, *IrCall : return true
        default                             : return false
    }
}
