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
)

// Builder constructs a function in non-SSA form. Variables may be assigned
// any number of times, Build converts the result into SSA form.
type Builder struct {
    fn  *Func
    bb  *BasicBlock
    np  int
}

func NewBuilder(name string) *Builder {
    fn := newFunc(name)
    fn.Root = fn.NewBlock()
    return &Builder { fn: fn, bb: fn.Root }
}

// Func returns the function under construction.
func (self *Builder) Func() *Func {
    return self.fn
}

// Block returns the current block.
func (self *Builder) Block() *BasicBlock {
    return self.bb
}

// NewBlock creates a new block without switching to it.
func (self *Builder) NewBlock() *BasicBlock {
    return self.fn.NewBlock()
}

// At sets the current block.
func (self *Builder) At(bb *BasicBlock) {
    self.bb = bb
}

// Var creates a new variable of type t.
func (self *Builder) Var(t Type) Reg {
    return self.fn.newVar(t)
}

// Array declares a new array object.
func (self *Builder) Array(name string, elem Type, n int, class StorageClass) *Decl {
    d := &Decl {
        Name  : name,
        Elem  : elem,
        Len   : n,
        Align : elem.Size(),
        Class : class,
    }
    self.fn.Decls = append(self.fn.Decls, d)
    return d
}

// Declare adds an existing declaration to the function.
func (self *Builder) Declare(d *Decl) *Decl {
    self.fn.Decls = append(self.fn.Decls, d)
    return d
}

// Param adds a scalar parameter.
func (self *Builder) Param(name string, t Type) Reg {
    return self.param(&Decl { Name: name, Elem: t, Len: 1, Align: t.Size(), Class: Param }, t)
}

// PtrParam adds a pointer parameter. The declaration describes the object
// it points to.
func (self *Builder) PtrParam(name string, elem Type, restrict bool) (Reg, *Decl) {
    d := &Decl {
        Name     : name,
        Elem     : elem,
        Len      : 1,
        Align    : elem.Size(),
        Class    : Param,
        Restrict : restrict,
    }
    return self.param(d, TPtr), d
}

func (self *Builder) param(d *Decl, t Type) Reg {
    r := self.Var(t)
    self.fn.Params = append(self.fn.Params, d)
    self.fn.Root.InsertAt(self.np, &IrParam { R: r, Id: self.np })
    self.np++
    return r
}

func (self *Builder) emit(p IrNode) {
    if self.bb.Term != nil {
        panic(fmt.Sprintf("bb_%d is already terminated", self.bb.Id))
    } else {
        self.bb.Ins = append(self.bb.Ins, p)
    }
}

// Int materializes an integer constant.
func (self *Builder) Int(t Type, v int64) Reg {
    r := self.Var(t)
    self.emit(&IrConstInt { R: r, V: v })
    return r
}

// Float materializes a floating point constant.
func (self *Builder) Float(t Type, v float64) Reg {
    r := self.Var(t)
    self.emit(&IrConstFloat { R: r, V: v })
    return r
}

// AddrOf takes the address of a declaration, marking it as escaped.
func (self *Builder) AddrOf(d *Decl) Reg {
    r := self.Var(TPtr)
    d.Escaped = true
    self.emit(&IrAddrOf { R: r, Decl: d })
    return r
}

// Assign copies v into an existing variable.
func (self *Builder) Assign(dst Reg, v Reg) {
    self.emit(&IrCopy { R: dst, V: v })
}

// Unary computes op(v) into a new variable.
func (self *Builder) Unary(op IrUnaryOp, v Reg) Reg {
    r := self.Var(self.fn.Types[v])
    self.emit(&IrUnaryExpr { R: r, V: v, Op: op })
    return r
}

// Binary computes x op y into a new variable.
func (self *Builder) Binary(op IrBinaryOp, x Reg, y Reg) Reg {
    r := self.Var(BinaryType(op, self.fn.Types[x]))
    self.emit(&IrBinaryExpr { R: r, X: x, Y: y, Op: op })
    return r
}

// Update computes x op y into an existing variable.
func (self *Builder) Update(dst Reg, op IrBinaryOp, x Reg, y Reg) {
    self.emit(&IrBinaryExpr { R: dst, X: x, Y: y, Op: op })
}

// Select computes (x op y) ? t : f into a new variable.
func (self *Builder) Select(op IrBinaryOp, x Reg, y Reg, t Reg, f Reg) Reg {
    r := self.Var(self.fn.Types[t])
    self.emit(&IrSelect { R: r, X: x, Y: y, T: t, F: f, Op: op })
    return r
}

// LEA computes p + off * scale into a new pointer variable.
func (self *Builder) LEA(p Reg, off Reg, scale int64) Reg {
    r := self.Var(TPtr)
    self.emit(&IrLEA { R: r, Mem: p, Off: off, Scale: scale })
    return r
}

// UpdateLEA computes p + off * scale into an existing variable.
func (self *Builder) UpdateLEA(dst Reg, p Reg, off Reg, scale int64) {
    self.emit(&IrLEA { R: dst, Mem: p, Off: off, Scale: scale })
}

// Load reads a value of type t from an address.
func (self *Builder) Load(t Type, a Addr) Reg {
    r := self.Var(t)
    self.emit(&IrLoad { R: r, M: Mem, Mem: a })
    return r
}

// Store writes v to an address.
func (self *Builder) Store(v Reg, a Addr) {
    self.emit(&IrStore { V: v, M: Mem, D: Mem, Mem: a })
}

// Call invokes an opaque function.
func (self *Builder) Call(fn string, ret []Type, args ...Reg) []Reg {
    out := make([]Reg, len(ret))
    for i, t := range ret { out[i] = self.Var(t) }
    self.emit(&IrCall { Fn: fn, M: Mem, D: Mem, In: args, Out: out })
    return out
}

// Jump terminates the current block with an unconditional jump.
func (self *Builder) Jump(to *BasicBlock) {
    self.term(&IrJump { To: to })
}

// Branch terminates the current block with a conditional branch.
func (self *Builder) Branch(v Reg, t *BasicBlock, f *BasicBlock) {
    if t == f {
        self.term(&IrJump { To: t })
    } else {
        self.term(&IrBranch { V: v, T: t, F: f })
    }
}

// Return terminates the current block.
func (self *Builder) Return(rets ...Reg) {
    self.term(&IrReturn { R: rets })
}

func (self *Builder) term(p IrTerminator) {
    if self.bb.Term != nil {
        panic(fmt.Sprintf("bb_%d is already terminated", self.bb.Id))
    } else {
        self.bb.Term = p
    }
}

// CountedLoop emits a guarded, bottom-tested counting loop. The body runs
// with i = lo, lo + step, ... while i < hi (i > hi for negative steps), with
// the exit test at the end of the header followed by an empty latch. The
// builder is left at the block after the loop. It returns the loop header
// and the counting variable.
func (self *Builder) CountedLoop(lo Reg, hi Reg, step int64, body func(i Reg)) (*BasicBlock, Reg) {
    op := IrCmpLt
    pre := self.NewBlock()
    hdr := self.NewBlock()
    latch := self.NewBlock()
    exit := self.NewBlock()

    /* select the comparison */
    if step < 0 {
        op = IrCmpGt
    }

    /* guard: skip the loop entirely if it would not run */
    i := self.Var(self.fn.Types[lo])
    self.Assign(i, lo)
    self.Branch(self.Binary(op, lo, hi), pre, exit)

    /* preheader */
    self.At(pre)
    self.Jump(hdr)

    /* loop body, followed by the increment and the exit test */
    self.At(hdr)
    body(i)
    self.Update(i, IrOpAdd, i, self.Int(self.fn.Types[lo], step))
    self.Branch(self.Binary(op, i, hi), latch, exit)

    /* empty latch */
    self.At(latch)
    self.Jump(hdr)

    /* continue after the loop */
    self.At(exit)
    return hdr, i
}

// Build converts the function into SSA form and computes the CFG analysis.
func (self *Builder) Build() *Func {
    buildSSA(self.fn)
    return self.fn
}

// DeclAddr is a convenience constructor for a declaration address.
func DeclAddr(d *Decl) Addr {
    return &AddrDecl { Decl: d }
}

// DerefAddr is a convenience constructor for a pointer dereference.
func DerefAddr(p Reg) Addr {
    return &AddrDeref { Ptr: p }
}

// IndexAddr selects element idx of base, stride bytes each.
func IndexAddr(base Addr, idx Reg, stride int) Addr {
    return &AddrIndex { Base: base, Index: idx, Stride: stride }
}

// FieldAddr selects a field of base at a constant byte offset.
func FieldAddr(base Addr, name string, off int) Addr {
    return &AddrField { Base: base, Name: name, Offset: off }
}

// BinaryType returns the result type of x op y where x has type t.
func BinaryType(op IrBinaryOp, t Type) Type {
    if !op.IsCompare() {
        return t
    } else if t.IsVector() {
        return TBool.Vector(t.Lanes)
    } else {
        return TBool
    }
}
