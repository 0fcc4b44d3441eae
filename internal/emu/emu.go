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
    `fmt`

    `github.com/cloudwego/loopvec/ir`
)

const (
    _DefaultLimit = 1 << 22
)

// Value holds the lanes of a register. Scalars have exactly one lane.
// Integers are kept sign-extended, floats as their IEEE bit patterns and
// booleans as 0 or 1.
type Value []uint64

// Fault describes why the emulation stopped.
type Fault struct {
    Node   ir.IrNode
    Reason string
}

func (self Fault) Error() string {
    if self.Node == nil {
        return "emu: " + self.Reason
    } else {
        return fmt.Sprintf("emu: %s: %s", self.Node, self.Reason)
    }
}

// CallHandler implements an opaque function called by the program.
type CallHandler func(mem *Memory, args []uint64) []uint64

// Emulator executes an SSA function over a flat memory.
type Emulator struct {
    Memory
    Steps int
    Limit int
    Calls map[string]CallHandler
    fn    *ir.Func
    regs  map[ir.Reg]Value
    decls map[*ir.Decl]uint64
    args  []uint64
}

// New creates an emulator for fn and allocates every declaration of it.
// Each declaration is placed at an address that is aligned to exactly its
// declared alignment and no more.
func New(fn *ir.Func) *Emulator {
    ret := &Emulator {
        fn    : fn,
        Limit : _DefaultLimit,
        Calls : make(map[string]CallHandler),
        decls : make(map[*ir.Decl]uint64),
    }

    /* allocate the declarations */
    for _, d := range fn.Decls {
        if d.Align <= 1 {
            ret.decls[d] = ret.Alloc(d.Size(), 2, 1)
        } else {
            ret.decls[d] = ret.Alloc(d.Size(), d.Align * 2, d.Align)
        }
    }
    return ret
}

// AddrOf returns the address of a declaration.
func (self *Emulator) AddrOf(d *ir.Decl) uint64 {
    if p, ok := self.decls[d]; ok {
        return p
    } else {
        panic(Fault { Reason: "declaration is not allocated: " + d.Name })
    }
}

// Lookup finds a declaration by name.
func (self *Emulator) Lookup(name string) *ir.Decl {
    for _, d := range self.fn.Decls {
        if d.Name == name {
            return d
        }
    }
    return nil
}

// Contents returns the bytes of a declaration.
func (self *Emulator) Contents(d *ir.Decl) []byte {
    return self.Bytes(self.AddrOf(d), d.Size())
}

// Run executes the function with the given arguments and returns the
// first lane of every returned value.
func (self *Emulator) Run(args ...uint64) (ret []uint64, err error) {
    self.args = args
    self.regs = make(map[ir.Reg]Value)

    /* convert faults into errors */
    defer func() {
        if v := recover(); v != nil {
            if f, ok := v.(Fault); ok {
                err = f
            } else {
                panic(v)
            }
        }
    }()

    /* run from the entry block */
    ret = self.run()
    return
}

func (self *Emulator) run() []uint64 {
    var prev *ir.BasicBlock
    var this = self.fn.Root

    /* execute block by block */
    for {
        self.phis(prev, this)

        /* execute every instruction */
        for _, p := range this.Ins {
            self.tick(p)
            self.exec(p)
        }

        /* follow the terminator */
        self.tick(this.Term)
        switch t := this.Term.(type) {
            case *ir.IrJump   : prev, this = this, t.To
            case *ir.IrReturn : return self.results(t)
            case *ir.IrBranch : prev, this = this, self.branch(t)
            default           : panic(Fault { Node: this.Term, Reason: "invalid terminator" })
        }
    }
}

func (self *Emulator) tick(p ir.IrNode) {
    if self.Steps++; self.Steps > self.Limit {
        panic(Fault { Node: p, Reason: "step limit exceeded" })
    }
}

func (self *Emulator) branch(p *ir.IrBranch) *ir.BasicBlock {
    if self.get(p, p.V)[0] != 0 {
        return p.T
    } else {
        return p.F
    }
}

func (self *Emulator) results(p *ir.IrReturn) []uint64 {
    ret := make([]uint64, len(p.R))
    for i, r := range p.R { ret[i] = self.get(p, r)[0] }
    return ret
}

// phis evaluates all the Phi nodes of bb at the same time.
func (self *Emulator) phis(prev *ir.BasicBlock, bb *ir.BasicBlock) {
    vals := make([]Value, len(bb.Phi))

    /* read all the arguments first */
    for i, p := range bb.Phi {
        if !p.R.IsMem() {
            vals[i] = self.get(p, p.Arg(prev))
        }
    }

    /* then update the registers */
    for i, p := range bb.Phi {
        if !p.R.IsMem() {
            self.regs[p.R] = vals[i]
        }
    }
}

func (self *Emulator) get(p ir.IrNode, r ir.Reg) Value {
    if v, ok := self.regs[r]; ok {
        return v
    } else {
        panic(Fault { Node: p, Reason: "use of undefined register " + r.String() })
    }
}

func (self *Emulator) scalar(p ir.IrNode, r ir.Reg) uint64 {
    return self.get(p, r)[0]
}

func (self *Emulator) kind(r ir.Reg) ir.Kind {
    return self.fn.TypeOf(r).Kind
}

func (self *Emulator) lanes(r ir.Reg) int {
    return self.fn.TypeOf(r).NumLanes()
}

func (self *Emulator) set(r ir.Reg, v ...uint64) {
    self.regs[r] = v
}

// addr computes the address of a memory operand.
func (self *Emulator) addr(p ir.IrNode, a ir.Addr) uint64 {
    switch v := a.(type) {
        case *ir.AddrDecl  : return self.AddrOf(v.Decl)
        case *ir.AddrDeref : return self.scalar(p, v.Ptr)
        case *ir.AddrIndex : return self.addr(p, v.Base) + self.scalar(p, v.Index) * uint64(v.Stride)
        case *ir.AddrField : return self.addr(p, v.Base) + uint64(v.Offset)
        default            : panic("unreachable")
    }
}

func (self *Emulator) vload(addr uint64, vt ir.Type) Value {
    n := vt.Elem().Size()
    ret := make(Value, vt.NumLanes())

    /* load every lane */
    for i := range ret {
        ret[i] = self.Load(addr + uint64(i * n), vt.Kind)
    }
    return ret
}

func (self *Emulator) exec(p ir.IrNode) {
    switch v := p.(type) {
        case *ir.IrParam       : self.param(v)
        case *ir.IrAddrOf      : self.set(v.R, self.AddrOf(v.Decl))
        case *ir.IrConstInt    : self.set(v.R, normalize(self.kind(v.R), uint64(v.V)))
        case *ir.IrConstFloat  : self.set(v.R, floatbits(self.kind(v.R), v.V))
        case *ir.IrCopy        : self.regs[v.R] = self.get(p, v.V)
        case *ir.IrUnaryExpr   : self.unary(v)
        case *ir.IrBinaryExpr  : self.binary(v)
        case *ir.IrSelect      : self.selectv(v)
        case *ir.IrLEA         : self.set(v.R, self.scalar(p, v.Mem) + self.scalar(p, v.Off) * uint64(v.Scale))
        case *ir.IrLoad        : self.set(v.R, self.Load(self.addr(p, v.Mem), self.kind(v.R)))
        case *ir.IrStore       : self.Store(self.addr(p, v.Mem), self.kind(v.V), self.scalar(p, v.V))
        case *ir.IrCall        : self.call(v)
        case *ir.IrSplat       : self.splat(v)
        case *ir.IrVecConst    : self.vconst(v)
        case *ir.IrVecLoad     : self.vecload(v)
        case *ir.IrVecStore    : self.vecstore(v)
        case *ir.IrBlend       : self.blend(v)
        case *ir.IrRealignMask : self.realignmask(v)
        case *ir.IrRealignLoad : self.realignload(v)
        default                : panic(Fault { Node: p, Reason: "cannot execute" })
    }
}

func (self *Emulator) param(p *ir.IrParam) {
    if p.Id >= len(self.args) {
        panic(Fault { Node: p, Reason: "missing argument" })
    } else {
        self.set(p.R, normalize(self.kind(p.R), self.args[p.Id]))
    }
}

func (self *Emulator) unary(p *ir.IrUnaryExpr) {
    x := self.get(p, p.V)
    k := self.kind(p.V)
    r := make(Value, len(x))

    /* apply to every lane */
    for i := range x {
        r[i] = unaryop(p.Op, k, x[i])
    }
    self.regs[p.R] = r
}

func (self *Emulator) binary(p *ir.IrBinaryExpr) {
    x := self.get(p, p.X)
    y := self.get(p, p.Y)
    k := self.kind(p.X)

    /* lane counts must match */
    if len(x) != len(y) {
        panic(Fault { Node: p, Reason: "operand width mismatch" })
    }

    /* apply to every lane */
    r := make(Value, len(x))
    for i := range x { r[i] = binaryop(p.Op, k, x[i], y[i]) }
    self.regs[p.R] = r
}

func (self *Emulator) selectv(p *ir.IrSelect) {
    x := self.get(p, p.X)
    y := self.get(p, p.Y)
    t := self.get(p, p.T)
    f := self.get(p, p.F)
    k := self.kind(p.X)
    r := make(Value, len(t))

    /* pick every lane */
    for i := range r {
        if binaryop(p.Op, k, x[i], y[i]) != 0 {
            r[i] = t[i]
        } else {
            r[i] = f[i]
        }
    }
    self.regs[p.R] = r
}

func (self *Emulator) call(p *ir.IrCall) {
    fn, ok := self.Calls[p.Fn]
    if !ok {
        panic(Fault { Node: p, Reason: "unknown function" })
    }

    /* collect the arguments */
    args := make([]uint64, len(p.In))
    for i, r := range p.In { args[i] = self.scalar(p, r) }

    /* call the handler */
    ret := fn(&self.Memory, args)
    if len(ret) != len(p.Out) {
        panic(Fault { Node: p, Reason: "wrong number of results" })
    }

    /* update the results */
    for i, r := range p.Out {
        self.set(r, normalize(self.kind(r), ret[i]))
    }
}

func (self *Emulator) splat(p *ir.IrSplat) {
    v := self.scalar(p, p.V)
    r := make(Value, self.lanes(p.R))
    for i := range r { r[i] = v }
    self.regs[p.R] = r
}

func (self *Emulator) vconst(p *ir.IrVecConst) {
    r := make(Value, self.lanes(p.R))
    for i := range r { r[i] = p.Bits }
    self.regs[p.R] = r
}

func (self *Emulator) vecload(p *ir.IrVecLoad) {
    vt := self.fn.TypeOf(p.R)
    ptr := self.scalar(p, p.Ptr)
    size := uint64(vt.Size())

    /* check for the address alignment */
    switch {
        case p.Floor                      : ptr &^= size - 1
        case p.Aligned && ptr % size != 0 : panic(Fault { Node: p, Reason: fmt.Sprintf("misaligned vector load at %#x", ptr) })
    }

    /* load the vector */
    self.regs[p.R] = self.vload(ptr, vt)
}

func (self *Emulator) vecstore(p *ir.IrVecStore) {
    v := self.get(p, p.V)
    vt := self.fn.TypeOf(p.V)
    ptr := self.scalar(p, p.Ptr)
    size := vt.Size()

    /* vector stores must be aligned */
    if ptr % uint64(size) != 0 {
        panic(Fault { Node: p, Reason: fmt.Sprintf("misaligned vector store at %#x", ptr) })
    }

    /* store every lane */
    for i, x := range v {
        self.Store(ptr + uint64(i * vt.Elem().Size()), vt.Kind, x)
    }
}

func (self *Emulator) blend(p *ir.IrBlend) {
    m := self.get(p, p.Mask)
    t := self.get(p, p.T)
    f := self.get(p, p.F)
    r := make(Value, len(t))

    /* pick every lane */
    for i := range r {
        if m[i] != 0 {
            r[i] = t[i]
        } else {
            r[i] = f[i]
        }
    }
    self.regs[p.R] = r
}

func (self *Emulator) realignmask(p *ir.IrRealignMask) {
    n := uint64(p.Size)
    v := self.scalar(p, p.Ptr)
    self.set(p.R, n - (-v & (n - 1)))
}

func (self *Emulator) realignload(p *ir.IrRealignLoad) {
    k := self.kind(p.R)
    lo := lanebytes(k, self.get(p, p.Lo))
    hi := lanebytes(k, self.get(p, p.Hi))
    off := self.scalar(p, p.Off)

    /* the shift amount is in (0, size] */
    if off == 0 || off > uint64(len(lo)) {
        panic(Fault { Node: p, Reason: fmt.Sprintf("invalid realignment offset %d", off) })
    }

    /* extract from the concatenation */
    buf := append(lo, hi...)
    self.regs[p.R] = bytelanes(k, buf[off:off + uint64(len(lo))])
}
