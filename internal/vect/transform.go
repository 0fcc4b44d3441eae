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
    `fmt`
    `math`

    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
    `github.com/cloudwego/loopvec/target`
)

type _Transformer struct {
    fn     *ir.Func
    ctx    *PassContext
    info   *LoopInfo
    pre    *ir.BasicBlock
    hdr    *ir.BasicBlock
    latch  *ir.BasicBlock
    incs   []ir.IrNode
    vals   map[ir.Reg]ir.Reg
    consts map[int64]ir.Reg
}

func newTransformer(ctx *PassContext, info *LoopInfo) *_Transformer {
    return &_Transformer {
        fn     : info.Func,
        ctx    : ctx,
        info   : info,
        pre    : info.Preheader,
        hdr    : info.Header,
        latch  : info.Latch,
        vals   : make(map[ir.Reg]ir.Reg),
        consts : make(map[int64]ir.Reg),
    }
}

// run replaces every relevant statement of the loop with its vector form.
// Scalar statements that are no longer used are left for TDCE.
func (self *_Transformer) run() {
    ins := append([]ir.IrNode(nil), self.hdr.Ins...)
    for _, p := range ins {
        if id, ok := self.info.StmtOf(p); ok {
            if st := self.info.Stmt(id); st.Relevant {
                self.stmt(st)
            }
        }
    }

    /* advance the vector pointers at the end of the iteration */
    self.hdr.Append(self.incs...)
}

func (self *_Transformer) stmt(st *StmtInfo) {
    switch st.Kind {
        case StmtLoad       : self.load(st, st.Node.(*ir.IrLoad))
        case StmtStore      : self.store(st, st.Node.(*ir.IrStore))
        case StmtUnaryOp    : self.unary(st, st.Node.(*ir.IrUnaryExpr))
        case StmtBinaryOp   : self.binary(st, st.Node.(*ir.IrBinaryExpr))
        case StmtAssignment : self.copy(st, st.Node.(*ir.IrCopy))
        case StmtSelect     : self.selectv(st, st.Node.(*ir.IrSelect))
        case StmtUndefined  : panic("vectorize: relevant statement cannot be vectorized: " + st.Node.String())
        default             : panic("unreachable")
    }
}

// emit inserts vector code in front of the scalar statement.
func (self *_Transformer) emit(st *StmtInfo, ins ...ir.IrNode) {
    if i := self.hdr.IndexOf(st.Node); i < 0 {
        panic("vectorize: statement is not in the header: " + st.Node.String())
    } else {
        self.hdr.InsertAt(i, ins...)
    }
}

// define records the vector form of a scalar value.
func (self *_Transformer) define(st *StmtInfo, r ir.Reg, vr ir.Reg, p ir.IrNode) {
    st.VecDef = vr
    st.VecStmt = p
    self.vals[r] = vr
}

func (self *_Transformer) unary(st *StmtInfo, p *ir.IrUnaryExpr) {
    r := self.fn.NewReg(st.VecType)
    v := &ir.IrUnaryExpr { R: r, V: self.operand(p.V), Op: p.Op }
    self.emit(st, v)
    self.define(st, p.R, r, v)
}

func (self *_Transformer) binary(st *StmtInfo, p *ir.IrBinaryExpr) {
    x := self.operand(p.X)
    y := self.operand(p.Y)
    r := self.fn.NewReg(ir.BinaryType(p.Op, st.VecType))
    v := &ir.IrBinaryExpr { R: r, X: x, Y: y, Op: p.Op }
    self.emit(st, v)
    self.define(st, p.R, r, v)
}

func (self *_Transformer) copy(st *StmtInfo, p *ir.IrCopy) {
    r := self.fn.NewReg(st.VecType)
    v := &ir.IrCopy { R: r, V: self.operand(p.V) }
    self.emit(st, v)
    self.define(st, p.R, r, v)
}

func (self *_Transformer) selectv(st *StmtInfo, p *ir.IrSelect) {
    x := self.operand(p.X)
    y := self.operand(p.Y)
    m := self.fn.NewReg(ir.BinaryType(p.Op, self.fn.TypeOf(x)))
    r := self.fn.NewReg(st.VecType)

    /* compare the lanes and blend */
    cmp := &ir.IrBinaryExpr { R: m, X: x, Y: y, Op: p.Op }
    sel := &ir.IrBlend { R: r, Mask: m, T: self.operand(p.T), F: self.operand(p.F) }
    self.emit(st, cmp, sel)
    self.define(st, p.R, r, sel)
}

func (self *_Transformer) load(st *StmtInfo, p *ir.IrLoad) {
    var v ir.IrNode
    ref := self.info.Ref(st.Ref)
    r := self.fn.NewReg(st.VecType)

    /* invariant loads stay scalar and are broadcast */
    if ref.Invariant {
        self.splatAfter(st, p.R, r)
        return
    }

    /* choose the kind of the load */
    ptr, addr := self.pointer(st, ref)
    mode := self.ctx.Target.Misaligned(target.AccessLoad)

    /* emit the load */
    switch {
        case ref.Misalign.Aligned()                   : v = &ir.IrVecLoad { R: r, M: p.M, Ptr: ptr, Aligned: true }
        case mode == target.MisalignNative            : v = &ir.IrVecLoad { R: r, M: p.M, Ptr: ptr }
        case mode == target.MisalignSoftwarePipelined : v = self.realign(st, p, r, ptr, addr)
        default                                       : panic(fmt.Sprintf("vectorize: misaligned load from %s is not supported", ref.Addr))
    }

    /* add to the loop */
    self.emit(st, v)
    self.define(st, p.R, r, v)
}

func (self *_Transformer) splatAfter(st *StmtInfo, s ir.Reg, r ir.Reg) {
    v := &ir.IrSplat { R: r, V: s }
    self.hdr.InsertAt(self.hdr.IndexOf(st.Node) + 1, v)
    self.define(st, s, r, v)
}

// realign loads a misaligned vector by combining two aligned loads, with
// the previous one carried around the loop:
//
//     P:  lo = vload.floor(addr)
//         mask = realign_mask(addr)
//     H:  msq = φ(P: lo, T: hi)
//         hi = vload.floor(ptr + VB - 1)
//         r = realign_load(msq, hi, mask)
//
func (self *_Transformer) realign(st *StmtInfo, p *ir.IrLoad, r ir.Reg, ptr ir.Reg, addr ir.Reg) ir.IrNode {
    vt := st.VecType
    vb := vt.Size()
    lo := self.fn.NewReg(vt)
    hi := self.fn.NewReg(vt)
    hp := self.fn.NewReg(ir.TPtr)
    msq := self.fn.NewReg(vt)

    /* the first quad, the memory state is repaired by renaming */
    self.pre.Append(&ir.IrVecLoad { R: lo, M: ir.Mem, Ptr: addr, Floor: true })
    mask := self.mask(addr, vb)

    /* carry the last quad */
    phi := &ir.IrPhi { R: msq }
    phi.SetArg(self.pre, lo)
    phi.SetArg(self.latch, hi)
    self.hdr.Phi = append(self.hdr.Phi, phi)

    /* load the next quad */
    self.emit(st,
        &ir.IrLEA     { R: hp, Mem: ptr, Off: self.constant(int64(vb - 1)), Scale: 1 },
        &ir.IrVecLoad { R: hi, M: p.M, Ptr: hp, Floor: true },
    )

    /* combine them */
    return &ir.IrRealignLoad { R: r, Lo: msq, Hi: hi, Off: mask }
}

// mask computes the realignment shift in the preheader.
func (self *_Transformer) mask(addr ir.Reg, vb int) ir.Reg {
    ret := self.fn.NewReg(ir.TI64)

    /* use the target builtin if there is one */
    if self.ctx.Target.HasMaskForLoad() {
        self.pre.Append(&ir.IrRealignMask { R: ret, Ptr: addr, Size: vb })
        return ret
    }

    /* otherwise compute vb - ((-addr) & (vb - 1)) */
    neg := self.fn.NewReg(ir.TI64)
    low := self.fn.NewReg(ir.TI64)
    self.pre.Append(
        &ir.IrBinaryExpr { R: neg, X: self.constant(0), Y: addr, Op: ir.IrOpSub },
        &ir.IrBinaryExpr { R: low, X: neg, Y: self.constant(int64(vb - 1)), Op: ir.IrOpAnd },
        &ir.IrBinaryExpr { R: ret, X: self.constant(int64(vb)), Y: low, Op: ir.IrOpSub },
    )
    return ret
}

func (self *_Transformer) store(st *StmtInfo, p *ir.IrStore) {
    ref := self.info.Ref(st.Ref)
    val := self.operand(p.V)

    /* stores are always aligned */
    if !ref.Misalign.Aligned() {
        panic(fmt.Sprintf("vectorize: misaligned store to %s", ref.Addr))
    }

    /* replace the scalar store */
    ptr, _ := self.pointer(st, ref)
    v := &ir.IrVecStore { V: val, M: p.M, D: p.D, Ptr: ptr }
    self.emit(st, v)
    self.hdr.Remove(p)

    /* record the vector statement */
    st.VecStmt = v
}

// pointer creates the vector pointer of a reference, which starts at the
// first element in the preheader and advances by one vector per iteration.
func (self *_Transformer) pointer(st *StmtInfo, ref *DataRef) (ir.Reg, ir.Reg) {
    vp := self.fn.NewReg(ir.TPtr)
    nx := self.fn.NewReg(ir.TPtr)
    addr := emitAddress(self.fn, self.pre, ref)

    /* ptr = φ(P: addr, T: ptr + VB) */
    phi := &ir.IrPhi { R: vp }
    phi.SetArg(self.pre, addr)
    phi.SetArg(self.latch, nx)
    self.hdr.Phi = append(self.hdr.Phi, phi)

    /* advance it at the end of the iteration */
    self.incs = append(self.incs, &ir.IrLEA {
        R     : nx,
        Mem   : vp,
        Off   : self.constant(int64(st.VecType.Size())),
        Scale : 1,
    })

    /* the memory chains of this tag change */
    self.ctx.markRename(ref.Tag)
    return vp, addr
}

// operand returns the vector form of a scalar operand.
func (self *_Transformer) operand(r ir.Reg) ir.Reg {
    if v, ok := self.vals[r]; ok {
        return v
    }

    /* constants and invariants are broadcast in the preheader */
    vt := self.fn.TypeOf(r).Vector(self.info.VF)
    ret := self.fn.NewReg(vt)

    /* check the definition */
    switch p := self.info.ev.DefUse().Def[r].(type) {
        case *ir.IrConstInt   : self.pre.Append(&ir.IrVecConst { R: ret, Bits: uint64(p.V) })
        case *ir.IrConstFloat : self.pre.Append(&ir.IrVecConst { R: ret, Bits: floatBits(vt.Kind, p.V) })
        default               : self.broadcast(r, ret)
    }

    /* cache the broadcast */
    self.vals[r] = ret
    return ret
}

func (self *_Transformer) broadcast(r ir.Reg, ret ir.Reg) {
    if self.info.ev.InLoop(r) {
        panic("vectorize: operand has no vector form: " + r.String())
    } else {
        self.pre.Append(&ir.IrSplat { R: ret, V: r })
    }
}

// constant returns a 64-bit constant defined in the preheader.
func (self *_Transformer) constant(v int64) ir.Reg {
    if r, ok := self.consts[v]; ok {
        return r
    }

    /* define a new one */
    r := self.fn.NewReg(ir.TI64)
    self.pre.Append(&ir.IrConstInt { R: r, V: v })
    self.consts[v] = r
    return r
}

func floatBits(k ir.Kind, v float64) uint64 {
    if k == ir.F32 {
        return uint64(math.Float32bits(float32(v)))
    } else {
        return math.Float64bits(v)
    }
}

// emitAddress computes the address of the first access of ref at the end
// of bb.
func emitAddress(fn *ir.Func, bb *ir.BasicBlock, ref *DataRef) ir.Reg {
    if ref.Root == nil {
        return scev.Materialize(fn, bb, ref.Address.Init, ir.TPtr)
    }

    /* offset from the declaration */
    base := fn.NewReg(ir.TPtr)
    addr := fn.NewReg(ir.TPtr)
    off := scev.Materialize(fn, bb, ref.Address.Init, ir.TI64)

    /* base + offset */
    bb.Append(
        &ir.IrAddrOf { R: base, Decl: ref.Root },
        &ir.IrLEA    { R: addr, Mem: base, Off: off, Scale: 1 },
    )
    return addr
}
