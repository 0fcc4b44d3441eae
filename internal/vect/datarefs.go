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
    `github.com/cloudwego/loopvec/internal/alias`
    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
)

// collectRefs creates a statement for every instruction of the loop and a
// data reference for every memory access.
func collectRefs(info *LoopInfo) error {
    for _, bb := range info.Blocks {
        for _, p := range bb.Ins {
            id := info.addStmt(p)

            /* classify the memory accesses */
            switch v := p.(type) {
                case *ir.IrLoad  : if err := info.newRef(id, v.Mem, info.Func.TypeOf(v.R), false); err != nil { return err }
                case *ir.IrStore : if err := info.newRef(id, v.Mem, info.Func.TypeOf(v.V), true); err != nil { return err }
                case *ir.IrCall  : return failf(UnsupportedDataRef, "call to %s may access memory", v.Fn)
            }

            /* vector code is never vectorized again */
            switch p.(type) {
                case *ir.IrVecLoad, *ir.IrVecStore, *ir.IrRealignLoad: {
                    return failf(UnsupportedDataRef, "%s is already vectorized", info.Loop)
                }
            }
        }
    }
    return nil
}

func (self *LoopInfo) newRef(id StmtId, addr ir.Addr, elem ir.Type, write bool) error {
    ref := DataRef {
        Stmt  : id,
        Write : write,
        Elem  : elem,
        Addr  : addr,
        Tag   : alias.TagOf(self.Func, self.ev.DefUse(), addr),
    }

    /* compute the access functions */
    if err := self.describe(&ref); err != nil {
        return err
    }

    /* add to the loop */
    self.addRef(ref)
    return nil
}

// describe computes the access functions of a reference and its
// linearized byte address.
func (self *LoopInfo) describe(ref *DataRef) error {
    var off int64
    var dims []Dim
    var root ir.Addr

    /* walk from the outermost selector to the base */
    for a := ref.Addr; root == nil; {
        switch v := a.(type) {
            case *ir.AddrIndex : dims = append([]Dim { { Index: v.Index, Stride: v.Stride } }, dims...); a = v.Base
            case *ir.AddrField : off += int64(v.Offset); a = v.Base
            case *ir.AddrDecl  : root = v
            case *ir.AddrDeref : root = v
            default            : return failf(UnsupportedDataRef, "cannot resolve the base of %s", ref.Addr)
        }
    }

    /* reset the reference */
    ref.Root = nil
    ref.Dims = dims
    ref.Offset = off
    ref.Ptr = scev.InvariantOf(scev.Const(0))

    /* the base is either a declaration or a pointer */
    switch v := root.(type) {
        case *ir.AddrDecl: {
            ref.Root = v.Decl
        }

        /* pointers must evolve linearly */
        case *ir.AddrDeref: {
            if ref.Ptr = self.ev.Of(v.Ptr); !ref.Ptr.IsAffine() {
                return failf(UnsupportedDataRef, "pointer %s evolves as %s", v.Ptr, ref.Ptr)
            }
        }
    }

    /* linearize the address */
    addr := ref.Ptr.Plus(scev.InvariantOf(scev.Const(off)))
    for i := range ref.Dims {
        d := &ref.Dims[i]
        d.Access = self.ev.Of(d.Index)

        /* subscripts must be affine */
        if !d.Access.IsAffine() {
            return failf(UnsupportedDataRef, "subscript %s of %s evolves as %s", d.Index, ref.Addr, d.Access)
        }

        /* add to the address */
        addr = addr.Plus(d.Access.Times(scev.Const(d.Stride)))
    }

    /* update the reference */
    ref.Address = addr
    ref.Invariant = addr.Kind == scev.Invariant
    self.Stmt(ref.Stmt).VecBase = addr.Init
    return nil
}
