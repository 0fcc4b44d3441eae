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
    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
    `github.com/cloudwego/loopvec/target`
    `github.com/oleiade/lane`
)

// analyzeAlignment computes the misalignment of every reference and
// decides whether a prologue is needed to align the stores.
//
// Declarations that are less aligned than a vector but may still be
// realigned are force-aligned here, even if the loop is rejected later.
func analyzeAlignment(info *LoopInfo, t target.Target) error {
    var worst RefId = NoRef

    /* compute all the misalignments */
    for i := range info.Refs {
        ref := &info.Refs[i]
        vb := t.VectorBytes(ref.Elem)

        /* invariant accesses are never vector accesses, unsupported types are rejected later */
        if ref.Invariant || vb == 0 {
            ref.Misalign = knownMisalign(0)
            continue
        }

        /* find the worst store */
        if ref.Misalign = info.misalign(ref, vb, t); ref.Write && !ref.Misalign.Aligned() {
            if worst == NoRef || worse(ref.Misalign, info.Ref(worst).Misalign) {
                worst = RefId(i)
            }
        }
    }

    /* stores may only be aligned by peeling */
    if worst != NoRef {
        if err := info.peelFor(worst, t); err != nil {
            return err
        }
    }

    /* check the loads */
    for _, id := range info.Reads {
        if ref := info.Ref(id); !ref.Misalign.Aligned() && t.Misaligned(target.AccessLoad) == target.MisalignNone {
            return failf(UnsupportedMisalignment, "load from %s is misaligned by %s", ref.Addr, ref.Misalign)
        }
    }

    /* all checked */
    return nil
}

func worse(a Misalign, b Misalign) bool {
    switch {
        case !a.Known : return b.Known
        case !b.Known : return false
        default       : return a.Bytes > b.Bytes
    }
}

// peelFor aligns the store id by peeling iterations off the front of the
// loop. The other references move by an unknown amount.
func (self *LoopInfo) peelFor(id RefId, t target.Target) error {
    ref := self.Ref(id)
    mis := ref.Misalign

    /* the target must be able to peel */
    if !t.CanPeelForAlignment() {
        return failf(UnsupportedMisalignment, "store to %s is misaligned by %s", ref.Addr, mis)
    }

    /* peeling moves the address by whole elements */
    if mis.Known && mis.Bytes % ref.Elem.Size() != 0 {
        return failf(UnsupportedMisalignment, "store to %s is misaligned by %d bytes, not a multiple of the element", ref.Addr, mis.Bytes)
    }

    /* update the misalignments */
    for i := range self.Refs {
        if r := &self.Refs[i]; RefId(i) == id {
            r.Misalign = knownMisalign(0)
        } else if !r.Invariant {
            r.Misalign = MisalignUnknown
        }
    }

    /* every other store is now misaligned */
    for _, w := range self.Writes {
        if r := self.Ref(w); w != id && !r.Invariant {
            return failf(UnsupportedMisalignment, "store to %s is misaligned after peeling for %s", r.Addr, ref.Addr)
        }
    }

    /* peel for this reference */
    self.Peel = Peel { Kind: PeelForAlignment, Ref: id }
    return nil
}

// misalign computes the misalignment of the first access of ref relative
// to vectors of vb bytes.
func (self *LoopInfo) misalign(ref *DataRef, vb int, t target.Target) Misalign {
    d, off, ok := self.baseOffset(ref)
    if !ok || d == nil {
        return MisalignUnknown
    }

    /* raise the alignment of the base if possible */
    if d.Align < vb {
        if !d.CanForceAlign() || vb > t.MaxAlignment() {
            return MisalignUnknown
        } else {
            d.ForceAlign(vb)
        }
    }

    /* the base is aligned, the offset decides */
    off %= int64(vb)
    if off < 0 { off += int64(vb) }
    return knownMisalign(int(off))
}

// baseOffset finds the declaration a reference starts from and the
// constant byte offset of its first access from the start of it.
func (self *LoopInfo) baseOffset(ref *DataRef) (*ir.Decl, int64, bool) {
    var off int64
    var decl *ir.Decl
    st := lane.NewStack()

    /* push the selectors, the base ends up on the top */
    for a := ref.Addr; a != nil; {
        switch st.Push(a); v := a.(type) {
            case *ir.AddrIndex : a = v.Base
            case *ir.AddrField : a = v.Base
            default            : a = nil
        }
    }

    /* pop them back, from the base to the outermost selector */
    for !st.Empty() {
        switch v := st.Pop().(type) {
            case *ir.AddrDecl: {
                decl = v.Decl
            }

            /* pointers are resolved to what they point to */
            case *ir.AddrDeref: {
                var ok bool
                var add int64
                if decl, add, ok = self.pointee(ref.Ptr.Init); !ok {
                    return nil, 0, false
                }
                off += add
            }

            /* subscripts must start at a known position */
            case *ir.AddrIndex: {
                if c, ok := scev.IsConst(self.ev.Of(v.Index).Init); !ok {
                    return nil, 0, false
                } else {
                    off += c * int64(v.Stride)
                }
            }

            /* fields are at constant offsets */
            case *ir.AddrField: {
                off += int64(v.Offset)
            }
        }
    }

    /* all done */
    return decl, off, true
}

// pointee splits the initial value of a pointer into the declaration it
// points into and a constant byte offset.
func (self *LoopInfo) pointee(e scev.Expr) (*ir.Decl, int64, bool) {
    var off int64
    var sym scev.Sym

    /* must be a symbol plus an optional constant */
    switch v := e.(type) {
        case scev.Sym: {
            sym = v
        }

        /* symbol + constant */
        case *scev.Binary: {
            s, ok1 := v.X.(scev.Sym)
            c, ok2 := scev.IsConst(v.Y)

            /* check for the shape */
            if !ok1 || !ok2 || (v.Op != scev.OpAdd && v.Op != scev.OpSub) {
                return nil, 0, false
            }

            /* subtraction negates the offset */
            if sym, off = s, c; v.Op == scev.OpSub {
                off = -c
            }
        }

        /* anything else is not resolvable */
        default: {
            return nil, 0, false
        }
    }

    /* find the definition of the symbol */
    switch p := self.ev.DefUse().Def[ir.Reg(sym)].(type) {
        case *ir.IrAddrOf : return p.Decl, off, true
        case *ir.IrParam  : return self.param(p.Id), off, p.Id < len(self.Func.Params)
        default           : return nil, 0, false
    }
}

func (self *LoopInfo) param(id int) *ir.Decl {
    if id >= len(self.Func.Params) {
        return nil
    } else {
        return self.Func.Params[id]
    }
}
