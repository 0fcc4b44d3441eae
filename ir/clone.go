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

// CloneNode makes a shallow copy of an IR node. Register operands are
// copied by value, address expressions and Phi arguments are duplicated.
func CloneNode(p IrNode) IrNode {
    switch v := p.(type) {
        case *IrPhi: {
            r := &IrPhi { R: v.R, V: make(map[*BasicBlock]*Reg, len(v.V)) }
            for bb, x := range v.V { r.V[bb] = regnewref(*x) }
            return r
        }

        /* instructions with address operands */
        case *IrLoad  : c := *v; c.Mem = CloneAddr(v.Mem); return &c
        case *IrStore : c := *v; c.Mem = CloneAddr(v.Mem); return &c

        /* calls carry slices */
        case *IrCall: {
            c := *v
            c.In = append([]Reg(nil), v.In...)
            c.Out = append([]Reg(nil), v.Out...)
            return &c
        }

        /* plain value types */
        case *IrParam       : c := *v; return &c
        case *IrAddrOf      : c := *v; return &c
        case *IrConstInt    : c := *v; return &c
        case *IrConstFloat  : c := *v; return &c
        case *IrCopy        : c := *v; return &c
        case *IrUnaryExpr   : c := *v; return &c
        case *IrBinaryExpr  : c := *v; return &c
        case *IrSelect      : c := *v; return &c
        case *IrLEA         : c := *v; return &c
        case *IrSplat       : c := *v; return &c
        case *IrVecConst    : c := *v; return &c
        case *IrVecLoad     : c := *v; return &c
        case *IrVecStore    : c := *v; return &c
        case *IrBlend       : c := *v; return &c
        case *IrRealignMask : c := *v; return &c
        case *IrRealignLoad : c := *v; return &c

        /* terminators */
        case *IrJump   : c := *v; return &c
        case *IrBranch : c := *v; return &c
        case *IrReturn : c := *v; c.R = append([]Reg(nil), v.R...); return &c

        /* should not happen */
        default: {
            panic("CloneNode: unknown node: " + p.String())
        }
    }
}

// CloneResult maps the original blocks and registers to their copies.
type CloneResult struct {
    Blocks map[*BasicBlock]*BasicBlock
    Regs   map[Reg]Reg
}

// Block returns the copy of bb, or bb itself if it was not copied.
func (self *CloneResult) Block(bb *BasicBlock) *BasicBlock {
    if v, ok := self.Blocks[bb]; ok {
        return v
    } else {
        return bb
    }
}

// Reg returns the copy of r, or r itself if it is defined outside the
// copied region.
func (self *CloneResult) Reg(r Reg) Reg {
    if v, ok := self.Regs[r]; ok {
        return v
    } else {
        return r
    }
}

// CloneBlocks duplicates a region of the CFG. Every definition in the copy
// gets a fresh register, uses of values defined inside the region refer to
// the copies. Edges between copied blocks point to the copies, edges
// leaving the region still point to the original targets. Phi arguments
// coming from outside of the region are kept as-is and must be fixed up by
// the caller.
func (self *Func) CloneBlocks(blocks []*BasicBlock) *CloneResult {
    ret := &CloneResult {
        Regs   : make(map[Reg]Reg),
        Blocks : make(map[*BasicBlock]*BasicBlock, len(blocks)),
    }

    /* Phase 1: Copy all the nodes, assigning new registers */
    for _, bb := range blocks {
        nb := self.NewBlock()
        ret.Blocks[bb] = nb

        /* copy Phi nodes */
        for _, p := range bb.Phi {
            np := CloneNode(p).(*IrPhi)
            self.cloneDefs(np, ret.Regs)
            nb.Phi = append(nb.Phi, np)
        }

        /* copy instructions */
        for _, p := range bb.Ins {
            np := CloneNode(p)
            self.cloneDefs(np, ret.Regs)
            nb.Ins = append(nb.Ins, np)
        }

        /* copy the terminator */
        nb.Term = CloneNode(bb.Term).(IrTerminator)
    }

    /* Phase 2: Rewrite the uses and the edges */
    for _, bb := range blocks {
        nb := ret.Blocks[bb]

        /* rewrite Phi nodes, including the incoming edges */
        for _, p := range nb.Phi {
            args := p.V
            p.V = make(map[*BasicBlock]*Reg, len(args))

            /* remap the predecessors */
            for k, r := range args {
                if v, ok := ret.Blocks[k]; ok {
                    p.V[v] = regnewref(ret.Reg(*r))
                } else {
                    p.V[k] = r
                }
            }
        }

        /* rewrite instructions */
        for _, p := range nb.Ins {
            cloneUses(p, ret.Regs)
        }

        /* rewrite the terminator */
        cloneUses(nb.Term, ret.Regs)
        for it := nb.Term.Successors(); it.Next(); {
            it.UpdateBlock(ret.Block(it.Block()))
        }
    }

    /* all done */
    return ret
}

func (self *Func) cloneDefs(p IrNode, rm map[Reg]Reg) {
    if d, ok := p.(IrDefinitions); ok {
        for _, r := range d.Definitions() {
            if *r == Rz {
                continue
            }

            /* allocate a new register of the same kind */
            if r.IsMem() {
                rm[*r] = self.NewMem()
            } else {
                rm[*r] = self.NewReg(self.TypeOf(*r))
            }

            /* update the definition */
            *r = rm[*r]
        }
    }
}

func cloneUses(p IrNode, rm map[Reg]Reg) {
    if u, ok := p.(IrUsages); ok {
        for _, r := range u.Usages() {
            if v, ok := rm[*r]; ok {
                *r = v
            }
        }
    }
}
