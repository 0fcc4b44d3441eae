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

    `github.com/oleiade/lane`
)

func isVar(r Reg) bool { return r.Kind() == K_var }
func isMem(r Reg) bool { return r.Kind() == K_mem }

// defSites lists, for every wanted register, the reachable blocks that
// assign it. The memory state counts as assigned at the entry.
func defSites(fn *Func, want func(Reg) bool) map[Reg][]*BasicBlock {
    ret := make(map[Reg][]*BasicBlock)
    last := make(map[Reg]*BasicBlock)

    /* the entry defines the incoming memory */
    if want(Mem) {
        ret[Mem] = []*BasicBlock { fn.Root }
        last[Mem] = fn.Root
    }

    /* one entry per block even with repeated assignments */
    for _, bb := range fn.Blocks {
        for _, ins := range bb.Ins {
            if def, ok := ins.(IrDefinitions); ok {
                for _, d := range def.Definitions() {
                    if want(*d) && last[*d] != bb {
                        last[*d] = bb
                        ret[*d] = append(ret[*d], bb)
                    }
                }
            }
        }
    }
    return ret
}

func insertPhiNodes(fn *Func, want func(Reg) bool) {
    sites := defSites(fn, want)
    regs := make([]Reg, 0, len(sites))

    /* place the registers in a stable order */
    for r := range sites {
        regs = append(regs, r)
    }

    /* sort by register */
    sort.Slice(regs, func(i int, j int) bool {
        return regs[i] < regs[j]
    })

    /* iterated dominance frontier of each register */
    for _, r := range regs {
        q := lane.NewQueue()
        placed := make(map[int]bool)
        queued := make(map[int]bool)

        /* seed with the assignments */
        for _, bb := range sites[r] {
            queued[bb.Id] = true
            q.Enqueue(bb)
        }

        /* a new Phi node is itself an assignment */
        for !q.Empty() {
            bb := q.Dequeue().(*BasicBlock)
            for _, y := range fn.Dom.DominanceFrontier[bb.Id] {
                if placed[y.Id] {
                    continue
                }

                /* one argument per incoming edge */
                placed[y.Id] = true
                args := make(map[*BasicBlock]*Reg, len(y.Pred))

                /* the renamer fills them in */
                for _, p := range y.Pred {
                    args[p] = regnewref(r)
                }

                /* add to the frontier block */
                y.Phi = append(y.Phi, &IrPhi { R: r, V: args })
                if !queued[y.Id] {
                    queued[y.Id] = true
                    q.Enqueue(y)
                }
            }
        }
    }
}

type _Renamer struct {
    fn    *Func
    want  func(Reg) bool
    stack map[Reg][]Reg
}

func newRenamer(fn *Func, want func(Reg) bool) _Renamer {
    return _Renamer {
        fn    : fn,
        want  : want,
        stack : make(map[Reg][]Reg),
    }
}

func (self _Renamer) popr(r Reg) {
    if n := len(self.stack[r]); n != 0 {
        self.stack[r] = self.stack[r][:n - 1]
    }
}

func (self _Renamer) topr(r Reg) Reg {
    if n := len(self.stack[r]); n == 0 {
        return Rz
    } else {
        return self.stack[r][n - 1]
    }
}

func (self _Renamer) pushr(r Reg) (v Reg) {
    if r.IsMem() {
        v = self.fn.NewMem()
    } else {
        v = self.fn.NewReg(self.fn.Types[r])
    }
    self.stack[r] = append(self.stack[r], v)
    return
}

func (self _Renamer) renameuses(ins IrNode) {
    if u, ok := ins.(IrUsages); ok {
        for _, a := range u.Usages() {
            if self.want(*a) {
                if v := self.topr(*a); v == Rz {
                    panic(fmt.Sprintf("use of undefined variable %s in: %s", *a, ins))
                } else {
                    *a = v
                }
            }
        }
    }
}

func (self _Renamer) renamedefs(ins IrNode, buf *[]Reg) {
    if s, ok := ins.(IrDefinitions); ok {
        for _, def := range s.Definitions() {
            if self.want(*def) {
                *buf = append(*buf, *def)
                *def = self.pushr(*def)
            }
        }
    }
}

func (self _Renamer) renameblock(dt *DominatorTree, bb *BasicBlock) {
    var r Reg
    var d []Reg
    var n IrNode

    /* rename Phi nodes */
    for _, n = range bb.Phi {
        self.renamedefs(n, &d)
    }

    /* rename body */
    for _, n = range bb.Ins {
        self.renameuses(n)
        self.renamedefs(n, &d)
    }

    /* rename terminators */
    tr := bb.Term
    self.renameuses(tr)

    /* rename all the Phi node of it's successors, undefined values are
     * marked with Rz and must be pruned later */
    for it := tr.Successors(); it.Next(); {
        for _, phi := range it.Block().Phi {
            if r = *phi.V[bb]; self.want(r) {
                phi.V[bb] = regnewref(self.topr(r))
            }
        }
    }

    /* rename all it's children in the dominator tree */
    for _, p := range dt.DominatorOf[bb.Id] {
        self.renameblock(dt, p)
    }

    /* pop the definitions */
    for _, s := range d {
        self.popr(s)
    }
}

func renameRegisters(fn *Func, want func(Reg) bool) {
    rr := newRenamer(fn, want)
    rr.stack[Mem] = []Reg { fn.MemIn }
    rr.renameblock(&fn.Dom, fn.Root)
}

func checkPhiNodes(fn *Func) {
    for _, bb := range fn.Blocks {
        for _, phi := range bb.Phi {
            for p, r := range phi.V {
                if *r == Rz {
                    panic(fmt.Sprintf("variable %s is undefined along bb_%d -> bb_%d", phi.R, p.Id, bb.Id))
                }
            }
        }
    }
}

func buildSSA(fn *Func) {
    fn.MemIn = fn.NewMem()
    fn.Rebuild()

    /* convert all variables and the memory state */
    want := func(r Reg) bool { return isVar(r) || isMem(r) }
    insertPhiNodes(fn, want)
    renameRegisters(fn, want)

    /* drop the variable types, they are not used anymore */
    for r := range fn.Types {
        if isVar(r) {
            delete(fn.Types, r)
        }
    }

    /* remove copies and dead Phi nodes */
    CopyElim(fn)
    TDCE(fn)
    checkPhiNodes(fn)
}

// RenameMemory recomputes the memory SSA form of the whole function. Every
// memory operand is reset to the memory variable and renamed again, which
// also repairs the memory chains of freshly inserted loads and stores.
func (self *Func) RenameMemory() {
    for _, bb := range self.Blocks {
        phi := bb.Phi
        bb.Phi = bb.Phi[:0]

        /* remove all the memory Phi nodes */
        for _, p := range phi {
            if !p.R.IsMem() {
                bb.Phi = append(bb.Phi, p)
            }
        }

        /* reset the memory operands */
        for _, p := range bb.Ins {
            if m, ok := p.(IrMemoryOp); ok {
                if *m.MemUse() = Mem; m.MemDef() != nil {
                    *m.MemDef() = Mem
                }
            }
        }
    }

    /* rebuild the memory SSA */
    self.Rebuild()
    insertPhiNodes(self, isMem)
    renameRegisters(self, isMem)
    TDCE(self)
}
