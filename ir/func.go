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
    `strings`

    `github.com/oleiade/lane`
)

// Func is a function in SSA form. Blocks, Dom and Loops are derived from
// the CFG by Rebuild and must be refreshed after every CFG change.
type Func struct {
    Name   string
    Root   *BasicBlock
    Params []*Decl
    Decls  []*Decl
    Types  map[Reg]Type
    MemIn  Reg
    Blocks []*BasicBlock
    Dom    DominatorTree
    Loops  *LoopForest
    nb     int
    nv     int
    nr     int
    nm     int
}

func newFunc(name string) *Func {
    return &Func {
        Name  : name,
        Types : make(map[Reg]Type),
        nm    : 1,
    }
}

// NewReg allocates a new SSA register of type t.
func (self *Func) NewReg(t Type) Reg {
    r := mkreg(K_ssa, self.nr)
    self.nr++
    self.Types[r] = t
    return r
}

// NewMem allocates a new memory state register.
func (self *Func) NewMem() Reg {
    r := mkreg(K_mem, self.nm)
    self.nm++
    return r
}

func (self *Func) newVar(t Type) Reg {
    r := mkreg(K_var, self.nv)
    self.nv++
    self.Types[r] = t
    return r
}

// NewBlock allocates a new, empty basic block.
func (self *Func) NewBlock() *BasicBlock {
    self.nb++
    return &BasicBlock { Id: self.nb }
}

// TypeOf returns the type of a register.
func (self *Func) TypeOf(r Reg) Type {
    if r.IsMem() {
        return TMem
    } else if t, ok := self.Types[r]; ok {
        return t
    } else if r == Rz {
        return TVoid
    } else {
        panic("register without type: " + r.String())
    }
}

// PostOrder returns all the blocks reachable from the root in post order.
func (self *Func) PostOrder() []*BasicBlock {
    var ret []*BasicBlock
    var tail bool
    var this *BasicBlock

    /* DFS over the CFG */
    s := lane.NewStack()
    v := map[*BasicBlock]bool { self.Root: true }

    /* scan until the stack is empty */
    for s.Push(self.Root); !s.Empty(); {
        tail = true
        this = s.Head().(*BasicBlock)

        /* descend into the first unvisited successor */
        for _, p := range this.Succs() {
            if !v[p] {
                tail = false
                v[p] = true
                s.Push(p)
                break
            }
        }

        /* all the successors are visited, pop the current node */
        if tail {
            ret = append(ret, s.Pop().(*BasicBlock))
        }
    }

    /* all done */
    return ret
}

// Rebuild recomputes predecessors, block order, dominators and loops from
// the terminators. Phi arguments coming from blocks that are no longer
// predecessors are dropped.
func (self *Func) Rebuild() {
    po := self.PostOrder()
    nb := len(po)

    /* reverse post order */
    self.Blocks = make([]*BasicBlock, nb)
    for i, bb := range po { self.Blocks[nb - i - 1] = bb }

    /* reset predecessors */
    for _, bb := range self.Blocks {
        bb.Pred = bb.Pred[:0]
    }

    /* recompute predecessors */
    for _, bb := range self.Blocks {
        for _, p := range bb.Succs() {
            if !p.HasPred(bb) {
                p.Pred = append(p.Pred, bb)
            }
        }
    }

    /* phi arguments must match the predecessors */
    for _, bb := range self.Blocks {
        for _, phi := range bb.Phi {
            for p := range phi.V {
                if !bb.HasPred(p) {
                    delete(phi.V, p)
                }
            }

            /* check for missing arguments */
            for _, p := range bb.Pred {
                if _, ok := phi.V[p]; !ok {
                    panic(fmt.Sprintf("phi %s in bb_%d is missing argument for bb_%d", phi.R, bb.Id, p.Id))
                }
            }
        }
    }

    /* rebuild the analysis */
    self.Dom = BuildDominatorTree(self.Root)
    self.Loops = FindLoops(self)
}

// Use is a single use of a register.
type Use struct {
    Node  IrNode
    Block *BasicBlock
}

// DefUse is a snapshot of the definition and use sites of every register.
type DefUse struct {
    Def   map[Reg]IrNode
    Block map[Reg]*BasicBlock
    Uses  map[Reg][]Use
}

// DefUse scans the function and builds the def-use chains.
func (self *Func) DefUse() *DefUse {
    ret := &DefUse {
        Def   : make(map[Reg]IrNode),
        Block : make(map[Reg]*BasicBlock),
        Uses  : make(map[Reg][]Use),
    }

    /* scan every node */
    for _, bb := range self.Blocks {
        for _, p := range bb.Phi {
            ret.add(p, bb)
        }
        for _, p := range bb.Ins {
            ret.add(p, bb)
        }
        ret.add(bb.Term, bb)
    }

    /* all done */
    return ret
}

func (self *DefUse) add(p IrNode, bb *BasicBlock) {
    if d, ok := p.(IrDefinitions); ok {
        for _, r := range d.Definitions() {
            self.Def[*r] = p
            self.Block[*r] = bb
        }
    }

    /* add the uses */
    if u, ok := p.(IrUsages); ok {
        for _, r := range u.Usages() {
            if *r != Rz {
                self.Uses[*r] = append(self.Uses[*r], Use { Node: p, Block: bb })
            }
        }
    }
}

// ReplaceUses rewrites every use of old into to.
func (self *Func) ReplaceUses(old Reg, to Reg) {
    for _, bb := range self.Blocks {
        for _, p := range bb.Phi {
            replaceUse(p, old, to)
        }
        for _, p := range bb.Ins {
            replaceUse(p, old, to)
        }
        replaceUse(bb.Term, old, to)
    }
}

func replaceUse(p IrNode, old Reg, to Reg) {
    if u, ok := p.(IrUsages); ok {
        for _, r := range u.Usages() {
            if *r == old {
                *r = to
            }
        }
    }
}

func (self *Func) String() string {
    var ret []string
    ret = append(ret, fmt.Sprintf("func %s {", self.Name))

    /* dump the declarations */
    for _, d := range self.Decls {
        ret = append(ret, "    " + d.String())
    }

    /* dump the parameters */
    for i, d := range self.Params {
        ret = append(ret, fmt.Sprintf("    #%d: %s", i, d))
    }

    /* dump the blocks */
    for _, bb := range self.Blocks {
        ret = append(ret, bb.Dump())
    }

    /* join them together */
    ret = append(ret, "}")
    return strings.Join(ret, "\n")
}
