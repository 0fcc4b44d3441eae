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
)

type BasicBlock struct {
    Id   int
    Phi  []*IrPhi
    Ins  []IrNode
    Pred []*BasicBlock
    Term IrTerminator
}

func (self *BasicBlock) String() string {
    return fmt.Sprintf("bb_%d", self.Id)
}

// Succs returns the successors of this block in terminator order.
func (self *BasicBlock) Succs() (r []*BasicBlock) {
    if self.Term == nil {
        return nil
    }

    /* dump every successor */
    for it := self.Term.Successors(); it.Next(); {
        r = append(r, it.Block())
    }
    return
}

// Append adds an instruction at the end of the block body.
func (self *BasicBlock) Append(ins ...IrNode) {
    self.Ins = append(self.Ins, ins...)
}

// InsertAt inserts instructions before position i of the block body.
func (self *BasicBlock) InsertAt(i int, ins ...IrNode) {
    buf := make([]IrNode, 0, len(self.Ins) + len(ins))
    buf = append(buf, self.Ins[:i]...)
    buf = append(buf, ins...)
    self.Ins = append(buf, self.Ins[i:]...)
}

// IndexOf returns the position of ins in the block body, or -1.
func (self *BasicBlock) IndexOf(ins IrNode) int {
    for i, p := range self.Ins {
        if p == ins {
            return i
        }
    }
    return -1
}

// Remove deletes ins from the block body. It panics if ins is not there.
func (self *BasicBlock) Remove(ins IrNode) {
    if i := self.IndexOf(ins); i < 0 {
        panic(fmt.Sprintf("instruction not in bb_%d: %s", self.Id, ins))
    } else {
        self.Ins = append(self.Ins[:i], self.Ins[i + 1:]...)
    }
}

// ReplaceSucc redirects every edge to old so that it goes to to.
func (self *BasicBlock) ReplaceSucc(old *BasicBlock, to *BasicBlock) {
    for it := self.Term.Successors(); it.Next(); {
        if it.Block() == old {
            it.UpdateBlock(to)
        }
    }
}

// ReplacePred renames the predecessor old to to, moving the Phi arguments
// along with it.
func (self *BasicBlock) ReplacePred(old *BasicBlock, to *BasicBlock) {
    for i, p := range self.Pred {
        if p == old {
            self.Pred[i] = to
        }
    }

    /* move the Phi arguments */
    for _, phi := range self.Phi {
        if r, ok := phi.V[old]; ok {
            delete(phi.V, old)
            phi.V[to] = r
        }
    }
}

// HasPred checks if p is a predecessor of this block.
func (self *BasicBlock) HasPred(p *BasicBlock) bool {
    for _, v := range self.Pred {
        if v == p {
            return true
        }
    }
    return false
}

func (self *BasicBlock) Dump() string {
    ret := []string { self.String() + ":" }

    /* dump Phi nodes */
    for _, p := range self.Phi {
        ret = append(ret, "    " + p.String())
    }

    /* dump instructions */
    for _, p := range self.Ins {
        ret = append(ret, "    " + p.String())
    }

    /* dump the terminator */
    if self.Term != nil {
        ret = append(ret, "    " + strings.ReplaceAll(self.Term.String(), "\n", "\n    "))
    }

    /* join them together */
    return strings.Join(ret, "\n")
}

type IrSuccessors interface {
    Next() bool
    Block() *BasicBlock
    UpdateBlock(to *BasicBlock)
}

type IrTerminator interface {
    IrNode
    Successors() IrSuccessors
    irterminator()
}

func (*IrJump)   irterminator() {}
func (*IrBranch) irterminator() {}
func (*IrReturn) irterminator() {}

type _SliceSuccessors struct {
    i int
    b []**BasicBlock
}

func (self *_SliceSuccessors) Next() bool {
    if self.i >= len(self.b) {
        return false
    } else {
        self.i++
        return true
    }
}

func (self *_SliceSuccessors) Block() *BasicBlock {
    return *self.b[self.i - 1]
}

func (self *_SliceSuccessors) UpdateBlock(to *BasicBlock) {
    *self.b[self.i - 1] = to
}

type IrJump struct {
    To *BasicBlock
}

func (self *IrJump) String() string {
    return fmt.Sprintf("goto bb_%d", self.To.Id)
}

func (self *IrJump) Successors() IrSuccessors {
    return &_SliceSuccessors { b: []**BasicBlock { &self.To } }
}

// IrBranch goes to T if V is true and to F otherwise.
type IrBranch struct {
    V Reg
    T *BasicBlock
    F *BasicBlock
}

func (self *IrBranch) String() string {
    return fmt.Sprintf("if %s goto bb_%d else bb_%d", self.V, self.T.Id, self.F.Id)
}

func (self *IrBranch) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrBranch) Successors() IrSuccessors {
    return &_SliceSuccessors { b: []**BasicBlock { &self.T, &self.F } }
}

type IrReturn struct {
    R []Reg
}

func (self *IrReturn) String() string {
    nb := len(self.R)
    ret := make([]string, 0, nb)

    /* dump registers */
    for _, r := range self.R {
        ret = append(ret, r.String())
    }

    /* join them together */
    return fmt.Sprintf(
        "ret {%s}",
        strings.Join(ret, ", "),
    )
}

func (self *IrReturn) Usages() []*Reg {
    return regsliceref(self.R)
}

func (self *IrReturn) Successors() IrSuccessors {
    return &_SliceSuccessors{}
}
