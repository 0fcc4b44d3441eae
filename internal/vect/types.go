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

    `github.com/cloudwego/loopvec/internal/alias`
    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
)

type (
    StmtId int
    RefId  int
)

// NoRef marks statements without a data reference.
const NoRef RefId = -1

type StmtKind uint8

const (
    StmtUndefined StmtKind = iota
    StmtLoad
    StmtStore
    StmtUnaryOp
    StmtBinaryOp
    StmtAssignment
    StmtSelect
)

func (self StmtKind) String() string {
    switch self {
        case StmtUndefined  : return "undefined"
        case StmtLoad       : return "load"
        case StmtStore      : return "store"
        case StmtUnaryOp    : return "unary"
        case StmtBinaryOp   : return "binary"
        case StmtAssignment : return "assignment"
        case StmtSelect     : return "select"
        default             : panic("unreachable")
    }
}

func kindOf(p ir.IrNode) StmtKind {
    switch p.(type) {
        case *ir.IrLoad       : return StmtLoad
        case *ir.IrStore      : return StmtStore
        case *ir.IrUnaryExpr  : return StmtUnaryOp
        case *ir.IrBinaryExpr : return StmtBinaryOp
        case *ir.IrCopy       : return StmtAssignment
        case *ir.IrSelect     : return StmtSelect
        default               : return StmtUndefined
    }
}

// StmtInfo is the per-statement state of the vectorizer.
type StmtInfo struct {
    Node     ir.IrNode
    Kind     StmtKind
    Loop     *ir.Loop
    Relevant bool
    VecType  ir.Type
    VecStmt  ir.IrNode
    VecDef   ir.Reg
    Ref      RefId
    Tag      alias.Tag
    VecBase  scev.Expr
}

// Misalign is the distance in bytes from the previous vector boundary,
// when it is known at compile time.
type Misalign struct {
    Known bool
    Bytes int
}

// MisalignUnknown is the misalignment of references that are only known
// to be aligned to their element size.
var MisalignUnknown = Misalign{}

func knownMisalign(n int) Misalign {
    return Misalign { Known: true, Bytes: n }
}

// Aligned checks if the reference is known to start on a vector boundary.
func (self Misalign) Aligned() bool {
    return self.Known && self.Bytes == 0
}

func (self Misalign) String() string {
    if !self.Known {
        return "unknown"
    } else {
        return fmt.Sprintf("%d", self.Bytes)
    }
}

// Dim is one subscript of an array reference.
type Dim struct {
    Index  ir.Reg
    Stride int
    Access scev.Chrec
}

// DataRef is a memory access performed by a statement of the loop. The
// byte address of the access at iteration k is Address.At(k), relative to
// the start of Root for declaration bases and absolute for pointer bases.
type DataRef struct {
    Stmt      StmtId
    Write     bool
    Elem      ir.Type
    Addr      ir.Addr
    Root      *ir.Decl
    Ptr       scev.Chrec
    Dims      []Dim
    Offset    int64
    Address   scev.Chrec
    Invariant bool
    Misalign  Misalign
    Tag       alias.Tag
}

func (self *DataRef) String() string {
    return fmt.Sprintf("%s [%s] misalign(%s)", self.Addr, self.Address, self.Misalign)
}

type PeelKind uint8

const (
    PeelNone PeelKind = iota
    PeelForAlignment
)

// Peel is the peeling decision of the alignment analysis.
type Peel struct {
    Kind PeelKind
    Ref  RefId
}

func (self Peel) String() string {
    switch self.Kind {
        case PeelNone         : return "none"
        case PeelForAlignment : return fmt.Sprintf("alignment(#%d)", self.Ref)
        default               : panic("unreachable")
    }
}

// LoopInfo holds everything the vectorizer knows about one loop. It owns
// the statements and the references, which are addressed by their index.
type LoopInfo struct {
    Func       *ir.Func
    Loop       *ir.Loop
    Header     *ir.BasicBlock
    Latch      *ir.BasicBlock
    Preheader  *ir.BasicBlock
    Exit       *ir.BasicBlock
    Blocks     []*ir.BasicBlock
    ExitCond   *ir.IrBinaryExpr
    ExitBranch *ir.IrBranch
    TripCount  scev.Expr
    VF         int
    Peel       Peel
    Writes     []RefId
    Reads      []RefId
    Epilogue   bool
    Stmts      []StmtInfo
    Refs       []DataRef
    ev         *scev.Evolution
    index      map[ir.IrNode]StmtId
}

func (self *LoopInfo) Stmt(id StmtId) *StmtInfo {
    return &self.Stmts[id]
}

func (self *LoopInfo) Ref(id RefId) *DataRef {
    return &self.Refs[id]
}

// StmtOf finds the statement of an instruction of the loop.
func (self *LoopInfo) StmtOf(p ir.IrNode) (StmtId, bool) {
    id, ok := self.index[p]
    return id, ok
}

// Evolution returns the scalar evolution analysis of the loop.
func (self *LoopInfo) Evolution() *scev.Evolution {
    return self.ev
}

// def returns the statement defining r inside the loop.
func (self *LoopInfo) def(r ir.Reg) (*StmtInfo, bool) {
    if p, ok := self.ev.DefUse().Def[r]; !ok {
        return nil, false
    } else if id, ok := self.index[p]; !ok {
        return nil, false
    } else {
        return self.Stmt(id), true
    }
}

func (self *LoopInfo) addStmt(p ir.IrNode) StmtId {
    id := StmtId(len(self.Stmts))
    self.index[p] = id
    self.Stmts = append(self.Stmts, StmtInfo {
        Node : p,
        Kind : kindOf(p),
        Loop : self.Loop,
        Ref  : NoRef,
    })
    return id
}

func (self *LoopInfo) addRef(ref DataRef) RefId {
    id := RefId(len(self.Refs))
    self.Refs = append(self.Refs, ref)

    /* attach to the statement */
    st := self.Stmt(ref.Stmt)
    st.Ref = id
    st.Tag = ref.Tag

    /* add to the read or write set */
    if ref.Write {
        self.Writes = append(self.Writes, id)
    } else {
        self.Reads = append(self.Reads, id)
    }
    return id
}

func (self *LoopInfo) String() string {
    return fmt.Sprintf("%s in %s", self.Loop, self.Func.Name)
}
