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

// Addr is the address operand of a memory access. Leaves are AddrDecl
// and AddrDeref, inner nodes are AddrIndex and AddrField.
type Addr interface {
    fmt.Stringer
    addr()
}

func (*AddrDecl)  addr() {}
func (*AddrDeref) addr() {}
func (*AddrIndex) addr() {}
func (*AddrField) addr() {}

// AddrDecl names a declaration directly.
type AddrDecl struct {
    Decl *Decl
}

func (self *AddrDecl) String() string {
    return self.Decl.Name
}

// AddrDeref dereferences a pointer value.
type AddrDeref struct {
    Ptr Reg
}

func (self *AddrDeref) String() string {
    return fmt.Sprintf("*%s", self.Ptr)
}

// AddrIndex selects element Index of Base, each element being Stride bytes.
type AddrIndex struct {
    Base   Addr
    Index  Reg
    Stride int
}

func (self *AddrIndex) String() string {
    return fmt.Sprintf("%s[%s]", self.Base, self.Index)
}

// AddrField selects a component of Base at a constant byte offset.
type AddrField struct {
    Base   Addr
    Name   string
    Offset int
}

func (self *AddrField) String() string {
    return fmt.Sprintf("%s.%s", self.Base, self.Name)
}

// AddrRoot returns the leaf of an address expression.
func AddrRoot(a Addr) Addr {
    for {
        switch p := a.(type) {
            case *AddrIndex : a = p.Base
            case *AddrField : a = p.Base
            default         : return a
        }
    }
}

// AddrIndices returns all index selectors of an address expression,
// outermost dimension first.
func AddrIndices(a Addr) (r []*AddrIndex) {
    for a != nil {
        switch p := a.(type) {
            case *AddrIndex : r, a = append(r, p), p.Base
            case *AddrField : a = p.Base
            default         : a = nil
        }
    }

    /* outermost first */
    for i, j := 0, len(r) - 1; i < j; i, j = i + 1, j - 1 {
        r[i], r[j] = r[j], r[i]
    }
    return
}

// CloneAddr makes a deep copy of an address expression.
func CloneAddr(a Addr) Addr {
    switch p := a.(type) {
        case *AddrDecl  : return &AddrDecl { Decl: p.Decl }
        case *AddrDeref : return &AddrDeref { Ptr: p.Ptr }
        case *AddrIndex : return &AddrIndex { Base: CloneAddr(p.Base), Index: p.Index, Stride: p.Stride }
        case *AddrField : return &AddrField { Base: CloneAddr(p.Base), Name: p.Name, Offset: p.Offset }
        default         : panic("unreachable")
    }
}

func addrUsages(a Addr, buf []*Reg) []*Reg {
    for {
        switch p := a.(type) {
            case *AddrDecl  : return buf
            case *AddrDeref : return append(buf, &p.Ptr)
            case *AddrIndex : buf, a = append(buf, &p.Index), p.Base
            case *AddrField : a = p.Base
            default         : panic("unreachable")
        }
    }
}
