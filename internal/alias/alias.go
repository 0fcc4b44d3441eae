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

package alias

import (
    `github.com/cloudwego/loopvec/ir`
)

const (
    _MaxDepth = 64
)

// Tag identifies the memory region a reference may touch. A nil Decl
// means the region is unknown and may be any memory.
type Tag struct {
    Decl *ir.Decl
}

// Unknown is the tag of references that may touch any memory.
var Unknown = Tag{}

func (self Tag) String() string {
    if self.Decl == nil {
        return "<any>"
    } else {
        return self.Decl.Name
    }
}

// IsUnknown checks if the tag could not be resolved.
func (self Tag) IsUnknown() bool {
    return self.Decl == nil
}

// TagOf resolves the memory tag of an address expression in fn.
func TagOf(fn *ir.Func, du *ir.DefUse, addr ir.Addr) Tag {
    switch p := ir.AddrRoot(addr).(type) {
        case *ir.AddrDecl  : return Tag { Decl: p.Decl }
        case *ir.AddrDeref : return PointsTo(fn, du, p.Ptr)
        default            : return Unknown
    }
}

// PointsTo returns the tag of the object a pointer value is derived from.
func PointsTo(fn *ir.Func, du *ir.DefUse, ptr ir.Reg) Tag {
    rs := _Resolver {
        fn   : fn,
        du   : du,
        seen : make(map[ir.Reg]bool),
    }

    /* resolve the pointer */
    if d := rs.resolve(ptr, 0); d == nil || d == _Conflict {
        return Unknown
    } else {
        return Tag { Decl: d }
    }
}

var _Conflict = new(ir.Decl)

type _Resolver struct {
    fn   *ir.Func
    du   *ir.DefUse
    seen map[ir.Reg]bool
}

func (self *_Resolver) resolve(r ir.Reg, depth int) *ir.Decl {
    if depth > _MaxDepth {
        return _Conflict
    }

    /* cycles through Phi nodes contribute nothing new */
    if self.seen[r] {
        return nil
    } else {
        self.seen[r] = true
    }

    /* follow the pointer arithmetic */
    switch p := self.du.Def[r].(type) {
        case *ir.IrAddrOf : return p.Decl
        case *ir.IrCopy   : return self.resolve(p.V, depth + 1)
        case *ir.IrLEA    : return self.resolve(p.Mem, depth + 1)
        case *ir.IrParam  : return self.param(p)
        case *ir.IrPhi    : return self.phi(p, depth)
        default           : return _Conflict
    }
}

func (self *_Resolver) param(p *ir.IrParam) *ir.Decl {
    if p.Id >= len(self.fn.Params) {
        return _Conflict
    } else {
        return self.fn.Params[p.Id]
    }
}

func (self *_Resolver) phi(p *ir.IrPhi, depth int) *ir.Decl {
    var ret *ir.Decl
    for _, r := range p.V {
        switch d := self.resolve(*r, depth + 1); {
            case d == nil       : break
            case d == _Conflict : return _Conflict
            case ret == nil     : ret = d
            case ret != d       : return _Conflict
        }
    }
    return ret
}

// MayAlias checks if two references with the given tags may touch the
// same memory.
func MayAlias(a Tag, b Tag) bool {
    switch {
        case a.IsUnknown() || b.IsUnknown() : return true
        case a.Decl == b.Decl               : return true
        case a.Decl.Restrict                : return false
        case b.Decl.Restrict                : return false
        case isPointee(a.Decl)              : return reachable(b.Decl)
        case isPointee(b.Decl)              : return reachable(a.Decl)
        default                             : return false
    }
}

// isPointee checks if d describes memory reached through a pointer
// parameter.
func isPointee(d *ir.Decl) bool {
    return d.Class == ir.Param
}

// reachable checks if d may be reached through a pointer parameter that
// is not restrict qualified.
func reachable(d *ir.Decl) bool {
    switch d.Class {
        case ir.Param  : return true
        case ir.Static : return true
        case ir.Extern : return true
        case ir.Auto   : return d.Escaped
        default        : panic("unreachable")
    }
}
