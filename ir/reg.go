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

// Reg is an SSA register name. The upper bits hold the register kind,
// the lower bits hold the index.
type Reg uint64

const (
    _B_kind = 56
    _M_kind = 0xff
)

const (
    _R_kind  = _M_kind << _B_kind
    _R_index = (1 << _B_kind) - 1
)

const (
    K_none uint8 = iota
    K_var
    K_mem
    K_ssa
)

// Rz is the invalid register.
const Rz Reg = 0

// Mem is the memory state variable before SSA construction.
const Mem Reg = Reg(K_mem) << _B_kind

func mkreg(kind uint8, i int) Reg {
    if i < 0 || i > _R_index {
        panic("mkreg: register index out of range")
    } else {
        return Reg(uint64(kind) << _B_kind) | Reg(i)
    }
}

func (self Reg) Kind() uint8 {
    return uint8((self & _R_kind) >> _B_kind)
}

func (self Reg) Index() int {
    return int(self & _R_index)
}

// IsMem returns true if the register carries the memory state.
func (self Reg) IsMem() bool {
    return self.Kind() == K_mem
}

func (self Reg) String() string {
    switch self.Kind() {
        case K_none : return "<nil>"
        case K_var  : return fmt.Sprintf("%%v%d", self.Index())
        case K_ssa  : return fmt.Sprintf("%%%d", self.Index())
        case K_mem  : if self == Mem { return ".mem" } else { return fmt.Sprintf(".mem_%d", self.Index()) }
        default     : panic("unreachable")
    }
}

func regnewref(v Reg) (r *Reg) {
    r = new(Reg)
    *r = v
    return
}

func regsliceref(v []Reg) (r []*Reg) {
    r = make([]*Reg, len(v))
    for i := range v { r[i] = &v[i] }
    return
}
