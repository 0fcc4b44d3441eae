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

type StorageClass uint8

const (
    Static StorageClass = iota
    Auto
    Param
    Extern
)

func (self StorageClass) String() string {
    switch self {
        case Static : return "static"
        case Auto   : return "auto"
        case Param  : return "param"
        case Extern : return "extern"
        default     : panic("unreachable")
    }
}

// Decl is a named storage object. Arrays are described by their element
// type and length; scalars have a length of 1. Objects reached through a
// pointer parameter are described by a Param declaration.
type Decl struct {
    Name     string
    Elem     Type
    Len      int
    Align    int
    Class    StorageClass
    Emitted  bool
    Restrict bool
    Escaped  bool
}

// Size returns the total size of the object in bytes.
func (self *Decl) Size() int {
    return self.Elem.Size() * self.Len
}

// CanForceAlign reports whether the alignment of the object may still be
// raised by the compiler. Objects owned by somebody else (parameters and
// external symbols) and objects that were already emitted are fixed.
func (self *Decl) CanForceAlign() bool {
    return !self.Emitted && (self.Class == Static || self.Class == Auto)
}

// ForceAlign raises the alignment to at least n bytes. It never lowers the
// alignment, so applying it twice is the same as applying it once.
func (self *Decl) ForceAlign(n int) {
    if !self.CanForceAlign() {
        panic("ForceAlign: alignment of " + self.Name + " is fixed")
    } else if n > self.Align {
        self.Align = n
    }
}

func (self *Decl) String() string {
    return fmt.Sprintf("%s %s %s[%d] align(%d)", self.Class, self.Elem, self.Name, self.Len, self.Align)
}
