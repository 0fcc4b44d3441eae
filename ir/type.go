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

type Kind uint8

const (
    Void Kind = iota
    Bool
    I8
    I16
    I32
    I64
    F32
    F64
    Ptr
    MemState
)

var _KindSize = [...]int {
    Void     : 0,
    Bool     : 1,
    I8       : 1,
    I16      : 2,
    I32      : 4,
    I64      : 8,
    F32      : 4,
    F64      : 8,
    Ptr      : 8,
    MemState : 0,
}

var _KindName = [...]string {
    Void     : "void",
    Bool     : "bool",
    I8       : "i8",
    I16      : "i16",
    I32      : "i32",
    I64      : "i64",
    F32      : "f32",
    F64      : "f64",
    Ptr      : "ptr",
    MemState : "mem",
}

func (self Kind) String() string {
    if int(self) < len(_KindName) {
        return _KindName[self]
    } else {
        return fmt.Sprintf("kind(%d)", self)
    }
}

func (self Kind) Size() int {
    return _KindSize[self]
}

func (self Kind) IsFloat() bool {
    return self == F32 || self == F64
}

func (self Kind) IsInt() bool {
    return self >= I8 && self <= I64 || self == Ptr
}

// Type is a scalar type when Lanes is 0 or 1, otherwise a vector of Lanes
// elements of the same kind.
type Type struct {
    Kind  Kind
    Lanes int
}

var (
    TVoid = Type { Kind: Void }
    TBool = Type { Kind: Bool }
    TI8   = Type { Kind: I8 }
    TI16  = Type { Kind: I16 }
    TI32  = Type { Kind: I32 }
    TI64  = Type { Kind: I64 }
    TF32  = Type { Kind: F32 }
    TF64  = Type { Kind: F64 }
    TPtr  = Type { Kind: Ptr }
    TMem  = Type { Kind: MemState }
)

func (self Type) IsVector() bool {
    return self.Lanes > 1
}

func (self Type) Elem() Type {
    return Type { Kind: self.Kind }
}

func (self Type) NumLanes() int {
    if self.Lanes <= 1 {
        return 1
    } else {
        return self.Lanes
    }
}

// Size returns the size of the whole type in bytes.
func (self Type) Size() int {
    return self.Kind.Size() * self.NumLanes()
}

// Vector returns the vector type with n lanes of this element type.
func (self Type) Vector(n int) Type {
    return Type { Kind: self.Kind, Lanes: n }
}

func (self Type) String() string {
    if !self.IsVector() {
        return self.Kind.String()
    } else {
        return fmt.Sprintf("<%d x %s>", self.Lanes, self.Kind)
    }
}
