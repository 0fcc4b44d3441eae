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

package emu

import (
    `encoding/binary`
    `fmt`
    `math`

    `github.com/cloudwego/loopvec/ir`
)

const (
    _MemBase = 0x10000
    _Padding = 64
)

// Memory is a flat little-endian byte memory starting at a non-zero base
// address, so that a zero pointer is never valid.
type Memory struct {
    buf []byte
}

func addrfault(addr uint64, n int) Fault {
    return Fault { Reason: fmt.Sprintf("access to %d bytes at %#x is out of bounds", n, addr) }
}

// Alloc reserves size bytes at an address that is offset bytes past a
// multiple of align. Every object is followed by some padding, so that
// whole-vector loads rounded down or up from a valid element stay inside
// the memory.
func (self *Memory) Alloc(size int, align int, offset int) uint64 {
    if align <= 0 || align & (align - 1) != 0 {
        panic(fmt.Sprintf("emu: invalid alignment %d", align))
    }

    /* round up to the requested alignment */
    p := uint64(_MemBase + len(self.buf) + _Padding)
    p = (p + uint64(align) - 1) &^ uint64(align - 1) + uint64(offset)

    /* grow the memory */
    n := int(p - _MemBase) + size + _Padding
    self.buf = append(self.buf, make([]byte, n - len(self.buf))...)
    return p
}

func (self *Memory) slice(addr uint64, n int) []byte {
    if addr < _MemBase || addr - _MemBase + uint64(n) > uint64(len(self.buf)) {
        panic(addrfault(addr, n))
    } else {
        return self.buf[addr - _MemBase:addr - _MemBase + uint64(n)]
    }
}

// Bytes returns a copy of n bytes at addr.
func (self *Memory) Bytes(addr uint64, n int) []byte {
    return append([]byte(nil), self.slice(addr, n)...)
}

// Load reads a scalar of kind k, integers are sign-extended.
func (self *Memory) Load(addr uint64, k ir.Kind) uint64 {
    m := self.slice(addr, k.Size())
    switch k {
        case ir.Bool   : return uint64(m[0])
        case ir.I8     : return uint64(int8(m[0]))
        case ir.I16    : return uint64(int16(binary.LittleEndian.Uint16(m)))
        case ir.I32    : return uint64(int32(binary.LittleEndian.Uint32(m)))
        case ir.F32    : return uint64(binary.LittleEndian.Uint32(m))
        case ir.I64    : return binary.LittleEndian.Uint64(m)
        case ir.F64    : return binary.LittleEndian.Uint64(m)
        case ir.Ptr    : return binary.LittleEndian.Uint64(m)
        default        : panic("emu: cannot load " + k.String())
    }
}

// Store writes a scalar of kind k.
func (self *Memory) Store(addr uint64, k ir.Kind, v uint64) {
    m := self.slice(addr, k.Size())
    switch k.Size() {
        case 1  : m[0] = byte(v)
        case 2  : binary.LittleEndian.PutUint16(m, uint16(v))
        case 4  : binary.LittleEndian.PutUint32(m, uint32(v))
        case 8  : binary.LittleEndian.PutUint64(m, v)
        default : panic("emu: cannot store " + k.String())
    }
}

// StoreInt writes an integer of kind k.
func (self *Memory) StoreInt(addr uint64, k ir.Kind, v int64) {
    self.Store(addr, k, uint64(v))
}

// LoadInt reads an integer of kind k.
func (self *Memory) LoadInt(addr uint64, k ir.Kind) int64 {
    return int64(self.Load(addr, k))
}

// StoreFloat writes a floating point value of kind k.
func (self *Memory) StoreFloat(addr uint64, k ir.Kind, v float64) {
    self.Store(addr, k, floatbits(k, v))
}

// LoadFloat reads a floating point value of kind k.
func (self *Memory) LoadFloat(addr uint64, k ir.Kind) float64 {
    return bitsfloat(k, self.Load(addr, k))
}

func floatbits(k ir.Kind, v float64) uint64 {
    if k == ir.F32 {
        return uint64(math.Float32bits(float32(v)))
    } else {
        return math.Float64bits(v)
    }
}

func bitsfloat(k ir.Kind, v uint64) float64 {
    if k == ir.F32 {
        return float64(math.Float32frombits(uint32(v)))
    } else {
        return math.Float64frombits(v)
    }
}
