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
    `testing`

    `github.com/cloudwego/loopvec/ir`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

func TestAlias_TagOf(t *testing.T) {
    b := ir.NewBuilder("tags")
    a := b.Array("a", ir.TF32, 64, ir.Static)
    c := b.Array("c", ir.TF32, 64, ir.Auto)
    p, pd := b.PtrParam("p", ir.TF32, false)
    q := b.Var(ir.TPtr)
    b.Assign(q, b.AddrOf(c))
    b.CountedLoop(b.Int(ir.TI64, 0), b.Int(ir.TI64, 64), 1, func(i ir.Reg) {
        b.Store(b.Float(ir.TF32, 1), ir.IndexAddr(ir.DeclAddr(a), i, 4))
        b.Store(b.Float(ir.TF32, 2), ir.IndexAddr(ir.DerefAddr(p), i, 4))
        b.Store(b.Float(ir.TF32, 3), ir.DerefAddr(q))
        b.UpdateLEA(q, q, b.Int(ir.TI64, 1), 4)
    })
    b.Return()
    fn := b.Build()
    du := fn.DefUse()

    /* collect the stores */
    var tags []Tag
    for _, v := range fn.Loops.Loops[0].Header.Ins {
        if st, ok := v.(*ir.IrStore); ok {
            tags = append(tags, TagOf(fn, du, st.Mem))
        }
    }

    /* the pointer induction resolves through the Phi node */
    require.Len(t, tags, 3)
    assert.Equal(t, a, tags[0].Decl)
    assert.Equal(t, pd, tags[1].Decl)
    assert.Equal(t, c, tags[2].Decl)
    assert.True(t, c.Escaped)
}

func TestAlias_Conflict(t *testing.T) {
    b := ir.NewBuilder("conflict")
    x := b.Array("x", ir.TI32, 16, ir.Static)
    y := b.Array("y", ir.TI32, 16, ir.Static)
    s := b.Param("s", ir.TI64)
    p := b.Var(ir.TPtr)
    t1 := b.NewBlock()
    f1 := b.NewBlock()
    end := b.NewBlock()
    b.Branch(b.Binary(ir.IrCmpLt, s, b.Int(ir.TI64, 0)), t1, f1)
    b.At(t1)
    b.Assign(p, b.AddrOf(x))
    b.Jump(end)
    b.At(f1)
    b.Assign(p, b.AddrOf(y))
    b.Jump(end)
    b.At(end)
    v := b.Load(ir.TI32, ir.DerefAddr(p))
    b.Return(v)
    fn := b.Build()
    du := fn.DefUse()

    /* the pointer may be either object */
    for _, ins := range end.Ins {
        if ld, ok := ins.(*ir.IrLoad); ok {
            assert.True(t, TagOf(fn, du, ld.Mem).IsUnknown())
        }
    }
}

func TestAlias_MayAlias(t *testing.T) {
    st1 := &ir.Decl { Name: "s1", Elem: ir.TF32, Len: 8, Class: ir.Static }
    st2 := &ir.Decl { Name: "s2", Elem: ir.TF32, Len: 8, Class: ir.Static }
    au1 := &ir.Decl { Name: "a1", Elem: ir.TF32, Len: 8, Class: ir.Auto }
    au2 := &ir.Decl { Name: "a2", Elem: ir.TF32, Len: 8, Class: ir.Auto, Escaped: true }
    ex1 := &ir.Decl { Name: "e1", Elem: ir.TF32, Len: 8, Class: ir.Extern }
    pp1 := &ir.Decl { Name: "p1", Elem: ir.TF32, Len: 1, Class: ir.Param }
    pp2 := &ir.Decl { Name: "p2", Elem: ir.TF32, Len: 1, Class: ir.Param }
    rp1 := &ir.Decl { Name: "r1", Elem: ir.TF32, Len: 1, Class: ir.Param, Restrict: true }

    /* named objects never overlap */
    assert.True(t, MayAlias(Tag { st1 }, Tag { st1 }))
    assert.False(t, MayAlias(Tag { st1 }, Tag { st2 }))
    assert.False(t, MayAlias(Tag { st1 }, Tag { au1 }))
    assert.False(t, MayAlias(Tag { ex1 }, Tag { st2 }))

    /* pointers may reach anything visible */
    assert.True(t, MayAlias(Tag { pp1 }, Tag { pp2 }))
    assert.True(t, MayAlias(Tag { pp1 }, Tag { st1 }))
    assert.True(t, MayAlias(Tag { ex1 }, Tag { pp2 }))
    assert.True(t, MayAlias(Tag { pp1 }, Tag { au2 }))
    assert.False(t, MayAlias(Tag { pp1 }, Tag { au1 }))

    /* except restrict qualified ones */
    assert.False(t, MayAlias(Tag { rp1 }, Tag { pp2 }))
    assert.False(t, MayAlias(Tag { st1 }, Tag { rp1 }))

    /* unknown tags alias everything */
    assert.True(t, MayAlias(Unknown, Tag { au1 }))
}
