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
    `github.com/oleiade/lane`
)

// TDCE removes definitions that do not contribute to any side effect,
// including dead cycles through Phi nodes.
func TDCE(fn *Func) {
    q := lane.NewQueue()
    du := fn.DefUse()
    live := make(map[IrNode]bool)

    /* Phase 1: Mark all the roots */
    for _, bb := range fn.Blocks {
        for _, v := range bb.Ins {
            if HasSideEffects(v) {
                live[v] = true
                q.Enqueue(v)
            }
        }

        /* terminators are always live */
        live[bb.Term] = true
        q.Enqueue(bb.Term)
    }

    /* Phase 2: Propagate liveness to the definitions */
    for !q.Empty() {
        p := q.Dequeue().(IrNode)
        u, ok := p.(IrUsages)

        /* nothing is used by this node */
        if !ok {
            continue
        }

        /* mark the definitions */
        for _, r := range u.Usages() {
            if d, ok := du.Def[*r]; ok && !live[d] {
                live[d] = true
                q.Enqueue(d)
            }
        }
    }

    /* Phase 3: Remove everything that is not live */
    for _, bb := range fn.Blocks {
        phi, ins := bb.Phi, bb.Ins
        bb.Phi, bb.Ins = bb.Phi[:0], bb.Ins[:0]

        /* remove Phi nodes that don't have any effects */
        for _, v := range phi {
            if live[v] {
                bb.Phi = append(bb.Phi, v)
            }
        }

        /* remove instructions that don't have any effects */
        for _, v := range ins {
            if live[v] {
                bb.Ins = append(bb.Ins, v)
            }
        }
    }
}

// PhiElim replaces Phi nodes whose arguments are all the same register
// (ignoring the Phi itself) with that register.
func PhiElim(fn *Func) {
    for done := false; !done; {
        done = true

        /* check every Phi node */
        for _, bb := range fn.Blocks {
            dead := make(map[*IrPhi]bool)

            /* find the single source */
            for _, p := range bb.Phi {
                src := Rz
                uniq := true

                /* scan all the arguments */
                for _, r := range p.V {
                    if *r == p.R || *r == src {
                        continue
                    } else if src == Rz {
                        src = *r
                    } else {
                        uniq = false
                        break
                    }
                }

                /* replace every use with the source */
                if uniq && src != Rz {
                    done = false
                    dead[p] = true
                    fn.ReplaceUses(p.R, src)
                }
            }

            /* remove the replaced Phi nodes */
            if len(dead) != 0 {
                phi := bb.Phi
                bb.Phi = nil

                /* filter the Phi nodes */
                for _, p := range phi {
                    if !dead[p] {
                        bb.Phi = append(bb.Phi, p)
                    }
                }
            }
        }
    }
}

// CopyElim forwards the source of every copy to its users and removes the
// copies. Chains of copies are followed to their first source.
func CopyElim(fn *Func) {
    src := make(map[Reg]Reg)
    for _, bb := range fn.Blocks {
        ins := bb.Ins
        bb.Ins = make([]IrNode, 0, len(ins))

        /* find all the copies */
        for _, p := range ins {
            if c, ok := p.(*IrCopy); !ok {
                bb.Ins = append(bb.Ins, p)
            } else {
                src[c.R] = c.V
            }
        }
    }

    /* nothing to forward */
    if len(src) == 0 {
        return
    }

    /* rewrite the uses after every copy is known */
    for _, bb := range fn.Blocks {
        for _, p := range bb.Phi {
            forwardCopies(p, src)
        }
        for _, p := range bb.Ins {
            forwardCopies(p, src)
        }
        forwardCopies(bb.Term, src)
    }
}

func forwardCopies(p IrNode, src map[Reg]Reg) {
    if u, ok := p.(IrUsages); ok {
        for _, r := range u.Usages() {
            for v, ok := src[*r]; ok; v, ok = src[v] {
                *r = v
            }
        }
    }
}
