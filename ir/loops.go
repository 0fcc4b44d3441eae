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
    `sort`

    `gonum.org/v1/gonum/graph/simple`
    `gonum.org/v1/gonum/graph/topo`
)

// Loop is a natural loop with a single entry block.
type Loop struct {
    Id      int
    Header  *BasicBlock
    Blocks  []*BasicBlock
    Latches []*BasicBlock
    Parent  *Loop
    Inner   []*Loop
    Depth   int
    set     map[*BasicBlock]bool
}

func (self *Loop) String() string {
    return fmt.Sprintf("loop_%d@bb_%d", self.Id, self.Header.Id)
}

// Contains checks if bb is part of this loop or any of its inner loops.
func (self *Loop) Contains(bb *BasicBlock) bool {
    return self.set[bb]
}

// Exits returns every edge leaving the loop as (from, to) pairs.
func (self *Loop) Exits() (r [][2]*BasicBlock) {
    for _, bb := range self.Blocks {
        for _, p := range bb.Succs() {
            if !self.set[p] {
                r = append(r, [2]*BasicBlock { bb, p })
            }
        }
    }
    return
}

// Entries returns the predecessors of the header that are outside the loop.
func (self *Loop) Entries() (r []*BasicBlock) {
    for _, p := range self.Header.Pred {
        if !self.set[p] {
            r = append(r, p)
        }
    }
    return
}

// Preheader returns the only block entering the loop if that block falls
// through to the header unconditionally, nil otherwise.
func (self *Loop) Preheader() *BasicBlock {
    if e := self.Entries(); len(e) != 1 {
        return nil
    } else if _, ok := e[0].Term.(*IrJump); !ok {
        return nil
    } else {
        return e[0]
    }
}

// LoopForest is the loop nesting structure of a function.
type LoopForest struct {
    Loops []*Loop
    Top   []*Loop
    of    map[*BasicBlock]*Loop
}

// LoopOf returns the innermost loop containing bb, or nil.
func (self *LoopForest) LoopOf(bb *BasicBlock) *Loop {
    return self.of[bb]
}

// Innermost returns all the loops without inner loops, in block order.
func (self *LoopForest) Innermost() (r []*Loop) {
    for _, lp := range self.Loops {
        if len(lp.Inner) == 0 {
            r = append(r, lp)
        }
    }
    return
}

type _LoopFinder struct {
    fn   *Func
    ord  map[*BasicBlock]int
    cut  map[[2]*BasicBlock]bool
    ret  *LoopForest
}

// FindLoops discovers the natural loops of a function by recursively
// decomposing strongly connected components. Components with more than
// one entry are irreducible and are not reported as loops.
func FindLoops(fn *Func) *LoopForest {
    lf := &_LoopFinder {
        fn  : fn,
        ord : make(map[*BasicBlock]int, len(fn.Blocks)),
        cut : make(map[[2]*BasicBlock]bool),
        ret : &LoopForest { of: make(map[*BasicBlock]*Loop) },
    }

    /* block order */
    for i, bb := range fn.Blocks {
        lf.ord[bb] = i
    }

    /* find all the loops */
    lf.ret.Top = lf.find(fn.Blocks, nil)
    sort.SliceStable(lf.ret.Loops, func(i int, j int) bool {
        return lf.ord[lf.ret.Loops[i].Header] < lf.ord[lf.ret.Loops[j].Header]
    })

    /* number the loops */
    for i, lp := range lf.ret.Loops {
        lp.Id = i
    }
    return lf.ret
}

func (self *_LoopFinder) find(blocks []*BasicBlock, parent *Loop) (r []*Loop) {
    g := simple.NewDirectedGraph()
    in := make(map[*BasicBlock]bool, len(blocks))
    byid := make(map[int64]*BasicBlock, len(blocks))
    self_ := make(map[*BasicBlock]bool)

    /* add all the nodes */
    for _, bb := range blocks {
        in[bb] = true
        byid[int64(bb.Id)] = bb
        g.AddNode(simple.Node(bb.Id))
    }

    /* add all the edges that are not cut */
    for _, bb := range blocks {
        for _, p := range bb.Succs() {
            if !in[p] || self.cut[[2]*BasicBlock { bb, p }] {
                continue
            }

            /* the graph does not support self edges */
            if p == bb {
                self_[bb] = true
            } else {
                g.SetEdge(g.NewEdge(simple.Node(bb.Id), simple.Node(p.Id)))
            }
        }
    }

    /* check every component */
    for _, scc := range topo.TarjanSCC(g) {
        if len(scc) == 1 && !self_[byid[scc[0].ID()]] {
            continue
        }

        /* collect the blocks in order */
        set := make(map[*BasicBlock]bool, len(scc))
        body := make([]*BasicBlock, 0, len(scc))

        /* dump the nodes */
        for _, n := range scc {
            bb := byid[n.ID()]
            set[bb] = true
            body = append(body, bb)
        }

        /* sort by block order */
        sort.Slice(body, func(i int, j int) bool {
            return self.ord[body[i]] < self.ord[body[j]]
        })

        /* find the entry blocks */
        var entries []*BasicBlock
        for _, bb := range body {
            if bb == self.fn.Root {
                entries = append(entries, bb)
                continue
            }
            for _, p := range bb.Pred {
                if !set[p] {
                    entries = append(entries, bb)
                    break
                }
            }
        }

        /* irreducible regions are not loops */
        if len(entries) != 1 {
            continue
        }

        /* construct the loop */
        hdr := entries[0]
        lp := &Loop {
            Header : hdr,
            Blocks : body,
            Parent : parent,
            Depth  : 1,
            set    : set,
        }

        /* update the depth */
        if parent != nil {
            lp.Depth = parent.Depth + 1
        }

        /* cut the back edges */
        for _, p := range hdr.Pred {
            if set[p] {
                lp.Latches = append(lp.Latches, p)
                self.cut[[2]*BasicBlock { p, hdr }] = true
            }
        }

        /* innermost loop so far for every block */
        for _, bb := range body {
            self.ret.of[bb] = lp
        }

        /* add to the forest, then find the inner loops */
        r = append(r, lp)
        self.ret.Loops = append(self.ret.Loops, lp)
        lp.Inner = self.find(body, lp)
    }

    /* sort by header order */
    sort.Slice(r, func(i int, j int) bool {
        return self.ord[r[i].Header] < self.ord[r[j].Header]
    })
    return
}
