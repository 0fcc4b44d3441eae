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

// DominatorTree describes the immediate dominators of the blocks reachable
// from Root, their dominance frontiers, and the entry and exit times of a
// preorder walk over the tree which answer dominance queries directly.
type DominatorTree struct {
    Root              *BasicBlock
    DominatedBy       map[int]*BasicBlock
    DominatorOf       map[int][]*BasicBlock
    DominanceFrontier map[int][]*BasicBlock
    enter             map[int]int
    leave             map[int]int
}

// Dominates checks if a dominates b. Every block dominates itself.
func (self DominatorTree) Dominates(a *BasicBlock, b *BasicBlock) bool {
    if a == b {
        return true
    }

    /* both must be reachable */
    ia, ok1 := self.enter[a.Id]
    ib, ok2 := self.enter[b.Id]

    /* b is in the subtree of a */
    if !ok1 || !ok2 {
        return false
    } else {
        return ia <= ib && self.leave[b.Id] <= self.leave[a.Id]
    }
}

// _DomSolver finds the dominators with the iterative data-flow method of
// Cooper, Harvey and Kennedy, working on reverse postorder indices.
type _DomSolver struct {
    rpo   []*BasicBlock
    index map[int]int
    pred  [][]int
    idom  []int
}

func (self *_DomSolver) visit(bb *BasicBlock, seen map[int]bool) {
    seen[bb.Id] = true
    for it := bb.Term.Successors(); it.Next(); {
        if w := it.Block(); !seen[w.Id] {
            self.visit(w, seen)
        }
    }
    self.rpo = append(self.rpo, bb)
}

func (self *_DomSolver) number(root *BasicBlock) {
    self.visit(root, make(map[int]bool))
    n := len(self.rpo)

    /* reverse the postorder */
    for i := 0; i < n / 2; i++ {
        self.rpo[i], self.rpo[n - i - 1] = self.rpo[n - i - 1], self.rpo[i]
    }

    /* index every block */
    self.index = make(map[int]int, n)
    for i, bb := range self.rpo {
        self.index[bb.Id] = i
    }

    /* predecessors reachable from the root, by index */
    self.pred = make([][]int, n)
    for i, bb := range self.rpo {
        for it := bb.Term.Successors(); it.Next(); {
            j := self.index[it.Block().Id]
            self.pred[j] = append(self.pred[j], i)
        }
    }
}

func (self *_DomSolver) intersect(a int, b int) int {
    for a != b {
        for a > b { a = self.idom[a] }
        for b > a { b = self.idom[b] }
    }
    return a
}

func (self *_DomSolver) solve() {
    self.idom = make([]int, len(self.rpo))
    for i := range self.idom {
        self.idom[i] = -1
    }

    /* iterate until nothing changes, the root dominates itself */
    self.idom[0] = 0
    for changed := true; changed; {
        changed = false

        /* meet over the processed predecessors */
        for i := 1; i < len(self.rpo); i++ {
            nd := -1
            for _, p := range self.pred[i] {
                if self.idom[p] < 0 {
                    continue
                } else if nd < 0 {
                    nd = p
                } else {
                    nd = self.intersect(p, nd)
                }
            }

            /* update the immediate dominator */
            if self.idom[i] != nd {
                self.idom[i] = nd
                changed = true
            }
        }
    }
}

// frontiers walks up from the predecessors of every join point until
// reaching its immediate dominator.
func (self *_DomSolver) frontiers() map[int][]*BasicBlock {
    ret := make(map[int][]*BasicBlock)
    seen := make(map[[2]int]bool)

    /* only join points contribute */
    for i, bb := range self.rpo {
        if len(self.pred[i]) < 2 {
            continue
        }

        /* run up the tree from each predecessor */
        for _, p := range self.pred[i] {
            for r := p; r != self.idom[i]; r = self.idom[r] {
                if k := [2]int { r, i }; !seen[k] {
                    seen[k] = true
                    ret[self.rpo[r].Id] = append(ret[self.rpo[r].Id], bb)
                }
                if r == 0 {
                    break
                }
            }
        }
    }
    return ret
}

func BuildDominatorTree(root *BasicBlock) DominatorTree {
    ds := new(_DomSolver)
    ds.number(root)
    ds.solve()

    /* Step 1: Link the tree in reverse postorder */
    ret := DominatorTree {
        Root        : root,
        DominatedBy : make(map[int]*BasicBlock),
        DominatorOf : make(map[int][]*BasicBlock),
        enter       : make(map[int]int),
        leave       : make(map[int]int),
    }

    /* the root has no dominator */
    for i, bb := range ds.rpo[1:] {
        d := ds.rpo[ds.idom[i + 1]]
        ret.DominatedBy[bb.Id] = d
        ret.DominatorOf[d.Id] = append(ret.DominatorOf[d.Id], bb)
    }

    /* Step 2: Number the tree for the dominance queries */
    clock := 0
    var walk func(bb *BasicBlock)
    walk = func(bb *BasicBlock) {
        ret.enter[bb.Id] = clock
        clock++
        for _, c := range ret.DominatorOf[bb.Id] {
            walk(c)
        }
        ret.leave[bb.Id] = clock
        clock++
    }

    /* Step 3: Add the frontiers */
    walk(root)
    ret.DominanceFrontier = ds.frontiers()
    return ret
}
