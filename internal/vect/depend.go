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

package vect

import (
    `github.com/cloudwego/loopvec/internal/alias`
    `github.com/cloudwego/loopvec/internal/scev`
)

// analyzeDependences checks that executing VF iterations at once cannot
// change the order of two accesses to the same memory.
func analyzeDependences(info *LoopInfo) error {
    for i, w := range info.Writes {
        for _, o := range info.Writes[i + 1:] {
            if err := info.checkPair(w, o); err != nil {
                return err
            }
        }
        for _, r := range info.Reads {
            if err := info.checkPair(w, r); err != nil {
                return err
            }
        }
    }
    return nil
}

func (self *LoopInfo) checkPair(ia RefId, ib RefId) error {
    a := self.Ref(ia)
    b := self.Ref(ib)

    /* provably distinct memory */
    if !alias.MayAlias(a.Tag, b.Tag) {
        return nil
    }

    /* compute the distance */
    d, ok := distance(a, b)
    if !ok {
        return failf(DataDependence, "unknown distance between %s and %s", a.Addr, b.Addr)
    }

    /* distance 0 is the same iteration, VF or more is in another vector */
    if d != 0 && d > -int64(self.VF) && d < int64(self.VF) {
        return failf(DataDependence, "%s and %s are %d iterations apart", a.Addr, b.Addr, d)
    }

    /* independent */
    return nil
}

// distance returns the number of iterations between two references to the
// same memory, or a value at least VF for references that never overlap.
func distance(a *DataRef, b *DataRef) (int64, bool) {
    if a.Root != b.Root {
        return 0, false
    }

    /* different constant positions in an outer dimension never overlap */
    if disjointRows(a, b) {
        return _Far, true
    }

    /* the steps must be the same known constant */
    sa, ok1 := a.Address.ConstStep()
    sb, ok2 := b.Address.ConstStep()
    if !ok1 || !ok2 || sa != sb {
        return 0, false
    }

    /* the byte distance between the first accesses */
    delta, ok := scev.IsConst(scev.Sub(a.Address.Init, b.Address.Init))
    if !ok {
        return 0, false
    }

    /* both invariant, the accesses overlap or never do */
    if sa == 0 {
        if delta == 0 || abs(delta) < int64(maxInt(a.Elem.Size(), b.Elem.Size())) {
            return 0, false
        } else {
            return _Far, true
        }
    }

    /* must be a whole number of iterations */
    if delta % sa != 0 {
        return 0, false
    } else {
        return delta / sa, true
    }
}

const _Far = int64(1) << 62

func disjointRows(a *DataRef, b *DataRef) bool {
    if len(a.Dims) != len(b.Dims) || len(a.Dims) < 2 || a.Offset != b.Offset {
        return false
    }

    /* pointer bases must be the same fixed pointer */
    if a.Root == nil {
        if a.Ptr.Kind != scev.Invariant || b.Ptr.Kind != scev.Invariant || !scev.Equal(a.Ptr.Init, b.Ptr.Init) {
            return false
        }
    }

    /* same shape */
    for i := range a.Dims {
        if a.Dims[i].Stride != b.Dims[i].Stride {
            return false
        }
    }

    /* some outer dimension selects different constant rows */
    for i := 0; i < len(a.Dims) - 1; i++ {
        x, ok1 := scev.IsConst(a.Dims[i].Access.Init)
        y, ok2 := scev.IsConst(b.Dims[i].Access.Init)
        if ok1 && ok2 && x != y && a.Dims[i].Access.Kind == scev.Invariant && b.Dims[i].Access.Kind == scev.Invariant {
            return true
        }
    }
    return false
}

func abs(v int64) int64 {
    if v < 0 {
        return -v
    } else {
        return v
    }
}

func maxInt(a int, b int) int {
    if a > b {
        return a
    } else {
        return b
    }
}
