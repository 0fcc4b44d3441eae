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
    `github.com/cloudwego/loopvec/internal/scev`
)

// analyzeAccessPatterns requires every reference to touch consecutive
// elements, or the same element in every iteration for loads.
func analyzeAccessPatterns(info *LoopInfo) error {
    for i := range info.Refs {
        ref := &info.Refs[i]

        /* outer dimensions must stay in the same row */
        for _, d := range ref.Dims[:maxInt(len(ref.Dims) - 1, 0)] {
            if d.Access.Kind != scev.Invariant {
                return failf(UnsupportedAccessPattern, "outer subscript %s of %s changes in the loop", d.Index, ref.Addr)
            }
        }

        /* the address must move by a known amount */
        step, ok := ref.Address.ConstStep()
        if !ok {
            return failf(UnsupportedAccessPattern, "%s moves by %s per iteration", ref.Addr, ref.Address.Step)
        }

        /* invariant addresses are only allowed for loads */
        if step == 0 {
            if ref.Write {
                return failf(UnsupportedAccessPattern, "store to the invariant address %s", ref.Addr)
            } else {
                continue
            }
        }

        /* otherwise the elements must be consecutive */
        if step != int64(ref.Elem.Size()) {
            return failf(UnsupportedAccessPattern, "%s moves by %d bytes per iteration, element is %d bytes", ref.Addr, step, ref.Elem.Size())
        }
    }
    return nil
}
