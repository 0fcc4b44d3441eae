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

// analyzeCycles requires every value carried around the loop to be an
// induction with a constant, non-zero step.
func analyzeCycles(info *LoopInfo) error {
    for _, p := range info.Header.Phi {
        if p.R.IsMem() {
            continue
        }

        /* must be an affine induction */
        c := info.ev.Of(p.R)
        if c.Kind != scev.Affine {
            return failf(UnsupportedScalarCycle, "%s evolves as %s", p.R, c)
        }

        /* with a known step */
        if _, ok := c.ConstStep(); !ok {
            return failf(UnsupportedScalarCycle, "%s has a symbolic step %s", p.R, c.Step)
        }
    }
    return nil
}
