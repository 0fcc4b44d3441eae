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

package loopvec

import (
    `github.com/cloudwego/loopvec/internal/vect`
)

// Reason explains why a loop was not vectorized.
type Reason = vect.Reason

// Failure occures when a loop is rejected, it names the loop and the reason.
type Failure = vect.Failure

const (
    BadLoopForm              = vect.BadLoopForm
    UnsupportedDataRef       = vect.UnsupportedDataRef
    UnsupportedScalarCycle   = vect.UnsupportedScalarCycle
    UnsupportedMisalignment  = vect.UnsupportedMisalignment
    UnsupportedOperation     = vect.UnsupportedOperation
    MixedVectorWidths        = vect.MixedVectorWidths
    IterationCountTooSmall   = vect.IterationCountTooSmall
    CannotConstructEpilogue  = vect.CannotConstructEpilogue
    UnsupportedAccessPattern = vect.UnsupportedAccessPattern
    DataDependence           = vect.DataDependence
)
