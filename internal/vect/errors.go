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
    `fmt`
)

// Reason explains why a loop was not vectorized.
type Reason uint8

const (
    BadLoopForm Reason = iota
    UnsupportedDataRef
    UnsupportedScalarCycle
    UnsupportedMisalignment
    UnsupportedOperation
    MixedVectorWidths
    IterationCountTooSmall
    CannotConstructEpilogue
    UnsupportedAccessPattern
    DataDependence
    _ReasonCount
)

var _ReasonNames = [...]string {
    BadLoopForm              : "bad loop form",
    UnsupportedDataRef       : "unsupported data reference",
    UnsupportedScalarCycle   : "unsupported scalar cycle",
    UnsupportedMisalignment  : "unsupported misalignment",
    UnsupportedOperation     : "unsupported operation",
    MixedVectorWidths        : "mixed vector widths",
    IterationCountTooSmall   : "iteration count too small",
    CannotConstructEpilogue  : "cannot construct epilogue",
    UnsupportedAccessPattern : "unsupported access pattern",
    DataDependence           : "data dependence",
}

func (self Reason) String() string {
    if self >= _ReasonCount {
        return fmt.Sprintf("Reason(%d)", self)
    } else {
        return _ReasonNames[self]
    }
}

// Reasons returns every rejection reason in declaration order.
func Reasons() []Reason {
    ret := make([]Reason, _ReasonCount)
    for i := range ret { ret[i] = Reason(i) }
    return ret
}

// Failure occures when a loop is rejected by one of the analysis gates.
type Failure struct {
    Loop   string
    Reason Reason
    Note   string
}

func (self Failure) Error() string {
    if self.Loop == "" {
        return fmt.Sprintf("not vectorized: %s: %s", self.Reason, self.Note)
    } else {
        return fmt.Sprintf("%s: not vectorized: %s: %s", self.Loop, self.Reason, self.Note)
    }
}

func failf(reason Reason, format string, args ...interface{}) error {
    return Failure {
        Reason : reason,
        Note   : fmt.Sprintf(format, args...),
    }
}
