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
    `go.uber.org/atomic`
)

// Stats counts the decisions of the pass. Counters may be updated from
// several goroutines processing different functions.
type Stats struct {
    Analyzed   atomic.Int64
    Vectorized atomic.Int64
    Prologues  atomic.Int64
    Epilogues  atomic.Int64
    Rejected   [_ReasonCount]atomic.Int64
}

// GlobalStats is shared by every pass context that does not bring its own.
var GlobalStats Stats

func (self *Stats) reject(reason Reason) {
    if reason < _ReasonCount {
        self.Rejected[reason].Inc()
    }
}

// Reset clears every counter.
func (self *Stats) Reset() {
    self.Analyzed.Store(0)
    self.Vectorized.Store(0)
    self.Prologues.Store(0)
    self.Epilogues.Store(0)

    /* clear the rejections */
    for i := range self.Rejected {
        self.Rejected[i].Store(0)
    }
}
