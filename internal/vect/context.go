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
    `github.com/cloudwego/loopvec/target`
    `go.uber.org/zap`
)

// PassContext carries the state shared by every loop of one run of the
// pass. It is not safe for concurrent use.
type PassContext struct {
    Target target.Target
    Log    *zap.Logger
    Stats  *Stats
    rename []alias.Tag
    marked map[alias.Tag]bool
}

// NewContext creates a pass context for the target t. A nil logger
// discards every diagnostic.
func NewContext(t target.Target, log *zap.Logger) *PassContext {
    if log == nil {
        log = zap.NewNop()
    }
    return &PassContext {
        Target : t,
        Log    : log,
        Stats  : &GlobalStats,
        marked : make(map[alias.Tag]bool),
    }
}

// markRename records that the memory chains of tag must be renamed.
func (self *PassContext) markRename(tag alias.Tag) {
    if !self.marked[tag] {
        self.marked[tag] = true
        self.rename = append(self.rename, tag)
    }
}

// Renames returns the memory tags waiting to be renamed.
func (self *PassContext) Renames() []alias.Tag {
    return self.rename
}

func (self *PassContext) clearRenames() {
    self.rename = self.rename[:0]
    self.marked = make(map[alias.Tag]bool)
}
