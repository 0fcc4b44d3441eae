/*
 * Copyright 2022 CloudWeGo Authors
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
	"fmt"

	"github.com/cloudwego/loopvec/internal/opts"
	"github.com/cloudwego/loopvec/target"
	"go.uber.org/zap"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithVerbose enables the diagnostics, one line for every loop that was
// considered, telling whether it was vectorized and why not.
//
// The default value of this option comes from the LOOPVEC_VERBOSE
// environment variable.
func WithVerbose(v bool) Option {
	return func(o *opts.Options) { o.Verbose = v }
}

// WithLogger sends the diagnostics to l instead of stderr. It has no effect
// unless verbose mode is enabled.
func WithLogger(l *zap.Logger) Option {
	if l == nil {
		panic("loopvec: nil logger")
	} else {
		return func(o *opts.Options) { o.Logger = l }
	}
}

// WithTarget selects the machine to vectorize for. The host machine is used
// if this option is not given.
func WithTarget(t target.Target) Option {
	if t == nil {
		panic("loopvec: nil target")
	} else {
		return func(o *opts.Options) { o.Target = t }
	}
}

// WithVectorBytes limits the width of the vectors, which must be a power of
// two between 16 and 64 bytes.
//
// Set this option to "0" removes the limit, which means using the widest
// vectors of the target.
//
// The default value of this option comes from the LOOPVEC_VECTOR_BYTES
// environment variable.
func WithVectorBytes(n int) Option {
	if !opts.ValidVectorBytes(n) {
		panic(fmt.Sprintf("loopvec: invalid vector size: %d", n))
	} else {
		return func(o *opts.Options) { o.VectorBytes = n }
	}
}
