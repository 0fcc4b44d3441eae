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

// Package loopvec rewrites the innermost counted loops of an SSA function
// so that one iteration processes a whole vector of elements.
package loopvec

import (
	"github.com/cloudwego/loopvec/internal/opts"
	"github.com/cloudwego/loopvec/internal/vect"
	"github.com/cloudwego/loopvec/ir"
	"go.uber.org/multierr"
)

// VectorizeLoops vectorizes every loop of fn it can prove safe and
// profitable. The returned errors explain the loops that were left alone,
// each one of them is a Failure. fn is modified in place.
func VectorizeLoops(fn *ir.Func, options ...Option) []error {
	o := opts.GetDefaultOptions()
	for _, opt := range options {
		opt(&o)
	}

	/* the pass can be turned off from the environment */
	if o.Disable {
		return nil
	}

	/* run the pass */
	ctx := vect.NewContext(o.Machine(), o.Log())
	return vect.Vectorize(ctx, fn)
}

// Explain combines the rejections returned by VectorizeLoops into a single
// error, or nil if every loop was vectorized.
func Explain(errs []error) error {
	return multierr.Combine(errs...)
}

// Rejections returns the reason of every failure contained in err, which
// is usually the result of Explain.
func Rejections(err error) []Reason {
	var ret []Reason
	for _, e := range multierr.Errors(err) {
		if f, ok := e.(Failure); ok {
			ret = append(ret, f.Reason)
		}
	}
	return ret
}
