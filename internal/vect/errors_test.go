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
    `testing`

    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

func TestErrors_Failure(t *testing.T) {
    err := failf(DataDependence, "distance %d", 3)
    assert.EqualError(t, err, "not vectorized: data dependence: distance 3")

    /* with the loop name */
    f := err.(Failure)
    f.Loop = "loop_2"
    assert.EqualError(t, f, "loop_2: not vectorized: data dependence: distance 3")
}

func TestErrors_Reasons(t *testing.T) {
    rs := Reasons()
    require.Len(t, rs, int(_ReasonCount))
    for i, r := range rs {
        assert.Equal(t, Reason(i), r)
        assert.NotEmpty(t, r.String())
    }
    assert.Equal(t, "Reason(200)", Reason(200).String())
}

func TestStats_Reset(t *testing.T) {
    var st Stats
    st.Analyzed.Inc()
    st.Vectorized.Inc()
    st.reject(BadLoopForm)
    st.reject(_ReasonCount)
    assert.Equal(t, int64(1), st.Rejected[BadLoopForm].Load())

    /* everything goes back to zero */
    st.Reset()
    assert.Zero(t, st.Analyzed.Load())
    assert.Zero(t, st.Vectorized.Load())
    assert.Zero(t, st.Rejected[BadLoopForm].Load())
}
