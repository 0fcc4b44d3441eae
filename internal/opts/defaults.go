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

package opts

import (
	"os"
	"strconv"
)

const (
	_DefaultVectorBytes = 0  // use the native width of the target
	_MinVectorBytes     = 16 // the smallest vector any target supports
	_MaxVectorBytes     = 64 // the widest vector any target supports
)

var (
	Verbose     = parseBoolOrDefault("LOOPVEC_VERBOSE", false)
	Disable     = parseBoolOrDefault("LOOPVEC_DISABLE", false)
	VectorBytes = parseOrDefault("LOOPVEC_VECTOR_BYTES", _DefaultVectorBytes, _MinVectorBytes)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("loopvec: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("loopvec: value too small for " + key)
	} else {
		return ret
	}
}

func parseBoolOrDefault(key string, def bool) bool {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseBool(env); err != nil {
		panic("loopvec: invalid value for " + key)
	} else {
		return val
	}
}

// ValidVectorBytes checks if n can be used as the vector width limit.
func ValidVectorBytes(n int) bool {
	return n == 0 || (n >= _MinVectorBytes && n <= _MaxVectorBytes && n&(n-1) == 0)
}

func init() {
	if !ValidVectorBytes(VectorBytes) {
		panic("loopvec: invalid value for LOOPVEC_VECTOR_BYTES")
	}
}
