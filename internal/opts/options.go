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
	"sync"

	"github.com/cloudwego/loopvec/target"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Verbose     bool
	Disable     bool
	VectorBytes int
	Target      target.Target
	Logger      *zap.Logger
}

var (
	stderrOnce   sync.Once
	stderrLogger *zap.Logger
)

func stderr() *zap.Logger {
	stderrOnce.Do(func() {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.TimeKey = ""
		stderrLogger = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), zapcore.InfoLevel))
	})
	return stderrLogger
}

// Machine returns the target to vectorize for, limited to VectorBytes if
// it is set.
func (self *Options) Machine() target.Target {
	t := self.Target
	if t == nil {
		t = target.Host()
	}
	if self.VectorBytes != 0 {
		t = target.Narrow(t, self.VectorBytes)
	}
	return t
}

// Log returns the diagnostics logger. Nothing is logged unless Verbose is
// set, verbose output goes to stderr when no logger is configured.
func (self *Options) Log() *zap.Logger {
	switch {
	case !self.Verbose:
		return zap.NewNop()
	case self.Logger != nil:
		return self.Logger
	default:
		return stderr()
	}
}

func GetDefaultOptions() Options {
	return Options{
		Verbose:     Verbose,
		Disable:     Disable,
		VectorBytes: VectorBytes,
	}
}
