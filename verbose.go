/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"go.uber.org/zap"
	"sync/atomic"
)

/**
Verbose logger, never nil
*/
var verbose atomic.Value

func init() {
	verbose.Store(zap.NewNop())
}

/**
Use this function to operate verbose and logging level of bean factories.
Passing nil mutes the logging.
*/

func Verbose(log *zap.Logger) (prev *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	return verbose.Swap(log).(*zap.Logger)
}

func logger() *zap.Logger {
	return verbose.Load().(*zap.Logger)
}
