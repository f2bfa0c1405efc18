// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger = nil
)

const MaxLogLevel = logrus.DebugLevel

func init() {
	logger = logrus.New()
}

// SetLogger overrides the package-level logger, letting a host
// application route diagnostic output into its own logging pipeline.
func SetLogger(loggerInstance *logrus.Logger) {
	logger = loggerInstance
}
