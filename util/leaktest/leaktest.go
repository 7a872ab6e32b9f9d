// Copyright 2021 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package leaktest

import (
	"testing"

	"github.com/lni/goutils/leaktest"
)

// AfterTest returns a function to be deferred by tests to detect goroutines
// leaked during the test.
func AfterTest(t testing.TB) func() {
	return leaktest.AfterTest(t)
}
