package build

import (
	"context"

	"github.com/outofforest/build"
	"github.com/outofforest/buildgo"
)

// testTag selects cache parameters small enough to force eviction and dirty block flushes in tests.
const testTag = "test"

// goTests runs the unit tests of the module with the reduced cache parameters.
func goTests(ctx context.Context, deps build.DepsFunc) error {
	return buildgo.GoTest(ctx, deps, testTag)
}
