//go:build property
// +build property

package redact_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dara-labs/control-plane/pkg/redact"
)

// TestRedactIdempotenceProperty verifies redaction is stable under
// re-application. Property: redact(redact(t, S), S) == redact(t, S).
func TestRedactIdempotenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("redaction is idempotent", prop.ForAll(
		func(text string, secrets []string) bool {
			once := redact.Redact(text, secrets)
			return redact.Redact(once, secrets) == once
		},
		gen.AnyString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
