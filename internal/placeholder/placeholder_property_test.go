//go:build property

package placeholder

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestStripProperties validates the strip contract on generated text.
func TestStripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("strip is idempotent", prop.ForAll(
		func(parts []string, ids []string) bool {
			text := interleave(parts, ids)
			clean, _ := Strip(text)
			again, extracted := Strip(clean)
			return again == clean && extracted == ""
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(genID()),
	))

	properties.Property("extraction is the ordered concatenation of markers", prop.ForAll(
		func(parts []string, ids []string) bool {
			text := interleave(parts, ids)
			clean, extracted := Strip(text)

			var want strings.Builder
			n := len(ids)
			if len(parts) < n {
				n = len(parts)
			}
			for _, id := range ids[:n] {
				want.WriteString(Marker(id))
			}
			return extracted == want.String() && !Contains(clean)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(genID()),
	))

	properties.TestingRun(t)
}

func genID() gopter.Gen {
	return gen.RegexMatch(`[a-z0-9]{0,32}`)
}

// interleave writes parts[i] followed by the marker for ids[i] while both
// slices have elements, then the remaining parts.
func interleave(parts, ids []string) string {
	var b strings.Builder
	for i, p := range parts {
		b.WriteString(p)
		if i < len(ids) {
			b.WriteString(Marker(ids[i]))
		}
	}
	return b.String()
}
