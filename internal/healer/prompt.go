// internal/healer/prompt.go
package healer

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/sk3lla/mend/api/schemas"
)

var promptJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// systemPrompt frames the model as a locator engine and pins the output
// contract. Providers without native schema support rely on this text plus
// the schema below.
const systemPrompt = `You are a locator resolution engine for browser test automation.
You are given a human description of a target element, the action to perform on it, and a list of candidate elements sampled from the live page.

Pick the candidates that best match the description and, for each, produce the most robust locator strategy. Prefer, in order: testid, role (with accessible name), label, placeholder, text, alt_text, title, css. Use css only when nothing semantic identifies the element.

Respond with JSON only, matching the schema exactly. Order answers from most to least likely. Include at most 4 answers. Confidence is a number between 0 and 1.`

// planSchema is the output contract sent with every request.
const planSchema = `{
  "answers": [
    {
      "strategy": {
        "type": "testid | role | label | placeholder | text | alt_text | title | css",
        "value": "required for testid",
        "role": "required for role",
        "name": "optional accessible name for role",
        "text": "required for label, placeholder, text, alt_text, title",
        "selector": "required for css",
        "exact": false
      },
      "confidence": 0.0,
      "reason": "one short sentence"
    }
  ]
}`

// buildUserContent assembles the per-request prompt body.
func buildUserContent(action schemas.ActionKind, description string, candidates []schemas.Candidate) (string, error) {
	encoded, err := promptJSON.MarshalIndent(candidates, "", " ")
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Action: %s\n", action)
	fmt.Fprintf(&sb, "Target description: %s\n\n", description)
	fmt.Fprintf(&sb, "Candidate elements (%d, in DOM order):\n%s\n\n", len(candidates), encoded)
	fmt.Fprintf(&sb, "Output JSON schema:\n%s\n", planSchema)
	return sb.String(), nil
}
