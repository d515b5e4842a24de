package schemas

import (
	"fmt"
	"strings"
)

// StrategyType identifies how a Strategy locates an element on the page.
type StrategyType string

const (
	StrategyTestID      StrategyType = "testid"
	StrategyRole        StrategyType = "role"
	StrategyLabel       StrategyType = "label"
	StrategyPlaceholder StrategyType = "placeholder"
	StrategyText        StrategyType = "text"
	StrategyAltText     StrategyType = "alt_text"
	StrategyTitle       StrategyType = "title"
	StrategyCSS         StrategyType = "css"
)

// Strategy is a tagged, sparse description of how to locate one element.
// Exactly one field is required per type; everything else is optional. The
// wire representation is deliberately permissive because it is produced by
// language models; Validate is the single strictness boundary.
type Strategy struct {
	Type     StrategyType `json:"type"`
	Value    string       `json:"value,omitempty"`
	Role     string       `json:"role,omitempty"`
	Name     string       `json:"name,omitempty"`
	Text     string       `json:"text,omitempty"`
	Selector string       `json:"selector,omitempty"`
	Exact    bool         `json:"exact,omitempty"`
}

// requiredField maps each strategy type to the one field it cannot do without.
var requiredField = map[StrategyType]string{
	StrategyTestID:      "value",
	StrategyRole:        "role",
	StrategyLabel:       "text",
	StrategyPlaceholder: "text",
	StrategyText:        "text",
	StrategyAltText:     "text",
	StrategyTitle:       "text",
	StrategyCSS:         "selector",
}

// Validate checks that the strategy carries the required field for its type.
// It returns a human readable error naming the missing field, or nil.
func (s Strategy) Validate() error {
	field, ok := requiredField[s.Type]
	if !ok {
		return fmt.Errorf("unknown strategy type %q", s.Type)
	}

	var present bool
	switch field {
	case "value":
		present = strings.TrimSpace(s.Value) != ""
	case "role":
		present = strings.TrimSpace(s.Role) != ""
	case "text":
		present = strings.TrimSpace(s.Text) != ""
	case "selector":
		present = strings.TrimSpace(s.Selector) != ""
	}
	if !present {
		return fmt.Errorf("strategy type %q is missing its required field %q", s.Type, field)
	}
	return nil
}

// Usable reports whether the strategy can be turned into a locator at all.
func (s Strategy) Usable() bool {
	return s.Validate() == nil
}

// String renders a compact description used in diagnostics and log records.
func (s Strategy) String() string {
	var sb strings.Builder
	sb.WriteString(string(s.Type))
	sb.WriteByte('(')
	parts := make([]string, 0, 3)
	appendIf := func(name, val string) {
		if val != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", name, val))
		}
	}
	appendIf("value", s.Value)
	appendIf("role", s.Role)
	appendIf("name", s.Name)
	appendIf("text", s.Text)
	appendIf("selector", s.Selector)
	if s.Exact {
		parts = append(parts, "exact")
	}
	sb.WriteString(strings.Join(parts, ", "))
	sb.WriteByte(')')
	return sb.String()
}
