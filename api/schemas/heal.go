package schemas

import (
	"encoding/json"
)

// ActionKind enumerates the page actions the resolution engine can execute.
type ActionKind string

const (
	ActionClick       ActionKind = "click"
	ActionFill        ActionKind = "fill"
	ActionHover       ActionKind = "hover"
	ActionCheck       ActionKind = "check"
	ActionUncheck     ActionKind = "uncheck"
	ActionDoubleClick ActionKind = "dblclick"
	ActionFocus       ActionKind = "focus"
	ActionSelect      ActionKind = "select_option"
)

// Candidate is a compact, lossy snapshot of one DOM element offered to a
// language model as a possible match. Only non-empty fields are serialized,
// which keeps the request payload bounded.
//
// Candidates are ephemeral: collected fresh per resolution attempt and never
// persisted.
type Candidate struct {
	Tag         string `json:"tag"`
	Role        string `json:"role,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
	Name        string `json:"name,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	InputType   string `json:"inputType,omitempty"`
	Href        string `json:"href,omitempty"`
	Alt         string `json:"alt,omitempty"`
	Title       string `json:"title,omitempty"`
	For         string `json:"for,omitempty"`
	ID          string `json:"id,omitempty"`
	Classes     string `json:"classes,omitempty"`
	Text        string `json:"text,omitempty"`
	TestID      string `json:"testId,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// PlanAnswer is one candidate answer in a HealPlan: a strategy, the model's
// confidence in it, and a short rationale.
type PlanAnswer struct {
	Strategy   Strategy `json:"strategy"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
}

// planAnswerWire tolerates provider shape drift: some models emit the
// strategy fields flattened into the answer object instead of nesting them
// under "strategy". Both shapes decode into the same PlanAnswer.
type planAnswerWire struct {
	Strategy   *Strategy `json:"strategy"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`

	// Flat fallback fields.
	Type     StrategyType `json:"type"`
	Value    string       `json:"value"`
	Role     string       `json:"role"`
	Name     string       `json:"name"`
	Text     string       `json:"text"`
	Selector string       `json:"selector"`
	Exact    bool         `json:"exact"`
}

// UnmarshalJSON reshapes flat answer objects before validation ever sees them.
func (a *PlanAnswer) UnmarshalJSON(data []byte) error {
	var w planAnswerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Strategy != nil {
		a.Strategy = *w.Strategy
	} else {
		a.Strategy = Strategy{
			Type:     w.Type,
			Value:    w.Value,
			Role:     w.Role,
			Name:     w.Name,
			Text:     w.Text,
			Selector: w.Selector,
			Exact:    w.Exact,
		}
	}
	a.Confidence = w.Confidence
	a.Reason = w.Reason
	return nil
}

// HealPlan is an ordered sequence of candidate answers as returned by a
// completion backend. The order is the backend's preference ranking; the
// picker consumes it in order and never re-sorts.
type HealPlan struct {
	Answers []PlanAnswer `json:"answers"`
}

// UnmarshalJSON accepts both the canonical {"answers": [...]} object and a
// bare array, which some providers emit despite the schema.
func (p *HealPlan) UnmarshalJSON(data []byte) error {
	trimmed := firstNonSpace(data)
	if trimmed == '[' {
		return json.Unmarshal(data, &p.Answers)
	}
	type alias HealPlan
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = HealPlan(a)
	return nil
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

// TokenUsage carries the token counts a backend reports for one call. It is
// attached to log records only and takes part in no invariant.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// CacheEntry is a persisted winning strategy together with the human
// description it healed and the test that produced it. On disk the strategy
// fields sit flat next to "context" and "testName".
type CacheEntry struct {
	Strategy
	Description string `json:"context"`
	TestName    string `json:"testName,omitempty"`
}
