// internal/collector/ranker.go
package collector

import (
	"sort"
	"strings"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/config"
)

// Weights tunes the relevance scoring. Only the relative order of the
// values matters; the defaults come from configuration.
type Weights struct {
	FullMatch int
	Contained int
	Token     int
	TagHint   int
	RoleHint  int
	TestID    int
	Visible   int
}

// WeightsFromConfig copies the configured ranking weights.
func WeightsFromConfig(cfg config.RankConfig) Weights {
	return Weights{
		FullMatch: cfg.FullMatch,
		Contained: cfg.Contained,
		Token:     cfg.Token,
		TagHint:   cfg.TagHint,
		RoleHint:  cfg.RoleHint,
		TestID:    cfg.TestID,
		Visible:   cfg.Visible,
	}
}

// stopwords are description tokens that carry no targeting signal.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true,
	"into": true, "that": true, "this": true, "from": true,
}

// tagHints maps description keywords to the tags they imply.
var tagHints = map[string][]string{
	"button":   {"button", "input"},
	"submit":   {"button", "input"},
	"checkbox": {"input", "label"},
	"radio":    {"input", "label"},
	"select":   {"select"},
	"dropdown": {"select"},
	"link":     {"a"},
	"input":    {"input", "textarea"},
	"field":    {"input", "textarea"},
	"image":    {"img"},
	"logo":     {"img"},
}

// Rank reorders candidates by relevance to the description and truncates to
// limit. It exists purely to bound payload size: when the set already fits,
// it is returned untouched, and no candidate is ever filtered by threshold.
func Rank(candidates []schemas.Candidate, description string, limit int, w Weights) []schemas.Candidate {
	if len(candidates) <= limit {
		return candidates
	}

	desc := strings.ToLower(strings.TrimSpace(description))
	tokens := descriptionTokens(desc)
	hinted := hintedTags(desc)

	type scored struct {
		idx   int
		score int
	}
	scores := make([]scored, len(candidates))
	for i, c := range candidates {
		scores[i] = scored{idx: i, score: score(c, desc, tokens, hinted, w)}
	}

	// Stable sort keeps DOM order among ties.
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	out := make([]schemas.Candidate, limit)
	for i := 0; i < limit; i++ {
		out[i] = candidates[scores[i].idx]
	}
	return out
}

func score(c schemas.Candidate, desc string, tokens []string, hinted map[string]bool, w Weights) int {
	fields := textFields(c)

	total := 0
	fullMatch := false
	contained := false
	for _, f := range fields {
		if strings.Contains(f, desc) {
			fullMatch = true
		}
		if len(f) >= 3 && strings.Contains(desc, f) {
			contained = true
		}
	}
	if fullMatch {
		total += w.FullMatch
	}
	if contained {
		total += w.Contained
	}

	for _, tok := range tokens {
		for _, f := range fields {
			if strings.Contains(f, tok) {
				total += w.Token
				break
			}
		}
	}

	if hinted[c.Tag] {
		total += w.TagHint
	}
	if c.Role != "" && strings.Contains(desc, strings.ToLower(c.Role)) {
		total += w.RoleHint
	}
	if c.TestID != "" {
		total += w.TestID
	}
	if !c.Hidden {
		total += w.Visible
	}
	return total
}

// textFields collects the lowercased textual facets of a candidate that can
// match a description.
func textFields(c schemas.Candidate) []string {
	raw := []string{c.Text, c.AriaLabel, c.Name, c.Placeholder, c.Alt, c.Title, c.ID, c.TestID, c.Classes}
	out := raw[:0]
	for _, f := range raw {
		if f != "" {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

// descriptionTokens splits the description into non-stopword tokens of at
// least three characters.
func descriptionTokens(desc string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(desc, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(tok) >= 3 && !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// hintedTags resolves description keywords to the tag set they imply.
func hintedTags(desc string) map[string]bool {
	out := make(map[string]bool)
	for keyword, tags := range tagHints {
		if strings.Contains(desc, keyword) {
			for _, tag := range tags {
				out[tag] = true
			}
		}
	}
	return out
}
