// internal/browser/xpath.go
package browser

import (
	"fmt"
	"strings"

	"github.com/sk3lla/mend/api/schemas"
)

// QueryKind distinguishes the two selector languages a compiled query can use.
type QueryKind string

const (
	QueryCSS   QueryKind = "css"
	QueryXPath QueryKind = "xpath"
)

// Query is a compiled, driver-ready selector.
type Query struct {
	Kind QueryKind
	Expr string
}

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// testIDAttrs are the attribute names commonly used to carry test ids, in
// the order frameworks tend to prefer them.
var testIDAttrs = []string{"data-testid", "data-test-id", "data-test", "data-qa", "data-cy"}

// implicitRoleTags maps an ARIA role to the XPath node tests of the HTML
// elements that carry it implicitly. Elements with an explicit role
// attribute are matched separately.
var implicitRoleTags = map[string][]string{
	"button":   {"button", `input[@type="button" or @type="submit" or @type="reset"]`},
	"link":     {"a[@href]"},
	"textbox":  {`input[not(@type) or @type="text" or @type="email" or @type="password" or @type="search" or @type="tel" or @type="url"]`, "textarea"},
	"checkbox": {`input[@type="checkbox"]`},
	"radio":    {`input[@type="radio"]`},
	"combobox": {"select"},
	"heading":  {"h1", "h2", "h3", "h4", "h5", "h6"},
	"img":      {"img"},
	"list":     {"ul", "ol"},
	"listitem": {"li"},
}

// Compile turns a validated strategy into a driver-ready query. CSS
// strategies pass through; every other kind compiles to XPath 1.0.
func Compile(s schemas.Strategy) (Query, error) {
	if err := s.Validate(); err != nil {
		return Query{}, err
	}

	switch s.Type {
	case schemas.StrategyCSS:
		return Query{Kind: QueryCSS, Expr: s.Selector}, nil
	case schemas.StrategyTestID:
		return Query{Kind: QueryXPath, Expr: testIDXPath(s.Value)}, nil
	case schemas.StrategyRole:
		return Query{Kind: QueryXPath, Expr: roleXPath(s.Role, s.Name, s.Exact)}, nil
	case schemas.StrategyLabel:
		return Query{Kind: QueryXPath, Expr: labelXPath(s.Text, s.Exact)}, nil
	case schemas.StrategyPlaceholder:
		pred := textPredicate("@placeholder", s.Text, s.Exact)
		return Query{Kind: QueryXPath, Expr: fmt.Sprintf("//*[(self::input or self::textarea) and %s]", pred)}, nil
	case schemas.StrategyText:
		return Query{Kind: QueryXPath, Expr: textXPath(s.Text, s.Exact)}, nil
	case schemas.StrategyAltText:
		return Query{Kind: QueryXPath, Expr: fmt.Sprintf("//*[%s]", textPredicate("@alt", s.Text, s.Exact))}, nil
	case schemas.StrategyTitle:
		return Query{Kind: QueryXPath, Expr: fmt.Sprintf("//*[%s]", textPredicate("@title", s.Text, s.Exact))}, nil
	}
	return Query{}, fmt.Errorf("no compiler for strategy type %q", s.Type)
}

// testIDXPath matches any element carrying the value under one of the
// recognized test id attributes.
func testIDXPath(value string) string {
	lit := xpathLiteral(value)
	preds := make([]string, len(testIDAttrs))
	for i, attr := range testIDAttrs {
		preds[i] = fmt.Sprintf("@%s=%s", attr, lit)
	}
	return "//*[" + strings.Join(preds, " or ") + "]"
}

// roleXPath unions the implicit-role elements with explicit role attributes,
// optionally constrained by an accessible name.
func roleXPath(role, name string, exact bool) string {
	branches := make([]string, 0, 4)
	for _, tag := range implicitRoleTags[strings.ToLower(role)] {
		branches = append(branches, "//"+tag)
	}
	branches = append(branches, fmt.Sprintf("//*[@role=%s]", xpathLiteral(strings.ToLower(role))))

	if name == "" {
		return strings.Join(branches, " | ")
	}

	pred := accessibleNamePredicate(name, exact)
	for i, b := range branches {
		branches[i] = b + "[" + pred + "]"
	}
	return strings.Join(branches, " | ")
}

// accessibleNamePredicate approximates the accessible name computation over
// the attributes and content that commonly contribute to it.
func accessibleNamePredicate(name string, exact bool) string {
	sources := []string{"@aria-label", ".", "@title", "@alt", "@value"}
	preds := make([]string, len(sources))
	for i, src := range sources {
		preds[i] = textPredicate(src, name, exact)
	}
	return "(" + strings.Join(preds, " or ") + ")"
}

// labelXPath resolves a form control from its label text: for-association,
// label-wrapped controls, and direct aria-label matches.
func labelXPath(text string, exact bool) string {
	labelPred := textPredicate(".", text, exact)
	branches := []string{
		fmt.Sprintf("//*[@id = //label[%s]/@for]", labelPred),
		fmt.Sprintf("//label[%s]//*[self::input or self::textarea or self::select]", labelPred),
		fmt.Sprintf("//*[%s]", textPredicate("@aria-label", text, exact)),
	}
	return strings.Join(branches, " | ")
}

// textXPath matches the deepest elements whose normalized content matches,
// so a hit on a button's text does not also hit every ancestor.
func textXPath(text string, exact bool) string {
	pred := textPredicate(".", text, exact)
	return fmt.Sprintf("//*[%s and not(descendant::*[%s])]", pred, pred)
}

// textPredicate builds the match predicate for one text source. Exact means
// equality after whitespace normalization; otherwise a case-insensitive
// substring match.
func textPredicate(source, needle string, exact bool) string {
	normalized := fmt.Sprintf("normalize-space(%s)", source)
	if exact {
		return fmt.Sprintf("%s=%s", normalized, xpathLiteral(strings.Join(strings.Fields(needle), " ")))
	}
	folded := fmt.Sprintf("translate(%s, %s, %s)",
		normalized, xpathLiteral(upperAlpha), xpathLiteral(lowerAlpha))
	return fmt.Sprintf("contains(%s, %s)", folded, xpathLiteral(strings.ToLower(needle)))
}

// xpathLiteral quotes a string for embedding in an XPath expression. XPath
// 1.0 has no escape sequences, so strings containing both quote characters
// are assembled with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, part := range strings.Split(s, `"`) {
		if i > 0 {
			sb.WriteString(`, '"', `)
		}
		sb.WriteString(`"` + part + `"`)
	}
	sb.WriteString(")")
	return sb.String()
}
