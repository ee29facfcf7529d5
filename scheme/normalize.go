/*
normalize.go - Role aliases, amount extraction, and condition cleanup

PURPOSE:
  The lookup tables and regexes that turn free-text phrases into the
  engine's canonical vocabulary. These are heuristics: they match what
  circular authors actually write, and unmatched tokens pass through
  verbatim rather than being dropped.

SEE ALSO:
  - parser.go: Caller
  - keywords.go: Note keyword table
*/
package scheme

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// ROLE NORMALIZATION
// =============================================================================

// roleAliases maps free-text role phrases to canonical role tokens.
// "ALL" is the wildcard. Versioned with RulesVersion.
var roleAliases = map[string]string{
	"RM":            "RM",
	"RMS":           "RM",
	"ASM":           "ASM",
	"ASMS":          "ASM",
	"EMPLOYEE":      "ALL",
	"EMPLOYEES":     "ALL",
	"ALL EMPLOYEES": "ALL",
	"ALL ROLES":     "ALL",
	"EVERYONE":      "ALL",
	"STAFF":         "ALL",
	"ALL":           "ALL",
}

var roleSplitRe = regexp.MustCompile(`(?i)\s*(?:,|&|\band\b|/)\s*`)

// parseRoles normalizes an "Applicable to:" directive value into canonical
// role tokens. Unmatched phrases pass through verbatim (upper-cased), so a
// role the table does not know still round-trips.
func parseRoles(value string) []string {
	var roles []string
	seen := make(map[string]bool)
	for _, part := range roleSplitRe.Split(value, -1) {
		token := strings.ToUpper(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		if canonical, ok := roleAliases[token]; ok {
			token = canonical
		}
		if !seen[token] {
			seen[token] = true
			roles = append(roles, token)
		}
	}
	return roles
}

var wordRe = regexp.MustCompile(`[A-Za-z]+`)

// lineRoles extracts a role override from a content line that names roles
// itself ("All RMs get ..."). Specific roles win over wildcard phrasing;
// with no recognized role word the line inherits the block default.
func lineRoles(line string) []string {
	var specific []string
	wildcard := false
	seen := make(map[string]bool)

	for _, word := range wordRe.FindAllString(line, -1) {
		canonical, ok := roleAliases[strings.ToUpper(word)]
		if !ok {
			continue
		}
		if canonical == "ALL" {
			wildcard = true
			continue
		}
		if !seen[canonical] {
			seen[canonical] = true
			specific = append(specific, canonical)
		}
	}

	if len(specific) > 0 {
		return specific
	}
	if wildcard {
		return []string{"ALL"}
	}
	return nil
}

// =============================================================================
// AMOUNT EXTRACTION
// =============================================================================

// amountRe matches a currency-marked integer: ₹2,000 / Rs. 2000 / INR 2000.
// The word boundaries keep the "rs" tail of words like "performers" from
// reading as a currency marker.
var amountRe = regexp.MustCompile(`(?i)(?:₹|\bRs\.?|\bINR)\s*([0-9][0-9,]*)`)

// variableRe matches symbolic amount tokens kept as text: "2x", "Variable",
// "TBD". These never contribute to a numeric total.
var variableRe = regexp.MustCompile(`(?i)\b(\d+x|variable|tbd)\b`)

// extractAmount pulls a fixed bonus amount out of a line, stripping
// thousands separators.
func extractAmount(line string) (decimal.Decimal, bool) {
	m := amountRe.FindStringSubmatch(line)
	if m == nil {
		return decimal.Decimal{}, false
	}
	digits := strings.ReplaceAll(m[1], ",", "")
	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amount, true
}

// extractVariable pulls a symbolic multiplier token out of a line.
func extractVariable(line string) (string, bool) {
	m := variableRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// =============================================================================
// TEXT CLEANUP
// =============================================================================

var (
	markupReplacer = strings.NewReplacer("*", "", "#", "", "`", "", "_", " ")
	titleCaser     = cases.Title(language.English)
)

// cleanCondition turns a raw content line into a human-readable condition
// string: markup stripped, underscores to spaces, whitespace collapsed.
func cleanCondition(line string) string {
	return strings.Join(strings.Fields(markupReplacer.Replace(line)), " ")
}

// titleCase renders a scheme name in display casing.
func titleCase(name string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(name)))
}
