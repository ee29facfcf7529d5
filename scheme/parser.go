/*
Package scheme parses free-text ad-hoc incentive scheme announcements into
machine-evaluable records.

PURPOSE:
  Incentive schemes arrive as semi-structured prose pasted from circulars:

    *SCHEME 1: Festive Bonus
    Applicable to: RMs
    All RMs get Rs.2,000 on every booking
    Valid: 2025-09-01 - 2025-09-30

  This package turns that into engine.AdHocScheme records: role eligibility,
  validity window, and a bonus amount or note. It is a heuristic pattern
  matcher, deliberately pure: text in, records plus diagnostics out, no I/O.

PARSING MODEL:
  1. The text is split into blocks at "*SCHEME <n>:" markers.
  2. The block's first non-blank line (or the marker's own tail) is the
     scheme name, title-cased.
  3. "Applicable to:" and "Valid:" directives set the block's default roles
     and validity window. A missing or unparsable Valid directive falls back
     to the caller-supplied default window.
  4. Every remaining content line becomes one record: a note if it contains
     a note keyword, otherwise a bonus line with a fixed currency amount or
     a symbolic variable token.

FAILURE SEMANTICS:
  A malformed block is captured into the Invalid list with its scheme number
  and error; other blocks parse normally. Zero valid blocks is an input
  format error (ErrNoParsableSchemes).

RULESET VERSION:
  The keyword and alias tables are versioned (RulesVersion). Bump it when
  they change so stored diagnostics can be traced to the matcher that
  produced them.

SEE ALSO:
  - normalize.go: Role aliases, amount extraction, condition cleanup
  - keywords.go: Note keyword table
  - engine/adhoc.go: How parsed schemes are applied
*/
package scheme

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/warp/incentive-engine/engine"
)

// RulesVersion identifies the keyword/alias tables used by this parser.
const RulesVersion = 3

// ErrNoParsableSchemes is returned when no block parses validly.
var ErrNoParsableSchemes = errors.New("no parsable scheme blocks in input")

// Window is the validity window applied when a block has no usable
// "Valid:" directive.
type Window struct {
	From engine.Date
	To   engine.Date
}

// InvalidScheme is the per-block diagnostic for a malformed block.
type InvalidScheme struct {
	ID  int
	Err string
}

// ParseResult carries the valid records and the per-block diagnostics.
// Partial success is normal: both slices can be non-empty.
type ParseResult struct {
	Schemes []engine.AdHocScheme
	Invalid []InvalidScheme
}

// =============================================================================
// BLOCK SPLITTING
// =============================================================================

// markerRe matches a scheme marker line: one or more '*', the word SCHEME,
// a numeric identifier, optional colon, optional inline name.
var markerRe = regexp.MustCompile(`(?mi)^\s*\*+\s*SCHEME\s+(\d+)\s*:?[ \t]*(.*)$`)

type block struct {
	id     int
	inline string // name on the marker line itself, if any
	body   string // everything up to the next marker
}

// splitBlocks cuts the text at marker lines. Each block spans from its
// marker to the next marker or end of text (the non-greedy capture).
func splitBlocks(text string) []block {
	matches := markerRe.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]block, 0, len(matches))

	for i, m := range matches {
		id, _ := strconv.Atoi(text[m[2]:m[3]])
		inline := strings.TrimSpace(text[m[4]:m[5]])

		bodyStart := m[1]
		bodyEnd := len(text)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}

		blocks = append(blocks, block{
			id:     id,
			inline: inline,
			body:   text[bodyStart:bodyEnd],
		})
	}
	return blocks
}

// =============================================================================
// PARSE
// =============================================================================

// Parse converts raw scheme text into AdHocScheme records.
//
// Returns ErrNoParsableSchemes if the text contains no valid block at all;
// otherwise returns the valid records alongside per-block diagnostics.
func Parse(text string, defaults Window) (*ParseResult, error) {
	result := &ParseResult{}

	for _, b := range splitBlocks(text) {
		records, err := parseBlock(b, defaults)
		if err != nil {
			result.Invalid = append(result.Invalid, InvalidScheme{ID: b.id, Err: err.Error()})
			continue
		}
		result.Schemes = append(result.Schemes, records...)
	}

	if len(result.Schemes) == 0 {
		return nil, fmt.Errorf("%w (%d invalid blocks)", ErrNoParsableSchemes, len(result.Invalid))
	}
	return result, nil
}

var (
	applicableRe = regexp.MustCompile(`(?i)^applicable\s+to\s*:?\s*(.*)$`)
	validRe      = regexp.MustCompile(`(?i)^valid\s*:?\s*(.*)$`)
	notesHdrRe   = regexp.MustCompile(`(?i)^notes?\s*:?\s*$`)
	dateTokenRe  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

func parseBlock(b block, defaults Window) ([]engine.AdHocScheme, error) {
	name := b.inline
	window := engine.AdHocScheme{ValidFrom: defaults.From, ValidTo: defaults.To}
	defaultRoles := []string{engine.RoleAll}
	rolesExplicit := false

	var content []string
	for _, raw := range strings.Split(b.body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		// Directives are never a scheme name, even when they are the
		// first line after a bare marker.
		if m := applicableRe.FindStringSubmatch(line); m != nil {
			if roles := parseRoles(m[1]); len(roles) > 0 {
				defaultRoles = roles
				rolesExplicit = true
			}
			continue
		}
		if m := validRe.FindStringSubmatch(line); m != nil {
			from, to, ok := parseWindow(m[1])
			if ok {
				window.ValidFrom, window.ValidTo = from, to
			}
			// Unparsable directives keep the documented default window.
			continue
		}
		if notesHdrRe.MatchString(line) {
			continue
		}

		// The first non-directive line names the scheme when the marker
		// line itself did not.
		if name == "" {
			name = line
			continue
		}

		content = append(content, line)
	}

	if name == "" {
		return nil, fmt.Errorf("scheme block %d has no name", b.id)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("scheme block %d has no content lines", b.id)
	}

	title := titleCase(name)
	records := make([]engine.AdHocScheme, 0, len(content))

	for i, line := range content {
		rec := engine.AdHocScheme{
			ID:        engine.SchemeID(fmt.Sprintf("%d.%d", b.id, i+1)),
			Name:      title,
			Condition: cleanCondition(line),
			Roles:     defaultRoles,
			ValidFrom: window.ValidFrom,
			ValidTo:   window.ValidTo,
		}

		if isNote(line) {
			rec.Note = true
			if !rolesExplicit {
				rec.Roles = []string{engine.RoleAll}
			}
			records = append(records, rec)
			continue
		}

		if override := lineRoles(line); len(override) > 0 {
			rec.Roles = override
		}
		if amount, ok := extractAmount(line); ok {
			rec.Amount = &amount
		} else if v, ok := extractVariable(line); ok {
			rec.Variable = v
		} else {
			// A content line with no amount at all is treated as a note:
			// it documents, it cannot pay.
			rec.Note = true
		}
		records = append(records, rec)
	}

	return records, nil
}

// parseWindow extracts a validity window from a "Valid:" directive value.
// One date token means from == to; two mean a range.
func parseWindow(value string) (from, to engine.Date, ok bool) {
	tokens := dateTokenRe.FindAllString(value, 2)
	if len(tokens) == 0 {
		return engine.Date{}, engine.Date{}, false
	}

	from, err := engine.ParseDate(tokens[0])
	if err != nil {
		return engine.Date{}, engine.Date{}, false
	}
	to = from
	if len(tokens) == 2 {
		if parsed, err := engine.ParseDate(tokens[1]); err == nil {
			to = parsed
		}
	}
	if to.Before(from) {
		return engine.Date{}, engine.Date{}, false
	}
	return from, to, true
}
