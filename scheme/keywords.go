package scheme

import "strings"

// =============================================================================
// NOTE KEYWORDS - Lines that document rather than pay
// =============================================================================

// noteKeywords marks a content line as a non-bonus annotation. A line
// mentioning any of these describes campaign mechanics (displays, targets,
// stock movements) rather than an individually payable bonus. Versioned
// with RulesVersion.
var noteKeywords = []string{
	"promotional",
	"inventory",
	"branch target",
	"cumulative",
	"display",
	"stock clearance",
	"subject to",
}

// isNote reports whether the line is an annotation. Matching is
// case-insensitive substring containment.
func isNote(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range noteKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
