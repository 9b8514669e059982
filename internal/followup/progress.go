// internal/followup/progress.go
package followup

import "strings"

// DefaultProgressScore is returned when the text mentions no known progress keyword.
const DefaultProgressScore = 50

type progressRule struct {
	keywords []string
	score    int
}

// Order matters: the first rule with a matching keyword wins.
var progressRules = []progressRule{
	{keywords: []string{"excellent", "outstanding"}, score: 90},
	{keywords: []string{"good", "significant"}, score: 75},
	{keywords: []string{"moderate", "average"}, score: 50},
	{keywords: []string{"limited", "minimal"}, score: 30},
	{keywords: []string{"poor", "no progress"}, score: 10},
}

// ParseProgressLevel maps a free-text progress description onto a 0..100 score.
// Matching is a case-insensitive substring scan, so "not good" still scores 75.
func ParseProgressLevel(text string) int {
	lower := strings.ToLower(text)
	for _, rule := range progressRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.score
			}
		}
	}
	return DefaultProgressScore
}
