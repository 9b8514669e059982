// internal/workers/followup/generate-diagnosis/prompt.go
package generatediagnosis

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"coaching-workers/internal/models"
)

func buildPrompt(input *Input) string {
	var parts []string

	parts = append(parts, "You are an experienced business coach reviewing a client's follow-up worksheet.")

	switch input.FollowupType {
	case models.FollowupTypePillar:
		parts = append(parts, fmt.Sprintf("The worksheet covers the %q pillar.", input.Pillar))
	case models.FollowupTypeWorkbook:
		parts = append(parts, "The worksheet is a workbook follow-up on actions agreed in earlier sessions.")
	}

	if len(input.Answers) > 0 {
		parts = append(parts, "\nClient answers:")
		for _, q := range slices.Sorted(maps.Keys(input.Answers)) {
			parts = append(parts, fmt.Sprintf("- %s: %v", q, input.Answers[q]))
		}
	}

	if input.PreviousDiagnosis != nil {
		prev, _ := json.MarshalIndent(input.PreviousDiagnosis, "", "  ")
		parts = append(parts, "\nPrevious diagnosis:")
		parts = append(parts, string(prev))
	}

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Reply with a single JSON object and nothing else")
	parts = append(parts, `- Include "summary", "strengths" and "challenges" (arrays of short strings)`)
	parts = append(parts, `- Include "situationAnalysis.progressLevel" using one of: excellent, good, moderate, limited, poor`)

	switch input.FollowupType {
	case models.FollowupTypePillar:
		parts = append(parts, `- Include "pillarRecommendations" as objects with "pillar", "recommendation" and "priority"`)
	case models.FollowupTypeWorkbook:
		parts = append(parts, `- Include "followupRecommendation.implementationProgress" using the same scale, plus "nextSteps"`)
	}

	if input.PreviousDiagnosis != nil {
		parts = append(parts, "- Compare against the previous diagnosis when judging progress")
	}

	return strings.Join(parts, "\n")
}

// extractJSONObject returns the outermost JSON object in a model reply,
// ignoring any prose or code fences around it.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
