// internal/workers/communication/send-progress-report/templates.go
package sendprogressreport

import (
	"fmt"
	"html"
	"strings"

	"coaching-workers/internal/models"
)

var reportTemplate = models.NotificationTemplate{
	ID:      "progress-report",
	Type:    "progress_report",
	Version: "1",
	Subject: "Your {{followupLabel}} progress: {{improvementScore}}/100",
	Body: `Hi {{name}},

Your latest {{followupLabel}} follow-up scored {{improvementScore}}/100 ({{improvementBand}}).
Your diagnosis was prepared {{elapsed}}.
{{nextFollowup}}
Keep going. Your coach will review these results with you at the next session.`,
}

const smsTemplate = "Coaching update: your {{followupLabel}} score is {{improvementScore}}/100 ({{improvementBand}}). {{nextFollowup}}"

func followupLabel(t models.FollowupCategoryType) string {
	switch t {
	case models.FollowupTypePillar:
		return "pillar"
	case models.FollowupTypeWorkbook:
		return "workbook"
	default:
		return "coaching"
	}
}

// renderTemplate substitutes {{key}} placeholders and drops any left unresolved.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

func htmlBody(text string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(para))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
