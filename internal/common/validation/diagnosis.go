package validation

// DiagnosisSchema describes a DiagnosisResult as returned by the AI completion service.
// Every property is optional and may be null; unknown properties are tolerated.
const DiagnosisSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "summary": {"type": ["string", "null"]},
    "strengths": {"type": ["array", "null"], "items": {"type": "string"}},
    "challenges": {"type": ["array", "null"], "items": {"type": "string"}},
    "situationAnalysis": {
      "type": ["object", "null"],
      "properties": {
        "progressLevel": {"type": ["string", "null"]},
        "context": {"type": ["string", "null"]}
      }
    },
    "pillarRecommendations": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "pillar": {"type": ["string", "null"]},
          "recommendation": {"type": ["string", "null"]},
          "priority": {"type": ["string", "null"]}
        }
      }
    },
    "followupRecommendation": {
      "type": ["object", "null"],
      "properties": {
        "implementationProgress": {"type": ["string", "null"]},
        "nextSteps": {"type": ["array", "null"], "items": {"type": "string"}}
      }
    }
  }
}`

var diagnosisSchema = MustCompile(DiagnosisSchema)

// ValidateDiagnosisJSON checks a raw diagnosis document.
func ValidateDiagnosisJSON(raw string) *ValidationResult {
	return diagnosisSchema.ValidateJSON(raw)
}
