// internal/stages/finalize-decision/schema.go
package finalizedecision

// recordSchema is the contract for the persisted assessment record. Downstream
// reporting consumes these rows directly, so the shape is validated before
// every insert rather than trusted.
const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": [
    "applicant_id",
    "eligibility_score",
    "decision",
    "confidence",
    "breakdown",
    "reasoning",
    "completed_at",
    "has_errors"
  ],
  "properties": {
    "applicant_id": { "type": "string", "minLength": 1 },
    "eligibility_score": { "type": "number", "minimum": 0, "maximum": 100 },
    "decision": { "type": "string", "enum": ["APPROVED", "UNDER_REVIEW", "DECLINED"] },
    "confidence": { "type": "string", "enum": ["HIGH", "MEDIUM", "LOW"] },
    "breakdown": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["factor", "points", "maxPoints"],
        "properties": {
          "factor": { "type": "string", "minLength": 1 },
          "points": { "type": "number" },
          "maxPoints": { "type": "number", "minimum": 0 },
          "detail": { "type": "string" }
        }
      }
    },
    "reasoning": { "type": "string" },
    "recommendations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["programId", "priority", "relevance"],
        "properties": {
          "programId": { "type": "string", "minLength": 1 },
          "name": { "type": "string" },
          "category": { "type": "string" },
          "relevance": { "type": "number", "minimum": 0, "maximum": 100 },
          "priority": { "type": "string", "enum": ["HIGH", "MEDIUM", "LOW"] },
          "reasoning": { "type": "string" }
        }
      }
    },
    "completed_at": { "type": "string", "format": "date-time" },
    "has_errors": { "type": "boolean" },
    "errors": { "type": "array", "items": { "type": "string" } }
  }
}`
