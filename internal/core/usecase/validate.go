package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
)

var mutationKeywords = []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE"}

var apologyPhrases = []string{
	"lo siento",
	"no puedo",
	"no es posible",
	"disculpa",
	"error",
	"i'm sorry",
	"i cannot",
}

// ValidateStoreInstruction accepts only read-only single-statement queries.
func ValidateStoreInstruction(instruction string) (bool, string) {
	upper := strings.ToUpper(strings.TrimSpace(instruction))
	if upper == "" {
		return false, "la consulta esta vacia"
	}
	if !strings.HasPrefix(upper, "SELECT") {
		return false, "la consulta debe comenzar con SELECT"
	}
	if !strings.Contains(upper, "FROM") {
		return false, "la consulta no contiene clausula FROM"
	}
	for _, kw := range mutationKeywords {
		if strings.Contains(upper, kw) {
			return false, fmt.Sprintf("la consulta contiene la palabra prohibida %s", kw)
		}
	}
	return true, ""
}

// ValidatePlanPayload accepts a JSON object carrying the plan fields. A
// non-empty query instruction must itself pass the read-only check.
func ValidatePlanPayload(payload string) (bool, string) {
	var probe struct {
		Reasoning          *string `json:"reasoning"`
		QueryInstruction   *string `json:"query_instruction"`
		NeedsDocumentFetch *bool   `json:"needs_document_fetch"`
		DocumentLimit      *int    `json:"document_limit"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(payload)), &probe); err != nil {
		return false, "el plan no es un objeto JSON valido: " + err.Error()
	}
	if probe.NeedsDocumentFetch == nil {
		return false, "el plan no contiene el campo needs_document_fetch"
	}
	if probe.DocumentLimit != nil && *probe.DocumentLimit < 0 {
		return false, "document_limit no puede ser negativo"
	}
	if probe.QueryInstruction != nil && strings.TrimSpace(*probe.QueryInstruction) != "" {
		if ok, reason := ValidateStoreInstruction(*probe.QueryInstruction); !ok {
			return false, reason
		}
	}
	return true, ""
}

// ValidateRelevancePayload accepts a JSON verdict carrying
// has_relevant_data; a relevant verdict must name at least one key.
func ValidateRelevancePayload(payload string) (bool, string) {
	var probe struct {
		HasRelevantData *bool    `json:"has_relevant_data"`
		Keys            []string `json:"keys"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(payload)), &probe); err != nil {
		return false, "el veredicto de relevancia no es un objeto JSON valido: " + err.Error()
	}
	if probe.HasRelevantData == nil {
		return false, "el veredicto no contiene el campo has_relevant_data"
	}
	if *probe.HasRelevantData && len(probe.Keys) == 0 {
		return false, "has_relevant_data es true pero keys esta vacio"
	}
	return true, ""
}

// ValidateAnswerText rejects empty answers and short outputs that are mostly
// apology or error phrasing.
func ValidateAnswerText(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 5 {
		return false, "la respuesta es demasiado corta"
	}
	if len(trimmed) < 100 {
		lower := strings.ToLower(trimmed)
		for _, phrase := range apologyPhrases {
			if strings.Contains(lower, phrase) {
				return false, "la respuesta corta parece una disculpa o un error"
			}
		}
	}
	return true, ""
}

// extractJSONObject trims any prose the oracle wraps around a JSON object.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
