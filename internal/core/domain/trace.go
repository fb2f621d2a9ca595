package domain

import (
	"encoding/json"
	"time"
)

// TraceDocument is one decoded trace record fetched from the content store.
// Top-level keys are opaque section identifiers, values are either a record
// or an array of records.
type TraceDocument map[string]any

// CandidateSet is an ordered, deduplicated sequence of content addresses
// eligible for fetch. It is the source of truth for how many documents
// could be fetched for one question.
type CandidateSet []string

// NewCandidateSet deduplicates hashes preserving first-seen order and
// dropping empties.
func NewCandidateSet(hashes []string) CandidateSet {
	seen := make(map[string]struct{}, len(hashes))
	out := make(CandidateSet, 0, len(hashes))
	for _, h := range hashes {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Limit returns the first n candidates, or all of them when n <= 0 or
// exceeds the set size.
func (c CandidateSet) Limit(n int) CandidateSet {
	if n <= 0 || n >= len(c) {
		return c
	}
	return c[:n]
}

// RelevanceResult is the classifier's decision about which normalized
// (section, field) pairs matter for a question.
type RelevanceResult struct {
	HasRelevantData bool     `json:"has_relevant_data"`
	Keys            []string `json:"keys"`
	Explanation     string   `json:"explanation"`
}

// EvidenceBundle maps a content address to its already-serialized evidence:
// either the full document or a field projection. Entries are write-once.
type EvidenceBundle map[string]json.RawMessage

// Bytes returns the accumulated serialized size of all entries.
func (e EvidenceBundle) Bytes() int {
	total := 0
	for _, raw := range e {
		total += len(raw)
	}
	return total
}

// FetchReport accounts for one run of the fetch engine. SkippedBudget counts
// work never dispatched after budget exhaustion; Discarded counts in-flight
// results that arrived after the cutover and were dropped.
type FetchReport struct {
	Requested     int `json:"requested"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
	Truncated     int `json:"truncated"`
	SkippedBudget int `json:"skipped_budget"`
	Discarded     int `json:"discarded"`
	BytesUsed     int `json:"bytes_used"`
}

// StoreResult is a tabular metadata-store result. Column names are
// lowercased; values are stringified. An empty result is valid.
type StoreResult struct {
	Columns []string
	Rows    []map[string]string
}

func (r StoreResult) Empty() bool { return len(r.Rows) == 0 }

// HashColumn is the metadata column holding content addresses.
const HashColumn = "ttickhash"

// Hashes extracts the candidate content addresses from the result.
func (r StoreResult) Hashes() []string {
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		if h := row[HashColumn]; h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Outcome classifies how a pipeline run ended. Terminal non-answers
// (rejection, no matches, irrelevant data) are still valid answers with
// user-facing text, never errors.
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeRejected     Outcome = "rejected"
	OutcomeConfirmation Outcome = "confirmation_required"
	OutcomeNoMatches    Outcome = "no_matches"
	OutcomeIrrelevant   Outcome = "irrelevant_documents"
)

// Answer is the pipeline output for one question. When
// RequiresConfirmation is set, Text holds the confirmation request and the
// caller must re-invoke with auto-confirm to proceed.
type Answer struct {
	Outcome              Outcome           `json:"outcome"`
	Text                 string            `json:"text"`
	Filters              FilterSet         `json:"filters"`
	Corrections          map[string]string `json:"corrections,omitempty"`
	RequiresConfirmation bool              `json:"requires_confirmation"`
	Suggestion           string            `json:"suggestion,omitempty"`
	CandidateCount       int               `json:"candidate_count,omitempty"`
	RecommendedLimit     int               `json:"recommended_limit,omitempty"`
	Fetch                *FetchReport      `json:"fetch,omitempty"`
}

// TraceRecord is an ingestion request: a garment tickbar plus its raw trace
// document, to be uploaded to the content store and registered in the
// metadata store.
type TraceRecord struct {
	ID        string          `json:"id"`
	Tickbar   string          `json:"tickbar"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
}
