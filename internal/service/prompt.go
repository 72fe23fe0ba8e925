package service

import (
	"fmt"
	"strings"

	"contextiq/internal/domain"
)

// SystemPrompt is sent with every generation call.
const SystemPrompt = "You are a helpful assistant."

const (
	noEvidenceAnswer      = "I could not find any relevant content in the ingested documents for this question."
	noEvidenceExplanation = "No supporting chunks retrieved; answer is likely ungrounded."
	scoreExplanation      = "Derived from cosine similarity between the question and retrieved chunks. " +
		"Higher scores mean the answer is better grounded in the source documents."
)

// combinedKeywords switch a question to a single answer over all documents.
// Matching is a case-insensitive substring test on English phrases only.
var combinedKeywords = []string{"these papers", "all papers", "combined", "together"}

// SelectMode picks combined mode when the query mentions any combined keyword.
func SelectMode(query string) domain.Mode {
	q := strings.ToLower(query)
	for _, kw := range combinedKeywords {
		if strings.Contains(q, kw) {
			return domain.ModeCombined
		}
	}
	return domain.ModePerDocument
}

// ComputeConfidence labels retrieval scores. The thresholds are a heuristic,
// not a calibrated probability.
func ComputeConfidence(scores []float64) domain.Confidence {
	if len(scores) == 0 {
		return domain.Confidence{Label: domain.ConfidenceLow, Explanation: noEvidenceExplanation}
	}
	maxScore, sum := scores[0], 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
		sum += s
	}
	avg := sum / float64(len(scores))

	label := domain.ConfidenceLow
	switch {
	case maxScore > 0.85 && avg > 0.65:
		label = domain.ConfidenceHigh
	case maxScore > 0.6 && avg > 0.4:
		label = domain.ConfidenceMedium
	}
	return domain.Confidence{Label: label, MaxScore: maxScore, AvgScore: avg, Explanation: scoreExplanation}
}

func combinedPrompt(evidence, query string) string {
	return fmt.Sprintf(`You are a research assistant answering questions over multiple documents.
Use ONLY the provided context and do not invent facts that are not supported by it.

Context:
%s

Question: %s
Answer (be concise but specific):
`, evidence, query)
}

func documentPrompt(evidence, query string) string {
	return fmt.Sprintf(`You are a research assistant answering questions about a single document.
Use ONLY the provided context from this document; if the answer is not present, say so explicitly.

Context:
%s

Question: %s
Answer (be concise but specific):
`, evidence, query)
}
