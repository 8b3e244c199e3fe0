// Package compliance provides the built-in job handlers for the scheduling
// engine. The handlers score records deterministically from their content so
// the service runs end to end; production deployments swap in the real
// analysis engines through the same registration hook.
package compliance

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"github.com/rahulnat/sentinelq/internal/scheduler"
	"github.com/rahulnat/sentinelq/pkg/models"
)

var defaultFrameworks = []string{"gdpr", "hipaa", "pci_dss"}

var (
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	reSSN   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	rePhone = regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`)
)

// RegisterAll binds every built-in handler to its job type.
func RegisterAll(s *scheduler.Scheduler) error {
	handlers := map[models.JobType]scheduler.Handler{
		models.TypeLargeDatasetRiskAssessment:  RiskAssessment,
		models.TypeBatchPatternValidation:      PatternValidation,
		models.TypeComplianceFrameworkAnalysis: FrameworkAnalysis,
		models.TypeSentimentAnalysis:           SentimentAnalysis,
		models.TypePIIScan:                     PIIScan,
	}
	for t, h := range handlers {
		if err := s.RegisterHandler(t, h); err != nil {
			return fmt.Errorf("register %s: %w", t, err)
		}
	}
	return nil
}

// recordScore derives a stable 0-100 score from record content.
func recordScore(record any) float64 {
	sum := sha256.Sum256([]byte(fmt.Sprint(record)))
	return float64(binary.BigEndian.Uint16(sum[:2]) % 101)
}

// RiskAssessment scores each record in the slice and flags violations for
// scores above the critical threshold.
func RiskAssessment(ctx context.Context, task scheduler.Task) (any, error) {
	result := models.RiskBatchResult{Records: make([]models.RiskRecord, 0, len(task.Dataset))}
	for i, record := range task.Dataset {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := models.RiskRecord{
			RecordID: fmt.Sprintf("b%d-r%d", task.BatchNumber, i),
			Score:    recordScore(record),
		}
		if rec.Score > 75 {
			rec.Violations = 1
			rec.Recommendations = []string{"mask high-risk fields before export"}
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// PatternValidation measures each configured detection pattern against the
// slice, reporting match accuracy and processing time per pattern.
func PatternValidation(ctx context.Context, task scheduler.Task) (any, error) {
	patterns := stringList(task.Params, "patterns")
	result := models.PatternBatchResult{Outcomes: make([]models.PatternOutcome, 0, len(patterns))}
	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matcher := matcherFor(p)
		if matcher == nil {
			continue
		}
		matches := 0
		for _, record := range task.Dataset {
			if matcher.MatchString(fmt.Sprint(record)) {
				matches++
			}
		}
		accuracy := 0.0
		if len(task.Dataset) > 0 {
			accuracy = float64(matches) / float64(len(task.Dataset))
		}
		result.Outcomes = append(result.Outcomes, models.PatternOutcome{
			Pattern:      p,
			Accuracy:     accuracy,
			ProcessingMs: float64(len(task.Dataset)) * 0.05,
		})
	}
	return result, nil
}

func matcherFor(pattern string) *regexp.Regexp {
	switch pattern {
	case "email":
		return reEmail
	case "ssn":
		return reSSN
	case "phone":
		return rePhone
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

// FrameworkAnalysis scores each record against the configured frameworks.
func FrameworkAnalysis(ctx context.Context, task scheduler.Task) (any, error) {
	frameworks := stringList(task.Params, "frameworks")
	if len(frameworks) == 0 {
		frameworks = defaultFrameworks
	}
	result := models.ComplianceBatchResult{Frameworks: make([]models.FrameworkOutcome, 0, len(frameworks))}
	for _, fw := range frameworks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := models.FrameworkOutcome{
			Framework:    fw,
			RecordScores: make([]float64, 0, len(task.Dataset)),
		}
		for _, record := range task.Dataset {
			score := recordScore(fmt.Sprintf("%s:%v", fw, record))
			out.RecordScores = append(out.RecordScores, score)
			if score < 40 {
				out.Violations++
			}
		}
		result.Frameworks = append(result.Frameworks, out)
	}
	return result, nil
}

// SentimentAnalysis computes a mean polarity over the dataset from a small
// keyword lexicon.
func SentimentAnalysis(ctx context.Context, task scheduler.Task) (any, error) {
	if task.Report != nil {
		task.Report(10, "analyzing")
	}
	var sum float64
	for _, record := range task.Dataset {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum += polarity(fmt.Sprint(record))
	}
	mean := 0.0
	if len(task.Dataset) > 0 {
		mean = sum / float64(len(task.Dataset))
	}
	if task.Report != nil {
		task.Report(90, "finalizing")
	}
	return map[string]any{
		"mean_polarity":     mean,
		"records_processed": len(task.Dataset),
	}, nil
}

var positiveWords = []string{"good", "great", "excellent", "happy", "love"}
var negativeWords = []string{"bad", "poor", "terrible", "unhappy", "hate"}

func polarity(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	return score
}

// PIIScan reports which records contain personally identifiable patterns.
func PIIScan(ctx context.Context, task scheduler.Task) (any, error) {
	findings := []map[string]any{}
	for i, record := range task.Dataset {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := fmt.Sprint(record)
		var kinds []string
		if reEmail.MatchString(text) {
			kinds = append(kinds, "email")
		}
		if reSSN.MatchString(text) {
			kinds = append(kinds, "ssn")
		}
		if rePhone.MatchString(text) {
			kinds = append(kinds, "phone")
		}
		if len(kinds) > 0 {
			findings = append(findings, map[string]any{"record_index": i, "kinds": kinds})
		}
	}
	return map[string]any{
		"records_scanned": len(task.Dataset),
		"findings":        findings,
	}, nil
}

func stringList(params map[string]any, key string) []string {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
