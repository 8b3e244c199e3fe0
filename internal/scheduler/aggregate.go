package scheduler

import (
	"encoding/json"
	"sort"

	"github.com/rahulnat/sentinelq/pkg/models"
)

// canonicalBatchResult normalizes whatever a handler returned into the typed
// per-batch result for the job type. Malformed or absent output degrades to
// an empty result rather than poisoning the aggregate.
func canonicalBatchResult(jobType models.JobType, v any) any {
	switch jobType {
	case models.TypeLargeDatasetRiskAssessment:
		return asBatchResult[models.RiskBatchResult](v)
	case models.TypeBatchPatternValidation:
		return asBatchResult[models.PatternBatchResult](v)
	case models.TypeComplianceFrameworkAnalysis:
		return asBatchResult[models.ComplianceBatchResult](v)
	default:
		return v
	}
}

// decodeCachedBatchResult restores a memoized batch result from its JSON form.
func decodeCachedBatchResult(jobType models.JobType, data []byte) (any, error) {
	switch jobType {
	case models.TypeLargeDatasetRiskAssessment:
		var r models.RiskBatchResult
		err := json.Unmarshal(data, &r)
		return r, err
	case models.TypeBatchPatternValidation:
		var r models.PatternBatchResult
		err := json.Unmarshal(data, &r)
		return r, err
	case models.TypeComplianceFrameworkAnalysis:
		var r models.ComplianceBatchResult
		err := json.Unmarshal(data, &r)
		return r, err
	default:
		var r any
		err := json.Unmarshal(data, &r)
		return r, err
	}
}

// asBatchResult coerces v to T directly when possible, falling back to a
// JSON round trip for loosely-typed handler output.
func asBatchResult[T any](v any) T {
	var out T
	switch r := v.(type) {
	case T:
		return r
	case *T:
		if r != nil {
			return *r
		}
		return out
	case nil:
		return out
	}
	if data, err := json.Marshal(v); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

// aggregateJob merges per-batch results into one job-level result using the
// job type's aggregation rules. Batches may have completed in any order;
// merging follows batch numbering, not completion order.
func aggregateJob(job *models.Job, batches []*models.JobBatch) (any, error) {
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].BatchNumber < batches[j].BatchNumber
	})
	switch job.Type {
	case models.TypeLargeDatasetRiskAssessment:
		return aggregateRiskAssessment(batches), nil
	case models.TypeBatchPatternValidation:
		return aggregatePatternValidation(job, batches), nil
	case models.TypeComplianceFrameworkAnalysis:
		return aggregateComplianceAnalysis(batches), nil
	default:
		results := make([]any, 0, len(batches))
		for _, b := range batches {
			results = append(results, b.Result)
		}
		return results, nil
	}
}

// riskBucket places a 0-100 score into its distribution bucket.
func riskBucket(score float64) string {
	switch {
	case score <= 25:
		return models.RiskBucketLow
	case score <= 50:
		return models.RiskBucketMedium
	case score <= 75:
		return models.RiskBucketHigh
	default:
		return models.RiskBucketCritical
	}
}

func aggregateRiskAssessment(batches []*models.JobBatch) *models.RiskAssessmentResult {
	agg := &models.RiskAssessmentResult{
		RiskDistribution: map[string]int{
			models.RiskBucketLow:      0,
			models.RiskBucketMedium:   0,
			models.RiskBucketHigh:     0,
			models.RiskBucketCritical: 0,
		},
		Recommendations: []string{},
	}
	var scoreSum float64
	for _, b := range batches {
		r := asBatchResult[models.RiskBatchResult](b.Result)
		for _, rec := range r.Records {
			agg.RiskDistribution[riskBucket(rec.Score)]++
			agg.TotalViolations += rec.Violations
			agg.Recommendations = append(agg.Recommendations, rec.Recommendations...)
			scoreSum += rec.Score
			agg.RecordsProcessed++
		}
	}
	if agg.RecordsProcessed > 0 {
		agg.OverallScore = scoreSum / float64(agg.RecordsProcessed)
	}
	return agg
}

func aggregatePatternValidation(job *models.Job, batches []*models.JobBatch) *models.PatternValidationResult {
	type acc struct {
		accuracy   float64
		processing float64
		samples    int
	}
	accs := make(map[string]*acc)
	order := []string{}

	track := func(pattern string) *acc {
		a, ok := accs[pattern]
		if !ok {
			a = &acc{}
			accs[pattern] = a
			order = append(order, pattern)
		}
		return a
	}

	// Patterns declared on the job contribute zero stats even when no batch
	// produced a result for them.
	for _, p := range declaredPatterns(job) {
		track(p)
	}
	for _, b := range batches {
		r := asBatchResult[models.PatternBatchResult](b.Result)
		for _, o := range r.Outcomes {
			a := track(o.Pattern)
			a.accuracy += o.Accuracy
			a.processing += o.ProcessingMs
			a.samples++
		}
	}

	result := &models.PatternValidationResult{Patterns: make(map[string]models.PatternStats, len(order))}
	for _, p := range order {
		a := accs[p]
		stats := models.PatternStats{Samples: a.samples}
		if a.samples > 0 {
			stats.MeanAccuracy = a.accuracy / float64(a.samples)
			stats.MeanProcessingMs = a.processing / float64(a.samples)
		}
		result.Patterns[p] = stats
	}
	return result
}

// declaredPatterns pulls the pattern list from the job payload, tolerating
// both []string and []any encodings.
func declaredPatterns(job *models.Job) []string {
	raw, ok := job.Data.Params["patterns"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func aggregateComplianceAnalysis(batches []*models.JobBatch) *models.ComplianceAnalysisResult {
	type acc struct {
		scoreSum   float64
		records    int
		violations int
	}
	accs := make(map[string]*acc)
	for _, b := range batches {
		r := asBatchResult[models.ComplianceBatchResult](b.Result)
		for _, f := range r.Frameworks {
			a, ok := accs[f.Framework]
			if !ok {
				a = &acc{}
				accs[f.Framework] = a
			}
			for _, score := range f.RecordScores {
				a.scoreSum += score
				a.records++
			}
			a.violations += f.Violations
		}
	}

	result := &models.ComplianceAnalysisResult{Frameworks: make(map[string]models.FrameworkStats, len(accs))}
	for name, a := range accs {
		stats := models.FrameworkStats{
			RecordsEvaluated: a.records,
			Violations:       a.violations,
		}
		if a.records > 0 {
			stats.AverageScore = a.scoreSum / float64(a.records)
		}
		result.Frameworks[name] = stats
	}
	return result
}
