package compliance_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rahulnat/sentinelq/internal/compliance"
	"github.com/rahulnat/sentinelq/internal/scheduler"
	"github.com/rahulnat/sentinelq/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(dataset []any, params map[string]any) scheduler.Task {
	return scheduler.Task{
		Type:    models.TypeSentimentAnalysis,
		Params:  params,
		Dataset: dataset,
	}
}

func TestRegisterAll(t *testing.T) {
	s := scheduler.New(nil)
	require.NoError(t, compliance.RegisterAll(s))

	// Every built-in type is now registered
	err := s.RegisterHandler(models.TypeLargeDatasetRiskAssessment, compliance.RiskAssessment)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateHandler)
	err = s.RegisterHandler(models.TypeBatchPatternValidation, compliance.PatternValidation)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateHandler)
	err = s.RegisterHandler(models.TypeComplianceFrameworkAnalysis, compliance.FrameworkAnalysis)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateHandler)
	err = s.RegisterHandler(models.TypeSentimentAnalysis, compliance.SentimentAnalysis)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateHandler)
	err = s.RegisterHandler(models.TypePIIScan, compliance.PIIScan)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateHandler)
}

func TestRegisterAll_ConflictSurfaces(t *testing.T) {
	s := scheduler.New(nil)
	require.NoError(t, s.RegisterHandler(models.TypePIIScan, compliance.PIIScan))

	err := compliance.RegisterAll(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateHandler)
}

// --- RiskAssessment ---

func TestRiskAssessment_Deterministic(t *testing.T) {
	ctx := context.Background()
	dataset := []any{"record-a", "record-b", "record-c"}

	first, err := compliance.RiskAssessment(ctx, task(dataset, nil))
	require.NoError(t, err)
	second, err := compliance.RiskAssessment(ctx, task(dataset, nil))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	result, ok := first.(models.RiskBatchResult)
	require.True(t, ok)
	require.Len(t, result.Records, 3)
	for _, rec := range result.Records {
		assert.GreaterOrEqual(t, rec.Score, float64(0))
		assert.LessOrEqual(t, rec.Score, float64(100))
		if rec.Score > 75 {
			assert.Equal(t, 1, rec.Violations)
			assert.NotEmpty(t, rec.Recommendations)
		} else {
			assert.Zero(t, rec.Violations)
		}
	}
}

func TestRiskAssessment_RecordIDsCarryBatchNumber(t *testing.T) {
	tk := task([]any{"x", "y"}, nil)
	tk.BatchNumber = 3

	out, err := compliance.RiskAssessment(context.Background(), tk)
	require.NoError(t, err)
	result := out.(models.RiskBatchResult)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "b3-r0", result.Records[0].RecordID)
	assert.Equal(t, "b3-r1", result.Records[1].RecordID)
}

func TestRiskAssessment_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := compliance.RiskAssessment(ctx, task([]any{"x"}, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

// --- PatternValidation ---

func TestPatternValidation_BuiltinPatterns(t *testing.T) {
	dataset := []any{
		"contact: alice@example.com",
		"ssn on file: 123-45-6789",
		"no sensitive content here",
		"reach me at bob@corp.io or 555-867-5309",
	}
	tk := task(dataset, map[string]any{"patterns": []any{"email", "ssn", "phone"}})

	out, err := compliance.PatternValidation(context.Background(), tk)
	require.NoError(t, err)
	result, ok := out.(models.PatternBatchResult)
	require.True(t, ok)
	require.Len(t, result.Outcomes, 3)

	byPattern := map[string]models.PatternOutcome{}
	for _, o := range result.Outcomes {
		byPattern[o.Pattern] = o
	}
	assert.InDelta(t, 0.5, byPattern["email"].Accuracy, 1e-9)
	assert.InDelta(t, 0.25, byPattern["ssn"].Accuracy, 1e-9)
	assert.InDelta(t, 0.25, byPattern["phone"].Accuracy, 1e-9)
	assert.InDelta(t, 0.2, byPattern["email"].ProcessingMs, 1e-9)
}

func TestPatternValidation_CustomRegex(t *testing.T) {
	tk := task([]any{"order-123", "order-456", "invoice-789"},
		map[string]any{"patterns": []string{`order-\d+`}})

	out, err := compliance.PatternValidation(context.Background(), tk)
	require.NoError(t, err)
	result := out.(models.PatternBatchResult)
	require.Len(t, result.Outcomes, 1)
	assert.InDelta(t, 2.0/3.0, result.Outcomes[0].Accuracy, 1e-9)
}

func TestPatternValidation_InvalidPatternSkipped(t *testing.T) {
	tk := task([]any{"anything"}, map[string]any{"patterns": []string{"(", "email"}})

	out, err := compliance.PatternValidation(context.Background(), tk)
	require.NoError(t, err)
	result := out.(models.PatternBatchResult)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "email", result.Outcomes[0].Pattern)
}

func TestPatternValidation_NoPatterns(t *testing.T) {
	out, err := compliance.PatternValidation(context.Background(), task([]any{"x"}, nil))
	require.NoError(t, err)
	result := out.(models.PatternBatchResult)
	assert.Empty(t, result.Outcomes)
}

// --- FrameworkAnalysis ---

func TestFrameworkAnalysis_DefaultFrameworks(t *testing.T) {
	out, err := compliance.FrameworkAnalysis(context.Background(), task([]any{"r1", "r2"}, nil))
	require.NoError(t, err)
	result, ok := out.(models.ComplianceBatchResult)
	require.True(t, ok)
	require.Len(t, result.Frameworks, 3)

	names := []string{result.Frameworks[0].Framework, result.Frameworks[1].Framework, result.Frameworks[2].Framework}
	assert.Equal(t, []string{"gdpr", "hipaa", "pci_dss"}, names)
	for _, fw := range result.Frameworks {
		assert.Len(t, fw.RecordScores, 2)
	}
}

func TestFrameworkAnalysis_ExplicitFrameworks(t *testing.T) {
	tk := task([]any{"r1"}, map[string]any{"frameworks": []any{"soc2"}})

	out, err := compliance.FrameworkAnalysis(context.Background(), tk)
	require.NoError(t, err)
	result := out.(models.ComplianceBatchResult)
	require.Len(t, result.Frameworks, 1)
	assert.Equal(t, "soc2", result.Frameworks[0].Framework)
}

func TestFrameworkAnalysis_ScoresVaryByFramework(t *testing.T) {
	out, err := compliance.FrameworkAnalysis(context.Background(), task([]any{"same-record"}, nil))
	require.NoError(t, err)
	result := out.(models.ComplianceBatchResult)

	// The framework name feeds the score, so identical records produce
	// different per-framework scores.
	scores := map[float64]bool{}
	for _, fw := range result.Frameworks {
		scores[fw.RecordScores[0]] = true
	}
	assert.Greater(t, len(scores), 1)
}

// --- SentimentAnalysis ---

func TestSentimentAnalysis_Polarity(t *testing.T) {
	dataset := []any{
		"this product is great and I love it", // +2
		"terrible experience, really bad",     // -2
		"neutral statement",                   // 0
	}
	out, err := compliance.SentimentAnalysis(context.Background(), task(dataset, nil))
	require.NoError(t, err)

	result, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, result["records_processed"])
	assert.InDelta(t, 0.0, result["mean_polarity"].(float64), 1e-9)
}

func TestSentimentAnalysis_ReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var stages []string
	tk := task([]any{"good"}, nil)
	tk.Report = func(progress int, stage string) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, stage)
	}

	out, err := compliance.SentimentAnalysis(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, []string{"analyzing", "finalizing"}, stages)

	result := out.(map[string]any)
	assert.InDelta(t, 1.0, result["mean_polarity"].(float64), 1e-9)
}

func TestSentimentAnalysis_NilReportSafe(t *testing.T) {
	out, err := compliance.SentimentAnalysis(context.Background(), task(nil, nil))
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, 0, result["records_processed"])
	assert.InDelta(t, 0.0, result["mean_polarity"].(float64), 1e-9)
}

// --- PIIScan ---

func TestPIIScan_Findings(t *testing.T) {
	dataset := []any{
		"email alice@example.com and ssn 123-45-6789",
		"call 555.867.5309",
		"nothing sensitive",
	}
	out, err := compliance.PIIScan(context.Background(), task(dataset, nil))
	require.NoError(t, err)

	result, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, result["records_scanned"])

	findings := result["findings"].([]map[string]any)
	require.Len(t, findings, 2)
	assert.Equal(t, 0, findings[0]["record_index"])
	assert.ElementsMatch(t, []string{"email", "ssn"}, findings[0]["kinds"])
	assert.Equal(t, 1, findings[1]["record_index"])
	assert.Equal(t, []string{"phone"}, findings[1]["kinds"])
}

func TestPIIScan_CleanDataset(t *testing.T) {
	out, err := compliance.PIIScan(context.Background(), task([]any{"hello", "world"}, nil))
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Empty(t, result["findings"])
}
