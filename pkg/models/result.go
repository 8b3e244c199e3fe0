package models

// Per-batch handler outputs. Handlers return one of these per batch; the
// aggregators merge them into the job-level results below.

// RiskRecord is one dataset record's risk score, on a 0-100 scale.
type RiskRecord struct {
	RecordID        string   `json:"record_id,omitempty"`
	Score           float64  `json:"score"`
	Violations      int      `json:"violations"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// RiskBatchResult is the per-batch output of a large_dataset_risk_assessment handler.
type RiskBatchResult struct {
	Records []RiskRecord `json:"records"`
}

// PatternOutcome is one tested pattern's measurement within a single batch.
type PatternOutcome struct {
	Pattern      string  `json:"pattern"`
	Accuracy     float64 `json:"accuracy"`
	ProcessingMs float64 `json:"processing_ms"`
}

// PatternBatchResult is the per-batch output of a batch_pattern_validation handler.
type PatternBatchResult struct {
	Outcomes []PatternOutcome `json:"outcomes"`
}

// FrameworkOutcome holds one framework's per-record compliance scores within a batch.
type FrameworkOutcome struct {
	Framework    string    `json:"framework"`
	RecordScores []float64 `json:"record_scores"`
	Violations   int       `json:"violations"`
}

// ComplianceBatchResult is the per-batch output of a compliance_framework_analysis handler.
type ComplianceBatchResult struct {
	Frameworks []FrameworkOutcome `json:"frameworks"`
}

// Job-level aggregates.

// Risk distribution bucket names: low 0-25, medium 26-50, high 51-75,
// critical 76-100.
const (
	RiskBucketLow      = "low"
	RiskBucketMedium   = "medium"
	RiskBucketHigh     = "high"
	RiskBucketCritical = "critical"
)

// RiskAssessmentResult is the aggregated outcome of a batched risk assessment.
type RiskAssessmentResult struct {
	OverallScore     float64        `json:"overall_score"`
	RiskDistribution map[string]int `json:"risk_distribution"`
	TotalViolations  int            `json:"total_violations"`
	Recommendations  []string       `json:"recommendations"`
	RecordsProcessed int            `json:"records_processed"`
}

// PatternStats is the cross-batch mean for one tested pattern.
type PatternStats struct {
	MeanAccuracy     float64 `json:"mean_accuracy"`
	MeanProcessingMs float64 `json:"mean_processing_ms"`
	Samples          int     `json:"samples"`
}

// PatternValidationResult is the aggregated outcome of a pattern validation sweep.
type PatternValidationResult struct {
	Patterns map[string]PatternStats `json:"patterns"`
}

// FrameworkStats is the cross-batch aggregate for one compliance framework.
type FrameworkStats struct {
	AverageScore     float64 `json:"average_score"`
	RecordsEvaluated int     `json:"records_evaluated"`
	Violations       int     `json:"violations"`
}

// ComplianceAnalysisResult is the aggregated outcome of a framework analysis.
type ComplianceAnalysisResult struct {
	Frameworks map[string]FrameworkStats `json:"frameworks"`
}
