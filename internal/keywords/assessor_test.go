package keywords

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

// stubClassifier returns canned classifications by keyword.
type stubClassifier struct {
	verdicts map[string]*Classification
	err      error
}

func (s *stubClassifier) Classify(_ context.Context, keyword string) (*Classification, error) {
	if s.err != nil {
		return nil, s.err
	}
	if cls, ok := s.verdicts[keyword]; ok {
		return cls, nil
	}
	return &Classification{SpamScore: 0}, nil
}

func testAssessor(classifier Classifier) *Assessor {
	return NewAssessor(classifier, slog.Default())
}

func TestAssessCleanBatch(t *testing.T) {
	assessor := testAssessor(&stubClassifier{verdicts: map[string]*Classification{
		"official brand":    {SpamScore: 0.1},
		"authentic product": {SpamScore: 0.1},
		"genuine item":      {SpamScore: 0.1},
	}})

	result := assessor.Assess(context.Background(), "u1", []string{"official brand", "authentic product", "genuine item"})
	if !result.Allowed {
		t.Fatal("clean batch must be allowed")
	}
	if result.QualityScore <= 0.7 {
		t.Errorf("qualityScore = %v, want > 0.7", result.QualityScore)
	}
	if len(result.Flagged) != 0 {
		t.Errorf("flagged = %v, want none", result.Flagged)
	}
}

func TestAssessSpamDominatedBatch(t *testing.T) {
	assessor := testAssessor(&stubClassifier{verdicts: map[string]*Classification{
		"cheap replica": {IsSpam: true, SpamScore: 0.9, Reasons: []string{"counterfeit_term"}},
		"free v1agra":   {IsSpam: true, SpamScore: 0.95, Reasons: []string{"obfuscation"}},
		"BUY NOW!!!":    {IsSpam: true, SpamScore: 0.85, Reasons: []string{"promotional"}},
	}})

	result := assessor.Assess(context.Background(), "u1", []string{"cheap replica", "free v1agra", "BUY NOW!!!"})
	if result.Allowed {
		t.Fatal("spam-dominated batch must be rejected")
	}
	if result.QualityScore >= 0.3 {
		t.Errorf("qualityScore = %v, want < 0.3", result.QualityScore)
	}
	if len(result.Flagged) != 3 {
		t.Errorf("flagged %d keywords, want all 3", len(result.Flagged))
	}
	if result.Message == "" {
		t.Error("rejection must carry a message")
	}
}

func TestAssessMixedBatchAllowed(t *testing.T) {
	// One flagged keyword in an otherwise clean batch keeps the batch
	// above the reject threshold.
	assessor := testAssessor(&stubClassifier{verdicts: map[string]*Classification{
		"brand watch":   {SpamScore: 0.05},
		"luxury outlet": {IsSpam: true, SpamScore: 0.8, Reasons: []string{"promotional"}},
		"model number":  {SpamScore: 0.1},
	}})

	result := assessor.Assess(context.Background(), "u1", []string{"brand watch", "luxury outlet", "model number"})
	if !result.Allowed {
		t.Fatal("mixed batch with acceptable quality must be allowed")
	}
	if len(result.Flagged) != 1 || result.Flagged[0].Keyword != "luxury outlet" {
		t.Errorf("flagged = %v, want [luxury outlet]", result.Flagged)
	}
}

func TestAssessEmptyBatch(t *testing.T) {
	assessor := testAssessor(&stubClassifier{})

	result := assessor.Assess(context.Background(), "u1", nil)
	if !result.Allowed {
		t.Error("empty batch must be allowed")
	}
	if result.QualityScore != 1.0 {
		t.Errorf("qualityScore = %v, want 1.0", result.QualityScore)
	}
}

func TestAssessClassifierOutageFallsBackToNeutral(t *testing.T) {
	assessor := testAssessor(&stubClassifier{err: errors.New("connection refused")})

	result := assessor.Assess(context.Background(), "u1", []string{"alpha", "beta"})
	if !result.Allowed {
		t.Fatal("neutral fallback must not reject")
	}
	if result.QualityScore != 0.5 {
		t.Errorf("qualityScore = %v, want neutral 0.5", result.QualityScore)
	}
	if len(result.Flagged) != 0 {
		t.Error("unscored keywords must not be flagged as spam")
	}
}

func TestAssessQualityIsMeanOfContributions(t *testing.T) {
	assessor := testAssessor(&stubClassifier{verdicts: map[string]*Classification{
		"a": {SpamScore: 0.2},
		"b": {SpamScore: 0.6},
	}})

	result := assessor.Assess(context.Background(), "u1", []string{"a", "b"})
	if result.QualityScore != 0.6 {
		t.Errorf("qualityScore = %v, want 0.6 (mean of 0.8 and 0.4)", result.QualityScore)
	}
}
