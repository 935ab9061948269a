// Package keywords assesses batches of monitoring keywords for spam before
// they are accepted into a scan configuration.
//
// The assessment is purely advisory: it mutates nothing and returns a
// structured verdict per call. Classifier outages degrade to a neutral
// per-keyword score rather than rejecting or hanging the request.
package keywords

import (
	"context"
	"log/slog"
	"math"

	"github.com/jgreer/markhound/internal/audit"
)

// RejectThreshold is the batch quality score below which the batch is
// considered spam-dominated and rejected.
const RejectThreshold = 0.3

const rejectMessage = "Keywords rejected: spam or low quality content"

// FlaggedKeyword annotates one spam-classified keyword.
type FlaggedKeyword struct {
	Keyword   string   `json:"keyword"`
	SpamScore float64  `json:"spamScore"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Assessment is the verdict for a keyword batch.
type Assessment struct {
	Allowed      bool             `json:"allowed"`
	QualityScore float64          `json:"qualityScore"`
	Flagged      []FlaggedKeyword `json:"flaggedKeywords"`
	Message      string           `json:"message,omitempty"`
}

// Assessor aggregates per-keyword classifier verdicts into a batch decision.
type Assessor struct {
	classifier Classifier
	audit      *audit.Emitter
	logger     *slog.Logger
}

// NewAssessor creates a batch assessor on top of classifier.
func NewAssessor(classifier Classifier, logger *slog.Logger) *Assessor {
	return &Assessor{classifier: classifier, logger: logger}
}

// WithAudit attaches an audit emitter for rejection events.
func (a *Assessor) WithAudit(emitter *audit.Emitter) *Assessor {
	a.audit = emitter
	return a
}

// Assess classifies each keyword and computes the batch quality score as
// the mean of per-keyword (1 - spamScore) contributions. A batch with some
// flagged items but acceptable overall quality is still allowed; only a
// spam-dominated batch is rejected.
func (a *Assessor) Assess(ctx context.Context, userID string, kws []string) *Assessment {
	if len(kws) == 0 {
		return &Assessment{Allowed: true, QualityScore: 1.0, Flagged: []FlaggedKeyword{}}
	}

	var qualitySum float64
	flagged := []FlaggedKeyword{}
	for _, kw := range kws {
		cls, err := a.classifier.Classify(ctx, kw)
		if err != nil {
			a.logger.Warn("keyword classification failed, using neutral score",
				"user", userID, "keyword", kw, "error", err)
			cls = neutralClassification()
		}
		qualitySum += 1 - cls.SpamScore
		if cls.IsSpam {
			flagged = append(flagged, FlaggedKeyword{
				Keyword:   kw,
				SpamScore: cls.SpamScore,
				Reasons:   cls.Reasons,
			})
		}
	}

	quality := roundTo(qualitySum/float64(len(kws)), 4)
	result := &Assessment{
		Allowed:      quality >= RejectThreshold,
		QualityScore: quality,
		Flagged:      flagged,
	}
	if !result.Allowed {
		result.Message = rejectMessage
		a.audit.EmitKeywordsRejected(userID, quality, len(flagged), len(kws))
		a.logger.Info("keyword batch rejected",
			"user", userID, "quality", quality, "flagged", len(flagged), "total", len(kws))
	}
	return result
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
