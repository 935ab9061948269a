package admission

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jgreer/markhound/internal/keywords"
	"github.com/jgreer/markhound/internal/plan"
	"github.com/jgreer/markhound/internal/ratelimit"
	"github.com/jgreer/markhound/internal/scanpattern"
)

// fixedClassifier scores every keyword identically.
type fixedClassifier struct {
	cls keywords.Classification
}

func (f *fixedClassifier) Classify(context.Context, string) (*keywords.Classification, error) {
	cls := f.cls
	return &cls, nil
}

type fixture struct {
	validator *Validator
	counter   *ratelimit.MemoryCounter
	activity  *scanpattern.MemoryProvider
	now       time.Time
}

func newFixture(cls keywords.Classification) *fixture {
	logger := slog.Default()
	counter := ratelimit.NewMemoryCounter()
	now := time.Now()
	limiter := ratelimit.NewLimiter(counter, logger).WithClock(func() time.Time { return now })
	assessor := keywords.NewAssessor(&fixedClassifier{cls: cls}, logger)
	activity := scanpattern.NewMemoryProvider()
	analyzer := scanpattern.NewAnalyzer(activity, logger)
	return &fixture{
		validator: NewValidator(limiter, assessor, analyzer, logger),
		counter:   counter,
		activity:  activity,
		now:       now,
	}
}

func (f *fixture) burnQuota(t *testing.T, userID, action string, n int) {
	t.Helper()
	key := counterKeyForTest(userID, action, f.now)
	for i := 0; i < n; i++ {
		if _, err := f.counter.Incr(context.Background(), key, ratelimit.Window); err != nil {
			t.Fatalf("seed counter: %v", err)
		}
	}
}

func counterKeyForTest(userID, action string, now time.Time) string {
	windowStart := now.Truncate(ratelimit.Window)
	return fmt.Sprintf("rl:%s:%s:%d", userID, action, windowStart.Unix())
}

func TestValidateAllClear(t *testing.T) {
	f := newFixture(keywords.Classification{SpamScore: 0.05})

	decision := f.validator.Validate(context.Background(), &Request{
		UserID:   "u1",
		Action:   plan.ActionScanStart,
		Plan:     "premium",
		Keywords: []string{"official brand", "genuine item"},
	})
	if !decision.Allowed {
		t.Fatal("all-clear request must be allowed")
	}
	if decision.RiskScore >= 30 {
		t.Errorf("riskScore = %d, want < 30 for all-clear", decision.RiskScore)
	}
	if decision.Checks.RateLimit == nil || decision.Checks.KeywordQuality == nil || decision.Checks.ScanPatterns == nil {
		t.Error("all three checks apply to a scan request with keywords")
	}
}

func TestValidateRateLimitHardBlock(t *testing.T) {
	f := newFixture(keywords.Classification{SpamScore: 0.05})
	f.burnQuota(t, "u1", plan.ActionKeywordSearch, 10)

	decision := f.validator.Validate(context.Background(), &Request{
		UserID: "u1",
		Action: plan.ActionKeywordSearch,
		Plan:   "free",
	})
	if decision.Allowed {
		t.Fatal("exceeded rate limit is a hard block")
	}
	if decision.RiskScore <= 70 {
		t.Errorf("riskScore = %d, want > 70 for a critical violation", decision.RiskScore)
	}
}

func TestValidateSpamKeywordsHardBlock(t *testing.T) {
	f := newFixture(keywords.Classification{IsSpam: true, SpamScore: 0.9})

	decision := f.validator.Validate(context.Background(), &Request{
		UserID:   "u1",
		Action:   plan.ActionKeywordSearch,
		Plan:     "premium",
		Keywords: []string{"cheap replica", "free watches", "BUY NOW"},
	})
	if decision.Allowed {
		t.Fatal("spam-dominated batch is a hard block")
	}
	if decision.RiskScore <= 70 {
		t.Errorf("riskScore = %d, want > 70", decision.RiskScore)
	}
}

func TestValidateScanPatternHardBlock(t *testing.T) {
	f := newFixture(keywords.Classification{SpamScore: 0.05})
	f.activity.Set("u1", scanpattern.Activity{LastHour: 50, Last24h: 200})

	decision := f.validator.Validate(context.Background(), &Request{
		UserID: "u1",
		Action: plan.ActionScanStart,
		Plan:   "basic",
	})
	if decision.Allowed {
		t.Fatal("anomalous scan pattern is a hard block")
	}
	if decision.RiskScore <= 70 {
		t.Errorf("riskScore = %d, want > 70", decision.RiskScore)
	}
}

func TestValidateBorderlineScoresBetween30And70(t *testing.T) {
	// Heavy quota usage plus a minority of flagged keywords: elevated but
	// not critical.
	f := newFixture(keywords.Classification{SpamScore: 0.1})
	f.burnQuota(t, "u1", plan.ActionKeywordSearch, 90)

	assessor := keywords.NewAssessor(&mixedClassifier{}, slog.Default())
	f.validator.assessor = assessor

	decision := f.validator.Validate(context.Background(), &Request{
		UserID:   "u1",
		Action:   plan.ActionKeywordSearch,
		Plan:     "premium",
		Keywords: []string{"brand watch", "luxury outlet", "model number"},
	})
	if !decision.Allowed {
		t.Fatal("elevated but non-critical request stays allowed")
	}
	if decision.RiskScore < 30 || decision.RiskScore > 70 {
		t.Errorf("riskScore = %d, want between 30 and 70", decision.RiskScore)
	}
}

// mixedClassifier flags exactly one well-known keyword.
type mixedClassifier struct{}

func (mixedClassifier) Classify(_ context.Context, keyword string) (*keywords.Classification, error) {
	if keyword == "luxury outlet" {
		return &keywords.Classification{IsSpam: true, SpamScore: 0.8}, nil
	}
	return &keywords.Classification{SpamScore: 0.1}, nil
}

func TestValidateSkipsInapplicableChecks(t *testing.T) {
	f := newFixture(keywords.Classification{SpamScore: 0.05})
	// Pathological scan activity must not affect a non-scan action.
	f.activity.Set("u1", scanpattern.Activity{LastHour: 1000, Last24h: 1000})

	decision := f.validator.Validate(context.Background(), &Request{
		UserID: "u1",
		Action: plan.ActionNoticeSend,
		Plan:   "basic",
	})
	if !decision.Allowed {
		t.Fatal("non-scan action must skip pattern analysis")
	}
	if decision.Checks.ScanPatterns != nil {
		t.Error("scanPatterns check should be absent")
	}
	if decision.Checks.KeywordQuality != nil {
		t.Error("keyword check should be absent without keywords")
	}
}

func TestValidateScanPrefixTriggersPatternCheck(t *testing.T) {
	f := newFixture(keywords.Classification{SpamScore: 0.05})
	f.activity.Set("u1", scanpattern.Activity{LastHour: 50, Last24h: 200})

	decision := f.validator.Validate(context.Background(), &Request{
		UserID: "u1",
		Action: "scan_resume",
		Plan:   "basic",
	})
	if decision.Checks.ScanPatterns == nil {
		t.Fatal("scan_ prefixed actions must run pattern analysis")
	}
	if decision.Allowed {
		t.Error("expected rejection")
	}
}

func TestValidateUnknownPlanFallsBackToFree(t *testing.T) {
	f := newFixture(keywords.Classification{SpamScore: 0.05})
	f.burnQuota(t, "u1", plan.ActionKeywordSearch, 10)

	decision := f.validator.Validate(context.Background(), &Request{
		UserID: "u1",
		Action: plan.ActionKeywordSearch,
		Plan:   "platinum",
	})
	if decision.Allowed {
		t.Error("unknown plan must get the free tier's quota")
	}
}

func TestValidateRiskIsMonotoneInQuotaPressure(t *testing.T) {
	prev := -1
	for _, used := range []int{0, 25, 50, 75, 99} {
		f2 := newFixture(keywords.Classification{SpamScore: 0.05})
		f2.burnQuota(t, "u1", plan.ActionKeywordSearch, used)
		decision := f2.validator.Validate(context.Background(), &Request{
			UserID: "u1",
			Action: plan.ActionKeywordSearch,
			Plan:   "premium",
		})
		if decision.RiskScore < prev {
			t.Errorf("risk dropped from %d to %d as usage grew to %d", prev, decision.RiskScore, used)
		}
		prev = decision.RiskScore
	}
}

func TestValidateRiskClampsAt100(t *testing.T) {
	f := newFixture(keywords.Classification{IsSpam: true, SpamScore: 0.95})
	f.burnQuota(t, "u1", plan.ActionScanStart, 5)
	f.activity.Set("u1", scanpattern.Activity{LastHour: 100, Last24h: 110})

	decision := f.validator.Validate(context.Background(), &Request{
		UserID:   "u1",
		Action:   plan.ActionScanStart,
		Plan:     "free",
		Keywords: []string{"spam spam"},
	})
	if decision.Allowed {
		t.Fatal("expected rejection")
	}
	if decision.RiskScore != 100 {
		t.Errorf("riskScore = %d, want clamped 100", decision.RiskScore)
	}
}
