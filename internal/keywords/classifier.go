package keywords

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jgreer/markhound/internal/circuitbreaker"
	"github.com/jgreer/markhound/internal/metrics"
)

// Classification is the external classifier's verdict for one keyword.
type Classification struct {
	IsSpam    bool     `json:"isSpam"`
	SpamScore float64  `json:"spamScore"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Classifier scores a single keyword for spam likelihood.
type Classifier interface {
	Classify(ctx context.Context, keyword string) (*Classification, error)
}

const breakerKey = "classifier"

// HTTPClassifier calls an external classification service over HTTP.
// Calls are wrapped in a circuit breaker so a dead classifier degrades to
// the neutral fallback instead of burning the request timeout on every
// keyword.
type HTTPClassifier struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHTTPClassifier creates a classifier client for the given endpoint.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

type classifyRequest struct {
	Keyword string `json:"keyword"`
}

// Classify posts the keyword to the classifier and decodes its verdict.
func (c *HTTPClassifier) Classify(ctx context.Context, keyword string) (*Classification, error) {
	if !c.breaker.Allow(breakerKey) {
		return nil, fmt.Errorf("classifier circuit open")
	}

	body, err := json.Marshal(classifyRequest{Keyword: keyword})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}

	c.breaker.RecordSuccess(breakerKey)
	return &result, nil
}

// StaticClassifier returns the same verdict for every keyword. Used when no
// classifier endpoint is configured, and in tests.
type StaticClassifier struct {
	Result Classification
}

func (s *StaticClassifier) Classify(context.Context, string) (*Classification, error) {
	cls := s.Result
	return &cls, nil
}

// neutralClassification is the conservative default when the classifier is
// unavailable: unscored keywords are treated as neutral, not spam.
func neutralClassification() *Classification {
	metrics.ClassifierErrorsTotal.Inc()
	return &Classification{
		IsSpam:    false,
		SpamScore: 0.5,
		Reasons:   []string{"classifier_unavailable"},
	}
}
