// Package plan defines subscription tiers and their abuse-policy tables.
//
// Every enforcement component (rate limiter, scan-pattern analyzer) looks up
// its thresholds here, keyed by Plan. Policies are typed structs so that a
// missing tier falls back explicitly instead of failing at runtime on a
// stringly-typed map miss.
package plan

import "math"

// Plan is a subscription tier.
type Plan string

const (
	Free       Plan = "free"
	Basic      Plan = "basic"
	Premium    Plan = "premium"
	Enterprise Plan = "enterprise"
	Admin      Plan = "admin" // internal/administrative tier, effectively unlimited
)

// Parse normalizes a plan string. Unknown values map to Free, the most
// restrictive tier, so a malformed request never gains quota.
func Parse(s string) Plan {
	switch Plan(s) {
	case Free, Basic, Premium, Enterprise, Admin:
		return Plan(s)
	default:
		return Free
	}
}

// Valid reports whether s names a known tier.
func Valid(s string) bool {
	switch Plan(s) {
	case Free, Basic, Premium, Enterprise, Admin:
		return true
	}
	return false
}

// Well-known rate-limited actions.
const (
	ActionKeywordSearch = "keyword_search"
	ActionScanStart     = "scan_start"
	ActionNoticeSend    = "notice_send"
)

// UnlimitedQuota is the remaining count reported for the admin tier.
const UnlimitedQuota = math.MaxInt32

// RatePolicy holds per-action request quotas for one rolling window.
type RatePolicy struct {
	KeywordSearch int
	ScanStart     int
	NoticeSend    int
	// Default applies to actions without a dedicated quota.
	Default int
	// Unlimited tiers skip counting entirely.
	Unlimited bool
}

// QuotaFor returns the quota for an action under this policy.
func (p RatePolicy) QuotaFor(action string) int {
	if p.Unlimited {
		return UnlimitedQuota
	}
	switch action {
	case ActionKeywordSearch:
		return p.KeywordSearch
	case ActionScanStart:
		return p.ScanStart
	case ActionNoticeSend:
		return p.NoticeSend
	default:
		return p.Default
	}
}

// ScanPolicy holds scan-pattern thresholds for one tier.
type ScanPolicy struct {
	// HourlyCeiling is the max scan sessions tolerated in the last hour.
	HourlyCeiling int
	// BurstShare is the max fraction of 24h volume allowed in one hour.
	BurstShare float64
	// BurstMinDaily is the minimum 24h volume before burst detection applies.
	BurstMinDaily int
	// MaxActiveSessions caps concurrently active monitoring sessions.
	MaxActiveSessions int
	// Unlimited tiers skip pattern analysis entirely.
	Unlimited bool
}

var ratePolicies = map[Plan]RatePolicy{
	Free:       {KeywordSearch: 10, ScanStart: 5, NoticeSend: 2, Default: 20},
	Basic:      {KeywordSearch: 50, ScanStart: 20, NoticeSend: 10, Default: 60},
	Premium:    {KeywordSearch: 100, ScanStart: 60, NoticeSend: 30, Default: 200},
	Enterprise: {KeywordSearch: 500, ScanStart: 200, NoticeSend: 100, Default: 1000},
	Admin:      {Unlimited: true},
}

var scanPolicies = map[Plan]ScanPolicy{
	Free:       {HourlyCeiling: 10, BurstShare: 0.8, BurstMinDaily: 20, MaxActiveSessions: 3},
	Basic:      {HourlyCeiling: 30, BurstShare: 0.8, BurstMinDaily: 20, MaxActiveSessions: 10},
	Premium:    {HourlyCeiling: 100, BurstShare: 0.8, BurstMinDaily: 20, MaxActiveSessions: 25},
	Enterprise: {HourlyCeiling: 500, BurstShare: 0.8, BurstMinDaily: 20, MaxActiveSessions: 100},
	Admin:      {Unlimited: true},
}

// RatePolicyFor returns the rate policy for a plan (Free for unknown tiers).
func RatePolicyFor(p Plan) RatePolicy {
	if pol, ok := ratePolicies[p]; ok {
		return pol
	}
	return ratePolicies[Free]
}

// ScanPolicyFor returns the scan policy for a plan (Free for unknown tiers).
func ScanPolicyFor(p Plan) ScanPolicy {
	if pol, ok := scanPolicies[p]; ok {
		return pol
	}
	return scanPolicies[Free]
}
