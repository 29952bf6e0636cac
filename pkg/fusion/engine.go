package fusion

import (
	"fmt"
	"math"

	"scamshield/pkg/sources"
)

// Domain is one of the five risk dimensions an investigation scores.
type Domain string

const (
	DomainIdentity   Domain = "IDENTITY"
	DomainFinancial  Domain = "FINANCIAL"
	DomainDigital    Domain = "DIGITAL"
	DomainCompliance Domain = "COMPLIANCE"
	DomainThreat     Domain = "THREAT"
)

// domainOrder fixes iteration order everywhere scores and indicators are
// aggregated, so output is deterministic.
var domainOrder = [5]Domain{DomainIdentity, DomainFinancial, DomainDigital, DomainCompliance, DomainThreat}

// Level buckets the overall score. Boundary values belong to the higher tier.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// rank orders levels for floor escalation.
func (l Level) rank() int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// DomainScore is the per-domain verdict.
type DomainScore struct {
	Domain     Domain   `json:"domain"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators,omitempty"`
}

// Assessment is the fused verdict over all domains.
type Assessment struct {
	OverallScore     float64       `json:"overall_score"`
	Level            Level         `json:"level"`
	Confidence       float64       `json:"confidence"`
	DomainScores     []DomainScore `json:"domain_scores"`
	Indicators       []string      `json:"indicators"`
	Recommendations  []string      `json:"recommendations"`
	AllSourcesFailed bool          `json:"all_sources_failed"`
}

// Weights are the fixed domain weights. They must sum to exactly 1.0.
type Weights map[Domain]float64

// DefaultWeights are hand-picked product heuristics, not calibrated values.
// Treat them as configuration.
func DefaultWeights() Weights {
	return Weights{
		DomainIdentity:   0.25,
		DomainFinancial:  0.30,
		DomainDigital:    0.20,
		DomainCompliance: 0.15,
		DomainThreat:     0.10,
	}
}

// neutralScore is used for a domain with zero successful sources: unknown,
// not safe, with zero confidence.
const neutralScore = 0.5

// domainSources maps each domain to the sources whose data it reads.
var domainSources = map[Domain][]string{
	DomainIdentity:   {sources.SourceEmailRep, sources.SourceNumverify, sources.SourceWhois},
	DomainFinancial:  {sources.SourceBreachDirectory, sources.SourceEmailRep},
	DomainDigital:    {sources.SourceVirusTotal, sources.SourceShodan, sources.SourceIPInfo, sources.SourceWhois},
	DomainCompliance: {sources.SourceOpenSanctions},
	DomainThreat:     {sources.SourceAbuseIPDB, sources.SourceVirusTotal, sources.SourceShodan},
}

// Engine fuses heterogeneous source results into one risk assessment.
type Engine struct {
	weights Weights
}

// NewEngine validates that weights cover all five domains and sum to 1.0.
func NewEngine(w Weights) (*Engine, error) {
	if w == nil {
		w = DefaultWeights()
	}
	sum := 0.0
	for _, d := range domainOrder {
		wt, ok := w[d]
		if !ok {
			return nil, fmt.Errorf("missing weight for domain %s", d)
		}
		if wt < 0 {
			return nil, fmt.Errorf("negative weight for domain %s", d)
		}
		sum += wt
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("domain weights sum to %.6f, want 1.0", sum)
	}
	return &Engine{weights: w}, nil
}

// Fuse computes domain scores, the weighted overall score, the risk level,
// confidence, deduplicated indicators, and recommendations. It accepts the
// full result list, failures included: failures lower confidence but are
// never treated as adverse evidence.
func (e *Engine) Fuse(results []sources.SourceResult) Assessment {
	byName := make(map[string]sources.SourceResult, len(results))
	attempted := make(map[string]bool, len(results))
	successes := 0
	rateLimited := 0
	for _, r := range results {
		attempted[r.SourceName] = true
		if r.Success {
			byName[r.SourceName] = r
			successes++
		}
		if r.RateLimited {
			rateLimited++
		}
	}

	scores := make([]DomainScore, 0, len(domainOrder))
	for _, d := range domainOrder {
		scores = append(scores, e.scoreDomain(d, byName, attempted))
	}

	overall := 0.0
	for _, ds := range scores {
		overall += ds.Score * e.weights[ds.Domain]
	}
	overall = clamp01(overall)

	a := Assessment{
		OverallScore:     overall,
		Level:            levelFor(overall),
		DomainScores:     scores,
		Indicators:       dedupIndicators(scores),
		AllSourcesFailed: len(results) > 0 && successes == 0,
	}
	if len(results) == 0 {
		a.AllSourcesFailed = true
	}

	// Sanctions hits escalate the floor regardless of the weighted sum: a
	// confirmed-list match at 15% weight must not drown in benign domains.
	if sanctionsMatched(scores) && a.Level.rank() < LevelHigh.rank() {
		a.Level = LevelHigh
	}
	// With nothing confirmed at all, report elevated risk at zero confidence
	// rather than implying the subject was cleared.
	if a.AllSourcesFailed {
		a.Level = LevelHigh
		a.Confidence = 0
	} else {
		a.Confidence = e.confidence(scores, results, successes, rateLimited)
	}

	a.Recommendations = recommendations(a)
	return a
}

// confidence is the mean of data completeness, mean per-domain confidence,
// and the non-rate-limited fraction, never exceeding the raw success rate.
func (e *Engine) confidence(scores []DomainScore, results []sources.SourceResult, successes, rateLimited int) float64 {
	if len(results) == 0 || successes == 0 {
		return 0
	}
	completeness := float64(successes) / float64(len(results))
	notLimited := float64(len(results)-rateLimited) / float64(len(results))
	domainMean := 0.0
	for _, ds := range scores {
		domainMean += ds.Confidence
	}
	domainMean /= float64(len(scores))

	conf := (completeness + domainMean + notLimited) / 3.0
	if conf > completeness {
		conf = completeness
	}
	return clamp01(conf)
}

func (e *Engine) scoreDomain(d Domain, byName map[string]sources.SourceResult, attempted map[string]bool) DomainScore {
	attemptedCount := 0
	contributing := make(map[string]map[string]any)
	for _, name := range domainSources[d] {
		if attempted[name] {
			attemptedCount++
		}
		if r, ok := byName[name]; ok {
			contributing[name] = r.Data
		}
	}
	if len(contributing) == 0 {
		return DomainScore{Domain: d, Score: neutralScore, Confidence: 0}
	}

	var score float64
	var indicators []string
	switch d {
	case DomainIdentity:
		score, indicators = scoreIdentity(contributing)
	case DomainFinancial:
		score, indicators = scoreFinancial(contributing)
	case DomainDigital:
		score, indicators = scoreDigital(contributing)
	case DomainCompliance:
		score, indicators = scoreCompliance(contributing)
	case DomainThreat:
		score, indicators = scoreThreat(contributing)
	}

	conf := float64(len(contributing)) / float64(attemptedCount)
	return DomainScore{Domain: d, Score: clamp01(score), Confidence: clamp01(conf), Indicators: indicators}
}

// dedupIndicators unions indicators in first-occurrence order across the
// fixed domain iteration order.
func dedupIndicators(scores []DomainScore) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, ds := range scores {
		for _, ind := range ds.Indicators {
			if !seen[ind] {
				seen[ind] = true
				out = append(out, ind)
			}
		}
	}
	return out
}

func sanctionsMatched(scores []DomainScore) bool {
	for _, ds := range scores {
		if ds.Domain != DomainCompliance {
			continue
		}
		for _, ind := range ds.Indicators {
			if ind != "" && (ind == indSanctionsMatch || len(ind) >= len(indSanctionsMatchPrefix) && ind[:len(indSanctionsMatchPrefix)] == indSanctionsMatchPrefix) {
				return true
			}
		}
	}
	return false
}

// levelFor maps a score to its tier; boundary values belong to the higher
// tier (0.8 itself is CRITICAL).
func levelFor(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.3:
		return LevelMedium
	default:
		return LevelLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
