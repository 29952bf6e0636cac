package investigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"scamshield/pkg/evidence"
	"scamshield/pkg/fusion"
	"scamshield/pkg/sources"
	"scamshield/pkg/structlog"
)

// Result is the complete outcome of one investigation. It is created once,
// written to the result cache, and never mutated afterwards.
type Result struct {
	RequestID       string            `json:"request_id"`
	Target          sources.Target    `json:"target"`
	RiskAssessment  fusion.Assessment `json:"risk_assessment"`
	EvidenceChain   []evidence.Item   `json:"evidence_chain"`
	SourcesUsed     []string          `json:"sources_used"`
	Recommendations []string          `json:"recommendations"`
	ProcessingTime  time.Duration     `json:"processing_time_ns"`
	CreatedAt       time.Time         `json:"created_at"`
	FromCache       bool              `json:"from_cache"`
}

// Config tunes the manager. Zero values get production defaults.
type Config struct {
	// MaxConcurrent bounds simultaneous outbound calls across the whole
	// process, independent of per-source limits.
	MaxConcurrent int64
	// Deadlines per investigation level; the fan-out proceeds to fusion with
	// whatever results exist when the deadline passes.
	Deadlines map[sources.InvestigationLevel]time.Duration
	// CacheTTL for complete results.
	CacheTTL time.Duration
	Logger   *structlog.Logger
}

func defaultDeadlines() map[sources.InvestigationLevel]time.Duration {
	return map[sources.InvestigationLevel]time.Duration{
		sources.LevelBasic:        10 * time.Second,
		sources.LevelStandard:     20 * time.Second,
		sources.LevelProfessional: 45 * time.Second,
		sources.LevelForensic:     90 * time.Second,
	}
}

// Manager fans one investigation out to every applicable source, tolerates
// any subset failing, and fuses whatever survives into a risk verdict.
type Manager struct {
	clients []*sources.Client
	engine  *fusion.Engine
	cache   *ResultCache
	sem     *semaphore.Weighted
	cfg     Config
	logger  *structlog.Logger

	mu              sync.Mutex
	total           int64
	totalProcessing time.Duration
	highRisk        int64
}

// NewManager wires the orchestrator.
func NewManager(clients []*sources.Client, engine *fusion.Engine, cfg Config) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.Deadlines == nil {
		cfg.Deadlines = defaultDeadlines()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = structlog.NewLogger("investigation", structlog.LevelInfo, nil)
	}
	return &Manager{
		clients: clients,
		engine:  engine,
		cache:   NewResultCache(cfg.CacheTTL),
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:     cfg,
		logger:  cfg.Logger,
	}
}

// Investigate runs (or retrieves) the investigation for one target. Only a
// malformed target produces an error; source failures of any kind degrade
// into the result's confidence, indicators, and sourcesUsed.
func (m *Manager) Investigate(ctx context.Context, target sources.Target) (*Result, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}
	if target.Level == "" {
		target.Level = sources.LevelStandard
	}

	res, cached, err := m.cache.GetOrCompute(ctx, target, func() (*Result, error) {
		return m.run(ctx, target), nil
	})
	if err != nil {
		return nil, err
	}
	if cached {
		mCacheHits.Inc()
		// The stored value stays immutable; provenance is marked on a copy.
		cp := *res
		cp.FromCache = true
		return &cp, nil
	}
	return res, nil
}

func (m *Manager) run(ctx context.Context, target sources.Target) *Result {
	start := time.Now()
	requestID := uuid.NewString()
	log := m.logger.WithFields(structlog.Fields{"request_id": requestID, "target_type": target.Type})

	deadline, ok := m.cfg.Deadlines[target.Level]
	if !ok {
		deadline = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	applicable := make([]*sources.Client, 0, len(m.clients))
	for _, c := range m.clients {
		if c.Applicable(target.Type) {
			applicable = append(applicable, c)
		}
	}

	results := make([]sources.SourceResult, len(applicable))
	var wg sync.WaitGroup
	for i, c := range applicable {
		wg.Add(1)
		go func(i int, c *sources.Client) {
			defer wg.Done()
			if err := m.sem.Acquire(ctx, 1); err != nil {
				// Deadline hit before this call could even be dispatched.
				results[i] = sources.SourceResult{
					SourceName: c.Name(),
					Err:        sources.ErrKindTimeout,
					ErrDetail:  "investigation deadline reached before dispatch",
					FetchedAt:  time.Now(),
				}
				return
			}
			defer m.sem.Release(1)
			results[i] = c.Fetch(ctx, target)
		}(i, c)
	}
	wg.Wait()

	for _, r := range results {
		mSourceRequests.WithLabelValues(r.SourceName, r.Reason()).Inc()
	}

	assessment := m.engine.Fuse(results)
	chain := evidence.BuildChain(results)

	used := make([]string, 0, len(results))
	for _, r := range results {
		used = append(used, fmt.Sprintf("%s: %s", r.SourceName, r.Reason()))
	}

	res := &Result{
		RequestID:       requestID,
		Target:          target,
		RiskAssessment:  assessment,
		EvidenceChain:   chain,
		SourcesUsed:     used,
		Recommendations: assessment.Recommendations,
		ProcessingTime:  time.Since(start),
		CreatedAt:       time.Now(),
	}

	m.recordRun(res)
	log.Info("investigation complete", structlog.Fields{
		"level":              assessment.Level,
		"score":              assessment.OverallScore,
		"confidence":         assessment.Confidence,
		"sources":            len(results),
		"evidence_items":     len(chain),
		"processing_ms":      res.ProcessingTime.Milliseconds(),
		"all_sources_failed": assessment.AllSourcesFailed,
	})
	return res
}

func (m *Manager) recordRun(res *Result) {
	mInvestigations.Inc()
	mProcessing.Observe(res.ProcessingTime.Seconds())
	high := res.RiskAssessment.Level == fusion.LevelHigh || res.RiskAssessment.Level == fusion.LevelCritical
	if high {
		mHighRisk.Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.totalProcessing += res.ProcessingTime
	if high {
		m.highRisk++
	}
}

// EngineStats is an aggregate snapshot for the /stats surface.
type EngineStats struct {
	TotalInvestigations int64                            `json:"total_investigations"`
	AverageProcessingMs int64                            `json:"average_processing_ms"`
	HighRiskDetections  int64                            `json:"high_risk_detections"`
	CachedResults       int                              `json:"cached_results"`
	SourceStats         map[string]sources.StatsSnapshot `json:"source_stats"`
}

// Stats returns aggregate and per-source counters.
func (m *Manager) Stats() EngineStats {
	m.mu.Lock()
	total := m.total
	totalProcessing := m.totalProcessing
	highRisk := m.highRisk
	m.mu.Unlock()

	avg := int64(0)
	if total > 0 {
		avg = (totalProcessing / time.Duration(total)).Milliseconds()
	}
	perSource := make(map[string]sources.StatsSnapshot, len(m.clients))
	for _, c := range m.clients {
		perSource[c.Name()] = c.Stats()
	}
	return EngineStats{
		TotalInvestigations: total,
		AverageProcessingMs: avg,
		HighRiskDetections:  highRisk,
		CachedResults:       m.cache.Len(),
		SourceStats:         perSource,
	}
}
