// internal/healer/healer.go

// Package healer implements the self-healing locator resolution engine: a
// fallback state machine that tries a test's declared locator, then the
// strategy cache, then a model-generated strategy.
package healer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/browser"
	"github.com/sk3lla/mend/internal/cache"
	"github.com/sk3lla/mend/internal/collector"
	"github.com/sk3lla/mend/internal/config"
	"github.com/sk3lla/mend/internal/llmclient"
	"github.com/sk3lla/mend/internal/retry"
)

// ResolveRequest is one action to resolve and execute.
type ResolveRequest struct {
	Action      schemas.ActionKind
	Selector    string // declared CSS selector; empty means none declared
	Description string
	Value       string // fill / select_option payload
	Force       bool   // skip visibility gating, dispatch clicks directly
	TestName    string
}

// Healer glues the collector, backend, picker and cache to a page.
type Healer struct {
	page     browser.Page
	gen      llmclient.Generator
	cache    *cache.Manager
	reporter *Reporter
	cfg      config.HealConfig
	llmCfg   config.LLMConfig
	weights  collector.Weights
	logger   *zap.Logger
}

// New wires a healer over the given page and backend.
func New(page browser.Page, gen llmclient.Generator, cacheMgr *cache.Manager, reporter *Reporter, cfg *config.Config, logger *zap.Logger) *Healer {
	return &Healer{
		page:     page,
		gen:      gen,
		cache:    cacheMgr,
		reporter: reporter,
		cfg:      cfg.Heal,
		llmCfg:   cfg.LLM,
		weights:  collector.WeightsFromConfig(cfg.Heal.Rank),
		logger:   logger.Named("healer"),
	}
}

// Resolve executes the requested action, healing the locator if the
// declared one fails. Per call: declared attempt, then cache, then one AI
// resolution; the AI call carries its own retry budget internally.
func (h *Healer) Resolve(ctx context.Context, req ResolveRequest) error {
	start := time.Now()

	// Declared locator first. With healing enabled the probe timeout is
	// short; healing is the fallback, not the declared wait.
	if req.Selector != "" {
		probe := h.cfg.QuickTimeout
		if !h.cfg.Enabled {
			probe = h.cfg.Timeout
		}
		err := h.perform(ctx, h.page.CSSLocator(req.Selector), req, probe)
		if err == nil {
			return nil
		}
		if !h.cfg.Enabled {
			// Degraded to plain automation: the original error, verbatim.
			return err
		}
		h.logger.Debug("Declared locator failed, entering healing",
			zap.String("selector", req.Selector),
			zap.String("description", req.Description),
			zap.Error(err))
	} else if !h.cfg.Enabled {
		// No declared locator and healing off: run the action against the
		// raw selector as-is so the system degrades to plain automation.
		return h.perform(ctx, h.page.CSSLocator(req.Selector), req, h.cfg.Timeout)
	}

	pageURL, err := h.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page URL for healing: %w", err)
	}
	key := Key(req.Action, pageURL, req.Description)

	// Cached strategy next. A failure here means the entry went stale; it
	// falls through to exactly one AI resolution.
	if entry, ok := h.cache.Get(key); ok {
		if err := h.tryCached(ctx, req, entry, key, pageURL, start); err == nil {
			return nil
		}
		h.logger.Info("Cached strategy went stale, re-healing",
			zap.String("key", key),
			zap.String("strategy", entry.Strategy.String()))
	}

	return h.heal(ctx, req, key, pageURL, start)
}

// tryCached builds a locator from the cached strategy and runs the action.
func (h *Healer) tryCached(ctx context.Context, req ResolveRequest, entry *schemas.CacheEntry, key, pageURL string, start time.Time) error {
	loc, err := h.page.Locator(entry.Strategy)
	if err != nil {
		return err
	}
	if err := h.perform(ctx, loc, req, h.cfg.Timeout); err != nil {
		return err
	}

	h.logger.Info("Resolved from cache",
		zap.String("description", req.Description),
		zap.String("strategy", entry.Strategy.String()))
	h.reporter.Write(Record{
		TestName:    req.TestName,
		Action:      req.Action,
		Description: req.Description,
		URL:         pageURL,
		Key:         key,
		Outcome:     "cache",
		Success:     true,
		Strategy:    &entry.Strategy,
		DurationMS:  time.Since(start).Milliseconds(),
	})
	return nil
}

// heal runs one full AI resolution: collect, rank, generate, pick, commit.
func (h *Healer) heal(ctx context.Context, req ResolveRequest, key, pageURL string, start time.Time) error {
	candidates, err := collector.Collect(ctx, h.page, req.Action, h.cfg.MaxCandidates, h.logger)
	if err != nil {
		return h.fail(req, &ResolutionError{
			Action:      req.Action,
			Description: req.Description,
			Cause:       err,
		}, nil, key, pageURL, start)
	}
	ranked := collector.Rank(candidates, req.Description, h.cfg.MaxPlanCandidates, h.weights)

	user, err := buildUserContent(req.Action, req.Description, ranked)
	if err != nil {
		return h.fail(req, &ResolutionError{
			Action:             req.Action,
			Description:        req.Description,
			CandidatesAnalyzed: len(candidates),
			Cause:              err,
		}, nil, key, pageURL, start)
	}

	var result *llmclient.PlanResult
	err = retry.Do(ctx, h.logger, func() error {
		var genErr error
		result, genErr = h.gen.GeneratePlan(ctx, llmclient.PlanRequest{
			System: systemPrompt,
			User:   user,
			Schema: planSchema,
		})
		return genErr
	}, h.llmCfg.MaxRetries, h.llmCfg.RetryBaseDelay)
	if err != nil {
		return h.fail(req, &ResolutionError{
			Action:             req.Action,
			Description:        req.Description,
			CandidatesAnalyzed: len(candidates),
			Cause:              err,
		}, nil, key, pageURL, start)
	}

	if result.Plan == nil || len(result.Plan.Answers) == 0 {
		return h.fail(req, &ResolutionError{
			Action:             req.Action,
			Description:        req.Description,
			CandidatesAnalyzed: len(candidates),
		}, result.Usage, key, pageURL, start)
	}

	picked, tried := Pick(ctx, h.page, result.Plan, h.cfg.MaxAITries, req.Force, h.logger)
	if picked == nil {
		return h.fail(req, &ResolutionError{
			Action:             req.Action,
			Description:        req.Description,
			CandidatesAnalyzed: len(candidates),
			Tried:              tried,
		}, result.Usage, key, pageURL, start)
	}

	// Persist before executing: the strategy already proved unique (and
	// visible unless forced), and a failed Put only costs a re-heal later.
	if err := h.cache.Put(key, schemas.CacheEntry{
		Strategy:    picked.Strategy,
		Description: req.Description,
		TestName:    req.TestName,
	}); err != nil {
		h.logger.Warn("Failed to persist healed strategy", zap.String("key", key), zap.Error(err))
	}

	if err := h.perform(ctx, picked.Locator, req, h.cfg.Timeout); err != nil {
		return h.fail(req, &ResolutionError{
			Action:             req.Action,
			Description:        req.Description,
			CandidatesAnalyzed: len(candidates),
			Tried:              tried,
			Cause:              err,
		}, result.Usage, key, pageURL, start)
	}

	h.logger.Info("Healed locator",
		zap.String("description", req.Description),
		zap.String("strategy", picked.Strategy.String()),
		zap.Float64("confidence", picked.Confidence),
		zap.String("reason", picked.Reason))
	h.reporter.Write(Record{
		TestName:    req.TestName,
		Action:      req.Action,
		Description: req.Description,
		URL:         pageURL,
		Key:         key,
		Outcome:     "healed",
		Success:     true,
		Strategy:    &picked.Strategy,
		Confidence:  picked.Confidence,
		Reason:      picked.Reason,
		Usage:       result.Usage,
		DurationMS:  time.Since(start).Milliseconds(),
	})
	return nil
}

// fail records a terminal AI-involving failure and returns the error.
func (h *Healer) fail(req ResolveRequest, resErr *ResolutionError, usage *schemas.TokenUsage, key, pageURL string, start time.Time) error {
	h.reporter.Banner(req.TestName)
	h.reporter.Write(Record{
		TestName:           req.TestName,
		Action:             req.Action,
		Description:        req.Description,
		URL:                pageURL,
		Key:                key,
		Outcome:            "failed",
		Success:            false,
		Error:              resErr.Error(),
		Usage:              usage,
		CandidatesAnalyzed: resErr.CandidatesAnalyzed,
		DurationMS:         time.Since(start).Milliseconds(),
	})
	return resErr
}

// perform waits for the locator (unless forced) and executes the action.
// Click-like actions are followed by a best-effort load-state settle.
func (h *Healer) perform(ctx context.Context, loc browser.Locator, req ResolveRequest, timeout time.Duration) error {
	if !req.Force {
		if err := loc.WaitVisible(ctx, timeout); err != nil {
			return err
		}
	}

	var err error
	switch req.Action {
	case schemas.ActionClick:
		if req.Force {
			err = loc.DispatchClick(ctx)
		} else {
			err = loc.Click(ctx)
		}
	case schemas.ActionDoubleClick:
		err = loc.DoubleClick(ctx)
	case schemas.ActionFill:
		err = loc.Fill(ctx, req.Value)
	case schemas.ActionHover:
		err = loc.Hover(ctx)
	case schemas.ActionCheck:
		err = loc.Check(ctx)
	case schemas.ActionUncheck:
		err = loc.Uncheck(ctx)
	case schemas.ActionFocus:
		err = loc.Focus(ctx)
	case schemas.ActionSelect:
		err = loc.SelectOption(ctx, req.Value)
	default:
		return fmt.Errorf("unsupported action kind %q", req.Action)
	}
	if err != nil {
		return err
	}

	switch req.Action {
	case schemas.ActionClick, schemas.ActionDoubleClick:
		if err := h.page.WaitForLoadState(ctx, h.cfg.QuickTimeout); err != nil {
			h.logger.Debug("Post-click settle timed out", zap.Error(err))
		}
	}
	return nil
}
