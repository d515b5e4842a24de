// internal/healer/healer_test.go
package healer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/cache"
	"github.com/sk3lla/mend/internal/config"
	"github.com/sk3lla/mend/internal/llmclient"
)

type healerFixture struct {
	healer     *Healer
	cache      *cache.Manager
	cfg        *config.Config
	reportPath string
}

func newFixture(t *testing.T, page *fakePage, gen *fakeGenerator) *healerFixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Heal.CacheFile = filepath.Join(dir, "cache.json")
	cfg.Heal.ReportFile = filepath.Join(dir, "report.jsonl")
	cfg.LLM.MaxRetries = 0

	cacheMgr := cache.NewManager(cfg.Heal.CacheFile, zap.NewNop())
	reporter := NewReporter(cfg.Heal.ReportFile, zap.NewNop())

	return &healerFixture{
		healer:     New(page, gen, cacheMgr, reporter, cfg, zap.NewNop()),
		cache:      cacheMgr,
		cfg:        cfg,
		reportPath: cfg.Heal.ReportFile,
	}
}

func (f *healerFixture) report(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.reportPath)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func planOf(strategies ...schemas.Strategy) *llmclient.PlanResult {
	answers := make([]schemas.PlanAnswer, len(strategies))
	for i, s := range strategies {
		answers[i] = schemas.PlanAnswer{Strategy: s, Confidence: 0.9, Reason: "best match"}
	}
	return &llmclient.PlanResult{
		Plan:  &schemas.HealPlan{Answers: answers},
		Usage: &schemas.TokenUsage{Input: 100, Output: 20, Total: 120},
	}
}

func sampleCandidates() []schemas.Candidate {
	return []schemas.Candidate{
		{Tag: "button", Text: "Log in", TestID: "login-btn"},
		{Tag: "a", Text: "Forgot password"},
		{Tag: "input", InputType: "email", Placeholder: "Email"},
	}
}

func TestResolve_DeclaredLocatorSuccess(t *testing.T) {
	declared := &fakeLocator{count: 1, visible: true}
	page := &fakePage{
		url:         "https://x.test/login",
		cssLocators: map[string]*fakeLocator{"#login": declared},
	}
	gen := &fakeGenerator{}
	f := newFixture(t, page, gen)

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Selector:    "#login",
		Description: "the login button",
		TestName:    "TestLogin",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, declared.clicks)
	// No model call, no cache entry, no report record.
	assert.Equal(t, 0, gen.calls)
	assert.Empty(t, f.cache.Entries())
	assert.Empty(t, f.report(t))
}

func TestResolve_HealingDisabledRethrowsVerbatim(t *testing.T) {
	page := &fakePage{url: "https://x.test/login"}
	gen := &fakeGenerator{}
	f := newFixture(t, page, gen)
	f.healer.cfg.Enabled = false

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Selector:    "#gone",
		Description: "the login button",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errLocatorMissing)

	var resErr *ResolutionError
	assert.False(t, errors.As(err, &resErr), "disabled healing must not wrap the error")
	assert.Equal(t, 0, gen.calls)
}

func TestResolve_HealingDisabledNativeFallback(t *testing.T) {
	raw := &fakeLocator{count: 1, visible: true}
	page := &fakePage{
		url:         "https://x.test/signup",
		cssLocators: map[string]*fakeLocator{"": raw},
	}
	gen := &fakeGenerator{}
	f := newFixture(t, page, gen)
	f.healer.cfg.Enabled = false

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionFill,
		Description: "email field",
		Value:       "a@b.test",
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.test", raw.lastFill)
	assert.Equal(t, 0, gen.calls)
}

func TestResolve_HealsPersistsAndExecutes(t *testing.T) {
	healed := schemas.Strategy{Type: schemas.StrategyTestID, Value: "login-btn"}
	target := &fakeLocator{count: 1, visible: true}
	page := &fakePage{
		url:          "https://x.test/login?session=9",
		candidates:   sampleCandidates(),
		stratLocator: map[string]*fakeLocator{healed.String(): target},
	}
	gen := &fakeGenerator{result: planOf(healed)}
	f := newFixture(t, page, gen)

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Selector:    "#stale-login",
		Description: "the login button",
		TestName:    "TestLogin",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, target.clicks)

	// Cached under the query-stripped key.
	key := Key(schemas.ActionClick, "https://x.test/login", "the login button")
	entry, ok := f.cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, healed, entry.Strategy)
	assert.Equal(t, "TestLogin", entry.TestName)

	report := f.report(t)
	assert.Contains(t, report, `"outcome":"healed"`)
	assert.Contains(t, report, `"total":120`)
	// The record pins down where and under which key the heal happened.
	assert.Contains(t, report, `"url":"https://x.test/login?session=9"`)
	assert.Contains(t, report, `"key":"`+key+`"`)
	assert.Contains(t, report, `"success":true`)
}

func TestResolve_CacheHitSkipsGenerator(t *testing.T) {
	cached := schemas.Strategy{Type: schemas.StrategyRole, Role: "button", Name: "Log in"}
	target := &fakeLocator{count: 1, visible: true}
	page := &fakePage{
		url:          "https://x.test/login",
		stratLocator: map[string]*fakeLocator{cached.String(): target},
	}
	gen := &fakeGenerator{}
	f := newFixture(t, page, gen)

	key := Key(schemas.ActionClick, "https://x.test/login", "the login button")
	require.NoError(t, f.cache.Put(key, schemas.CacheEntry{
		Strategy: cached, Description: "the login button",
	}))

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Selector:    "#stale-login",
		Description: "the login button",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 1, target.clicks)
	report := f.report(t)
	assert.Contains(t, report, `"outcome":"cache"`)
	assert.Contains(t, report, `"url":"https://x.test/login"`)
	assert.Contains(t, report, `"key":"`+key+`"`)
	assert.Contains(t, report, `"success":true`)
}

func TestResolve_StaleCacheTriggersOneHealAndOverwrite(t *testing.T) {
	stale := schemas.Strategy{Type: schemas.StrategyCSS, Selector: "#renamed"}
	fresh := schemas.Strategy{Type: schemas.StrategyTestID, Value: "login-btn"}
	target := &fakeLocator{count: 1, visible: true}
	page := &fakePage{
		url:        "https://x.test/login",
		candidates: sampleCandidates(),
		stratLocator: map[string]*fakeLocator{
			// The stale strategy builds a locator that never turns up.
			fresh.String(): target,
		},
	}
	gen := &fakeGenerator{result: planOf(fresh)}
	f := newFixture(t, page, gen)

	key := Key(schemas.ActionClick, "https://x.test/login", "the login button")
	require.NoError(t, f.cache.Put(key, schemas.CacheEntry{
		Strategy: stale, Description: "the login button",
	}))

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Description: "the login button",
	})
	require.NoError(t, err)

	// Exactly one model call, and the same key now holds the fresh strategy.
	assert.Equal(t, 1, gen.calls)
	entry, ok := f.cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, fresh, entry.Strategy)
}

func TestResolve_NoPlanFailsWithDiagnostics(t *testing.T) {
	page := &fakePage{url: "https://x.test/login", candidates: sampleCandidates()}
	gen := &fakeGenerator{result: &llmclient.PlanResult{Plan: &schemas.HealPlan{}}}
	f := newFixture(t, page, gen)

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Description: "the login button",
		TestName:    "TestLogin",
	})
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 3, resErr.CandidatesAnalyzed)
	assert.Empty(t, resErr.Tried)
	report := f.report(t)
	assert.Contains(t, report, `"outcome":"failed"`)
	assert.Contains(t, report, `"success":false`)
	assert.Contains(t, report, `"url":"https://x.test/login"`)
	assert.Contains(t, report, `"key":"`+Key(schemas.ActionClick, "https://x.test/login", "the login button")+`"`)
}

func TestResolve_AllStrategiesRejectedListsReasons(t *testing.T) {
	missing := schemas.Strategy{Type: schemas.StrategyText, Text: "Gone"}
	ambiguous := schemas.Strategy{Type: schemas.StrategyText, Text: "Everywhere"}
	page := &fakePage{
		url:        "https://x.test/login",
		candidates: sampleCandidates(),
		stratLocator: map[string]*fakeLocator{
			missing.String():   {count: 0},
			ambiguous.String(): {count: 2},
		},
	}
	gen := &fakeGenerator{result: planOf(missing, ambiguous)}
	f := newFixture(t, page, gen)

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Description: "the login button",
	})
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Len(t, resErr.Tried, 2)
	assert.Contains(t, err.Error(), "matched no elements")
	assert.Contains(t, err.Error(), "ambiguous: matched 2 elements")

	// Nothing was cached for the failed resolution.
	assert.Empty(t, f.cache.Entries())
}

func TestResolve_GeneratorErrorPropagates(t *testing.T) {
	page := &fakePage{url: "https://x.test/login", candidates: sampleCandidates()}
	gen := &fakeGenerator{err: errors.New("invalid request")}
	f := newFixture(t, page, gen)

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Description: "the login button",
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid request")
	assert.Equal(t, 1, gen.calls)
}

func TestResolve_ForceDispatchesClickOnHiddenElement(t *testing.T) {
	healed := schemas.Strategy{Type: schemas.StrategyTestID, Value: "hidden-btn"}
	target := &fakeLocator{count: 1, visible: false}
	page := &fakePage{
		url:          "https://x.test/menu",
		candidates:   sampleCandidates(),
		stratLocator: map[string]*fakeLocator{healed.String(): target},
	}
	gen := &fakeGenerator{result: planOf(healed)}
	f := newFixture(t, page, gen)

	err := f.healer.Resolve(context.Background(), ResolveRequest{
		Action:      schemas.ActionClick,
		Description: "hidden menu entry",
		Force:       true,
	})
	require.NoError(t, err)

	// Force mode skips visibility gating and uses the synthetic click path.
	assert.Equal(t, 1, target.dispatches)
	assert.Equal(t, 0, target.clicks)
}
