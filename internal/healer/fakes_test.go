// internal/healer/fakes_test.go
package healer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/browser"
	"github.com/sk3lla/mend/internal/llmclient"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeLocator scripts one element's probing and action behavior.
type fakeLocator struct {
	desc      string
	count     int
	visible   bool
	waitErr   error
	actionErr error

	clicks     int
	dispatches int
	fills      int
	lastFill   string
}

func (l *fakeLocator) Count(context.Context) (int, error)     { return l.count, nil }
func (l *fakeLocator) IsVisible(context.Context) (bool, error) { return l.visible, nil }
func (l *fakeLocator) WaitVisible(context.Context, time.Duration) error {
	return l.waitErr
}

func (l *fakeLocator) act() error { return l.actionErr }

func (l *fakeLocator) Click(context.Context) error {
	if l.actionErr == nil {
		l.clicks++
	}
	return l.act()
}
func (l *fakeLocator) DoubleClick(context.Context) error { return l.act() }
func (l *fakeLocator) Hover(context.Context) error       { return l.act() }
func (l *fakeLocator) Focus(context.Context) error       { return l.act() }
func (l *fakeLocator) Fill(_ context.Context, value string) error {
	if l.actionErr == nil {
		l.fills++
		l.lastFill = value
	}
	return l.act()
}
func (l *fakeLocator) Check(context.Context) error   { return l.act() }
func (l *fakeLocator) Uncheck(context.Context) error { return l.act() }
func (l *fakeLocator) SelectOption(_ context.Context, _ string) error {
	return l.act()
}
func (l *fakeLocator) DispatchClick(context.Context) error {
	if l.actionErr == nil {
		l.dispatches++
	}
	return l.act()
}
func (l *fakeLocator) Describe() string { return l.desc }

// fakePage serves scripted locators and canned DOM candidates.
type fakePage struct {
	url        string
	candidates []schemas.Candidate

	cssLocators  map[string]*fakeLocator
	stratLocator map[string]*fakeLocator // keyed by Strategy.String()
}

var errLocatorMissing = errors.New("element not found")

func (p *fakePage) Locator(s schemas.Strategy) (browser.Locator, error) {
	if loc, ok := p.stratLocator[s.String()]; ok {
		return loc, nil
	}
	return &fakeLocator{desc: s.String(), waitErr: errLocatorMissing}, nil
}

func (p *fakePage) CSSLocator(selector string) browser.Locator {
	if loc, ok := p.cssLocators[selector]; ok {
		return loc
	}
	return &fakeLocator{desc: "css(" + selector + ")", waitErr: errLocatorMissing}
}

func (p *fakePage) URL(context.Context) (string, error) { return p.url, nil }

func (p *fakePage) Evaluate(_ context.Context, _ string, out any) error {
	if dst, ok := out.(*[]schemas.Candidate); ok {
		*dst = p.candidates
	}
	return nil
}

func (p *fakePage) WaitForLoadState(context.Context, time.Duration) error { return nil }

// fakeGenerator returns a scripted plan and counts calls.
type fakeGenerator struct {
	calls  int
	result *llmclient.PlanResult
	err    error
}

func (g *fakeGenerator) GeneratePlan(context.Context, llmclient.PlanRequest) (*llmclient.PlanResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}
