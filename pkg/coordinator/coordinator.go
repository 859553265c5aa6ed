package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/archive"
	"github.com/medley-health/medley/pkg/memory"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/policy"
	"github.com/medley-health/medley/pkg/utils/logging"
)

// Coordinator dispatches a request to domain agents, fuses their findings and
// writes the outcome back to memory.
type Coordinator struct {
	memory   *memory.Store
	adapters map[model.Domain]agent.Adapter
	cfg      *Config
	policy   *policy.Dispatch
	sinks    []archive.Sink
	now      func() time.Time
}

// Option configures the Coordinator
type Option func(*Coordinator)

// WithConfig replaces the default tunables
func WithConfig(cfg *Config) Option {
	return func(c *Coordinator) {
		c.cfg = cfg
	}
}

// WithPolicy selects domains with a Rego policy instead of keyword tables
func WithPolicy(p *policy.Dispatch) Option {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithSinks adds archive sinks that receive every committed session
func WithSinks(sinks ...archive.Sink) Option {
	return func(c *Coordinator) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithClock sets the time source of session and experience timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a Coordinator. A later adapter of the same domain replaces an earlier one.
func New(store *memory.Store, adapters []agent.Adapter, opts ...Option) *Coordinator {
	c := &Coordinator{
		memory:   store,
		adapters: make(map[model.Domain]agent.Adapter, len(adapters)),
		cfg:      DefaultConfig(),
		now:      store.Now,
	}
	for _, a := range adapters {
		c.adapters[a.Domain()] = a
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the tunables in use
func (c *Coordinator) Config() *Config {
	return c.cfg
}

// Assess answers one request.
//
// ErrRequestInvalid and ErrRequestCancelled return no assessment and write
// nothing. When every selected domain fails, an unable_to_assess assessment
// is returned together with ErrAllDomainsUnavailable. Memory read and write
// failures only add warnings.
func (c *Coordinator) Assess(ctx context.Context, req *model.Request) (*model.HealthAssessment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Copy()
	dropped := req.Hints.DropInvalid()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, goerr.Wrap(model.ErrRequestCancelled, "cancelled before dispatch", goerr.V("user_id", req.UserID))
	}

	ctx = logging.WithAttrs(ctx, "user_id", req.UserID)
	logger := logging.From(ctx)

	warnings := dropped
	for _, w := range dropped {
		logger.Warn("invalid hint dropped", "detail", w)
	}

	profile, err := c.memory.GetProfile(ctx, req.UserID)
	if err != nil {
		logger.Warn("failed to read profile, using defaults", "error", err)
		warnings = append(warnings, "memory read degraded: profile defaults used")
	}

	domains := c.dispatch(ctx, req, profile)
	logger.Debug("dispatching", "domains", domains)

	experiences, err := c.memory.RetrieveExperiences(ctx, req.UserID, domains, req.Text, c.cfg.TopK)
	if err != nil {
		logger.Warn("failed to retrieve experiences", "error", err)
		warnings = append(warnings, "memory read degraded: past experiences may be missing")
	}

	results, err := c.invokeAll(ctx, req, domains, &agent.Bundle{Profile: profile, Experiences: experiences})
	if err != nil {
		return nil, err
	}

	var findings []*model.AgentFinding
	var unavailable []model.Domain
	for _, r := range results {
		if r.OK() {
			findings = append(findings, r.Finding)
			continue
		}
		logger.Warn("agent unavailable", "domain", r.Domain, "error", r.Err)
		warnings = append(warnings, fmt.Sprintf("%s agent unavailable", r.Domain))
		unavailable = append(unavailable, r.Domain)
	}

	assessment := Fuse(c.cfg, findings, unavailable)
	assessment.MemoryContext = len(experiences)
	assessment.Warnings = warnings

	if len(findings) == 0 {
		assessment.Status = model.StatusUnableToAssess
		assessment.Warn("unable to assess: all domains unavailable")
		return assessment, goerr.Wrap(model.ErrAllDomainsUnavailable, "no agent produced a finding",
			goerr.V("domains", domains))
	}

	if ctx.Err() != nil {
		return nil, goerr.Wrap(model.ErrRequestCancelled, "cancelled before write-back", goerr.V("user_id", req.UserID))
	}

	wb := c.buildWriteBack(req, findings, assessment, assessment.Unavailable, c.now())
	if err := c.memory.Commit(ctx, wb); err != nil {
		logger.Error("failed to write back session", "error", err)
		assessment.PersistenceDegraded = true
		assessment.Warn("persistence degraded: this session was not saved")
		return assessment, nil
	}

	c.export(ctx, wb.Session)
	return assessment, nil
}

// invokeAll runs the adapters of the selected domains concurrently and waits
// for every one of them to settle. Calls keep running when the caller
// cancels, but their results are dropped.
func (c *Coordinator) invokeAll(ctx context.Context, req *model.Request, domains []model.Domain, bundle *agent.Bundle) ([]*agent.Result, error) {
	results := make([]*agent.Result, 0, len(domains))
	ch := make(chan *agent.Result, len(domains))
	pending := 0
	for _, d := range domains {
		a, ok := c.adapters[d]
		if !ok {
			results = append(results, &agent.Result{Domain: d,
				Err: goerr.Wrap(model.ErrAgentFailed, "no adapter for selected domain", goerr.V("domain", d))})
			continue
		}

		b := &agent.Bundle{Profile: bundle.Profile.Copy(), Experiences: bundle.Experiences}
		pending++
		go func() {
			ch <- c.invoke(ctx, a, req, b)
		}()
	}

	for ; pending > 0; pending-- {
		select {
		case r := <-ch:
			results = append(results, r)
		case <-ctx.Done():
			return nil, goerr.Wrap(model.ErrRequestCancelled, "cancelled while waiting for agents",
				goerr.V("user_id", req.UserID), goerr.V("pending", pending))
		}
	}
	return results, nil
}

// invoke calls one adapter under its own timeout. Panics and invalid findings
// count as failures.
func (c *Coordinator) invoke(ctx context.Context, a agent.Adapter, req *model.Request, bundle *agent.Bundle) *agent.Result {
	domain := a.Domain()
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.AgentTimeout)
	defer cancel()

	done := make(chan *agent.Result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- &agent.Result{Domain: domain, Err: goerr.Wrap(model.ErrAgentFailed, "agent panicked",
					goerr.V("domain", domain), goerr.V("panic", fmt.Sprint(v)))}
			}
		}()

		finding, err := a.Invoke(callCtx, req, bundle)
		if err != nil {
			done <- &agent.Result{Domain: domain, Err: goerr.Wrap(model.ErrAgentFailed, "agent returned error",
				goerr.V("domain", domain), goerr.V("cause", err.Error()))}
			return
		}
		if finding != nil && finding.Domain == "" {
			finding.Domain = domain
		}
		if err := finding.Validate(); err != nil {
			done <- &agent.Result{Domain: domain, Err: goerr.Wrap(model.ErrAgentFailed, "agent returned invalid finding",
				goerr.V("domain", domain), goerr.V("cause", err.Error()))}
			return
		}
		if finding.Domain != domain {
			done <- &agent.Result{Domain: domain, Err: goerr.Wrap(model.ErrAgentFailed, "agent answered for another domain",
				goerr.V("domain", domain), goerr.V("finding_domain", finding.Domain))}
			return
		}
		done <- &agent.Result{Domain: domain, Finding: finding}
	}()

	select {
	case r := <-done:
		return r
	case <-callCtx.Done():
		return &agent.Result{Domain: domain, Err: goerr.Wrap(model.ErrAgentTimeout, "agent did not answer in time",
			goerr.V("domain", domain), goerr.V("timeout", c.cfg.AgentTimeout))}
	}
}

func (c *Coordinator) export(ctx context.Context, session *model.SessionRecord) {
	for _, sink := range c.sinks {
		if err := sink.Export(ctx, session); err != nil {
			logging.From(ctx).Warn("failed to archive session", "sink", sink.Name(),
				"session_id", session.ID, "error", err)
		}
	}
}
