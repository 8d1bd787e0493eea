// Package resolver orchestrates policy evaluation, context matching, and
// the hash-chained trace log per session. It is the single entry point
// consumed by every transport.
//
// A Resolver is not safe for concurrent mutation: callers serialize
// access, typically with one mutex around the whole instance, or give each
// concurrent caller its own Resolver.
package resolver

import (
	"fmt"
	"time"

	"github.com/halcyon-sh/warden/internal/atlas"
	"github.com/halcyon-sh/warden/internal/ctxmatch"
	"github.com/halcyon-sh/warden/internal/fault"
	"github.com/halcyon-sh/warden/internal/policy"
	"github.com/halcyon-sh/warden/internal/protocol"
	"github.com/halcyon-sh/warden/internal/ratelimit"
	"github.com/halcyon-sh/warden/internal/trace"
)

// Config holds resolver construction options.
type Config struct {
	GenesisSeed string
	QueueSize   int
	Policy      *policy.Config
	Now         func() time.Time
}

// Resolver owns session lifecycle, request resolution, trace retrieval,
// and chain verification.
type Resolver struct {
	atlases   *atlas.Registry
	contexts  *ctxmatch.Registry
	evaluator *policy.Evaluator
	policyCfg *policy.Config
	log       *trace.Log
	limits    *ratelimit.Tracker
	sessions  map[string]*Session
	now       func() time.Time
}

// New creates a Resolver and starts its trace worker.
func New(cfg Config) *Resolver {
	if cfg.Policy == nil {
		cfg.Policy = policy.DefaultConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		atlases:   atlas.NewRegistry(),
		contexts:  ctxmatch.NewRegistry(),
		evaluator: policy.NewEvaluator(),
		policyCfg: cfg.Policy,
		log: trace.NewLog(trace.Config{
			QueueSize:   cfg.QueueSize,
			GenesisSeed: cfg.GenesisSeed,
		}),
		limits:   ratelimit.NewTracker(),
		sessions: make(map[string]*Session),
		now:      cfg.Now,
	}
}

// Close drains and stops the trace worker.
func (r *Resolver) Close() {
	r.log.Close()
}

// GenesisSeed returns the seed used as the first previous-hash of every
// session chain.
func (r *Resolver) GenesisSeed() string {
	return r.log.GenesisSeed()
}

// LoadAtlas stores a parsed manifest and registers its context packs for
// matching. Duplicate ids are a redefinition error.
func (r *Resolver) LoadAtlas(m *atlas.Manifest) error {
	if err := r.atlases.Load(m); err != nil {
		return err
	}
	for _, cp := range m.ContextPacks {
		r.contexts.Add(contextEntry(m.ID, cp))
	}
	return nil
}

// ReplaceAtlases swaps the full atlas set and rebuilds the context
// registry, used by hot reload.
func (r *Resolver) ReplaceAtlases(manifests []*atlas.Manifest) error {
	if err := r.atlases.Replace(manifests); err != nil {
		return err
	}
	rebuilt := ctxmatch.NewRegistry()
	for _, m := range manifests {
		for _, cp := range m.ContextPacks {
			rebuilt.Add(contextEntry(m.ID, cp))
		}
	}
	r.contexts = rebuilt
	return nil
}

// AddContext registers an ad-hoc context entry outside any atlas.
func (r *Resolver) AddContext(entry ctxmatch.LoadedContext) {
	if entry.Source == "" {
		entry.Source = "ad-hoc"
	}
	r.contexts.Add(entry)
}

// ListAtlases returns loaded atlas ids in sorted order.
func (r *Resolver) ListAtlases() []string {
	var ids []string
	for id := range r.atlases.List() {
		ids = append(ids, id)
	}
	return ids
}

// GetAtlas returns a loaded manifest.
func (r *Resolver) GetAtlas(id string) (*atlas.Manifest, error) {
	return r.atlases.Get(id)
}

// CreateSession starts a session for an agent, initializes its chain tip
// to the genesis seed, and emits SessionStarted.
func (r *Resolver) CreateSession(agentID, goal string) (*Session, error) {
	return r.StartSession(protocol.NewSessionID(), agentID, goal)
}

// StartSession is CreateSession with a caller-chosen session id. Fails
// with AlreadyExists if the id is taken.
func (r *Resolver) StartSession(sessionID, agentID, goal string) (*Session, error) {
	if agentID == "" {
		return nil, fault.New(fault.ValidationError, "empty agent id")
	}
	if _, ok := r.sessions[sessionID]; ok {
		return nil, fault.New(fault.AlreadyExists, "session %q already exists", sessionID)
	}
	if err := r.log.StartSession(sessionID); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        sessionID,
		AgentID:   agentID,
		Goal:      goal,
		TraceID:   protocol.NewTraceID(),
		SpanID:    protocol.NewSpanID(),
		State:     StateActive,
		CreatedAt: r.now().UTC(),
	}
	r.sessions[sessionID] = sess

	err := r.emit(sess, sess.SpanID, "", protocol.EventSessionStarted, map[string]any{
		"agent_id": agentID,
		"goal":     goal,
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Resolve evaluates policy and matches context for one request, assembles
// the resolution, and emits CarpRequestReceived then
// CarpResolutionCompleted in that order. That event order is a protocol
// guarantee.
func (r *Resolver) Resolve(sessionID string, req *protocol.CARPRequest) (*protocol.CARPResolution, error) {
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, fault.New(fault.NotFound, "session %q not found", sessionID)
	}
	if sess.State == StateEnded {
		return nil, fault.New(fault.InvalidState, "session %q has ended", sessionID)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	view, err := r.snapshot(req)
	if err != nil {
		return nil, err
	}

	// Context matching has no data dependency on policy evaluation; run
	// them concurrently and join before assembly.
	matchCh := make(chan []ctxmatch.MatchResult, 1)
	go func() {
		matchCh <- r.contexts.Query(req.Task.Goal, req.Task.ContextHints, evalContext(req))
	}()

	decision := r.evaluator.Evaluate(req, view)
	matches := <-matchCh

	if req.Operation != protocol.OpValidate && !view.Rate.Exceeded() {
		r.limits.Increment(req.Requester.AgentID)
	}

	res := r.assemble(sess, req, decision, view, matches)

	spanID := protocol.NewSpanID()
	if err := r.emit(sess, spanID, sess.SpanID, protocol.EventCarpRequestReceived, map[string]any{
		"request_id": req.RequestID,
		"operation":  string(req.Operation),
		"agent_id":   req.Requester.AgentID,
		"goal":       req.Task.Goal,
		"risk_tier":  string(req.Task.RiskTier),
		"atlas_refs": req.AtlasRefs,
	}); err != nil {
		return nil, err
	}
	if err := r.emit(sess, spanID, sess.SpanID, protocol.EventCarpResolutionCompleted, map[string]any{
		"request_id":     req.RequestID,
		"resolution_id":  res.ResolutionID,
		"decision":       string(decision.Type),
		"reason":         decision.Reason,
		"context_blocks": len(res.ContextBlocks),
		"ttl_seconds":    res.TTLSeconds,
	}); err != nil {
		return nil, err
	}

	return res, nil
}

// EndSession emits the terminal event, waits for the chain to absorb it,
// and freezes the session.
func (r *Resolver) EndSession(sessionID string) error {
	sess, ok := r.sessions[sessionID]
	if !ok {
		return fault.New(fault.NotFound, "session %q not found", sessionID)
	}
	if sess.State == StateEnded {
		return fault.New(fault.InvalidState, "session %q already ended", sessionID)
	}

	if err := r.emit(sess, sess.SpanID, "", protocol.EventSessionEnded, map[string]any{
		"agent_id": sess.AgentID,
	}); err != nil {
		return err
	}
	r.log.Sync()
	sess.State = StateEnded
	return nil
}

// GetTrace returns the session's full chained timeline in sequence order,
// including the SessionEnded event for frozen sessions.
func (r *Resolver) GetTrace(sessionID string) ([]protocol.TRACEEvent, error) {
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, fault.New(fault.NotFound, "session %q not found", sessionID)
	}
	r.log.Sync()
	return r.log.Events(sessionID)
}

// VerifyChain recomputes the session's hash chain and reports where it
// breaks, if anywhere.
func (r *Resolver) VerifyChain(sessionID string) (trace.VerifyResult, error) {
	if _, ok := r.sessions[sessionID]; !ok {
		return trace.VerifyResult{}, fault.New(fault.NotFound, "session %q not found", sessionID)
	}
	r.log.Sync()
	return r.log.VerifyChain(sessionID)
}

// Session returns the session record.
func (r *Resolver) Session(sessionID string) (*Session, error) {
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, fault.New(fault.NotFound, "session %q not found", sessionID)
	}
	return sess, nil
}

// snapshot builds the immutable view policy evaluation runs against. A
// request referencing an unknown atlas fails immediately; an empty ref
// list means every loaded atlas.
func (r *Resolver) snapshot(req *protocol.CARPRequest) (policy.AtlasView, error) {
	var manifests []*atlas.Manifest
	if len(req.AtlasRefs) > 0 {
		for _, id := range req.AtlasRefs {
			m, err := r.atlases.Get(id)
			if err != nil {
				return policy.AtlasView{}, err
			}
			manifests = append(manifests, m)
		}
	} else {
		manifests = r.atlases.All()
	}

	limit := r.policyCfg.RateLimits.For(req.Requester.AgentID)
	snap := r.limits.Snapshot(req.Requester.AgentID, limit, r.now())

	return policy.AtlasView{
		Atlases: manifests,
		Rate:    snap,
		Config:  r.policyCfg,
	}, nil
}

// assemble builds the resolution value from the decision, the ranked
// matches, and the atlas snapshot.
func (r *Resolver) assemble(sess *Session, req *protocol.CARPRequest, decision protocol.Decision, view policy.AtlasView, matches []ctxmatch.MatchResult) *protocol.CARPResolution {
	res := &protocol.CARPResolution{
		ResolutionID: protocol.NewResolutionID(),
		RequestID:    req.RequestID,
		Timestamp:    protocol.UTCNowISO(),
		Decision:     decision,
		TTLSeconds:   r.policyCfg.ResolutionTTLSeconds,
		TraceID:      sess.TraceID,
	}

	// Context blocks are injected only for full resolutions that permit
	// the agent to proceed; validate and execute stay decision-only.
	if req.Operation == protocol.OpResolve && decision.Permits() {
		for _, m := range matches {
			res.ContextBlocks = append(res.ContextBlocks, protocol.ContextBlock{
				PackID:      m.PackID,
				Source:      m.Entry.Source,
				Content:     m.Entry.Content,
				ContentType: m.Entry.ContentType,
				Priority:    m.Entry.Priority,
				Score:       m.Score,
			})
		}
	}

	if decision.Permits() {
		ceiling := protocol.RiskRank[view.Config.MaxRiskTier]
		for _, m := range view.Atlases {
			for _, a := range m.Actions {
				tier := a.RiskTier
				if tier == "" {
					tier = protocol.RiskLow
				}
				if protocol.RiskRank[tier] > ceiling {
					res.DeniedActions = append(res.DeniedActions, protocol.DeniedAction{
						ActionID: a.ID,
						Reason:   fmt.Sprintf("risk tier %s exceeds ceiling %s", tier, view.Config.MaxRiskTier),
					})
					continue
				}
				res.AllowedActions = append(res.AllowedActions, protocol.AllowedAction{
					ActionID:    a.ID,
					Name:        a.Name,
					Description: a.Description,
					ParamSchema: a.ParamSchema,
					RiskTier:    tier,
				})
			}
		}
		res.Constraints = append(res.Constraints, view.Config.Constraints...)
	}

	if decision.Type == protocol.DecisionPartial {
		res.Constraints = append(res.Constraints, protocol.Constraint{
			ID:          "rate.soft_limit",
			Description: decision.Reason,
		})
	}

	return res
}

// emit records one raw event for the session on the non-blocking ingest
// path. Backpressure propagates to the caller untouched.
func (r *Resolver) emit(sess *Session, spanID, parentSpanID, eventType string, payload map[string]any) error {
	return r.log.Record(protocol.RawEvent{
		SessionID:    sess.ID,
		TraceID:      sess.TraceID,
		EventID:      protocol.NewEventID(),
		SpanID:       spanID,
		ParentSpanID: parentSpanID,
		Type:         eventType,
		Payload:      payload,
		Timestamp:    protocol.UTCNowISO(),
	})
}

func contextEntry(atlasID string, cp atlas.ContextPack) ctxmatch.LoadedContext {
	contentType := cp.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	return ctxmatch.LoadedContext{
		PackID:      cp.ID,
		Source:      atlasID,
		Content:     cp.Content,
		ContentType: contentType,
		Priority:    cp.Priority,
		Keywords:    cp.Keywords,
		Condition:   cp.Condition,
	}
}

func evalContext(req *protocol.CARPRequest) ctxmatch.EvalContext {
	return ctxmatch.EvalContext{
		Capabilities: req.Task.RequiredCapabilities,
		Values:       req.Context,
	}
}
