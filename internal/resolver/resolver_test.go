package resolver

import (
	"testing"
	"time"

	"github.com/halcyon-sh/warden/internal/atlas"
	"github.com/halcyon-sh/warden/internal/ctxmatch"
	"github.com/halcyon-sh/warden/internal/fault"
	"github.com/halcyon-sh/warden/internal/policy"
	"github.com/halcyon-sh/warden/internal/protocol"
	"github.com/halcyon-sh/warden/internal/ratelimit"
	"github.com/halcyon-sh/warden/internal/trace"
)

func gitAtlas() *atlas.Manifest {
	return &atlas.Manifest{
		ID:      "git-ops",
		Name:    "Git Operations",
		Version: "1.0.0",
		Actions: []atlas.Action{
			{ID: "clone", Name: "git_clone", RiskTier: protocol.RiskLow},
			{ID: "push", Name: "git_push", RiskTier: protocol.RiskMedium},
			{ID: "force-push", Name: "git_force_push", RiskTier: protocol.RiskCritical},
		},
		ContextPacks: []atlas.ContextPack{
			{ID: "git-conventions", Content: "Use conventional commits.", Priority: 10, Keywords: []string{"git", "commit", "clone"}},
		},
	}
}

func newTestResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	r := New(cfg)
	t.Cleanup(r.Close)
	if err := r.LoadAtlas(gitAtlas()); err != nil {
		t.Fatalf("LoadAtlas: %v", err)
	}
	return r
}

func resolveRequest(sessionID string, op protocol.Operation, goal string) *protocol.CARPRequest {
	return &protocol.CARPRequest{
		Version:   protocol.Version,
		RequestID: protocol.NewRequestID(),
		Timestamp: protocol.UTCNowISO(),
		Operation: op,
		Requester: protocol.Requester{AgentID: "agent-1", SessionID: sessionID},
		Task:      protocol.Task{Goal: goal, RiskTier: protocol.RiskLow},
	}
}

func TestSessionLifecycleEmitsOrderedChainedEvents(t *testing.T) {
	r := newTestResolver(t, Config{})

	sess, err := r.CreateSession("agent-1", "work on the repo")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.State != StateActive {
		t.Fatalf("new session state = %s, want active", sess.State)
	}

	if _, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := r.EndSession(sess.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	events, err := r.GetTrace(sess.ID)
	if err != nil {
		t.Fatalf("GetTrace: %v", err)
	}
	wantTypes := []string{
		protocol.EventSessionStarted,
		protocol.EventCarpRequestReceived,
		protocol.EventCarpResolutionCompleted,
		protocol.EventSessionEnded,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, ev := range events {
		if ev.Type != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, ev.Type, wantTypes[i])
		}
		if ev.Sequence != i+1 {
			t.Errorf("event %d sequence = %d, want %d", i, ev.Sequence, i+1)
		}
		if ev.TraceID != sess.TraceID {
			t.Errorf("event %d trace id = %s, want %s", i, ev.TraceID, sess.TraceID)
		}
	}

	result, err := r.VerifyChain(sess.ID)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !result.Valid {
		t.Fatalf("chain should verify, got: %s", result.Message)
	}
}

func TestEndedSessionIsTerminal(t *testing.T) {
	r := newTestResolver(t, Config{})

	sess, err := r.CreateSession("agent-1", "short run")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := r.EndSession(sess.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	if err := r.EndSession(sess.ID); !fault.Is(err, fault.InvalidState) {
		t.Errorf("second EndSession: expected invalid_state, got %v", err)
	}
	_, err = r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "anything"))
	if !fault.Is(err, fault.InvalidState) {
		t.Errorf("Resolve on ended session: expected invalid_state, got %v", err)
	}

	// The frozen timeline stays readable, terminal event included.
	events, err := r.GetTrace(sess.ID)
	if err != nil {
		t.Fatalf("GetTrace on ended session: %v", err)
	}
	if events[len(events)-1].Type != protocol.EventSessionEnded {
		t.Errorf("last event = %s, want session_ended", events[len(events)-1].Type)
	}
}

func TestStartSessionRejectsDuplicateID(t *testing.T) {
	r := newTestResolver(t, Config{})

	if _, err := r.StartSession("sess-dup", "agent-1", "first"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	_, err := r.StartSession("sess-dup", "agent-2", "second")
	if !fault.Is(err, fault.AlreadyExists) {
		t.Fatalf("expected already_exists, got %v", err)
	}
}

func TestStartSessionRejectsEmptyAgent(t *testing.T) {
	r := newTestResolver(t, Config{})
	if _, err := r.CreateSession("", "goal"); !fault.Is(err, fault.ValidationError) {
		t.Fatal("empty agent id should be a validation error")
	}
}

func TestUnknownSessionOperationsAreNotFound(t *testing.T) {
	r := newTestResolver(t, Config{})

	if _, err := r.Resolve("ghost", resolveRequest("ghost", protocol.OpResolve, "x")); !fault.Is(err, fault.NotFound) {
		t.Errorf("Resolve: expected not_found, got %v", err)
	}
	if err := r.EndSession("ghost"); !fault.Is(err, fault.NotFound) {
		t.Errorf("EndSession: expected not_found, got %v", err)
	}
	if _, err := r.GetTrace("ghost"); !fault.Is(err, fault.NotFound) {
		t.Errorf("GetTrace: expected not_found, got %v", err)
	}
	if _, err := r.VerifyChain("ghost"); !fault.Is(err, fault.NotFound) {
		t.Errorf("VerifyChain: expected not_found, got %v", err)
	}
}

func TestResolveInjectsRankedContextBlocks(t *testing.T) {
	r := newTestResolver(t, Config{})
	sess, _ := r.CreateSession("agent-1", "work")

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo and commit"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Decision.Type != protocol.DecisionAllow {
		t.Fatalf("decision = %s, want allow", res.Decision.Type)
	}
	if len(res.ContextBlocks) != 1 {
		t.Fatalf("context blocks = %d, want 1", len(res.ContextBlocks))
	}
	cb := res.ContextBlocks[0]
	if cb.PackID != "git-conventions" || cb.Source != "git-ops" {
		t.Errorf("block = %+v", cb)
	}
	if cb.Score < 2 {
		t.Errorf("score = %d, want at least 2 keyword hits", cb.Score)
	}
	if cb.ContentType != "text/plain" {
		t.Errorf("content type = %q, want the text/plain default", cb.ContentType)
	}
}

func TestValidateIsDecisionOnly(t *testing.T) {
	r := newTestResolver(t, Config{})
	sess, _ := r.CreateSession("agent-1", "work")

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpValidate, "clone the git repo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Decision.Type != protocol.DecisionAllow {
		t.Fatalf("decision = %s, want allow", res.Decision.Type)
	}
	if len(res.ContextBlocks) != 0 {
		t.Errorf("validate must not inject context, got %d blocks", len(res.ContextBlocks))
	}
}

func TestExecuteCarriesActionsButNoContext(t *testing.T) {
	r := newTestResolver(t, Config{})
	sess, _ := r.CreateSession("agent-1", "work")

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpExecute, "clone the git repo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.ContextBlocks) != 0 {
		t.Errorf("execute must not inject context, got %d blocks", len(res.ContextBlocks))
	}
	if len(res.AllowedActions) == 0 {
		t.Error("execute should still enumerate allowed actions")
	}
}

func TestActionsAboveCeilingAreDeniedWithReason(t *testing.T) {
	r := newTestResolver(t, Config{})
	sess, _ := r.CreateSession("agent-1", "work")

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	allowed := map[string]bool{}
	for _, a := range res.AllowedActions {
		allowed[a.ActionID] = true
	}
	if !allowed["clone"] || !allowed["push"] {
		t.Errorf("low/medium actions should be allowed, got %v", allowed)
	}
	if len(res.DeniedActions) != 1 || res.DeniedActions[0].ActionID != "force-push" {
		t.Fatalf("denied = %+v, want force-push only", res.DeniedActions)
	}
	if res.DeniedActions[0].Reason == "" {
		t.Error("denied action must carry a reason")
	}
}

func TestDenyDecisionSuppressesContextAndActions(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.DenyRules = []policy.DenyRule{{GoalPattern: "*git*", Reason: "git is off limits"}}
	r := newTestResolver(t, Config{Policy: cfg})
	sess, _ := r.CreateSession("agent-1", "work")

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Decision.Type != protocol.DecisionDeny {
		t.Fatalf("decision = %s, want deny", res.Decision.Type)
	}
	if len(res.ContextBlocks) != 0 || len(res.AllowedActions) != 0 {
		t.Error("deny must not leak context or actions")
	}
}

func TestUnknownAtlasRefFailsBeforeEvaluation(t *testing.T) {
	r := newTestResolver(t, Config{})
	sess, _ := r.CreateSession("agent-1", "work")

	req := resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo")
	req.AtlasRefs = []string{"git-ops", "absent"}
	if _, err := r.Resolve(sess.ID, req); !fault.Is(err, fault.NotFound) {
		t.Fatalf("expected not_found for unknown atlas ref, got %v", err)
	}
}

func TestMalformedRequestIsRejected(t *testing.T) {
	r := newTestResolver(t, Config{})
	sess, _ := r.CreateSession("agent-1", "work")

	req := resolveRequest(sess.ID, protocol.OpResolve, "")
	if _, err := r.Resolve(sess.ID, req); !fault.Is(err, fault.ValidationError) {
		t.Fatalf("expected validation fault for empty goal, got %v", err)
	}
}

func TestRateLimitDeniesAfterWindowFillsAndValidateDoesNotCount(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.RateLimits = ratelimit.Limits{"*": {MaxRequests: 2, Window: time.Minute}}

	clock := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	r := newTestResolver(t, Config{Policy: cfg, Now: func() time.Time { return clock }})
	sess, _ := r.CreateSession("agent-1", "work")

	// Dry runs are free.
	for i := 0; i < 5; i++ {
		res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpValidate, "clone the git repo"))
		if err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
		if res.Decision.Type != protocol.DecisionAllow {
			t.Fatalf("validate %d: decision = %s", i, res.Decision.Type)
		}
	}

	for i := 0; i < 2; i++ {
		res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo"))
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if res.Decision.Type != protocol.DecisionAllow {
			t.Fatalf("resolve %d: decision = %s", i, res.Decision.Type)
		}
	}

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo"))
	if err != nil {
		t.Fatalf("third resolve: %v", err)
	}
	if res.Decision.Type != protocol.DecisionDeny {
		t.Fatalf("third resolve decision = %s, want rate-limit deny", res.Decision.Type)
	}

	// A new window clears the counter.
	clock = clock.Add(time.Minute)
	res, err = r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo"))
	if err != nil {
		t.Fatalf("post-window resolve: %v", err)
	}
	if res.Decision.Type != protocol.DecisionAllow {
		t.Fatalf("post-window decision = %s, want allow", res.Decision.Type)
	}
}

func TestSoftLimitYieldsPartialWithConstraint(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.RateLimits = ratelimit.Limits{"*": {MaxRequests: 5, SoftLimit: 1, Window: time.Minute}}

	r := newTestResolver(t, Config{Policy: cfg})
	sess, _ := r.CreateSession("agent-1", "work")

	if _, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo")); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo"))
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if res.Decision.Type != protocol.DecisionPartial {
		t.Fatalf("decision = %s, want partial", res.Decision.Type)
	}
	found := false
	for _, c := range res.Constraints {
		if c.ID == "rate.soft_limit" {
			found = true
		}
	}
	if !found {
		t.Errorf("partial resolution should carry the soft-limit constraint, got %+v", res.Constraints)
	}
	if len(res.ContextBlocks) == 0 {
		t.Error("partial still permits: context should be injected")
	}
}

func TestResolutionCarriesPolicyTTLAndConstraints(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.ResolutionTTLSeconds = 120
	cfg.Constraints = []protocol.Constraint{{ID: "audit.full", Description: "every action is audited"}}

	r := newTestResolver(t, Config{Policy: cfg})
	sess, _ := r.CreateSession("agent-1", "work")

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "clone the git repo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.TTLSeconds != 120 {
		t.Errorf("ttl = %d, want 120", res.TTLSeconds)
	}
	if len(res.Constraints) != 1 || res.Constraints[0].ID != "audit.full" {
		t.Errorf("constraints = %+v", res.Constraints)
	}
	if res.TraceID != sess.TraceID {
		t.Errorf("resolution trace id = %s, want session's %s", res.TraceID, sess.TraceID)
	}
}

func TestReplaceAtlasesRebuildsContextMatching(t *testing.T) {
	r := newTestResolver(t, Config{})
	sess, _ := r.CreateSession("agent-1", "work")

	next := &atlas.Manifest{
		ID:      "deploy-ops",
		Name:    "Deploy Operations",
		Version: "1.0.0",
		Actions: []atlas.Action{{ID: "roll", Name: "deploy_rollout", RiskTier: protocol.RiskLow}},
		ContextPacks: []atlas.ContextPack{
			{ID: "deploy-runbook", Content: "Roll out gradually.", Priority: 5, Keywords: []string{"deploy"}},
		},
	}
	if err := r.ReplaceAtlases([]*atlas.Manifest{next}); err != nil {
		t.Fatalf("ReplaceAtlases: %v", err)
	}

	if got := r.ListAtlases(); len(got) != 1 || got[0] != "deploy-ops" {
		t.Fatalf("ListAtlases = %v", got)
	}

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "deploy the service"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.ContextBlocks) != 1 || res.ContextBlocks[0].PackID != "deploy-runbook" {
		t.Fatalf("blocks = %+v, want the replacement atlas's pack", res.ContextBlocks)
	}
	for _, cb := range res.ContextBlocks {
		if cb.PackID == "git-conventions" {
			t.Error("old atlas's context pack survived the replace")
		}
	}
}

func TestCustomGenesisSeedFlowsThroughVerification(t *testing.T) {
	seed := "sha256:1111111111111111111111111111111111111111111111111111111111111111"
	r := newTestResolver(t, Config{GenesisSeed: seed})

	if r.GenesisSeed() != seed {
		t.Fatalf("GenesisSeed = %q", r.GenesisSeed())
	}
	sess, _ := r.CreateSession("agent-1", "work")
	if err := r.EndSession(sess.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	events, _ := r.GetTrace(sess.ID)
	if events[0].PrevEventHash != seed {
		t.Errorf("first event prev hash = %q, want the custom seed", events[0].PrevEventHash)
	}
	if result := trace.VerifyEvents(events, seed); !result.Valid {
		t.Errorf("chain should verify against its seed: %s", result.Message)
	}
	if result := trace.VerifyEvents(events, trace.GenesisSeed); result.Valid {
		t.Error("chain must not verify against the wrong seed")
	}
}

func TestAdHocContextDefaultsSource(t *testing.T) {
	r := newTestResolver(t, Config{})
	r.AddContext(ctxmatch.LoadedContext{
		PackID:   "scratch-notes",
		Content:  "Scratch pad guidance.",
		Keywords: []string{"scratch"},
	})
	sess, _ := r.CreateSession("agent-1", "work")

	res, err := r.Resolve(sess.ID, resolveRequest(sess.ID, protocol.OpResolve, "scratch pad please"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.ContextBlocks) != 1 || res.ContextBlocks[0].Source != "ad-hoc" {
		t.Fatalf("blocks = %+v, want ad-hoc source", res.ContextBlocks)
	}
}
