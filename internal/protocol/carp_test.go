package protocol

import (
	"encoding/json"
	"testing"

	"github.com/halcyon-sh/warden/internal/fault"
)

func validRequest() *CARPRequest {
	return &CARPRequest{
		Version:   Version,
		RequestID: "req-1",
		Timestamp: "2026-08-31T12:00:00.000Z",
		Operation: OpResolve,
		Requester: Requester{AgentID: "agent-1", SessionID: "sess-1"},
		Task:      Task{Goal: "clone the repo", RiskTier: RiskLow},
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMalformedRequests(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CARPRequest)
	}{
		{"empty agent id", func(r *CARPRequest) { r.Requester.AgentID = "" }},
		{"missing goal", func(r *CARPRequest) { r.Task.Goal = "" }},
		{"unknown operation", func(r *CARPRequest) { r.Operation = "destroy" }},
		{"unknown risk tier", func(r *CARPRequest) { r.Task.RiskTier = "extreme" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)
			if err := req.Validate(); !fault.Is(err, fault.ValidationError) {
				t.Fatalf("expected validation fault, got %v", err)
			}
		})
	}
}

func TestValidateAllowsUndeclaredRiskTier(t *testing.T) {
	req := validRequest()
	req.Task.RiskTier = ""
	if err := req.Validate(); err != nil {
		t.Fatalf("empty risk tier is legal: %v", err)
	}
}

func TestDecisionJSONCarriesOnlySetFields(t *testing.T) {
	data, err := json.Marshal(Allow())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"allow"}` {
		t.Errorf("allow = %s", data)
	}

	data, err = json.Marshal(RequiresApproval("security-team", 900))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"requires_approval","approver":"security-team","timeout_seconds":900}`
	if string(data) != want {
		t.Errorf("requires_approval = %s, want %s", data, want)
	}
}

func TestDecisionPermits(t *testing.T) {
	cases := []struct {
		d    Decision
		want bool
	}{
		{Allow(), true},
		{Partial("soft limit"), true},
		{Deny("nope"), false},
		{RequiresApproval("operator", 60), false},
	}
	for _, tc := range cases {
		if tc.d.Permits() != tc.want {
			t.Errorf("%s.Permits() = %v, want %v", tc.d.Type, tc.d.Permits(), tc.want)
		}
	}
}

func TestRiskRankOrdering(t *testing.T) {
	order := []RiskTier{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	for i := 1; i < len(order); i++ {
		if RiskRank[order[i-1]] >= RiskRank[order[i]] {
			t.Errorf("%s should rank below %s", order[i-1], order[i])
		}
	}
}
