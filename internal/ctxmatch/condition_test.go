package ctxmatch

import "testing"

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"", "anything", true},
		{"*", "anything", true},
		{"*secret*", "my-secret-file", true},
		{"*secret*", "MY-SECRET-FILE", true},
		{"*secret*", "public", false},
		{"*.pem", "server.pem", true},
		{"*.pem", "server.crt", false},
		{"/etc/*", "/etc/passwd", true},
		{"/etc/*", "/var/log", false},
		{"exact", "exact", true},
		{"exact", "Exact", true},
		{"exact", "exactly", false},
	}
	for _, tc := range cases {
		if got := MatchPattern(tc.pattern, tc.value); got != tc.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}

func TestNilConditionAlwaysPasses(t *testing.T) {
	var c *Condition
	if !c.Eval(EvalContext{}) {
		t.Fatal("nil condition should pass")
	}
}

func TestConditionRequiresAllPredicates(t *testing.T) {
	c := &Condition{
		RequireCapability: "http_request",
		ResourcePattern:   "*api.example.com*",
	}

	ec := EvalContext{
		Capabilities: []string{"HTTP_Request"},
		Values:       map[string]string{"resource": "https://api.example.com/v1"},
	}
	if !c.Eval(ec) {
		t.Fatal("both predicates hold: condition should pass")
	}

	ec.Capabilities = nil
	if c.Eval(ec) {
		t.Fatal("missing capability: condition should fail")
	}

	ec.Capabilities = []string{"http_request"}
	ec.Values["resource"] = "https://other.example.org"
	if c.Eval(ec) {
		t.Fatal("resource mismatch: condition should fail")
	}
}
