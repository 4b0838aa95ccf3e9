package transport

import (
	"net/http"
	"testing"
)

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		pattern string
		want    bool
	}{
		{"wildcard prefix matches nested path", "api.openai.com/v1/chat/completions", "api.openai.com/*", true},
		{"wildcard prefix matches bare host", "api.openai.com", "api.openai.com/*", true},
		{"wildcard prefix matches narrower subtree", "api.openai.com/v1/chat/completions", "api.openai.com/v1/chat/*", true},
		{"wildcard prefix rejects sibling path", "api.openai.com/v1/embeddings", "api.openai.com/v1/chat/*", false},
		{"exact match", "api.anthropic.com/v1/messages", "api.anthropic.com/v1/messages", true},
		{"exact mismatch", "api.anthropic.com/v1/other", "api.anthropic.com/v1/messages", false},
		{"different host rejected", "api.github.com/repos", "api.openai.com/*", false},
		{"single segment wildcard matches one segment", "api.openai.com/v1/x", "api.openai.com/v1/*", true},
		{"single segment wildcard does not cross segments", "api.openai.com/v1/x/chat", "api.openai.com/*/chat", false},
		{"bare star matches anything", "anything/at/all", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := patternMatches(tt.pattern, tt.value); got != tt.want {
				t.Errorf("patternMatches(%q, %q) = %v, want %v", tt.pattern, tt.value, got, tt.want)
			}
		})
	}
}

func TestRuleMatchesRestrictsByMethod(t *testing.T) {
	rule := Rule{Pattern: "api.openai.com/*", Methods: []string{"POST"}}

	post, _ := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat", nil)
	if !rule.matches(post) {
		t.Error("POST should match a rule scoped to POST")
	}

	get, _ := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/chat", nil)
	if rule.matches(get) {
		t.Error("GET should not match a rule scoped to POST")
	}
}

func TestBuildClassifierOrdersByPatternSpecificityRegardlessOfRegistrationOrder(t *testing.T) {
	classify := BuildClassifier(
		[]Rule{
			{Pattern: "api.openai.com/*", Action: "catch-all"},
			{Pattern: "api.openai.com/v1/chat/*", Action: "chat"},
		},
		"default",
		nil,
	)

	req, _ := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/chat/completions", nil)
	acq := classify(req)
	if acq.Action != "chat" {
		t.Errorf("action = %q, want the more specific rule \"chat\" to win despite being registered second", acq.Action)
	}
}

func TestBuildClassifierMethodScopedRuleBeatsUnscopedAtEqualPrefixLength(t *testing.T) {
	classify := BuildClassifier(
		[]Rule{
			{Pattern: "api.openai.com/v1/chat/*", Action: "chat-any-method"},
			{Pattern: "api.openai.com/v1/chat/*", Action: "chat-post-only", Methods: []string{"POST"}},
		},
		"default",
		nil,
	)

	req, _ := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
	acq := classify(req)
	if acq.Action != "chat-post-only" {
		t.Errorf("action = %q, want the method-scoped rule to win the tie", acq.Action)
	}
}
