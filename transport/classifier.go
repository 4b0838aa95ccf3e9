package transport

import (
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/admitgov/admitgov"
)

// Rule maps requests onto an admission action. A rule matches a request when
// both its Methods (if any) and its Pattern (always) match. BuildClassifier
// compiles rules into specificity order — the rule with the longest literal
// Pattern prefix wins ties — so a caller can register a catch-all
// ("api.openai.com/*") ahead of a narrower override
// ("api.openai.com/v1/chat/*") without the narrower rule being shadowed by
// registration order.
type Rule struct {
	// Pattern matches against "host+path" of the request URL. A trailing
	// "/*" matches the literal prefix before it and anything nested under
	// it; a bare "*" matches everything; any other pattern is matched with
	// path.Match, so a single "*" stands in for one path segment.
	Pattern string
	// Methods restricts the rule to specific HTTP methods (case-insensitive).
	// Empty matches any method.
	Methods  []string
	Action   string
	Priority admitgov.Priority
	Weight   int
}

func (r Rule) matches(req *http.Request) bool {
	if len(r.Methods) > 0 && !methodAllowed(r.Methods, req.Method) {
		return false
	}
	return patternMatches(r.Pattern, hostPath(req.URL))
}

// specificity orders rules so more specific ones are tried first: a longer
// literal prefix beats a shorter one, and a rule scoped to particular
// methods beats one that matches any method.
func (r Rule) specificity() int {
	prefix := strings.TrimSuffix(strings.TrimRight(r.Pattern, "/"), "*")
	score := len(prefix) * 2
	if len(r.Methods) > 0 {
		score++
	}
	return score
}

func methodAllowed(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func hostPath(u *url.URL) string {
	return strings.TrimRight(u.Host+u.Path, "/")
}

// patternMatches reports whether hostPath satisfies pattern. A trailing "/*"
// is a prefix match against everything nested under it and a bare "*"
// matches everything; otherwise the pattern is matched with path.Match,
// which treats "*" as matching within a single path segment only.
func patternMatches(pattern, value string) bool {
	pattern = strings.TrimRight(pattern, "/")
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		return value == prefix || strings.HasPrefix(value, prefix+"/")
	}
	if pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}

// Classifier turns an *http.Request into an admitgov.AcquireRequest.
type Classifier func(*http.Request) admitgov.AcquireRequest

// ActorFunc extracts the fairness actor ID from a request. The default used
// by BuildClassifier reads the X-Actor-ID header, falling back to the empty
// string (a single shared fairness bucket) when absent.
type ActorFunc func(*http.Request) string

// HeaderActor returns an ActorFunc reading actor identity from header.
func HeaderActor(header string) ActorFunc {
	return func(req *http.Request) string { return req.Header.Get(header) }
}

// BuildClassifier compiles rules into a Classifier. Rules are reordered by
// specificity (see Rule.specificity) so registration order doesn't matter;
// the most specific matching rule wins. Requests matching no rule fall back
// to defaultAction with Priority Interactive and Weight 1. actorFn is used
// to populate AcquireRequest.ActorID for every rule; pass nil to use
// HeaderActor("X-Actor-ID").
func BuildClassifier(rules []Rule, defaultAction string, actorFn ActorFunc) Classifier {
	if actorFn == nil {
		actorFn = HeaderActor("X-Actor-ID")
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].specificity() > ordered[j].specificity()
	})

	return func(req *http.Request) admitgov.AcquireRequest {
		actorID := actorFn(req)
		for _, rule := range ordered {
			if !rule.matches(req) {
				continue
			}
			weight := rule.Weight
			if weight <= 0 {
				weight = 1
			}
			return admitgov.AcquireRequest{
				ActorID:  actorID,
				Action:   rule.Action,
				Priority: rule.Priority,
				Estimate: &admitgov.Estimate{Weight: weight},
			}
		}
		return admitgov.AcquireRequest{
			ActorID:  actorID,
			Action:   defaultAction,
			Priority: admitgov.Interactive,
			Estimate: &admitgov.Estimate{Weight: 1},
		}
	}
}
