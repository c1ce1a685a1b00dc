// Package intent classifies inbound utterances into domain/intent pairs.
//
// Classification is two-tier: an ordered list of pattern rules evaluated
// first-match-wins, then an LLM classifier for anything the rules miss.
// Route never returns an error; when the fallback classifier also fails the
// caller gets a fixed low-confidence default.
package intent

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
)

// Result is a structured classification of one message.
type Result struct {
	Domain     string            `json:"domain"`
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots"`
	Fallback   bool              `json:"fallback"`
}

// Rule is one ordered pattern rule. Named capture groups in Pattern become
// slot values on a match.
type Rule struct {
	Pattern *regexp.Regexp
	Domain  string
	Intent  string
}

// Classifier is the LLM fallback used when no rule matches.
type Classifier interface {
	Classify(ctx context.Context, message, ownerID string, convContext map[string]string) (*Result, error)
}

// Router evaluates rules in order and escalates to the classifier.
// Rules are mutable at runtime; the list is copied under a read lock before
// matching so concurrent registration is never observed mid-iteration.
type Router struct {
	mu         sync.RWMutex
	rules      []Rule
	classifier Classifier
}

// ruleConfidence is the fixed confidence of a rule hit.
const ruleConfidence = 0.9

// Default returned when both rules and the classifier come up empty.
var defaultResult = Result{
	Domain:     "admin_support",
	Intent:     "help",
	Confidence: 0.1,
	Fallback:   true,
}

// NewRouter creates a router with the given ordered rules. classifier may be
// nil, in which case misses go straight to the default.
func NewRouter(rules []Rule, classifier Classifier) *Router {
	return &Router{rules: rules, classifier: classifier}
}

// AddRule appends a rule at the end of the evaluation order.
func (r *Router) AddRule(rule Rule) {
	r.mu.Lock()
	r.rules = append(r.rules, rule)
	r.mu.Unlock()
}

// Route classifies one message. It never returns an error: classifier
// failures degrade to the fixed default.
func (r *Router) Route(ctx context.Context, message, ownerID string, convContext map[string]string) *Result {
	normalized := strings.ToLower(strings.TrimSpace(message))

	r.mu.RLock()
	rules := make([]Rule, len(r.rules))
	copy(rules, r.rules)
	r.mu.RUnlock()

	for _, rule := range rules {
		match := rule.Pattern.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}
		slots := make(map[string]string)
		for i, name := range rule.Pattern.SubexpNames() {
			if name != "" && i < len(match) && match[i] != "" {
				slots[name] = strings.TrimSpace(match[i])
			}
		}
		return &Result{
			Domain:     rule.Domain,
			Intent:     rule.Intent,
			Confidence: ruleConfidence,
			Slots:      slots,
		}
	}

	if r.classifier == nil {
		res := defaultResult
		res.Slots = map[string]string{}
		return &res
	}

	res, err := r.classifier.Classify(ctx, normalized, ownerID, convContext)
	if err != nil || res == nil {
		log.Printf("[INTENT] Classifier fallback failed: %v", err)
		res := defaultResult
		res.Slots = map[string]string{}
		return &res
	}
	res.Fallback = true
	if res.Slots == nil {
		res.Slots = map[string]string{}
	}
	if res.Domain == "" {
		res.Domain = defaultResult.Domain
	}
	if res.Intent == "" {
		res.Intent = defaultResult.Intent
	}
	return res
}

// DefaultRules returns the standard easyMO rule set. Order matters:
// evaluation is first-match-wins, not best-match.
func DefaultRules() []Rule {
	return []Rule{
		// Payments
		{regexp.MustCompile(`get paid|receive money|qr.*pay`), "payments", "get_paid"},
		{regexp.MustCompile(`pay someone|send money|transfer`), "payments", "pay_someone"},
		{regexp.MustCompile(`payment.*history|transaction.*history`), "payments", "history"},

		// Transport
		{regexp.MustCompile(`driver.*on|start.*driving|go.*online`), "moto", "driver_create_trip"},
		{regexp.MustCompile(`need.*ride|book.*trip|find.*driver|ride to (?P<destination>[a-z ]+)`), "moto", "passenger_create_intent"},

		// Listings
		{regexp.MustCompile(`rent.*house|property.*rent|apartment`), "listings", "property_search"},
		{regexp.MustCompile(`sell.*car|vehicle.*sale|motorbike`), "listings", "vehicle_search"},

		// Commerce
		{regexp.MustCompile(`pharmacy|medicine|drugs`), "commerce", "order_pharmacy"},
		{regexp.MustCompile(`hardware|tools|construction`), "commerce", "order_hardware"},
		{regexp.MustCompile(`\bbar\b|drink|beer|restaurant`), "commerce", "order_bar"},

		// Support
		{regexp.MustCompile(`help|support|problem|human`), "admin_support", "help"},
	}
}
