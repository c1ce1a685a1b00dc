package engine

import (
	"sync"
	"time"

	"github.com/easymo/omni-agent-go/core"
)

// fallbackText is the user-safe reply for any unrecoverable run failure.
const fallbackText = "I apologize, but I'm experiencing technical difficulties right now. Please try again in a moment, or contact support if the problem continues."

// FallbackReply is returned whenever the run cannot produce a real
// answer. It never exposes internal error detail.
func FallbackReply() *core.Reply {
	return &core.Reply{
		Text: fallbackText,
		Buttons: []core.Button{
			{Text: "Try Again", Payload: "retry"},
			{Text: "Contact Support", Payload: "support"},
		},
	}
}

// rateLimitText asks the user to slow down without naming the limiter.
const rateLimitText = "You're sending messages a bit too quickly. Give me a few seconds and try again."

// ContextualButtons suggests follow-up actions for the active domain.
func ContextualButtons(domain string) []core.Button {
	switch domain {
	case "payments":
		return []core.Button{
			{Text: "Get Paid", Payload: "payments:get_paid"},
			{Text: "Check Status", Payload: "payments:status"},
		}
	case "moto":
		return []core.Button{
			{Text: "Find a Ride", Payload: "moto:find_ride"},
			{Text: "Go Online", Payload: "moto:go_online"},
		}
	case "listings":
		return []core.Button{
			{Text: "Search Listings", Payload: "listings:search"},
			{Text: "Post a Listing", Payload: "listings:create"},
		}
	case "commerce":
		return []core.Button{
			{Text: "See Menu", Payload: "commerce:menu"},
			{Text: "My Orders", Payload: "commerce:orders"},
		}
	case "admin_support":
		return []core.Button{
			{Text: "Talk to a Human", Payload: "support:handoff"},
			{Text: "Main Menu", Payload: "menu"},
		}
	default:
		return nil
	}
}

// duplicateSuppressor short-circuits identical messages resent inside
// the window, returning the previous reply instead of rerunning.
// WhatsApp retries deliver the same text twice within seconds.
type duplicateSuppressor struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]dupeEntry
	now    func() time.Time
}

type dupeEntry struct {
	text  string
	at    time.Time
	reply *core.Reply
}

func newDuplicateSuppressor(window time.Duration) *duplicateSuppressor {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &duplicateSuppressor{
		window: window,
		seen:   make(map[string]dupeEntry),
		now:    time.Now,
	}
}

func (d *duplicateSuppressor) check(ownerID, text string) (*core.Reply, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.seen[ownerID]
	if !ok || entry.text != text || d.now().Sub(entry.at) > d.window {
		return nil, false
	}
	return entry.reply, true
}

func (d *duplicateSuppressor) remember(ownerID, text string, reply *core.Reply) {
	d.mu.Lock()
	d.seen[ownerID] = dupeEntry{text: text, at: d.now(), reply: reply}
	d.mu.Unlock()
}
