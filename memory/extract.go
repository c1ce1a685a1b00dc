package memory

import (
	"regexp"
	"strings"
)

// Extractor mines durable preferences and facts out of a turn. Returned
// entries carry Kind, Content, Metadata, Importance, and Confidence;
// the manager fills in identity fields before persisting.
type Extractor interface {
	Extract(turn Turn) []Entry
}

const (
	importanceConversation = 0.7
	importancePreference   = 0.9
	importanceFact         = 0.8
	importanceContext      = 0.6
	importanceSummary      = 0.8
)

// DefaultExtractors returns the standard extractor chain.
func DefaultExtractors() []Extractor {
	return []Extractor{
		languageExtractor{},
		paymentExtractor{},
		locationExtractor{},
		contactFactExtractor{},
	}
}

// languageExtractor captures an explicit language preference.
type languageExtractor struct{}

func (languageExtractor) Extract(turn Turn) []Entry {
	msg := strings.ToLower(turn.UserMessage)
	var lang string
	switch {
	case strings.Contains(msg, "kinyarwanda"), strings.Contains(msg, "ikinyarwanda"):
		lang = "kinyarwanda"
	case strings.Contains(msg, "french"), strings.Contains(msg, "francais"), strings.Contains(msg, "français"):
		lang = "french"
	case strings.Contains(msg, "english"):
		lang = "english"
	default:
		return nil
	}
	return []Entry{{
		Kind:       KindPreference,
		Content:    "Preferred language: " + lang,
		Metadata:   map[string]string{"preference": "language", "value": lang},
		Tags:       []string{"preference", "language"},
		Entities:   []string{lang},
		Importance: importancePreference,
		Confidence: 0.9,
	}}
}

// paymentExtractor captures a stated payment method preference.
type paymentExtractor struct{}

var paymentPattern = regexp.MustCompile(`mobile\s*money|momo|cash|credit`)

func (paymentExtractor) Extract(turn Turn) []Entry {
	msg := strings.ToLower(turn.UserMessage)
	match := paymentPattern.FindString(msg)
	if match == "" {
		return nil
	}
	method := strings.Join(strings.Fields(match), " ")
	if method == "momo" {
		method = "mobile money"
	}
	return []Entry{{
		Kind:       KindPreference,
		Content:    "Preferred payment method: " + method,
		Metadata:   map[string]string{"preference": "payment_method", "value": method},
		Tags:       []string{"preference", "payment"},
		Entities:   []string{method},
		Importance: importancePreference,
		Confidence: 0.8,
	}}
}

// locationExtractor captures mentioned places as low-confidence facts.
type locationExtractor struct{}

var locationPattern = regexp.MustCompile(`(?:in|to|from)\s+([a-z][a-z\s]{2,30})`)

func (locationExtractor) Extract(turn Turn) []Entry {
	msg := strings.ToLower(turn.UserMessage)
	match := locationPattern.FindStringSubmatch(msg)
	if match == nil {
		return nil
	}
	place := strings.TrimSpace(match[1])
	return []Entry{{
		Kind:       KindFact,
		Content:    "Mentioned location: " + place,
		Metadata:   map[string]string{"fact": "location", "value": place},
		Tags:       []string{"fact", "location"},
		Entities:   []string{place},
		Importance: importanceFact,
		Confidence: 0.5,
	}}
}

// contactFactExtractor captures phone numbers, names, and employers.
type contactFactExtractor struct{}

var (
	phonePattern    = regexp.MustCompile(`(\+25[0-9]{9}|07[0-9]{8})`)
	namePattern     = regexp.MustCompile(`(?i)my name is ([A-Za-z\s]+)`)
	employerPattern = regexp.MustCompile(`(?i)(?:work at|business|company)\s+([A-Za-z\s]+)`)
)

func (contactFactExtractor) Extract(turn Turn) []Entry {
	var entries []Entry
	if match := phonePattern.FindStringSubmatch(turn.UserMessage); match != nil {
		entries = append(entries, Entry{
			Kind:       KindFact,
			Content:    "Phone number: " + match[1],
			Metadata:   map[string]string{"fact": "phone", "value": match[1]},
			Tags:       []string{"fact", "contact"},
			Entities:   []string{match[1]},
			Importance: importanceFact,
			Confidence: 0.9,
		})
	}
	if match := namePattern.FindStringSubmatch(turn.UserMessage); match != nil {
		name := strings.TrimSpace(match[1])
		entries = append(entries, Entry{
			Kind:       KindFact,
			Content:    "Name: " + name,
			Metadata:   map[string]string{"fact": "name", "value": name},
			Tags:       []string{"fact", "contact"},
			Entities:   []string{name},
			Importance: importanceFact,
			Confidence: 0.9,
		})
	}
	if match := employerPattern.FindStringSubmatch(turn.UserMessage); match != nil {
		employer := strings.TrimSpace(match[1])
		entries = append(entries, Entry{
			Kind:       KindFact,
			Content:    "Works at: " + employer,
			Metadata:   map[string]string{"fact": "employer", "value": employer},
			Tags:       []string{"fact", "employer"},
			Entities:   []string{employer},
			Importance: importanceFact,
			Confidence: 0.7,
		})
	}
	return entries
}
