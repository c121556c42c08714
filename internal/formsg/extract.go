package formsg

import (
	"fmt"
	"sort"
	"strings"
)

// Registrant is what a submission tells us about the attendee.
type Registrant struct {
	Email      string
	Name       string
	Additional map[string]string
}

// Extract applies the email/name heuristics to attempt. Questions are matched
// case-insensitively on the substrings "email" and then "name"; the first
// non-empty answer wins. Every pair not consumed that way lands in
// Additional. If no email question was answered, string values containing
// "@" are taken from the payload's top level and then from its nested data.
func Extract(attempt ParseAttempt, payload map[string]any) Registrant {
	reg := Registrant{Additional: map[string]string{}}

	for _, p := range attempt.Pairs {
		q := strings.ToLower(p.Question)
		switch {
		case reg.Email == "" && p.Answer != "" && strings.Contains(q, "email"):
			reg.Email = p.Answer
		case reg.Name == "" && p.Answer != "" && !strings.Contains(q, "email") && strings.Contains(q, "name"):
			reg.Name = p.Answer
		default:
			addUnique(reg.Additional, p.Question, p.Answer)
		}
	}

	if reg.Email == "" {
		reg.Email = scanForEmail(payload)
	}
	if reg.Email == "" {
		if data, ok := payload["data"].(map[string]any); ok {
			reg.Email = scanForEmail(data)
		}
	}
	return reg
}

func scanForEmail(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := fields[k].(string); ok && strings.Contains(s, "@") {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// addUnique keeps repeated questions apart: "Dietary", "Dietary (2)", ...
func addUnique(m map[string]string, key, value string) {
	if _, taken := m[key]; !taken {
		m[key] = value
		return
	}
	for n := 2; ; n++ {
		k := fmt.Sprintf("%s (%d)", key, n)
		if _, taken := m[k]; !taken {
			m[k] = value
			return
		}
	}
}

// PlaceholderEmail marks a registration whose email could not be recovered.
const PlaceholderEmail = "unknown@example.com"

// PlaceholderPolicy fills in whatever the submission did not provide and
// reports whether it changed anything. Swapping the policy (for example to
// one that flags the submission for manual review) changes how incomplete
// registrations are treated without touching the parsers.
type PlaceholderPolicy func(reg *Registrant) (degraded bool)

// DefaultPlaceholder accepts the registration with a sentinel email.
func DefaultPlaceholder(reg *Registrant) bool {
	if reg.Email != "" {
		return false
	}
	reg.Email = PlaceholderEmail
	return true
}
