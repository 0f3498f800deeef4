package pipeline

import (
	"regexp"
	"strings"

	"github.com/sena168/AICENGHUB/internal/urlnorm"
)

// ChatMessage is the sanitized conversation shape handed to the model.
type ChatMessage struct {
	Role    string
	Content string
}

// rawMessage is the wire shape accepted from the client: content may be a
// plain string or an array of text parts ({text} objects or plain strings).
type rawMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

var overrideIdioms = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore ((all|any|previous|prior|the) )+(instructions|rules|prompt)`),
	regexp.MustCompile(`(?i)disregard ((all|any|previous|prior|the) )+(instructions|rules|prompt)`),
	regexp.MustCompile(`(?is)BEGIN SYSTEM.*?END SYSTEM`),
	regexp.MustCompile(`(?i)you are now (system|root|admin|developer mode)`),
}

// stripOverrides replaces instruction-override idioms with a literal
// placeholder so a user can't smuggle role-override text into the model's
// conversation history.
func stripOverrides(text string) string {
	for _, re := range overrideIdioms {
		text = re.ReplaceAllString(text, "[removed]")
	}
	return text
}

// extractText implements the string / []textpart / {text} content shapes.
func extractText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			switch pv := p.(type) {
			case string:
				parts = append(parts, pv)
			case map[string]any:
				if t, ok := pv["text"].(string); ok {
					parts = append(parts, t)
				}
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		if t, ok := v["text"].(string); ok {
			return t
		}
	}
	return ""
}

const (
	maxMessageChars  = 1800
	maxKeptMessages  = 24
	maxTotalChars    = 10000
	maxUserMessages  = 12
)

// SanitizeConversation implements spec.md §4.3 step 7.
func SanitizeConversation(raw []rawMessage) ([]ChatMessage, error) {
	cleaned := make([]ChatMessage, 0, len(raw))
	for _, m := range raw {
		role := strings.TrimSpace(strings.ToLower(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		text := extractText(m.Content)
		text = stripOverrides(text)
		text = strings.TrimSpace(text)
		if len(text) > maxMessageChars {
			text = text[:maxMessageChars]
		}
		if text == "" {
			continue
		}
		cleaned = append(cleaned, ChatMessage{Role: role, Content: text})
	}

	if len(cleaned) == 0 {
		return nil, errNoMessages
	}

	if len(cleaned) > maxKeptMessages {
		cleaned = cleaned[len(cleaned)-maxKeptMessages:]
	}

	hasUser := false
	for _, m := range cleaned {
		if m.Role == "user" {
			hasUser = true
			break
		}
	}
	if !hasUser {
		return nil, errNoUserMessage
	}

	selected := selectWithinBudget(cleaned)
	return selected, nil
}

// selectWithinBudget walks newest-to-oldest keeping messages while the
// running character total stays within budget and user-message count stays
// bounded, then restores original order.
func selectWithinBudget(cleaned []ChatMessage) []ChatMessage {
	total := 0
	userCount := 0
	keep := make([]bool, len(cleaned))
	for i := len(cleaned) - 1; i >= 0; i-- {
		m := cleaned[i]
		nextTotal := total + len(m.Content)
		nextUserCount := userCount
		if m.Role == "user" {
			nextUserCount++
		}
		if nextTotal > maxTotalChars || nextUserCount > maxUserMessages {
			break
		}
		total = nextTotal
		userCount = nextUserCount
		keep[i] = true
	}

	out := make([]ChatMessage, 0, len(cleaned))
	for i, m := range cleaned {
		if keep[i] {
			out = append(out, m)
		}
	}
	return out
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// ExtractURLs implements the RFC-like URL scan from spec.md §4.3 step 11:
// trailing punctuation stripped, deduped by normalized href, capped at max.
func ExtractURLs(text string, max int) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, max)
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)'\"]>")
		if m == "" {
			continue
		}
		key := m
		if canonical, err := urlnorm.Canonicalize(m); err == nil {
			key = canonical
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
		if len(out) >= max {
			break
		}
	}
	return out
}
