// Package policy implements the three pure components from spec.md §4.8:
// the prompt-injection predicate, the harmful-intent predicate, and the
// output redaction transform. All three are stateless and regexp-backed.
package policy

import "regexp"

var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore ((all|any|previous|prior|the) )+(instructions|rules|prompt)`),
	regexp.MustCompile(`(?i)disregard ((all|any|previous|prior|the) )+(instructions|rules|prompt)`),
	regexp.MustCompile(`(?i)forget (all|any|previous|prior|your) (instructions|rules|training)`),
	regexp.MustCompile(`(?i)(reveal|show|print|dump|expose)\s+(the\s+)?(system|developer|hidden|internal)\s+(prompt|message|policy|instructions)`),
	regexp.MustCompile(`(?i)\b(api[\s_-]?key|access[\s_-]?token|secret|password|credential|private[\s_-]?key)s?\b`),
	regexp.MustCompile(`(?i)\b(OPENROUTER|NEON|JULEHA|DATABASE|AWS|AZURE)_[A-Z0-9_]+\b`),
	regexp.MustCompile(`(?i)you are now (system|root|admin|developer mode)`),
	regexp.MustCompile(`BEGIN SYSTEM`),
}

var harmfulIntentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(malware|ransomware|trojan|keylogger|computer virus)\b`),
	regexp.MustCompile(`(?i)\b(exploit|sql injection|sqli|cross-site scripting|xss|privilege escalation|ddos)\b`),
	regexp.MustCompile(`(?i)\b(phishing|credential theft|steal (password|credentials))\b`),
	regexp.MustCompile(`(?i)\b(bomb|explosive device|build a weapon)\b`),
	regexp.MustCompile(`(?i)\b(suicide|self-harm|kill myself)\b`),
}

var redactionRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`sk-[A-Za-z0-9_-]{12,}`), "[redacted-secret]"},
	{regexp.MustCompile(`\b(OPENROUTER|NEON|JULEHA|DATABASE)_[A-Z0-9_]+\b`), "[redacted-env-var]"},
	{regexp.MustCompile(`postgres(ql)?://\S+`), "[redacted-connection-string]"},
	{regexp.MustCompile(`Bearer\s+\S+`), "Bearer [redacted]"},
}

// IsPromptInjection reports whether text matches any fixed prompt-injection
// idiom per spec.md §4.8.
func IsPromptInjection(text string) bool {
	return matchesAny(promptInjectionPatterns, text)
}

// IsHarmfulIntent reports whether text matches any fixed harmful-intent
// pattern per spec.md §4.8.
func IsHarmfulIntent(text string) bool {
	return matchesAny(harmfulIntentPatterns, text)
}

// Redact replaces secrets, known env-var families, connection strings, and
// bearer tokens in text with fixed redaction markers.
func Redact(text string) string {
	for _, rule := range redactionRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
