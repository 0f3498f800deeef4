package tools

import (
	"strings"

	"github.com/sena168/AICENGHUB/internal/model"
	"github.com/sena168/AICENGHUB/internal/urlnorm"
)

// pools is the fixed, ordered list of places a normalizable item list (or
// single item) may live in a Tools-Client response, per spec.md §4.4.
var pools = []string{"items", "results", "tools", "matches", "data.items", "data.results", "item", "result"}

// abilityKeywords implements the GLOSSARY "Ability inference" keyword
// tables: an ability is added when any of its keywords appears as a
// case-insensitive substring of the combined name+description+pricing text.
var abilityKeywords = map[model.Ability][]string{
	model.AbilityText:        {"chat", "writing", "copywriting", "summariz", "text generation", "language model"},
	model.AbilityImage:       {"image generation", "text-to-image", "photo editing", "diffusion", "image upscal"},
	model.AbilityVideo:       {"video generation", "text-to-video", "video editing", "motion graphics"},
	model.AbilityAudio:       {"text-to-speech", "speech-to-text", "voice clon", "audio generation", "music generation"},
	model.AbilityCode:        {"code generation", "code completion", "coding assistant", "ide plugin", "pair programm"},
	model.AbilityAutomation:  {"automation", "agent workflow", "rpa"},
	model.AbilityLearning:    {"tutoring", "study assistant", "flashcard", "course generation", "learning companion"},
}

// pricingKeywords backs the pricing-flag keyword scan: explicit booleans
// always win; otherwise a substring match on pricing text sets the flag.
var pricingKeywords = map[string][]string{
	"free": {"free forever", "completely free", "free plan", "free tier"},
	"trial": {"free trial", "trial period", "try for free", "14-day trial", "7-day trial"},
	"paid": {"subscription", "per month", "/mo", "pricing starts", "paid plan"},
}

// NormalizedItem is the canonical shape produced by item normalization,
// shared by Chat-Pipeline's live-tools context and Queue-Worker's
// enrichment application.
type NormalizedItem struct {
	CanonicalURL string
	Name         string
	Description  string
	Abilities    []model.Ability
	PricingTier  model.PricingTier
	PricingText  string
	IsFree       bool
	HasTrial     bool
	IsPaid       bool
	FinalURL     string
	ContentType  string
	Confidence   float64
	Sources      []string
}

// NormalizeItems walks the fixed pool list of a Tools-Client response and
// produces deduplicated NormalizedItems. maxSources bounds each item's
// source list (10 for Chat-Pipeline, 12 for Queue-Worker per §4.4).
func NormalizeItems(raw map[string]any, maxSources int) []NormalizedItem {
	if raw == nil {
		return nil
	}

	var rawItems []any
	for _, pool := range pools {
		v, ok := lookupPath(raw, pool)
		if !ok {
			continue
		}
		switch typed := v.(type) {
		case []any:
			rawItems = append(rawItems, typed...)
		case map[string]any:
			rawItems = append(rawItems, typed)
		}
	}
	if len(rawItems) == 0 {
		rawItems = append(rawItems, map[string]any(raw))
	}

	seen := make(map[string]bool, len(rawItems))
	out := make([]NormalizedItem, 0, len(rawItems))
	for _, ri := range rawItems {
		obj, ok := ri.(map[string]any)
		if !ok {
			continue
		}
		item, ok := normalizeOne(obj, maxSources)
		if !ok || seen[item.CanonicalURL] {
			continue
		}
		seen[item.CanonicalURL] = true
		out = append(out, item)
	}
	return out
}

func normalizeOne(obj map[string]any, maxSources int) (NormalizedItem, bool) {
	rawURL := firstString(obj, "canonicalUrl", "url", "finalUrl", "fallbackUrl")
	canonical, err := urlnorm.Canonicalize(rawURL)
	if err != nil {
		return NormalizedItem{}, false
	}

	name := stringField(obj, "name")
	description := truncate(stringField(obj, "description"), 800)
	pricingText := truncate(stringField(obj, "pricingText"), 500)
	combined := strings.ToLower(name + " " + description + " " + pricingText)

	var abilities []model.Ability
	if rawAbilities, ok := obj["abilities"].([]any); ok && len(rawAbilities) > 0 {
		abilities = model.CanonicalizeAbilities(toStringSlice(rawAbilities))
	} else {
		abilities = inferAbilities(combined)
	}

	lowerPricing := strings.ToLower(pricingText)
	isFree := boolField(obj, "isFree", containsAny(lowerPricing, pricingKeywords["free"]))
	hasTrial := boolField(obj, "hasTrial", containsAny(lowerPricing, pricingKeywords["trial"]))
	isPaid := boolField(obj, "isPaid", containsAny(lowerPricing, pricingKeywords["paid"]))

	tier := model.PricingFree
	switch {
	case isPaid && !isFree:
		tier = model.PricingPaid
	case hasTrial:
		tier = model.PricingTrial
	case !isFree:
		tier = model.PricingTrial
	}

	confidence := clampFloat(floatField(obj, "confidence", 0), 0, 1)
	sources := boundStrings(toStringSlice(anySlice(obj["sources"])), maxSources)

	return NormalizedItem{
		CanonicalURL: canonical,
		Name:         name,
		Description:  description,
		Abilities:    abilities,
		PricingTier:  tier,
		PricingText:  pricingText,
		IsFree:       isFree,
		HasTrial:     hasTrial,
		IsPaid:       isPaid,
		FinalURL:     stringField(obj, "finalUrl"),
		ContentType:  stringField(obj, "contentType"),
		Confidence:   confidence,
		Sources:      sources,
	}, true
}

func inferAbilities(combined string) []model.Ability {
	var out []model.Ability
	for ability, keywords := range abilityKeywords {
		if containsAny(combined, keywords) {
			out = append(out, ability)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// lookupPath resolves a dotted path such as "data.items" against a decoded
// JSON object tree.
func lookupPath(obj map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = obj
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringField(obj, k); v != "" {
			return v
		}
	}
	return ""
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func boolField(obj map[string]any, key string, fallback bool) bool {
	if v, ok := obj[key].(bool); ok {
		return v
	}
	return fallback
}

func floatField(obj map[string]any, key string, fallback float64) float64 {
	if v, ok := obj[key].(float64); ok {
		return v
	}
	return fallback
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func toStringSlice(v []any) []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func boundStrings(in []string, max int) []string {
	if max <= 0 {
		max = 10
	}
	if len(in) > max {
		return in[:max]
	}
	return in
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
