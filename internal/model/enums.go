package model

import "strings"

// Ability is one of the closed set of capabilities a catalog tool can offer.
type Ability string

const (
	AbilityText       Ability = "text"
	AbilityImage      Ability = "image"
	AbilityVideo      Ability = "video"
	AbilityAudio      Ability = "audio"
	AbilityCode       Ability = "code"
	AbilityAutomation Ability = "automation"
	AbilityLearning   Ability = "learning"
)

func allAbilities() []Ability {
	return []Ability{AbilityText, AbilityImage, AbilityVideo, AbilityAudio, AbilityCode, AbilityAutomation, AbilityLearning}
}

// CanonicalizeAbility maps a free-form ability string onto the closed vocabulary,
// dropping anything unrecognized.
func CanonicalizeAbility(raw string) (Ability, bool) {
	v := Ability(strings.ToLower(strings.TrimSpace(raw)))
	for _, a := range allAbilities() {
		if a == v {
			return a, true
		}
	}
	return "", false
}

// CanonicalizeAbilities canonicalizes and dedups a list, dropping unknown values.
func CanonicalizeAbilities(raw []string) []Ability {
	seen := make(map[Ability]bool)
	out := make([]Ability, 0, len(raw))
	for _, r := range raw {
		a, ok := CanonicalizeAbility(r)
		if !ok || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// PricingTier is the closed pricing-model vocabulary.
type PricingTier string

const (
	PricingFree  PricingTier = "free"
	PricingTrial PricingTier = "trial"
	PricingPaid  PricingTier = "paid"
)

// CanonicalizePricingTier maps unknown pricing values onto "trial" per the
// catalog's closed-vocabulary invariant.
func CanonicalizePricingTier(raw string) PricingTier {
	switch PricingTier(strings.ToLower(strings.TrimSpace(raw))) {
	case PricingFree:
		return PricingFree
	case PricingPaid:
		return PricingPaid
	default:
		return PricingTrial
	}
}

// Tag is the closed vocabulary for catalog annotations.
type Tag string

const (
	TagWatermarked Tag = "watermarked"
)

// CanonicalizeTags drops anything outside the closed vocabulary.
func CanonicalizeTags(raw []string) []Tag {
	out := make([]Tag, 0, len(raw))
	for _, r := range raw {
		if Tag(strings.ToLower(strings.TrimSpace(r))) == TagWatermarked {
			out = append(out, TagWatermarked)
		}
	}
	return out
}

// CandidateStatus is the CandidateLink lifecycle state.
type CandidateStatus string

const (
	CandidatePending CandidateStatus = "pending"
	CandidateMerged  CandidateStatus = "merged"
	CandidateRejected CandidateStatus = "rejected"
)

// QueueStatus is the QueueJob status machine's closed enum.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueRetry      QueueStatus = "retry"
	QueueDone       QueueStatus = "done"
	QueueFailed     QueueStatus = "failed"
)
