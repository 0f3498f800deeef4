// Package pipeline implements Chat-Pipeline, spec.md §4.3's gin handler for
// POST /juleha-chat: security headers, policy gates, context assembly,
// ordered model fan-out, output guard, and side-effect scheduling.
//
// Grounded on the teacher's internal/handler/link_handler.go (thin gin
// handler delegating to services) and internal/middleware/auth.go
// (header-derived gating).
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/sena168/AICENGHUB/internal/config"
	"github.com/sena168/AICENGHUB/internal/fetcher"
	"github.com/sena168/AICENGHUB/internal/model"
	"github.com/sena168/AICENGHUB/internal/policy"
	"github.com/sena168/AICENGHUB/internal/ratelimit"
	"github.com/sena168/AICENGHUB/internal/store"
	"github.com/sena168/AICENGHUB/internal/tools"
	"github.com/sena168/AICENGHUB/internal/urlnorm"
)

// Pipeline wires every dependency Chat-Pipeline needs. Store is nilable:
// a missing or unreachable store degrades the request instead of failing it.
type Pipeline struct {
	Config  *config.Config
	Store   *store.Store
	Fetcher *fetcher.Fetcher
	Tools   *tools.Client
	Limiter *ratelimit.Limiter
	// outboundGate bounds concurrent Safe-Fetcher calls to 3. It is created
	// once in New and shared by every request this Pipeline serves; it is
	// not allocated per request.
	outboundGate *semaphore.Weighted
}

// New builds a Pipeline. store may be nil if the catalog database is
// unreachable at startup; tools.Client may be unconfigured.
func New(cfg *config.Config, st *store.Store, f *fetcher.Fetcher, tc *tools.Client, limiter *ratelimit.Limiter) *Pipeline {
	return &Pipeline{
		Config:       cfg,
		Store:        st,
		Fetcher:      f,
		Tools:        tc,
		Limiter:      limiter,
		outboundGate: semaphore.NewWeighted(3),
	}
}

type chatRequest struct {
	Messages []rawMessage `json:"messages"`
}

type verifiedLink struct {
	URL          string `json:"url"`
	CanonicalURL string `json:"canonicalUrl"`
	FinalURL     string `json:"finalUrl"`
	OK           bool   `json:"ok"`
	Status       int    `json:"status"`
	ContentType  string `json:"contentType"`
	Title        string `json:"title,omitempty"`
	Note         string `json:"note,omitempty"`
}

type chatResponse struct {
	AssistantText string         `json:"assistantText"`
	RouteLabel    string         `json:"routeLabel"`
	VerifiedLinks []verifiedLink `json:"verifiedLinks"`
}

// HandleChat implements the full POST /juleha-chat contract.
func (p *Pipeline) HandleChat(c *gin.Context) {
	setSecurityHeaders(c)

	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}

	requestID := c.Request.Header.Get("x-request-id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ip, sessionFP := deriveAuditIdentity(c.Request)
	ipHash := hashWithSalt(p.Config.Policy.AuditSalt, ip)
	sessionHash := hashWithSalt(p.Config.Policy.AuditSalt, sessionFP)
	log.Printf("chat request id=%s ipHash=%s sessionHash=%s", requestID, ipHash, sessionHash)

	if !p.originAllowed(c.Request) {
		c.JSON(http.StatusForbidden, gin.H{"error": "bad origin"})
		return
	}

	if c.Request.ContentLength > 64*1024 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 64*1024)

	decision := p.Limiter.Consume("chat:"+ip, 30, 10*60*1000, 1)
	if !decision.Allowed {
		c.Header("Retry-After", fmt.Sprintf("%d", decision.RetryAfterSec))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, please slow down"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoMessages.Error()})
		return
	}

	sanitized, err := SanitizeConversation(req.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	latestUser := latestUserText(sanitized)
	if policy.IsPromptInjection(latestUser) {
		c.JSON(http.StatusOK, chatResponse{AssistantText: promptInjectionRefusal, RouteLabel: "policy-guardrail", VerifiedLinks: []verifiedLink{}})
		return
	}
	if policy.IsHarmfulIntent(latestUser) {
		c.JSON(http.StatusOK, chatResponse{AssistantText: harmfulIntentRefusal, RouteLabel: "policy-guardrail", VerifiedLinks: []verifiedLink{}})
		return
	}

	routes := activeRoutes(p.Config.Upstream.Routes)
	if len(routes) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no upstream routes configured"})
		return
	}

	ctx := c.Request.Context()

	catalogSnippet := p.buildCatalogSnippet(ctx)

	urlsInText := ExtractURLs(latestUser, 6)
	needsLiveCheck := detectLiveCheckNeed(latestUser, urlsInText)

	var liveToolsBlock string
	var toolsDown bool
	var verifiedLinks []verifiedLink
	var legacyBlock string

	if needsLiveCheck {
		liveToolsBlock, toolsDown = p.runLiveTools(ctx, urlsInText, latestUser)
		if toolsDown {
			p.captureToolsDownCandidates(ctx, urlsInText)
		}
	} else if p.Config.Policy.VerifyLinks && len(urlsInText) > 0 {
		var urlDecision ratelimit.Decision
		legacyBlock, verifiedLinks, urlDecision = p.verifyURLs(ctx, ip, urlsInText)
		if !urlDecision.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", urlDecision.RetryAfterSec))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, please slow down"})
			return
		}
	}

	urlCheckContext := noUserURLChecksPlaceholder
	if legacyBlock != "" {
		urlCheckContext = legacyBlock
	}
	liveToolsContext := noLiveToolsPlaceholder
	if liveToolsBlock != "" {
		liveToolsContext = liveToolsBlock
	}

	contextMsg := fmt.Sprintf(
		"Catalog snippet:\n%s\n\nURL check context:\n%s\n\nLive tools context:\n%s\n\nPending enrichment: %s",
		catalogSnippet, urlCheckContext, liveToolsContext, pendingEnrichmentSummary(toolsDown, len(urlsInText)),
	)

	modelMessages := make([]ChatMessage, 0, len(sanitized)+2)
	modelMessages = append(modelMessages, ChatMessage{Role: "system", Content: serverSystemPrompt})
	modelMessages = append(modelMessages, ChatMessage{Role: "system", Content: contextMsg})
	modelMessages = append(modelMessages, sanitized...)

	result, err := FanOut(ctx, routes, p.Config.Upstream, modelMessages)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "all upstream routes failed"})
		return
	}

	redacted := policy.Redact(result.AssistantText)
	if isPromptLeak(redacted) {
		c.JSON(http.StatusOK, chatResponse{AssistantText: promptLeakRefusal, RouteLabel: "policy-guardrail", VerifiedLinks: []verifiedLink{}})
		return
	}

	if !needsLiveCheck && p.Config.Policy.CaptureCandidates {
		captured := p.captureAssistantLinks(ctx, ip, redacted)
		verifiedLinks = append(verifiedLinks, captured...)
	}

	if toolsDown {
		redacted = ensureToolsDownBanner(redacted)
	}

	c.JSON(http.StatusOK, chatResponse{
		AssistantText: redacted,
		RouteLabel:    result.RouteLabel,
		VerifiedLinks: nonNilLinks(verifiedLinks),
	})
}

func nonNilLinks(links []verifiedLink) []verifiedLink {
	if links == nil {
		return []verifiedLink{}
	}
	return links
}

func setSecurityHeaders(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("Pragma", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
}

func deriveAuditIdentity(r *http.Request) (ip, sessionFingerprint string) {
	ip = "0.0.0.0"
	if fwd := r.Header.Get("x-forwarded-for"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if real := r.Header.Get("x-real-ip"); real != "" {
		ip = strings.TrimSpace(real)
	}

	if session := r.Header.Get("x-session-id"); session != "" {
		sessionFingerprint = session
	} else if cookie := r.Header.Get("Cookie"); cookie != "" {
		sessionFingerprint = cookie
	} else {
		sessionFingerprint = r.Header.Get("User-Agent")
	}
	return ip, sessionFingerprint
}

func hashWithSalt(salt, value string) string {
	sum := sha256.Sum256([]byte(salt + ":" + value))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(p.Config.Policy.AllowedOrigins) > 0 {
		for _, allowed := range p.Config.Policy.AllowedOrigins {
			if strings.EqualFold(strings.TrimSpace(allowed), origin) {
				return true
			}
		}
		return false
	}
	return origin == "https://"+r.Host
}

func latestUserText(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

func activeRoutes(routes []config.Route) []config.Route {
	out := make([]config.Route, 0, len(routes))
	for _, r := range routes {
		if r.APIKey != "" && r.Model != "" {
			out = append(out, r)
		}
	}
	return out
}

var liveCheckKeywords = []string{"check", "browse", "latest", "verify", "verification"}
var pricingKeywordsForLiveCheck = []string{"price", "pricing", "cost", "free", "trial", "paid"}
var liveUpdateKeywords = []string{"check", "verify", "latest", "current", "update"}

func detectLiveCheckNeed(text string, urls []string) bool {
	if len(urls) > 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range liveCheckKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	hasPricing := false
	for _, k := range pricingKeywordsForLiveCheck {
		if strings.Contains(lower, k) {
			hasPricing = true
			break
		}
	}
	if hasPricing {
		for _, k := range liveUpdateKeywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}

func pendingEnrichmentSummary(toolsDown bool, urlCount int) string {
	if toolsDown && urlCount > 0 {
		return fmt.Sprintf("%d URL(s) queued for background enrichment while live search is down.", urlCount)
	}
	return "none"
}

func (p *Pipeline) buildCatalogSnippet(ctx context.Context) string {
	if p.Store == nil {
		return "Catalog is temporarily unavailable."
	}
	links, err := p.Store.MainLinks(ctx)
	if err != nil || len(links) == 0 {
		return "Catalog is temporarily unavailable."
	}
	sort.Slice(links, func(i, j int) bool {
		return strings.ToLower(links[i].Name) < strings.ToLower(links[j].Name)
	})
	if len(links) > 10 {
		links = links[:10]
	}
	lines := make([]string, 0, len(links))
	for _, l := range links {
		lines = append(lines, fmt.Sprintf("- %s (%s)", l.Name, l.PricingTier))
	}
	return strings.Join(lines, "\n")
}

// runLiveTools implements step 11.
func (p *Pipeline) runLiveTools(ctx context.Context, urls []string, userText string) (contextBlock string, toolsDown bool) {
	if p.Tools == nil || !p.Tools.Configured() {
		return "", true
	}

	var raw map[string]any
	var err error
	if len(urls) > 0 {
		raw, err = p.Tools.Enrich(ctx, urls[0], "chat-live-check")
	} else {
		raw, err = p.Tools.Search(ctx, userText)
	}

	items := tools.NormalizeItems(raw, 10)
	if len(items) == 0 {
		if err != nil {
			return "", true
		}
		return "No matching tools were found by live search.", false
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", item.Name, item.PricingTier, item.CanonicalURL))
		p.applyToolEnrichment(ctx, item)
	}
	return strings.Join(lines, "\n"), false
}

func (p *Pipeline) applyToolEnrichment(ctx context.Context, item tools.NormalizedItem) {
	if p.Store == nil {
		return
	}
	mainSet, err := p.Store.MainURLSet(ctx)
	if err == nil && mainSet[item.CanonicalURL] {
		_ = p.Store.UpdateMainLinkEnrichment(ctx, toMainLink(item))
	} else {
		_ = p.Store.UpsertCandidate(ctx, toCandidateLink(item))
	}
	confidence := item.Confidence
	_ = p.Store.InsertToolCheck(ctx, item.CanonicalURL, model.JSONMap{"source": "chat-live-check"}, &confidence, model.StringList(item.Sources))
}

func toMainLink(item tools.NormalizedItem) *model.MainLink {
	return &model.MainLink{
		CanonicalURL: item.CanonicalURL,
		Name:         item.Name,
		Description:  item.Description,
		Abilities:    model.AbilityList(item.Abilities),
		PricingTier:  item.PricingTier,
		PricingText:  item.PricingText,
		IsFree:       item.IsFree,
		HasTrial:     item.HasTrial,
		IsPaid:       item.IsPaid,
	}
}

func toCandidateLink(item tools.NormalizedItem) *model.CandidateLink {
	return &model.CandidateLink{
		CanonicalURL: item.CanonicalURL,
		Name:         item.Name,
		Description:  item.Description,
		Abilities:    model.AbilityList(item.Abilities),
		PricingTier:  item.PricingTier,
		PricingText:  item.PricingText,
		IsFree:       item.IsFree,
		HasTrial:     item.HasTrial,
		IsPaid:       item.IsPaid,
		FinalURL:     item.FinalURL,
		ContentType:  item.ContentType,
		CaptureReason: "live-tools-observation",
	}
}

// captureToolsDownCandidates implements step 11's tools-down fallback.
func (p *Pipeline) captureToolsDownCandidates(ctx context.Context, urls []string) {
	if p.Store == nil {
		return
	}
	for _, u := range urls {
		canonical, err := urlnorm.Canonicalize(u)
		if err != nil {
			continue
		}
		_ = p.Store.UpsertCandidate(ctx, &model.CandidateLink{
			CanonicalURL:      canonical,
			PendingEnrichment: true,
			CaptureReason:     "pending-enrichment-tools-down",
		})
		_ = p.Store.EnqueueScrapeJob(ctx, canonical, u, "tools-down-pending-enrichment", nil, nil)
	}
}

// verifyURLs implements step 12's legacy verification path. The returned
// Decision lets the caller enforce the url-checks bucket's 429 the same way
// the chat bucket does, instead of silently skipping verification on deny.
func (p *Pipeline) verifyURLs(ctx context.Context, ip string, urls []string) (block string, links []verifiedLink, decision ratelimit.Decision) {
	decision = p.Limiter.Consume("url-checks:"+ip, 10, 10*60*1000, len(urls))
	if !decision.Allowed {
		return "", nil, decision
	}

	lines := make([]string, 0, len(urls))
	for _, u := range urls {
		vl := p.verifyOne(ctx, u)
		links = append(links, vl)
		status := "unreachable"
		if vl.OK {
			status = fmt.Sprintf("reachable (%d)", vl.Status)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", u, status))
	}
	return strings.Join(lines, "\n"), links, decision
}

func (p *Pipeline) verifyOne(ctx context.Context, rawURL string) verifiedLink {
	_ = p.outboundGate.Acquire(ctx, 1)
	defer p.outboundGate.Release(1)

	canonical, normErr := urlnorm.Canonicalize(rawURL)
	vl := verifiedLink{URL: rawURL, CanonicalURL: canonical}
	if normErr != nil {
		vl.Note = "could not normalize URL"
		return vl
	}

	res, err := p.Fetcher.Fetch(ctx, rawURL, fetcher.Options{Method: http.MethodHead})
	if err != nil || !res.OK {
		res, err = p.Fetcher.Fetch(ctx, rawURL, fetcher.Options{Method: http.MethodGet})
	}
	if err != nil {
		vl.Note = err.Error()
		return vl
	}

	vl.OK = res.OK
	vl.Status = res.Status
	vl.FinalURL = res.FinalURL
	vl.ContentType = res.ContentType
	if strings.Contains(res.ContentType, "text/html") {
		vl.Title = extractTitle(res.Body)
	}
	return vl
}

// captureAssistantLinks implements step 16's legacy candidate capture.
func (p *Pipeline) captureAssistantLinks(ctx context.Context, ip string, assistantText string) []verifiedLink {
	urls := ExtractURLs(assistantText, 50)
	if len(urls) == 0 {
		return nil
	}
	p.Limiter.Consume("url-checks:"+ip, 10, 10*60*1000, len(urls))

	externalTagged := externalTaggedURLs(assistantText, urls)

	var mainSet map[string]bool
	if p.Store != nil {
		mainSet, _ = p.Store.MainURLSet(ctx)
	}

	candidateSet := externalTagged
	if len(candidateSet) == 0 {
		candidateSet = make(map[string]bool, len(urls))
		for _, u := range urls {
			candidateSet[u] = true
		}
	}

	var out []verifiedLink
	captured := 0
	for _, u := range urls {
		if !candidateSet[u] {
			continue
		}
		vl := p.verifyOne(ctx, u)
		out = append(out, vl)
		if !vl.OK || captured >= 4 {
			continue
		}
		if mainSet != nil && mainSet[vl.CanonicalURL] {
			continue
		}
		p.captureOneAssistantLink(ctx, vl)
		captured++
	}
	return out
}

func (p *Pipeline) captureOneAssistantLink(ctx context.Context, vl verifiedLink) {
	if p.Store == nil {
		return
	}
	abilities := inferAbilitiesFromText(vl.Title)
	_ = p.Store.UpsertCandidate(ctx, &model.CandidateLink{
		CanonicalURL:  vl.CanonicalURL,
		Name:          vl.Title,
		FinalURL:      vl.FinalURL,
		ContentType:   vl.ContentType,
		Abilities:     model.AbilityList(abilities),
		CaptureReason: "assistant-verified-link",
	})
	_ = p.Store.EnqueueScrapeJob(ctx, vl.CanonicalURL, vl.URL, "candidate-enrichment", nil, nil)
}

var externalTagLine = "external (not in aicenghub catalog)"

func externalTaggedURLs(text string, urls []string) map[string]bool {
	lowerText := strings.ToLower(text)
	tagged := make(map[string]bool)
	for _, line := range strings.Split(lowerText, "\n") {
		if !strings.Contains(line, externalTagLine) {
			continue
		}
		for _, u := range urls {
			if strings.Contains(line, strings.ToLower(u)) {
				tagged[u] = true
			}
		}
	}
	return tagged
}

func inferAbilitiesFromText(text string) []model.Ability {
	lower := strings.ToLower(text)
	var out []model.Ability
	keywords := map[model.Ability][]string{
		model.AbilityText:       {"chat", "writing", "text"},
		model.AbilityImage:      {"image"},
		model.AbilityVideo:      {"video"},
		model.AbilityAudio:      {"audio", "voice", "speech"},
		model.AbilityCode:       {"code"},
		model.AbilityAutomation: {"automation", "workflow"},
		model.AbilityLearning:   {"learning", "tutor", "study"},
	}
	for a, kws := range keywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func extractTitle(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title>")
	if start < 0 {
		return ""
	}
	start += len("<title>")
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(html[start : start+end])
}

