package tools

import "testing"

func TestNormalizeItemsWalksDataItemsPool(t *testing.T) {
	raw := map[string]any{
		"data": map[string]any{
			"items": []any{
				map[string]any{
					"canonicalUrl": "https://Example.com/Tool",
					"name":         "Example Tool",
					"description":  "an automation workflow helper",
				},
			},
		},
	}
	items := NormalizeItems(raw, 10)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].CanonicalURL != "https://example.com/Tool" {
		t.Fatalf("unexpected canonical url: %q", items[0].CanonicalURL)
	}
	found := false
	for _, a := range items[0].Abilities {
		if a == "automation" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected automation ability inferred, got %v", items[0].Abilities)
	}
}

func TestNormalizeItemsDropsItemsWithoutURL(t *testing.T) {
	raw := map[string]any{
		"items": []any{
			map[string]any{"name": "no url here"},
		},
	}
	items := NormalizeItems(raw, 10)
	if len(items) != 0 {
		t.Fatalf("expected item without a URL to be dropped, got %d", len(items))
	}
}

func TestNormalizeItemsDedupsByCanonicalURL(t *testing.T) {
	raw := map[string]any{
		"items": []any{
			map[string]any{"url": "https://example.com/tool"},
		},
		"results": []any{
			map[string]any{"url": "https://example.com/tool/"},
		},
	}
	items := NormalizeItems(raw, 10)
	if len(items) != 1 {
		t.Fatalf("expected dedup across pools, got %d", len(items))
	}
}

func TestNormalizeItemsBoundsSourcesList(t *testing.T) {
	sources := make([]any, 0, 15)
	for i := 0; i < 15; i++ {
		sources = append(sources, "source")
	}
	raw := map[string]any{
		"items": []any{
			map[string]any{"url": "https://example.com/tool", "sources": sources},
		},
	}
	items := NormalizeItems(raw, 10)
	if len(items) != 1 || len(items[0].Sources) != 10 {
		t.Fatalf("expected sources bounded to 10, got %+v", items)
	}
}

func TestNormalizeItemsTruncatesDescriptionAndPricingText(t *testing.T) {
	longText := make([]byte, 2000)
	for i := range longText {
		longText[i] = 'a'
	}
	raw := map[string]any{
		"items": []any{
			map[string]any{
				"url":         "https://example.com/tool",
				"description": string(longText),
				"pricingText": string(longText),
			},
		},
	}
	items := NormalizeItems(raw, 10)
	if len(items[0].Description) != 800 {
		t.Fatalf("expected description truncated to 800, got %d", len(items[0].Description))
	}
	if len(items[0].PricingText) != 500 {
		t.Fatalf("expected pricing text truncated to 500, got %d", len(items[0].PricingText))
	}
}
