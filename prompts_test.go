package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedBanks(t *testing.T) {
	bank := testBank(t, testConfig(t))

	assert.NotEmpty(t, bank.categories)
	assert.NotEmpty(t, bank.prompts)
	assert.NotEmpty(t, bank.captions)
	assert.NotEmpty(t, bank.images)

	for _, category := range bank.categories {
		assert.NotEmpty(t, bank.byCategory[category.ID], "category %s has no prompts", category.ID)
	}

	for _, p := range bank.prompts {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Prompt)
		assert.Contains(t, bank.byCategory, p.Category)
	}
}

func TestAvailablePromptsFiltersUsed(t *testing.T) {
	cfg := testConfig(t)
	bank := testBank(t, cfg)
	category := bank.categories[0].ID

	all := bank.availablePrompts(cfg, "room-a", category)
	require.NotEmpty(t, all)

	bank.markPromptsUsed(cfg, "room-a", category, []string{all[0].ID, all[1].ID})

	remaining := bank.availablePrompts(cfg, "room-a", category)
	assert.Len(t, remaining, len(all)-2)
	for _, p := range remaining {
		assert.NotEqual(t, all[0].ID, p.ID)
		assert.NotEqual(t, all[1].ID, p.ID)
	}

	// Another room's history is independent.
	assert.Len(t, bank.availablePrompts(cfg, "room-b", category), len(all))
}

func TestExhaustedCategoryResets(t *testing.T) {
	cfg := testConfig(t)
	bank := testBank(t, cfg)
	category := bank.categories[0].ID

	all := bank.availablePrompts(cfg, "room-a", category)
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	bank.markPromptsUsed(cfg, "room-a", category, ids)

	// The full pool comes back and the durable history is cleared, so
	// the next round can mark fresh usage.
	reset := bank.availablePrompts(cfg, "room-a", category)
	assert.Len(t, reset, len(all))

	used, err := bank.store.usedPrompts("room-a", category)
	require.NoError(t, err)
	assert.Empty(t, used)
}

func TestCaptionPromptShape(t *testing.T) {
	cfg := testConfig(t)
	bank := testBank(t, cfg)

	prompt := bank.captionPrompt(cfg, "room-a")

	assert.True(t, prompt.IsImagePrompt)
	assert.Equal(t, "caption_this", prompt.Category)
	assert.True(t, strings.HasPrefix(prompt.ImageURL, "/images/caption/"))
	assert.Contains(t, bank.captions, prompt.Prompt)

	used, err := bank.store.usedImages("room-a")
	require.NoError(t, err)
	assert.Len(t, used, 1)
}

func TestCaptionPromptCyclesThroughImages(t *testing.T) {
	cfg := testConfig(t)
	bank := testBank(t, cfg)

	seen := map[string]bool{}
	for range bank.images {
		prompt := bank.captionPrompt(cfg, "room-a")
		filename := strings.TrimPrefix(prompt.ImageURL, "/images/caption/")
		assert.False(t, seen[filename], "image %s repeated before exhaustion", filename)
		seen[filename] = true
	}

	// Pool exhausted; the next pick resets and serves again.
	prompt := bank.captionPrompt(cfg, "room-a")
	assert.NotEmpty(t, prompt.ImageURL)
}

func TestLoadPromptBankFromDirectory(t *testing.T) {
	cfg := testConfig(t)
	store, err := openUsageStore(cfg.database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = loadPromptBank(t.TempDir(), store)
	assert.Error(t, err)
}
