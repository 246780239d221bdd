package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

//go:embed data/prompts.json data/imageprompts.json
var promptFiles embed.FS

// Category describes one selectable prompt category.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type promptFile struct {
	Categories []Category `json:"categories"`
	Prompts    []Prompt   `json:"prompts"`
}

type imageMeta struct {
	Filename string `json:"filename"`
}

type imageFile struct {
	CaptionPrompts []string    `json:"captionPrompts"`
	Images         []imageMeta `json:"images"`
}

// promptBank is the content provider: the static prompt and image pools
// plus the per-room durable record of which items have been handed out.
type promptBank struct {
	categories []Category
	prompts    []Prompt
	byCategory map[string][]Prompt
	captions   []string
	images     []imageMeta
	store      *usageStore
}

// loadPromptBank reads the embedded banks, or the same two files from
// dir when --prompts is set.
func loadPromptBank(dir string, store *usageStore) (*promptBank, error) {
	readFile := func(name string) ([]byte, error) {
		if dir == "" {
			return promptFiles.ReadFile("data/" + name)
		}
		return os.ReadFile(filepath.Join(dir, name))
	}

	promptData, err := readFile("prompts.json")
	if err != nil {
		return nil, fmt.Errorf("reading prompt bank: %w", err)
	}

	var prompts promptFile
	if err := json.Unmarshal(promptData, &prompts); err != nil {
		return nil, fmt.Errorf("parsing prompt bank: %w", err)
	}

	imageData, err := readFile("imageprompts.json")
	if err != nil {
		return nil, fmt.Errorf("reading image bank: %w", err)
	}

	var images imageFile
	if err := json.Unmarshal(imageData, &images); err != nil {
		return nil, fmt.Errorf("parsing image bank: %w", err)
	}

	bank := &promptBank{
		categories: prompts.Categories,
		prompts:    prompts.Prompts,
		byCategory: make(map[string][]Prompt),
		captions:   images.CaptionPrompts,
		images:     images.Images,
		store:      store,
	}

	for _, p := range prompts.Prompts {
		bank.byCategory[p.Category] = append(bank.byCategory[p.Category], p)
	}

	return bank, nil
}

// availablePrompts returns prompts in a category this room hasn't seen
// yet. An exhausted category resets its history and serves the full
// pool again; a broken history store degrades to the full pool rather
// than blocking a round from starting.
func (b *promptBank) availablePrompts(cfg *Config, roomID, category string) []Prompt {
	all := b.byCategory[category]

	used, err := b.store.usedPrompts(roomID, category)
	if err != nil {
		logf(cfg, "GAMES: Prompt history unavailable for %s: %v", roomID, err)
		return append([]Prompt(nil), all...)
	}

	available := make([]Prompt, 0, len(all))
	for _, p := range all {
		if !used[p.ID] {
			available = append(available, p)
		}
	}

	if len(available) == 0 && len(all) > 0 {
		logf(cfg, "GAMES: Category %q exhausted for %s (%d/%d used), resetting",
			category, roomID, len(used), len(all))
		if err := b.store.resetPrompts(roomID, category); err != nil {
			logf(cfg, "GAMES: Failed to reset prompt history for %s: %v", roomID, err)
		}
		available = append(available, all...)
	}

	return available
}

func (b *promptBank) markPromptsUsed(cfg *Config, roomID, category string, promptIDs []string) {
	if err := b.store.markPrompts(roomID, category, promptIDs); err != nil {
		logf(cfg, "GAMES: Failed to record used prompts for %s: %v", roomID, err)
	}
}

// availableImages mirrors availablePrompts for the caption-round pool.
func (b *promptBank) availableImages(cfg *Config, roomID string) []imageMeta {
	used, err := b.store.usedImages(roomID)
	if err != nil {
		logf(cfg, "GAMES: Image history unavailable for %s: %v", roomID, err)
		return append([]imageMeta(nil), b.images...)
	}

	available := make([]imageMeta, 0, len(b.images))
	for _, img := range b.images {
		if !used[img.Filename] {
			available = append(available, img)
		}
	}

	if len(available) == 0 && len(b.images) > 0 {
		logf(cfg, "GAMES: Images exhausted for %s (%d/%d used), resetting",
			roomID, len(used), len(b.images))
		if err := b.store.resetImages(roomID); err != nil {
			logf(cfg, "GAMES: Failed to reset image history for %s: %v", roomID, err)
		}
		available = append(available, b.images...)
	}

	return available
}

func (b *promptBank) markImagesUsed(cfg *Config, roomID string, filenames []string) {
	if err := b.store.markImages(roomID, filenames); err != nil {
		logf(cfg, "GAMES: Failed to record used images for %s: %v", roomID, err)
	}
}

// captionPrompt builds the single shared prompt for the final round: a
// not-recently-used image paired with a random caption framing.
func (b *promptBank) captionPrompt(cfg *Config, roomID string) Prompt {
	prompt := Prompt{
		ID:            "caption-" + uuid.NewString(),
		Category:      "caption_this",
		Prompt:        "Caption this!",
		IsImagePrompt: true,
	}

	if len(b.captions) > 0 {
		prompt.Prompt = b.captions[rand.Intn(len(b.captions))]
	}

	available := b.availableImages(cfg, roomID)
	if len(available) > 0 {
		image := available[rand.Intn(len(available))]
		prompt.ImageURL = "/images/caption/" + image.Filename
		b.markImagesUsed(cfg, roomID, []string{image.Filename})
	}

	return prompt
}
