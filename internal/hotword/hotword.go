// Package hotword maintains the hotword table ASR providers bias toward,
// loaded from a JSON document and reloadable without a process restart.
package hotword

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/syncx"
)

// reservedKeys mirrors hotword_service.py's filter: non-list fields used
// for human-readable notes rather than word lists never become categories.
var reservedKeys = map[string]bool{
	"说明": true, "description": true, "备注": true,
}

// Registry holds the current hotword table behind an RWGuard so readers
// never observe a partially-applied reload (spec.md §4.2, §5).
type Registry struct {
	guard    *syncx.RWGuard[model.HotwordTable]
	path     string
	mu       sync.Mutex // serializes concurrent Reload calls
	lastMod  int64
}

// rawDocument is the on-disk JSON shape: either a flat category->words map,
// or a category -> {words: [...], aliases: {alias: canonical}} map. Both
// forms are accepted; a bare array is the common case in practice.
type rawDocument map[string]json.RawMessage

type categoryWithAliases struct {
	Words   []string          `json:"words"`
	Aliases map[string]string `json:"aliases"`
}

func New(path string) *Registry {
	return &Registry{
		guard: syncx.NewGuard(model.HotwordTable{
			Categories: map[string][]string{},
			Mappings:   map[string]map[string]string{},
		}),
		path: path,
	}
}

// Load reads the hotword file once at startup, tolerating a missing file
// by leaving the registry empty (the ASR call path treats an empty
// hotword blob as "no bias", never as a hard failure).
func (r *Registry) Load() error {
	return r.reloadLocked(false)
}

// Reload re-reads the hotword file and atomically swaps the published
// table; returns (false, nil) if the file's mtime hasn't changed since the
// last load, matching hotword_service.py's mtime-gated skip.
func (r *Registry) Reload() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkAndReload()
}

func (r *Registry) reloadLocked(force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if force {
		r.lastMod = 0
	}
	_, err := r.checkAndReload()
	return err
}

func (r *Registry) checkAndReload() (bool, error) {
	info, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.Internal, "stat hotword file")
	}
	mtime := info.ModTime().UnixNano()
	if mtime == r.lastMod {
		return false, nil
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.Internal, "read hotword file")
	}

	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, apperrors.Wrap(err, apperrors.BadInput, "hotword file is not valid json")
	}

	table := model.HotwordTable{
		Categories: map[string][]string{},
		Mappings:   map[string]map[string]string{},
	}
	for category, payload := range doc {
		if reservedKeys[category] {
			continue
		}

		var words []string
		if err := json.Unmarshal(payload, &words); err == nil {
			table.Categories[category] = words
			continue
		}

		var withAliases categoryWithAliases
		if err := json.Unmarshal(payload, &withAliases); err == nil {
			table.Categories[category] = withAliases.Words
			if len(withAliases.Aliases) > 0 {
				table.Mappings[category] = withAliases.Aliases
			}
			continue
		}
		// Neither shape matched: skip the field rather than failing the
		// whole reload, matching the Python service's per-category
		// tolerance of malformed entries.
	}

	r.guard.Set(table)
	r.lastMod = mtime
	return true, nil
}

// Snapshot returns the currently published table.
func (r *Registry) Snapshot() model.HotwordTable {
	return r.guard.Get()
}

// maxRenderLen bounds the rendered hotword blob to 4096 characters, per
// spec.md §4.2 — a character count, not a byte count, so truncation must
// stay rune-aligned to avoid cutting a multi-byte hotword in half.
const maxRenderLen = 4096

// Render flattens the table into a single space-separated blob suitable
// for ASR hotword-biasing fields, deduplicating the same way
// hotword_service.py's get_all_hotwords merges every category's words into
// one set. hotword_service.py's merge uses a Python set, which has no
// defined iteration order; this version orders categories alphabetically
// and words by first appearance within a category instead, so Render is
// deterministic across calls rather than merely deduplicated. Truncated to
// maxRenderLen.
func (r *Registry) Render() string {
	table := r.guard.Get()
	categories := make([]string, 0, len(table.Categories))
	for c := range table.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	seen := make(map[string]bool)
	var words []string
	for _, c := range categories {
		for _, w := range table.Categories[c] {
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			words = append(words, w)
		}
	}

	rendered := strings.Join(words, " ")
	if utf8.RuneCountInString(rendered) > maxRenderLen {
		runes := []rune(rendered)
		rendered = string(runes[:maxRenderLen])
	}
	return rendered
}

// Canonicalize resolves an alias to its canonical form within the given
// category, returning the input unchanged if no mapping applies.
func (r *Registry) Canonicalize(category, word string) string {
	table := r.guard.Get()
	mapping, ok := table.Mappings[category]
	if !ok {
		return word
	}
	if canon, ok := mapping[word]; ok {
		return canon
	}
	return word
}
