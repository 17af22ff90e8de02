// Package sources implements the scrape target registry: create, update,
// delete, get, and list of model.Source, plus keyword normalization and the
// keyword-match filter used by the generic dialect (internal/dialect).
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/model"
	"github.com/northbound-policy/ingest/internal/store"
)

// Registry is the source CRUD surface used by internal/httpapi and the
// orchestrator.
type Registry struct {
	store *store.Store
}

// New builds a Registry over a Store.
func New(s *store.Store) *Registry {
	return &Registry{store: s}
}

// Create registers a new source after validating its dialect and
// normalizing its keyword list.
func (r *Registry) Create(ctx context.Context, src model.Source) (model.Source, error) {
	if strings.TrimSpace(src.Name) == "" {
		return model.Source{}, apperr.New(apperr.KindInputInvalid, "source name is required")
	}
	if strings.TrimSpace(src.BaseURL) == "" {
		return model.Source{}, apperr.New(apperr.KindInputInvalid, "source base_url is required")
	}
	if !validDialect(src.Dialect) {
		return model.Source{}, apperr.New(apperr.KindInputInvalid, "unknown dialect: "+string(src.Dialect))
	}
	src.Keywords = NormalizeKeywords(src.Keywords)
	if src.MaxDocs <= 0 {
		src.MaxDocs = 500
	}
	if src.MaxPages <= 0 {
		src.MaxPages = 50
	}
	if src.WindowSize <= 0 {
		src.WindowSize = 20
	}
	return r.store.CreateSource(ctx, src)
}

// Update persists mutated fields of an existing source, re-normalizing
// keywords.
func (r *Registry) Update(ctx context.Context, src model.Source) error {
	if !validDialect(src.Dialect) {
		return apperr.New(apperr.KindInputInvalid, "unknown dialect: "+string(src.Dialect))
	}
	src.Keywords = NormalizeKeywords(src.Keywords)
	return r.store.UpdateSource(ctx, src)
}

// Delete removes a source, refusing while a scrape job is running or
// stopping against it.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.store.DeleteSource(ctx, id)
}

// Get fetches a source by id.
func (r *Registry) Get(ctx context.Context, id string) (model.Source, error) {
	return r.store.GetSource(ctx, id)
}

// List returns all registered sources.
func (r *Registry) List(ctx context.Context) ([]model.Source, error) {
	return r.store.ListSources(ctx)
}

// importEntry is one source in a bulk-import YAML document.
type importEntry struct {
	Name              string   `yaml:"name"`
	BaseURL           string   `yaml:"baseUrl"`
	Dialect           string   `yaml:"dialect"`
	Keywords          []string `yaml:"keywords"`
	MaxDocs           int      `yaml:"maxDocs"`
	MaxPages          int      `yaml:"maxPages"`
	PaginationEnabled *bool    `yaml:"paginationEnabled"`
	WindowSize        int      `yaml:"windowSize"`
	Schedule          string   `yaml:"schedule"`
	Enabled           *bool    `yaml:"enabled"`
}

// importDocument is the top-level shape of a bulk-import YAML file: a
// `sources:` list, one entry per source to onboard.
type importDocument struct {
	Sources []importEntry `yaml:"sources"`
}

// Import parses a YAML document of sources and creates each one in order,
// stopping at the first invalid entry. Operators onboarding a scrape fleet
// submit these in bulk rather than one request per source.
func (r *Registry) Import(ctx context.Context, doc []byte) ([]model.Source, error) {
	var parsed importDocument
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindInputInvalid, err, "malformed sources YAML")
	}
	if len(parsed.Sources) == 0 {
		return nil, apperr.New(apperr.KindInputInvalid, "no sources found under the 'sources' key")
	}

	created := make([]model.Source, 0, len(parsed.Sources))
	for i, entry := range parsed.Sources {
		src := model.Source{
			Name: entry.Name, BaseURL: entry.BaseURL, Dialect: model.Dialect(entry.Dialect),
			Keywords: entry.Keywords, MaxDocs: entry.MaxDocs, MaxPages: entry.MaxPages,
			WindowSize: entry.WindowSize, Schedule: entry.Schedule,
			PaginationEnabled: true, Enabled: true,
		}
		if entry.PaginationEnabled != nil {
			src.PaginationEnabled = *entry.PaginationEnabled
		}
		if entry.Enabled != nil {
			src.Enabled = *entry.Enabled
		}

		saved, err := r.Create(ctx, src)
		if err != nil {
			return created, fmt.Errorf("entry %d (%s): %w", i, entry.Name, err)
		}
		created = append(created, saved)
	}
	return created, nil
}

func validDialect(d model.Dialect) bool {
	switch d {
	case model.DialectMoE, model.DialectUGC, model.DialectAICTE, model.DialectGeneric:
		return true
	default:
		return false
	}
}

// NormalizeKeywords trims, lowercases, drops empties, and de-duplicates a
// keyword list, returning it in sorted order so equal keyword sets compare
// equal regardless of input order.
func NormalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MatchesKeywords reports whether text contains at least one of the
// source's normalized keywords, case-insensitively. An empty keyword list
// matches everything.
func MatchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
