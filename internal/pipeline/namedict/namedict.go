// Package namedict implements the persistent, cross-episode name and
// glossary dictionary that mt consults. It replaces the original
// implementation's flat `dub/dict/names.json` / `slang.json` pair with a
// BadgerDB-backed store (via this repo's pkg/kv) rooted at the same
// `<series>/dub/dict/` location, so a whole series shares one dictionary
// without rewriting a full JSON file on every new name.
package namedict

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelsub/dubpipe/pkg/kv"
)

// Dict is the cross-episode name/glossary/slang dictionary.
type Dict struct {
	store kv.Store
}

// Open opens (creating if absent) the Badger-backed dictionary at dir.
func Open(dir string) (*Dict, error) {
	b, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("namedict: open %s: %w", dir, err)
	}
	return &Dict{store: b}, nil
}

// OpenWithStore wraps an already-constructed kv.Store, for tests (an
// in-memory kv.Store stands in for Badger).
func OpenWithStore(s kv.Store) *Dict {
	return &Dict{store: s}
}

func (d *Dict) Close() error { return d.store.Close() }

var ctx = context.Background()

func nameKey(source string) kv.Key     { return kv.Key{"name", source} }
func glossaryKey(source string) kv.Key { return kv.Key{"glossary", source} }
func slangKey(source string) kv.Key    { return kv.Key{"slang", source} }

// ResolveName returns the stable English rendering for a source-language
// name, if one has ever been committed.
func (d *Dict) ResolveName(source string) (string, bool, error) {
	v, err := d.store.Get(ctx, nameKey(source))
	if errors.Is(err, kv.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("namedict: resolve %q: %w", source, err)
	}
	return string(v), true, nil
}

// PutNameFirstWriteWins commits source->english only if source has never
// been written before, matching the original DictLoader's first-write-wins
// semantics for LLM-completed names.
func (d *Dict) PutNameFirstWriteWins(source, english string) error {
	if _, ok, err := d.ResolveName(source); err != nil {
		return err
	} else if ok {
		return nil
	}
	return d.store.Set(ctx, nameKey(source), []byte(english))
}

// KnownNames lists every source-language name ever committed via
// PutNameFirstWriteWins, the candidate set mt's name-guard step checks an
// utterance's text against.
func (d *Dict) KnownNames() ([]string, error) {
	var names []string
	for entry, err := range d.store.List(ctx, kv.Key{"name"}) {
		if err != nil {
			return nil, fmt.Errorf("namedict: list names: %w", err)
		}
		if len(entry.Key) == 0 {
			continue
		}
		if name := entry.Key[len(entry.Key)-1]; name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// GlossaryEntry is one `source_term -> english_term` mapping.
type GlossaryEntry struct {
	Source  string
	English string
}

// PutGlossary commits a glossary mapping, overwriting any prior value.
func (d *Dict) PutGlossary(source, english string) error {
	return d.store.Set(ctx, glossaryKey(source), []byte(english))
}

// PutSlang commits a domain-slang mapping (e.g. gambling/card-game terms),
// overwriting any prior value.
func (d *Dict) PutSlang(source, english string) error {
	return d.store.Set(ctx, slangKey(source), []byte(english))
}

// GlossaryHits returns only the glossary entries whose source term actually
// appears in zhText, keeping prompts small instead of injecting the whole
// glossary on every utterance (matching dict_loader.get_glossary_hits).
func (d *Dict) GlossaryHits(zhText string) ([]GlossaryEntry, error) {
	return d.hitsUnder(kv.Key{"glossary"}, zhText)
}

// SlangHits is the same lookup over the slang namespace.
func (d *Dict) SlangHits(zhText string) ([]GlossaryEntry, error) {
	return d.hitsUnder(kv.Key{"slang"}, zhText)
}

func (d *Dict) hitsUnder(prefix kv.Key, zhText string) ([]GlossaryEntry, error) {
	var hits []GlossaryEntry
	for entry, err := range d.store.List(ctx, prefix) {
		if err != nil {
			return nil, fmt.Errorf("namedict: list: %w", err)
		}
		if len(entry.Key) == 0 {
			continue
		}
		term := entry.Key[len(entry.Key)-1]
		if term == "" {
			continue
		}
		if containsRunes(zhText, term) {
			hits = append(hits, GlossaryEntry{Source: term, English: string(entry.Value)})
		}
	}
	return hits, nil
}

func containsRunes(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return indexOf(haystack, needle) >= 0
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}

// CheckGlossaryViolation reports, for every glossary hit in zhText, whether
// its English target is present in enText (case-insensitive substring).
// Returns the list of violated (missed) entries.
func CheckGlossaryViolation(hits []GlossaryEntry, enText string) []GlossaryEntry {
	lower := toLower(enText)
	var violated []GlossaryEntry
	for _, h := range hits {
		if indexOf(lower, toLower(h.English)) < 0 {
			violated = append(violated, h)
		}
	}
	return violated
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
