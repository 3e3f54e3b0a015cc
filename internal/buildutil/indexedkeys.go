package buildutil

import (
	"fmt"
	"strings"
)

// MaxIndexedKeys is the maximum number of keys that may be indexed,
// matching original_source's IndexedKeysParser::MAX_INDEXED_KEYS (an
// indexed key's category id is packed into a fixed-width field downstream,
// in the feature-id index's key-bits summary, §4.9).
const MaxIndexedKeys = 255

// MaxIndexCategories is the maximum number of distinct index categories
// (IndexedKeysParser::MAX_INDEX_CATEGORIES). Category 0 is reserved for
// "not indexed".
const MaxIndexCategories = 30

// IndexedKey is one key the R-tree index (§4.9) should track per branch,
// with its 1-based category number. Keys sharing a category are
// considered synonyms for index-pruning purposes (e.g. "building" and
// "building:part" might both feed category 1's summary bit).
type IndexedKey struct {
	Key      string
	Category int
}

// ParseIndexedKeys parses the indexed-keys build setting. Keys are
// separated by ',' (each comma starts a new category) or '/' (each slash
// keeps the same category as the previous key), grounded on
// original_source's IndexedKeysParser.cpp. Example: "building/construction,
// amenity" assigns building and construction to category 1 and amenity to
// category 2.
func ParseIndexedKeys(s string) ([]IndexedKey, error) {
	p := &indexedKeysParser{s: s}
	return p.parse()
}

type indexedKeysParser struct {
	s   string
	pos int
}

func (p *indexedKeysParser) parse() ([]IndexedKey, error) {
	var keys []IndexedKey
	seen := make(map[string]bool)
	currentCategory := 0

	for {
		p.skipWhitespace()
		if p.pos >= len(p.s) {
			break
		}

		key, err := p.expectKey()
		if err != nil {
			return nil, err
		}

		if len(keys) == MaxIndexedKeys {
			return nil, fmt.Errorf("buildutil: too many indexed keys (maximum %d)", MaxIndexedKeys)
		}

		currentCategory++
		if currentCategory > MaxIndexCategories {
			return nil, fmt.Errorf("buildutil: too many index categories (maximum %d)", MaxIndexCategories)
		}

		if seen[key] {
			return nil, fmt.Errorf("buildutil: duplicate indexed key: %q", key)
		}
		seen[key] = true

		keys = append(keys, IndexedKey{Key: key, Category: currentCategory})

		if p.accept('/') {
			if currentCategory == 0 {
				return nil, fmt.Errorf("buildutil: expected key after '/'")
			}
			currentCategory--
		} else {
			p.accept(',') // optional separator
		}
	}
	return keys, nil
}

func (p *indexedKeysParser) skipWhitespace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *indexedKeysParser) accept(c byte) bool {
	p.skipWhitespace()
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

// expectKey consumes an OSM tag-key token: letters, digits, ':', '_', '-'.
func (p *indexedKeysParser) expectKey() (string, error) {
	start := p.pos
	for p.pos < len(p.s) && isKeyChar(p.s[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("buildutil: expected key at position %d in %q", start, p.s)
	}
	return p.s[start:p.pos], nil
}

func isKeyChar(c byte) bool {
	return c == ':' || c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// FormatIndexedKeys renders keys back into the syntax ParseIndexedKeys
// accepts, grouping same-category keys with '/' and separating categories
// with ','. The build orchestrator uses it to record the indexed keys in
// the GOL's settings section, which `gol info` prints.
func FormatIndexedKeys(keys []IndexedKey) string {
	var b strings.Builder
	lastCategory := 0
	for i, k := range keys {
		if i > 0 {
			if k.Category == lastCategory {
				b.WriteByte('/')
			} else {
				b.WriteByte(',')
			}
		}
		b.WriteString(k.Key)
		lastCategory = k.Category
	}
	return b.String()
}
