// Package cache memoizes parse and format results by source content.
package cache

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vito/rfmt/pkg/rfmt"
)

// DefaultSize is the number of entries kept in each cache.
const DefaultSize = 100

type formatKey struct {
	source uint64
	config uint64
}

// Cache holds recently formatted sources and their parser documents. It is
// safe for concurrent use.
type Cache struct {
	formatted *lru.Cache[formatKey, string]
	documents *lru.Cache[uint64, *rfmt.Document]
}

// New returns a cache holding up to size entries of each kind.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	formatted, _ := lru.New[formatKey, string](size)
	documents, _ := lru.New[uint64, *rfmt.Document](size)
	return &Cache{formatted: formatted, documents: documents}
}

// Key hashes source for use with the other methods.
func Key(source string) uint64 {
	return xxhash.Sum64String(source)
}

// Formatted returns the output previously stored for source under cfg.
func (c *Cache) Formatted(source string, cfg rfmt.FormatConfig) (string, bool) {
	return c.formatted.Get(formatKey{Key(source), cfg.Hash()})
}

func (c *Cache) StoreFormatted(source string, cfg rfmt.FormatConfig, out string) {
	c.formatted.Add(formatKey{Key(source), cfg.Hash()}, out)
}

// Document returns the parser document previously stored for source.
// Documents are shared and must not be modified.
func (c *Cache) Document(source string) (*rfmt.Document, bool) {
	doc, ok := c.documents.Get(Key(source))
	if !ok || doc.Source != source {
		return nil, false
	}
	return doc, true
}

func (c *Cache) StoreDocument(doc *rfmt.Document) {
	c.documents.Add(Key(doc.Source), doc)
}

// Len reports the number of formatted entries.
func (c *Cache) Len() int {
	return c.formatted.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.formatted.Purge()
	c.documents.Purge()
}

// Format returns the formatted source, parsing with parse on a miss. Only
// successful results are cached.
func (c *Cache) Format(source string, cfg rfmt.FormatConfig, parse func(string) (*rfmt.Document, error)) (string, error) {
	if out, ok := c.Formatted(source, cfg); ok {
		return out, nil
	}
	doc, ok := c.Document(source)
	if !ok {
		var err error
		doc, err = parse(source)
		if err != nil {
			return "", err
		}
		c.StoreDocument(doc)
	}
	out, err := rfmt.Format(doc, cfg)
	if err != nil {
		return "", err
	}
	c.StoreFormatted(source, cfg, out)
	return out, nil
}
