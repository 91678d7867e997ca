// Package i18n holds the localized error message templates used by
// sessions.
package i18n

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Message keys.
const (
	KeyConnection = "CONNECTION"
	KeyLogin      = "LOGIN"
)

// Fallback is used when a requested language has no close match.
const Fallback = "en"

//go:embed messages.yaml
var builtin []byte

// Catalog maps language -> key -> template. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	langs   []string
	msgs    map[string]map[string]string
	matcher language.Matcher
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog built from the embedded messages.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(builtin)
		if err != nil {
			panic(fmt.Sprintf("i18n: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse builds a catalog from YAML of the form
//
//	en:
//	  CONNECTION: 'Connection error: "%s"'
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{msgs: make(map[string]map[string]string)}
	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a YAML catalog file and merges it over the embedded messages.
func Load(path string) (*Catalog, error) {
	// #nosec G304 -- path comes from the operator's configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading message catalog: %w", err)
	}
	c, err := Parse(builtin)
	if err != nil {
		return nil, err
	}
	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) merge(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing message catalog: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parsing message catalog: top level must be a mapping of languages")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// walk the node so the file order of languages is kept
	for i := 0; i+1 < len(root.Content); i += 2 {
		lang := root.Content[i].Value
		var entries map[string]string
		if err := root.Content[i+1].Decode(&entries); err != nil {
			return fmt.Errorf("parsing message catalog: language %q: %w", lang, err)
		}
		for key, tmpl := range entries {
			if n := strings.Count(tmpl, "%s"); n != 1 {
				return fmt.Errorf("parsing message catalog: %s.%s has %d %%s slots, want 1", lang, key, n)
			}
		}
		if _, ok := c.msgs[lang]; !ok {
			c.msgs[lang] = make(map[string]string)
			c.langs = append(c.langs, lang)
		}
		for key, tmpl := range entries {
			c.msgs[lang][key] = tmpl
		}
	}

	tags := make([]language.Tag, 0, len(c.langs))
	for _, l := range c.langs {
		tags = append(tags, language.Make(l))
	}
	c.matcher = language.NewMatcher(tags)
	return nil
}

// Languages lists the catalog languages in definition order.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.langs...)
}

// Match resolves a user supplied tag ("es", "es-AR", "es_ES.UTF-8") to a
// catalog language, falling back to the first one defined.
func (c *Catalog) Match(lang string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.langs) == 0 {
		return ""
	}
	if _, ok := c.msgs[lang]; ok {
		return lang
	}

	// POSIX locales carry a codeset suffix the BCP 47 parser rejects
	lang, _, _ = strings.Cut(lang, ".")
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return c.langs[0]
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return c.langs[0]
	}
	return c.langs[idx]
}

// Template returns the template for key in the best matching language. When
// that language lacks the key, the fallback language is tried.
func (c *Catalog) Template(lang, key string) string {
	matched := c.Match(lang)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if tmpl, ok := c.msgs[matched][key]; ok {
		return tmpl
	}
	if tmpl, ok := c.msgs[Fallback][key]; ok {
		return tmpl
	}
	return ""
}

// Format fills the template for key with subject.
func (c *Catalog) Format(lang, key, subject string) string {
	tmpl := c.Template(lang, key)
	if tmpl == "" {
		return fmt.Sprintf("%s: %q", strings.ToLower(key), subject)
	}
	return fmt.Sprintf(tmpl, subject)
}
