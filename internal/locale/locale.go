// Package locale resolves label keys to display text from embedded YAML catalogs.
package locale

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var catalogsFS embed.FS

// Catalog holds label text for every embedded locale.
type Catalog struct {
	texts   map[language.Tag]map[string]string
	tags    []language.Tag // tags[0] is the fallback
	matcher language.Matcher
}

// Load parses all embedded catalogs. English is the fallback locale.
func Load() (*Catalog, error) {
	entries, err := catalogsFS.ReadDir("catalogs")
	if err != nil {
		return nil, fmt.Errorf("read catalogs: %w", err)
	}

	c := &Catalog{texts: make(map[language.Tag]map[string]string)}
	for _, entry := range entries {
		name := entry.Name()
		tag, err := language.Parse(strings.TrimSuffix(name, path.Ext(name)))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}

		data, err := catalogsFS.ReadFile("catalogs/" + name)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}
		texts := make(map[string]string)
		if err := yaml.Unmarshal(data, &texts); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}
		c.texts[tag] = texts
		c.tags = append(c.tags, tag)
	}

	if _, ok := c.texts[language.English]; !ok {
		return nil, fmt.Errorf("missing fallback catalog: en")
	}
	sort.Slice(c.tags, func(i, j int) bool {
		if c.tags[i] == language.English {
			return true
		}
		if c.tags[j] == language.English {
			return false
		}
		return c.tags[i].String() < c.tags[j].String()
	})
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Locales returns the available locales, fallback first.
func (c *Catalog) Locales() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Match picks the best available locale for an Accept-Language header value
// or a plain tag such as "fr".
func (c *Catalog) Match(accept string) language.Tag {
	prefs, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(prefs) == 0 {
		return c.tags[0]
	}
	_, idx, _ := c.matcher.Match(prefs...)
	return c.tags[idx]
}

// Lookup parses a configured locale and reports an error when no catalog
// covers it. Regional variants match their base language.
func (c *Catalog) Lookup(s string) (language.Tag, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", s, err)
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		names := make([]string, len(c.tags))
		for i, t := range c.tags {
			names[i] = t.String()
		}
		return language.Und, fmt.Errorf("unsupported locale %q (available: %s)", s, strings.Join(names, ", "))
	}
	return c.tags[idx], nil
}

// Text returns the display text for key in the given locale, falling back to
// English and then to the key itself.
func (c *Catalog) Text(tag language.Tag, key string) string {
	if texts, ok := c.texts[tag]; ok {
		if s, ok := texts[key]; ok {
			return s
		}
	}
	if s, ok := c.texts[c.tags[0]][key]; ok {
		return s
	}
	return key
}
