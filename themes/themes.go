// Package themes defines the built-in page layouts (documentation, enterprise,
// magazine) and renders them as templ components.
package themes

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/eringen/blogkit/content"
	"github.com/eringen/blogkit/feed"
)

// Theme describes how a layout slices the feed and paginates it.
type Theme struct {
	Name            string `yaml:"-"`
	HeroCount       int    `yaml:"hero_count"`
	SecondaryCount  int    `yaml:"secondary_count"`
	InitialPageSize int    `yaml:"initial_page_size"`
	PageSize        int    `yaml:"page_size"`
	// AutoLoad switches from the button to infinite scroll after the first
	// successful load.
	AutoLoad      bool   `yaml:"auto_load"`
	LoadMoreLabel string `yaml:"load_more_label"`
	EndMessage    string `yaml:"end_message"`
}

// Catalog maps theme names to themes.
type Catalog map[string]Theme

// Builtin returns the built-in themes.
func Builtin() Catalog {
	return Catalog{
		"enterprise": {
			Name:            "enterprise",
			HeroCount:       1,
			SecondaryCount:  3,
			InitialPageSize: 10,
			PageSize:        10,
			AutoLoad:        true,
			LoadMoreLabel:   "Load more posts",
		},
		"documentation": {
			Name:            "documentation",
			HeroCount:       3,
			InitialPageSize: 10,
			PageSize:        9,
			LoadMoreLabel:   "Load More",
			EndMessage:      "That's all Folks! 👋🏼",
		},
		"magazine": {
			Name:            "magazine",
			HeroCount:       5,
			InitialPageSize: 10,
			PageSize:        10,
			LoadMoreLabel:   "Show More Posts",
			EndMessage:      "The End",
		},
	}
}

// Lookup returns the named theme.
func (c Catalog) Lookup(name string) (Theme, error) {
	t, ok := c[name]
	if !ok {
		return Theme{}, fmt.Errorf("themes: unknown theme %q (have %v)", name, c.Names())
	}
	return t, nil
}

// Names returns the sorted theme names.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type themesFile struct {
	Themes map[string]yaml.Node `yaml:"themes"`
}

// LoadFile reads theme overrides from a YAML file and merges them onto the
// built-in themes. Fields missing from the file keep their built-in value.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse merges YAML theme overrides onto the built-in themes.
func Parse(data []byte) (Catalog, error) {
	var f themesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("themes: parse: %w", err)
	}
	cat := Builtin()
	for name, node := range f.Themes {
		t := cat[name]
		if err := node.Decode(&t); err != nil {
			return nil, fmt.Errorf("themes: %s: %w", name, err)
		}
		t.Name = name
		if err := t.validate(); err != nil {
			return nil, err
		}
		cat[name] = t
	}
	return cat, nil
}

func (t Theme) validate() error {
	if t.HeroCount < 0 || t.SecondaryCount < 0 {
		return fmt.Errorf("themes: %s: negative hero or secondary count", t.Name)
	}
	if t.InitialPageSize <= 0 || t.PageSize <= 0 {
		return fmt.Errorf("themes: %s: page sizes must be positive", t.Name)
	}
	return nil
}

// Split divides the feed into the hero cards, the cards next to them and the
// rest of the list.
func (t Theme) Split(items []content.PostSummary) (hero, secondary, rest []content.PostSummary) {
	hero = feed.Hero(items, t.HeroCount)
	after := feed.Remainder(items, t.HeroCount)
	secondary = feed.Hero(after, t.SecondaryCount)
	rest = feed.Remainder(items, t.Lead())
	return hero, secondary, rest
}

// Lead returns how many items sit above the "more posts" list.
func (t Theme) Lead() int {
	return t.HeroCount + t.SecondaryCount
}
