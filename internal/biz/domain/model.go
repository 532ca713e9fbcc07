package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ModelSpec describes how prompt tokens are accounted for one model
type ModelSpec struct {
	Name             string `yaml:"name"`
	Encoding         string `yaml:"encoding"`
	TokensPerMessage int    `yaml:"tokens_per_message"`
	TokensPerName    int    `yaml:"tokens_per_name"`
	ReplyPriming     int    `yaml:"reply_priming"`
	ContextWindow    int    `yaml:"context_window"`
	ReplyReserve     int    `yaml:"reply_reserve"`
}

// Budget is the number of prompt tokens the model accepts while leaving room
// for the reply.
func (m ModelSpec) Budget() int {
	return m.ContextWindow - m.ReplyReserve
}

// ModelFamily maps every identifier containing Match to the Target model
type ModelFamily struct {
	Match  string `yaml:"match"`
	Target string `yaml:"target"`
}

// ModelCatalog is the table of known models, family fallbacks and the
// directive aliases that select a model.
type ModelCatalog struct {
	Models   []ModelSpec       `yaml:"models"`
	Families []ModelFamily     `yaml:"families"`
	Aliases  map[string]string `yaml:"aliases"`
}

// Resolve finds the spec for a model identifier. Exact names win; otherwise
// the longest matching family is used so that e.g. gpt-4o is not taken for
// gpt-4.
func (c *ModelCatalog) Resolve(model string) (ModelSpec, error) {
	if spec, ok := c.lookup(model); ok {
		return spec, nil
	}
	families := make([]ModelFamily, len(c.Families))
	copy(families, c.Families)
	sort.SliceStable(families, func(i, j int) bool {
		return len(families[i].Match) > len(families[j].Match)
	})
	for _, f := range families {
		if f.Match != "" && strings.Contains(model, f.Match) {
			if spec, ok := c.lookup(f.Target); ok {
				return spec, nil
			}
		}
	}
	return ModelSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
}

// Alias returns the model selected by a directive keyword. Keywords are
// case-insensitive.
func (c *ModelCatalog) Alias(keyword string) (string, bool) {
	if model, ok := c.Aliases[keyword]; ok {
		return model, true
	}
	for k, model := range c.Aliases {
		if strings.EqualFold(k, keyword) {
			return model, true
		}
	}
	return "", false
}

// AliasNames lists the lowercased alias keywords in sorted order.
func (c *ModelCatalog) AliasNames() []string {
	names := make([]string, 0, len(c.Aliases))
	for k := range c.Aliases {
		names = append(names, strings.ToLower(k))
	}
	sort.Strings(names)
	return names
}

func (c *ModelCatalog) lookup(name string) (ModelSpec, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// DefaultModelCatalog returns the built-in model table
func DefaultModelCatalog() *ModelCatalog {
	spec := func(name string, window int) ModelSpec {
		return ModelSpec{
			Name:             name,
			Encoding:         "cl100k_base",
			TokensPerMessage: 3,
			TokensPerName:    1,
			ReplyPriming:     3,
			ContextWindow:    window,
			ReplyReserve:     1024,
		}
	}
	legacy := spec("gpt-3.5-turbo-0301", 4096)
	legacy.TokensPerMessage = 4
	legacy.TokensPerName = -1
	omni := spec("gpt-4o-2024-08-06", 128000)
	omni.Encoding = "o200k_base"
	omni.ReplyReserve = 4096

	return &ModelCatalog{
		Models: []ModelSpec{
			legacy,
			spec("gpt-3.5-turbo-0613", 4096),
			spec("gpt-3.5-turbo-16k-0613", 16384),
			spec("gpt-4-0314", 8192),
			spec("gpt-4-32k-0314", 32768),
			spec("gpt-4-0613", 8192),
			spec("gpt-4-32k-0613", 32768),
			omni,
			spec("moonshot-v1-8k", 8192),
		},
		Families: []ModelFamily{
			{Match: "gpt-3.5-turbo", Target: "gpt-3.5-turbo-0613"},
			{Match: "gpt-3.5-turbo-16k", Target: "gpt-3.5-turbo-16k-0613"},
			{Match: "gpt-4", Target: "gpt-4-0613"},
			{Match: "gpt-4-32k", Target: "gpt-4-32k-0613"},
			{Match: "gpt-4o", Target: "gpt-4o-2024-08-06"},
			{Match: "moonshot-v1", Target: "moonshot-v1-8k"},
		},
		Aliases: map[string]string{
			"gpt3":  "gpt-3.5-turbo",
			"gpt4":  "gpt-4",
			"gpt4o": "gpt-4o",
		},
	}
}
