package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// LoadModelsConfig loads the model table from a YAML file. Models, families
// and aliases in the file extend or override the built-in table.
func LoadModelsConfig(configPath string) (*domain.ModelCatalog, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/models.yaml",
			"/etc/feishu-gpt-bridge/models.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "models.yaml"))
		}
	}

	var data []byte
	var loadedPath string

	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("read %s: file not found", configPath)
		}
		slog.Info("no models.yaml found, using built-in model table")
		return domain.DefaultModelCatalog(), nil
	}

	slog.Info("loading model table", "path", loadedPath)

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}

	catalog := mergeCatalog(domain.DefaultModelCatalog(), &file)
	if err := validateCatalog(catalog); err != nil {
		return nil, fmt.Errorf("invalid model table %s: %w", loadedPath, err)
	}
	return catalog, nil
}

// catalogFile is the YAML form of the model table. Numeric fields are
// pointers so that an explicit zero can be told apart from an omitted field.
type catalogFile struct {
	Models   []modelEntry         `yaml:"models"`
	Families []domain.ModelFamily `yaml:"families"`
	Aliases  map[string]string    `yaml:"aliases"`
}

type modelEntry struct {
	Name             string `yaml:"name"`
	Encoding         string `yaml:"encoding"`
	TokensPerMessage *int   `yaml:"tokens_per_message"`
	TokensPerName    *int   `yaml:"tokens_per_name"`
	ReplyPriming     *int   `yaml:"reply_priming"`
	ContextWindow    *int   `yaml:"context_window"`
	ReplyReserve     *int   `yaml:"reply_reserve"`
}

// mergeCatalog overlays file onto base. Models and families are matched by
// name and match string; a model entry only changes the fields it sets.
func mergeCatalog(base *domain.ModelCatalog, file *catalogFile) *domain.ModelCatalog {
	for _, e := range file.Models {
		replaced := false
		for i := range base.Models {
			if base.Models[i].Name == e.Name {
				base.Models[i] = e.apply(base.Models[i])
				replaced = true
				break
			}
		}
		if !replaced {
			base.Models = append(base.Models, e.apply(newModelSpec(e.Name)))
		}
	}

	for _, f := range file.Families {
		replaced := false
		for i := range base.Families {
			if base.Families[i].Match == f.Match {
				base.Families[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			base.Families = append(base.Families, f)
		}
	}

	if base.Aliases == nil {
		base.Aliases = make(map[string]string)
	}
	for alias, model := range file.Aliases {
		base.Aliases[strings.ToLower(alias)] = model
	}
	return base
}

// newModelSpec is the starting point for a model the built-in table lacks
func newModelSpec(name string) domain.ModelSpec {
	return domain.ModelSpec{
		Name:             name,
		Encoding:         "cl100k_base",
		TokensPerMessage: 3,
		TokensPerName:    1,
		ReplyPriming:     3,
		ReplyReserve:     1024,
	}
}

func (e modelEntry) apply(m domain.ModelSpec) domain.ModelSpec {
	if e.Encoding != "" {
		m.Encoding = e.Encoding
	}
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	set(&m.TokensPerMessage, e.TokensPerMessage)
	set(&m.TokensPerName, e.TokensPerName)
	set(&m.ReplyPriming, e.ReplyPriming)
	set(&m.ContextWindow, e.ContextWindow)
	set(&m.ReplyReserve, e.ReplyReserve)
	return m
}

func validateCatalog(c *domain.ModelCatalog) error {
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("model without name")
		}
		if m.TokensPerMessage < 0 || m.ReplyPriming < 0 {
			return fmt.Errorf("model %s: negative overhead", m.Name)
		}
		if m.Budget() <= 0 {
			return fmt.Errorf("model %s: context_window must exceed reply_reserve", m.Name)
		}
	}
	for _, f := range c.Families {
		if _, err := c.Resolve(f.Target); err != nil {
			return fmt.Errorf("family %q: %w", f.Match, err)
		}
	}
	return nil
}
