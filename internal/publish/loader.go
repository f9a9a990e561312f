package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Configurable is implemented by validators and extractors that accept
// descriptor settings.
type Configurable interface {
	Configure(settings map[string]any) error
}

// descriptor is one plugin descriptor file: it registers a named variant of
// an already-registered validator or extractor, optionally reconfigured.
//
//	name = "file_size_strict"
//	kind = "validator"
//	variant = "file_size"
//
//	[settings]
//	max_bytes = 1048576
//	ignorable = false
type descriptor struct {
	Name     string         `toml:"name"`
	Kind     string         `toml:"kind"`
	Variant  string         `toml:"variant"`
	Settings map[string]any `toml:"settings"`
}

// LoadDir reads every *.toml descriptor in dir and registers the variants it
// describes. Returns the number of descriptors loaded. A missing directory
// is not an error; a malformed descriptor is, named by file.
func LoadDir(r *Registry, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read plugin directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	loaded := 0
	for _, file := range files {
		path := filepath.Join(dir, file)
		if err := loadDescriptor(r, path); err != nil {
			return loaded, fmt.Errorf("plugin descriptor %s: %w", file, err)
		}
		loaded++
	}
	return loaded, nil
}

func loadDescriptor(r *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var desc descriptor
	if err := toml.Unmarshal(data, &desc); err != nil {
		return err
	}
	if desc.Name == "" || desc.Variant == "" {
		return fmt.Errorf("name and variant are required")
	}
	switch desc.Kind {
	case "validator":
		base, ok := r.validators[desc.Variant]
		if !ok {
			return fmt.Errorf("unknown validator variant %s", desc.Variant)
		}
		if err := configure(base(), desc.Variant, desc.Settings); err != nil {
			return err
		}
		return r.RegisterValidator(desc.Name, func() Validator {
			v := base()
			if c, ok := v.(Configurable); ok && len(desc.Settings) > 0 {
				_ = c.Configure(desc.Settings)
			}
			return v
		})
	case "extractor":
		base, ok := r.extractors[desc.Variant]
		if !ok {
			return fmt.Errorf("unknown extractor variant %s", desc.Variant)
		}
		if err := configure(base(), desc.Variant, desc.Settings); err != nil {
			return err
		}
		return r.RegisterExtractor(desc.Name, func() Extractor {
			e := base()
			if c, ok := e.(Configurable); ok && len(desc.Settings) > 0 {
				_ = c.Configure(desc.Settings)
			}
			return e
		})
	default:
		return fmt.Errorf("kind must be validator or extractor, got %q", desc.Kind)
	}
}

// configure vets descriptor settings against a probe instance at load time,
// so malformed descriptors fail loudly instead of at publish time.
func configure(instance any, variant string, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}
	c, ok := instance.(Configurable)
	if !ok {
		return fmt.Errorf("variant %s does not accept settings", variant)
	}
	return c.Configure(settings)
}
