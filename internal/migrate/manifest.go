package migrate

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/manifest.yaml builtin/scripts/*.sql
var builtinFS embed.FS

// BuiltinManifestPath is the path of the built-in manifest inside its FS.
const BuiltinManifestPath = "builtin/manifest.yaml"

// Kind selects how a unit is executed.
type Kind string

const (
	// KindScript units run SQL text as one batch.
	KindScript Kind = "script"

	// KindNative units call a handler from the Registry.
	KindNative Kind = "native"
)

// Unit describes one migration step.
type Unit struct {
	// Name is the unit's identity in the tracking table.
	Name string `yaml:"name" json:"name" validate:"required,max=255"`

	// Kind is the execution kind. Kinds other than script and native are
	// recorded as skipped.
	Kind Kind `yaml:"kind" json:"kind" validate:"required"`

	// Script is inline SQL for script units.
	Script string `yaml:"script,omitempty" json:"script,omitempty"`

	// File is a SQL file, relative to the manifest, for script units.
	// Its contents are loaded into Script.
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// Handler is the registry key for native units.
	Handler string `yaml:"handler,omitempty" json:"handler,omitempty" validate:"required_if=Kind native"`
}

// Manifest is an ordered list of migration units.
type Manifest struct {
	Units []Unit `yaml:"units" json:"units" validate:"required,min=1,dive"`
}

// Names returns the unit names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Units))
	for i, u := range m.Units {
		names[i] = u.Name
	}
	return names
}

// Lookup returns the unit with the given name.
func (m *Manifest) Lookup(name string) (Unit, bool) {
	for _, u := range m.Units {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// BuiltinManifest loads the manifest compiled into the binary.
func BuiltinManifest() (*Manifest, error) {
	return LoadManifest(builtinFS, BuiltinManifestPath)
}

// LoadManifestFile loads a manifest from disk. Script files are resolved
// relative to the manifest's directory.
func LoadManifestFile(p string) (*Manifest, error) {
	return LoadManifest(os.DirFS(filepath.Dir(p)), filepath.Base(p))
}

// LoadManifest reads the manifest at name from fsys. Files ending in .cue are
// evaluated with CUE; everything else is parsed as YAML with unknown fields
// rejected.
func LoadManifest(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m *Manifest
	if strings.EqualFold(path.Ext(name), ".cue") {
		m, err = parseCUE(data, name)
	} else {
		m, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", name, err)
	}

	if err := validateManifest(m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", name, err)
	}

	dir := path.Dir(name)
	for i := range m.Units {
		u := &m.Units[i]
		if u.File == "" {
			continue
		}
		script, err := fs.ReadFile(fsys, path.Join(dir, u.File))
		if err != nil {
			return nil, fmt.Errorf("unit %s: read script: %w", u.Name, err)
		}
		u.Script = string(script)
	}

	return m, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseCUE(data []byte, name string) (*Manifest, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	unitsVal := value.LookupPath(cue.ParsePath("units"))
	if !unitsVal.Exists() {
		return nil, errors.New("missing units field")
	}

	var m Manifest
	if err := unitsVal.Decode(&m.Units); err != nil {
		return nil, fmt.Errorf("decode units: %w", err)
	}
	return &m, nil
}

var validate = validator.New()

// validateManifest checks struct tags and the rules tags cannot express:
// unique names and exactly one SQL source per script unit.
func validateManifest(m *Manifest) error {
	if err := validate.Struct(m); err != nil {
		return err
	}

	seen := make(map[string]bool, len(m.Units))
	for _, u := range m.Units {
		if seen[u.Name] {
			return fmt.Errorf("duplicate unit name %q", u.Name)
		}
		seen[u.Name] = true

		if u.Kind == KindScript {
			hasScript := strings.TrimSpace(u.Script) != ""
			hasFile := u.File != ""
			if hasScript == hasFile {
				return fmt.Errorf("unit %s: script units need exactly one of script or file", u.Name)
			}
		}
	}
	return nil
}
