// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package pyproject reads Python project metadata from pyproject.toml.
package pyproject

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// File is the name of the project metadata file.
const File = "pyproject.toml"

// metadataFiles are the files any of which marks a directory as a Python
// project root.
var metadataFiles = []string{File, "setup.py", "setup.cfg"}

// Project is the [project] table of pyproject.toml.
type Project struct {
	Name           string   `toml:"name"`
	Version        string   `toml:"version"`
	Description    string   `toml:"description"`
	RequiresPython string   `toml:"requires-python"`
	Dynamic        []string `toml:"dynamic"`
}

// BuildSystem is the [build-system] table of pyproject.toml.
type BuildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

type document struct {
	Project     Project     `toml:"project"`
	BuildSystem BuildSystem `toml:"build-system"`
}

// Metadata is the parsed content of pyproject.toml.
type Metadata struct {
	Project     Project
	BuildSystem BuildSystem
}

// Load reads pyproject.toml from dir. If the file does not exist, the
// returned error matches [fs.ErrNotExist].
func Load(dir string) (*Metadata, error) {
	b, err := os.ReadFile(filepath.Join(dir, File))
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse parses the content of a pyproject.toml file.
func Parse(b []byte) (*Metadata, error) {
	var doc document
	if err := toml.Unmarshal(b, &doc); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return nil, fmt.Errorf("%s:%d:%d: %w", File, row, col, err)
		}
		return nil, fmt.Errorf("%s: %w", File, err)
	}
	return &Metadata{Project: doc.Project, BuildSystem: doc.BuildSystem}, nil
}

// HasMetadata reports whether dir contains packaging metadata.
func HasMetadata(dir string) bool {
	for _, name := range metadataFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// CheckMetadata returns an error if dir has no packaging metadata.
func CheckMetadata(dir string) error {
	if HasMetadata(dir) {
		return nil
	}
	return fmt.Errorf("no packaging metadata (%s): %w", strings.Join(metadataFiles, ", "), fs.ErrNotExist)
}

// IsDynamic reports whether field is computed by the build backend.
func (p Project) IsDynamic(field string) bool { return slices.Contains(p.Dynamic, field) }

var separators = regexp.MustCompile(`[-_.]+`)

// NormalizeName returns the normalized form of a distribution name, as used
// by package indexes to compare names.
func NormalizeName(name string) string {
	return strings.ToLower(separators.ReplaceAllString(name, "-"))
}

// FilenameName returns the escaped form of a distribution name used in
// wheel and sdist file names.
func FilenameName(name string) string {
	return strings.ToLower(separators.ReplaceAllString(name, "_"))
}

// FilenamePrefix returns the "name-version" prefix shared by the wheel and
// sdist file names of p. It is empty if the name or version are not static.
func (p Project) FilenamePrefix() string {
	if p.Name == "" || p.Version == "" || p.IsDynamic("version") {
		return ""
	}
	return FilenameName(p.Name) + "-" + strings.ReplaceAll(p.Version, "-", "_")
}
