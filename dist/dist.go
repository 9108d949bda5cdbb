// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package dist finds and inspects built Python distribution artifacts.
package dist

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Kind is the type of a distribution artifact.
type Kind string

const (
	// Sdist is a source distribution.
	Sdist Kind = "sdist"
	// Wheel is a built distribution.
	Wheel Kind = "bdist_wheel"
)

// ErrNoArtifacts is returned by [Collect] if the directory holds no
// distribution artifacts.
var ErrNoArtifacts = errors.New("no distribution artifacts")

// Artifact is a distribution file produced by a build.
type Artifact struct {
	// Path is the file path.
	Path string
	Kind Kind
	// Name and Version are taken from the file name; Name is in its escaped
	// file name form.
	Name    string
	Version string
	// PyVersion is the Python tag of a wheel, or "source" for an sdist.
	PyVersion string
}

// Filename returns the base name of the artifact file.
func (a Artifact) Filename() string { return filepath.Base(a.Path) }

var sdistExts = []string{".tar.gz", ".zip"}

// ParseFilename parses the name of a wheel or sdist file at path.
func ParseFilename(path string) (Artifact, error) {
	base := filepath.Base(path)
	a := Artifact{Path: path}

	if stem, ok := strings.CutSuffix(base, ".whl"); ok {
		// name-version(-build)?-python-abi-platform
		parts := strings.Split(stem, "-")
		if len(parts) != 5 && len(parts) != 6 {
			return Artifact{}, fmt.Errorf("invalid wheel file name %q", base)
		}
		a.Kind = Wheel
		a.Name, a.Version = parts[0], parts[1]
		a.PyVersion = parts[len(parts)-3]
		return a, nil
	}

	for _, ext := range sdistExts {
		stem, ok := strings.CutSuffix(base, ext)
		if !ok {
			continue
		}
		i := strings.LastIndexByte(stem, '-')
		if i <= 0 || i == len(stem)-1 {
			return Artifact{}, fmt.Errorf("invalid sdist file name %q", base)
		}
		a.Kind = Sdist
		a.Name, a.Version = stem[:i], stem[i+1:]
		a.PyVersion = "source"
		return a, nil
	}

	return Artifact{}, fmt.Errorf("%q is not a distribution artifact", base)
}

// IsArtifact reports whether name looks like a wheel or sdist file name.
func IsArtifact(name string) bool {
	if strings.HasSuffix(name, ".whl") {
		return true
	}
	for _, ext := range sdistExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Collect returns the artifacts in dir, source distributions first.
func Collect(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrNoArtifacts, err)
	}
	if err != nil {
		return nil, err
	}
	var artifacts []Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsArtifact(e.Name()) {
			continue
		}
		a, err := ParseFilename(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoArtifacts)
	}
	slices.SortFunc(artifacts, func(a, b Artifact) int {
		return cmp.Or(
			cmp.Compare(kindOrder(a.Kind), kindOrder(b.Kind)),
			cmp.Compare(a.Filename(), b.Filename()),
		)
	})
	return artifacts, nil
}

func kindOrder(k Kind) int {
	if k == Sdist {
		return 0
	}
	return 1
}

// Paths returns the file paths of artifacts.
func Paths(artifacts []Artifact) []string {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	return paths
}
