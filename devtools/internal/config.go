// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package internal contains configuration shared by devtools.
package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/lint"
	"go.astrophena.name/pyship/txtar"
)

// ConfigFile is the path of the devtools configuration archive relative to
// the repository root.
const ConfigFile = ".devtools/config.txtar"

// LintGate is the content of lint-gate.json.
type LintGate struct {
	Linter           []string `json:"linter"`
	Mode             string   `json:"mode"`
	Scope            string   `json:"scope"`
	Extensions       []string `json:"extensions"`
	OnlyChangedLines bool     `json:"only_changed_lines"`
}

// Gate returns a lint gate configured by c that runs commands with r.
func (c LintGate) Gate(r command.Runner) *lint.Gate {
	return &lint.Gate{
		Runner:           r,
		Linter:           c.Linter,
		Mode:             lint.Mode(c.Mode),
		Scope:            lint.Scope(c.Scope),
		Extensions:       c.Extensions,
		OnlyChangedLines: c.OnlyChangedLines,
	}
}

// Publish is the content of publish.json.
type Publish struct {
	LintPolicy    string   `json:"lint_policy"`
	LintScope     string   `json:"lint_scope"`
	Build         []string `json:"build"`
	DistDir       string   `json:"dist_dir"`
	Uploader      string   `json:"uploader"`
	RepositoryURL string   `json:"repository_url"`
	SkipExisting  bool     `json:"skip_existing"`
}

// Config holds the configuration of all devtools.
type Config struct {
	LintGate LintGate
	Publish  Publish
}

// LoadConfig reads [ConfigFile] from the repository at root. A missing file
// yields the zero Config.
func LoadConfig(root string) (*Config, error) {
	path := filepath.Join(root, filepath.FromSlash(ConfigFile))
	ar, err := txtar.ParseFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	c := &Config{}
	for name, v := range map[string]any{
		"lint-gate.json": &c.LintGate,
		"publish.json":   &c.Publish,
	} {
		data, ok := txtar.Lookup(ar, name)
		if !ok {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", ConfigFile, name, err)
		}
	}
	return c, nil
}
