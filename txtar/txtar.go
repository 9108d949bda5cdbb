// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package txtar implements a trivial text-based file archive format.
//
// It extends [golang.org/x/tools/txtar] with helpers to read archives from
// disk and to materialize them into directories.
package txtar

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/tools/txtar"
)

// An Archive is a collection of files.
type Archive = txtar.Archive

// A File is a single file in an archive.
type File = txtar.File

// Parse parses the serialized form of an Archive.
func Parse(data []byte) *Archive { return txtar.Parse(data) }

// Format returns the serialized form of an Archive.
func Format(a *Archive) []byte { return txtar.Format(a) }

// ParseFile parses the named file as an archive.
func ParseFile(file string) (*Archive, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(data), nil
}

// Lookup returns the data of the first file named name in a.
func Lookup(a *Archive, name string) ([]byte, bool) {
	for _, f := range a.Files {
		if f.Name == name {
			return f.Data, true
		}
	}
	return nil, false
}

// Extract writes the files of a into dir, creating parent directories as
// needed. File names escaping dir are rejected.
func Extract(a *Archive, dir string) error {
	for _, f := range a.Files {
		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("txtar: file name %q escapes the target directory", f.Name)
		}
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// FromDir builds an archive from the regular files under dir.
func FromDir(dir string) (*Archive, error) {
	a := new(Archive)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		a.Files = append(a.Files, File{
			Name: filepath.ToSlash(rel),
			Data: data,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
