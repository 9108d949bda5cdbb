// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package version reports the build information embedded into binaries.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Info describes the binary.
type Info struct {
	// Name is the command name, see [CmdName].
	Name string
	// Module is the main module path and version.
	Module string
	// Commit is the VCS revision the binary was built from, if known.
	Commit string
	// Dirty reports whether the working tree had local modifications.
	Dirty bool
	// Go is the Go toolchain version.
	Go string
	// OS and Arch are the target platform.
	OS, Arch string
}

// String returns a human-readable multi-line description of i.
func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", i.Name, i.Module)
	if i.Commit != "" {
		commit := i.Commit
		if i.Dirty {
			commit += " (dirty)"
		}
		fmt.Fprintf(&sb, "commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "built with %s %s/%s\n", i.Go, i.OS, i.Arch)
	return sb.String()
}

var info = sync.OnceValue(func() Info {
	i := Info{
		Name:   CmdName(),
		Module: "(devel)",
		Go:     runtime.Version(),
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}
	i.Module = strings.TrimSpace(bi.Main.Path + " " + bi.Main.Version)
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			i.Commit = s.Value
		case "vcs.modified":
			i.Dirty = s.Value == "true"
		}
	}
	return i
})

// Version returns the build information of the running binary.
func Version() Info { return info() }

// CmdName returns the base name of the running executable without extension.
func CmdName() string {
	name := filepath.Base(os.Args[0])
	return strings.TrimSuffix(name, filepath.Ext(name))
}
