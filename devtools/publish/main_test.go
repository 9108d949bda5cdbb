// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.astrophena.name/pyship/cli"
	"go.astrophena.name/pyship/cli/clitest"
	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/command/commandtest"
	"go.astrophena.name/pyship/devtools/internal"
	"go.astrophena.name/pyship/lint"
	"go.astrophena.name/pyship/publish"
	"go.astrophena.name/pyship/testutil"
	"go.astrophena.name/pyship/txtar"
	"go.astrophena.name/pyship/upload"
)

func TestProgressMessage(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		current       int
		total         int
		name          string
		terminalWidth int
		want          string
	}{
		"no terminal width does not shorten": {
			current:       1,
			total:         1,
			name:          "very-long-step with arguments",
			terminalWidth: 0,
			want:          "[1/1] Running step very-long-step with arguments",
		},
		"fits": {
			current:       4,
			total:         5,
			name:          "upload",
			terminalWidth: 80,
			want:          "[4/5] Running step upload",
		},
		"small width with ellipsis": {
			current:       2,
			total:         10,
			name:          "go test ./...",
			terminalWidth: 27,
			want:          "[2/10] Running step go t...",
		},
		"very small width keeps prefix only": {
			current:       3,
			total:         10,
			name:          "go test ./...",
			terminalWidth: 10,
			want:          "[3/10] Running step ",
		},
		"very small width trims without ellipsis": {
			current:       2,
			total:         100,
			name:          "go test ./...",
			terminalWidth: 23,
			want:          "[2/100] Running step go",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := progressMessage(tc.current, tc.total, tc.name, tc.terminalWidth)
			if got != tc.want {
				t.Fatalf("progressMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}

const projectFiles = `-- pyproject.toml --
[project]
name = "pkg"
version = "1.0"
-- pkg/__init__.py --
-- foo.py --
import os
`

const unusedImport = "foo.py:1:1: F401 'os' imported but unused\n"

type testApp struct {
	*app
	root     string
	fake     *commandtest.Fake
	requests int
}

func (a *testApp) ran(prefix string) bool {
	return slices.ContainsFunc(a.fake.Lines(), func(line string) bool {
		return strings.HasPrefix(line, prefix)
	})
}

// newTestApp returns an app for a project named pkg whose linter exits with
// lintCode. Config holds extra members of the devtools config archive.
func newTestApp(t *testing.T, lintCode int, config map[string]string) *testApp {
	root := t.TempDir()
	testutil.ExtractTxtar(t, txtar.Parse([]byte(projectFiles)), root)
	if len(config) > 0 {
		ar := &txtar.Archive{}
		for name, data := range config {
			ar.Files = append(ar.Files, txtar.File{Name: name, Data: []byte(data + "\n")})
		}
		testutil.WriteFile(t, root, internal.ConfigFile, string(txtar.Format(ar)))
	}

	f := new(commandtest.Fake)
	f.Reply("git -C", root+"\n", 0)
	f.Reply("git clean -x -d -f", "", 0)
	f.Reply("git clean -x -d -n", "Would remove dist/\n", 0)
	f.Reply("git diff --cached --name-only", "foo.py\x00", 0)
	if lintCode != 0 {
		f.Reply("flake8", unusedImport, lintCode)
	} else {
		f.Reply("flake8", "", 0)
	}
	f.Handle("python3 -m build", func(commandtest.Call) (command.Result, error) {
		writeSdist(t, filepath.Join(root, "dist", "pkg-1.0.tar.gz"))
		writeWheel(t, filepath.Join(root, "dist", "pkg-1.0-py3-none-any.whl"))
		return command.Result{}, nil
	})
	f.Reply("twine upload", "", 0)

	ta := &testApp{root: root, fake: f}
	ta.app = &app{
		runner: f,
		httpClient: testutil.MockHTTPClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ta.requests++
			if _, pass, _ := r.BasicAuth(); pass != "pypi-token" {
				http.Error(w, "Invalid API Token", http.StatusForbidden)
			}
		})),
	}
	return ta
}

func TestPublish(t *testing.T) {
	clitest.Run(t, func(t *testing.T) *testApp {
		return newTestApp(t, 0, nil)
	}, map[string]clitest.Case[*testApp]{
		"twine": {
			WantInStderr: "[5/5] Running step clean",
			CheckFunc: func(t *testing.T, a *testApp) {
				want := "twine upload " + filepath.Join(a.root, "dist", "pkg-1.0.tar.gz") + " " + filepath.Join(a.root, "dist", "pkg-1.0-py3-none-any.whl")
				if !slices.Contains(a.fake.Lines(), want) {
					t.Errorf("%q not run: %q", want, a.fake.Lines())
				}
			},
		},
		"twine with flags": {
			Args: []string{"-repository-url", "https://test.pypi.org/legacy/", "-skip-existing"},
			CheckFunc: func(t *testing.T, a *testApp) {
				if !a.ran("twine upload --repository-url https://test.pypi.org/legacy/ --skip-existing ") {
					t.Errorf("twine flags not passed: %q", a.fake.Lines())
				}
			},
		},
		"dry run": {
			Args:         []string{"-n"},
			WantInStderr: "Would upload pkg-1.0-py3-none-any.whl",
			CheckFunc: func(t *testing.T, a *testApp) {
				testutil.AssertEqual(t, a.ran("twine"), false)
				testutil.AssertEqual(t, a.ran("git clean -x -d -f"), false)
			},
		},
		"legacy without token": {
			Args:    []string{"-uploader", "legacy"},
			WantErr: upload.ErrNoPassword,
		},
		"legacy": {
			Args:         []string{"-uploader", "legacy"},
			Env:          map[string]string{"TWINE_PASSWORD": "pypi-token"},
			WantInStderr: "Uploaded 2 files",
			CheckFunc: func(t *testing.T, a *testApp) {
				testutil.AssertEqual(t, a.requests, 2)
				testutil.AssertEqual(t, a.ran("twine"), false)
			},
		},
		"unknown uploader": {
			Args:    []string{"-uploader", "scp"},
			WantErr: cli.ErrInvalidArgs,
		},
		"positional arguments": {
			Args:    []string{"dist"},
			WantErr: cli.ErrInvalidArgs,
		},
	})
}

func TestPublishLintFailure(t *testing.T) {
	clitest.Run(t, func(t *testing.T) *testApp {
		return newTestApp(t, 1, nil)
	}, map[string]clitest.Case[*testApp]{
		"aborts": {
			WantErrType: &lint.Error{},
			WantStdout:  "flake8 checking failed:\n" + unusedImport,
			CheckFunc: func(t *testing.T, a *testApp) {
				testutil.AssertEqual(t, a.ran("python3"), false)
				testutil.AssertEqual(t, a.ran("twine"), false)
			},
		},
		"warns": {
			Args:       []string{"-lint-policy", "warn"},
			WantStdout: "flake8 checking failed:\n" + unusedImport,
			CheckFunc: func(t *testing.T, a *testApp) {
				testutil.AssertEqual(t, a.ran("twine upload"), true)
			},
		},
	})
}

func TestPublishConfig(t *testing.T) {
	clitest.Run(t, func(t *testing.T) *testApp {
		return newTestApp(t, 1, map[string]string{
			"publish.json": `{"lint_policy": "warn", "uploader": "legacy", "skip_existing": true}`,
		})
	}, map[string]clitest.Case[*testApp]{
		"config applies": {
			Env: map[string]string{"TWINE_PASSWORD": "pypi-token"},
			CheckFunc: func(t *testing.T, a *testApp) {
				testutil.AssertEqual(t, a.lintPolicy.String(), "warn")
				testutil.AssertEqual(t, a.skipExisting, true)
				testutil.AssertEqual(t, a.requests, 2)
			},
		},
		"flags override config": {
			Args:        []string{"-lint-policy", "abort", "-uploader", "twine"},
			WantErrType: &lint.Error{},
			CheckFunc: func(t *testing.T, a *testApp) {
				testutil.AssertEqual(t, a.uploader, "twine")
				testutil.AssertEqual(t, a.requests, 0)
			},
		},
	})
}

func TestApplyConfigInvalidPolicy(t *testing.T) {
	a := &app{lintPolicy: publish.PolicyAbort}
	err := a.applyConfig(internal.Publish{LintPolicy: "maybe"})
	if err == nil || !strings.Contains(err.Error(), "publish.json") {
		t.Fatalf("applyConfig() = %v, want publish.json error", err)
	}
	testutil.AssertEqual(t, a.lintPolicy, publish.PolicyAbort)
}

const pkgInfo = "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n"

func writeWheel(t *testing.T, path string) {
	t.Helper()
	f := create(t, path)
	zw := zip.NewWriter(f)
	w, err := zw.Create("pkg-1.0.dist-info/METADATA")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(pkgInfo)); err != nil {
		t.Fatal(err)
	}
	closeAll(t, zw, f)
}

func writeSdist(t *testing.T, path string) {
	t.Helper()
	f := create(t, path)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	if err := tw.WriteHeader(&tar.Header{Name: "pkg-1.0/PKG-INFO", Mode: 0o644, Size: int64(len(pkgInfo)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(pkgInfo)); err != nil {
		t.Fatal(err)
	}
	closeAll(t, tw, gw, f)
}

func create(t *testing.T, path string) *os.File {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func closeAll(t *testing.T, cs ...interface{ Close() error }) {
	t.Helper()
	for _, c := range cs {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
}
