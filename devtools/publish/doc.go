// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Publish builds a Python package and uploads it to a package index.

It runs these steps in the repository root, stopping at the first failure:

 1. Remove all untracked and ignored files with "git clean -xdf". The root
    must contain pyproject.toml, setup.py or setup.cfg.
 2. Lint the staged changes like lint-gate does.
 3. Build an sdist and a wheel with "python3 -m build" into dist.
 4. Upload every built file.

Once the first step has succeeded, the working tree is cleaned again at the
end, even if a later step failed.

Usage:

	publish [-C dir] [-n] [-lint-policy abort|warn] [-uploader twine|legacy]
	        [-repository-url url] [-skip-existing]

With -n, publish lists the files clean would remove, builds the package and
lists the files it would upload without uploading them.

By default a lint failure aborts the publish. With -lint-policy warn, the
lint report is printed and publishing continues.

The twine uploader runs "twine upload" and leaves credentials to twine. The
legacy uploader talks to the upload API directly and reads credentials from
the TWINE_USERNAME (default "__token__") and TWINE_PASSWORD environment
variables.

Defaults can be set in the publish.json member of the .devtools/config.txtar
archive in the repository root, with the fields lint_policy, lint_scope,
build, dist_dir, uploader, repository_url and skip_existing. The linter
itself is configured by lint-gate.json. Flags take precedence over the
configuration.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/pyship/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
