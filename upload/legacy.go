// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package upload

import (
	"bytes"
	"cmp"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"os"
	"slices"
	"strings"

	"go.astrophena.name/pyship/dist"
	"go.astrophena.name/pyship/logger"
	"go.astrophena.name/pyship/request"
)

const (
	// DefaultRepositoryURL is the upload endpoint of PyPI.
	DefaultRepositoryURL = "https://upload.pypi.org/legacy/"
	// TokenUsername is the user name to use with API tokens.
	TokenUsername = "__token__"
)

// ErrNoPassword is returned by [Legacy.Upload] if no password or API token
// is set.
var ErrNoPassword = errors.New("no upload password or API token set")

// Legacy uploads artifacts using the legacy upload API implemented by PyPI
// and most other package indexes.
type Legacy struct {
	// HTTPClient is used to make requests. If nil, request.DefaultClient is
	// used.
	HTTPClient *http.Client
	// RepositoryURL is the upload endpoint. If empty, DefaultRepositoryURL
	// is used.
	RepositoryURL string
	// Username defaults to TokenUsername.
	Username string
	Password string
	// SkipExisting makes files that the index already has count as
	// uploaded.
	SkipExisting bool
}

// Upload implements [Uploader]. Artifacts are uploaded in order and the
// first failure stops the upload.
func (l *Legacy) Upload(ctx context.Context, artifacts []dist.Artifact) error {
	if len(artifacts) == 0 {
		return dist.ErrNoArtifacts
	}
	if l.Password == "" {
		return ErrNoPassword
	}
	for _, a := range artifacts {
		if err := l.uploadOne(ctx, a); err != nil {
			return fmt.Errorf("uploading %s: %w", a.Filename(), err)
		}
	}
	return nil
}

func (l *Legacy) uploadOne(ctx context.Context, a dist.Artifact) error {
	body, err := newForm(a)
	if err != nil {
		return err
	}

	_, err = request.Make[request.IgnoreResponse](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        cmp.Or(l.RepositoryURL, DefaultRepositoryURL),
		Body:       body,
		Username:   cmp.Or(l.Username, TokenUsername),
		Password:   l.Password,
		HTTPClient: l.HTTPClient,
		Scrubber:   strings.NewReplacer(l.Password, "[REDACTED]"),
	})
	if l.SkipExisting && alreadyExists(err) {
		logger.Warn(ctx, "skipping existing file", slog.String("file", a.Filename()))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info(ctx, "uploaded distribution", slog.String("file", a.Filename()), slog.String("uploader", "legacy"))
	return nil
}

// alreadyExists reports whether err is an index rejecting a file it already
// has.
func alreadyExists(err error) bool {
	var se *request.StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		text := strings.ToLower(se.Status + " " + string(se.Body))
		return strings.Contains(text, "already exist")
	}
	return false
}

// fieldNames maps metadata fields to form fields whose names are not derived
// by lowercasing and replacing dashes.
var fieldNames = map[string]string{
	"Classifier":     "classifiers",
	"Project-Url":    "project_urls",
	"Provides-Extra": "provides_extras",
}

func formField(key string) string {
	if name, ok := fieldNames[key]; ok {
		return name
	}
	return strings.ToLower(strings.ReplaceAll(key, "-", "_"))
}

func newForm(a dist.Artifact) (request.RawBody, error) {
	md, err := a.Metadata()
	if err != nil {
		return request.RawBody{}, err
	}
	content, err := os.ReadFile(a.Path)
	if err != nil {
		return request.RawBody{}, err
	}
	md5sum := md5.Sum(content)
	sha256sum := sha256.Sum256(content)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	write := func(k, v string) {
		if err == nil {
			err = mw.WriteField(k, v)
		}
	}

	write(":action", "file_upload")
	write("protocol_version", "1")
	write("filetype", string(a.Kind))
	write("pyversion", a.PyVersion)
	write("md5_digest", hex.EncodeToString(md5sum[:]))
	write("sha256_digest", hex.EncodeToString(sha256sum[:]))
	for _, key := range slices.Sorted(maps.Keys(md.Header)) {
		for _, v := range md.Header[key] {
			write(formField(key), v)
		}
	}
	if md.Get("Description") == "" && md.Description != "" {
		write("description", md.Description)
	}
	if err != nil {
		return request.RawBody{}, err
	}

	fw, err := mw.CreateFormFile("content", a.Filename())
	if err != nil {
		return request.RawBody{}, err
	}
	if _, err := fw.Write(content); err != nil {
		return request.RawBody{}, err
	}
	if err := mw.Close(); err != nil {
		return request.RawBody{}, err
	}
	return request.RawBody{ContentType: mw.FormDataContentType(), Data: buf.Bytes()}, nil
}
