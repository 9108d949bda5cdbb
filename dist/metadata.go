// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package dist

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/textproto"
	"os"
	"path"
	"strings"
)

// Metadata is the core metadata of a distribution, as stored in the
// METADATA file of a wheel or the PKG-INFO file of an sdist.
type Metadata struct {
	// Header holds the metadata fields keyed by their canonical names.
	Header textproto.MIMEHeader
	// Description is the message body, if any.
	Description string
}

// Get returns the first value of the field key.
func (m *Metadata) Get(key string) string { return m.Header.Get(key) }

// ParseMetadata parses core metadata in its email header format.
func ParseMetadata(b []byte) (*Metadata, error) {
	msg, err := mail.ReadMessage(bufio.NewReader(bytes.NewReader(normalizeEOF(b))))
	if err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, err
	}
	m := &Metadata{
		Header:      textproto.MIMEHeader(msg.Header),
		Description: strings.TrimSpace(string(body)),
	}
	if m.Get("Name") == "" || m.Get("Version") == "" {
		return nil, errors.New("metadata lacks Name or Version")
	}
	return m, nil
}

// normalizeEOF terminates the header block of metadata that has no body.
func normalizeEOF(b []byte) []byte {
	if bytes.Contains(b, []byte("\n\n")) || bytes.Contains(b, []byte("\r\n\r\n")) {
		return b
	}
	b = bytes.TrimRight(b, "\r\n")
	return append(b, '\n', '\n')
}

// Metadata reads the core metadata embedded in the artifact.
func (a Artifact) Metadata() (*Metadata, error) {
	var (
		b   []byte
		err error
	)
	switch {
	case a.Kind == Wheel:
		b, err = wheelMetadata(a.Path)
	case strings.HasSuffix(a.Path, ".zip"):
		b, err = zipSdistMetadata(a.Path)
	default:
		b, err = tarSdistMetadata(a.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Filename(), err)
	}
	m, err := ParseMetadata(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Filename(), err)
	}
	return m, nil
}

func wheelMetadata(p string) ([]byte, error) {
	return readZipMember(p, func(name string) bool {
		dir, file := path.Split(name)
		return file == "METADATA" && strings.Count(dir, "/") == 1 && strings.HasSuffix(dir, ".dist-info/")
	})
}

func zipSdistMetadata(p string) ([]byte, error) { return readZipMember(p, isSdistPkgInfo) }

// isSdistPkgInfo matches the PKG-INFO file at the top of the single
// directory of an sdist.
func isSdistPkgInfo(name string) bool {
	dir, file := path.Split(strings.TrimPrefix(name, "./"))
	return file == "PKG-INFO" && strings.Count(dir, "/") == 1
}

func readZipMember(p string, match func(string) bool) ([]byte, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	for _, f := range zr.File {
		if !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errMissingMetadata
}

var errMissingMetadata = errors.New("no metadata file found")

func tarSdistMetadata(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, errMissingMetadata
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeReg && isSdistPkgInfo(hdr.Name) {
			return io.ReadAll(tr)
		}
	}
}
