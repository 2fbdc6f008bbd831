// Package media stores message attachments in the session media directory.
package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Attachment is a downloaded media payload with provider metadata.
type Attachment struct {
	Data     []byte
	MimeType string
	FileName string
}

// Result holds the fields a stored message needs about its media.
type Result struct {
	FileName  string
	MediaType string
}

// WriteError reports a payload that could not be written. FileName is still
// the name the payload was meant to have.
type WriteError struct {
	FileName string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write media %s: %v", e.FileName, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Store writes attachments under a single directory.
type Store struct {
	dir string
	now func() time.Time
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the media directory.
func (s *Store) Dir() string {
	return s.dir
}

// Describe derives the stored name and media type without writing anything.
func (s *Store) Describe(mimeType, fileName string) Result {
	return Result{
		FileName:  FileName(fileName, mimeType, s.now()),
		MediaType: Kind(mimeType),
	}
}

// Save writes a.Data to the media directory. An existing file is never
// replaced: a clashing name gets a time prefix and the Result carries the
// name actually written. On failure the Result is still valid and the error
// is a *WriteError.
func (s *Store) Save(a Attachment) (Result, error) {
	res := s.Describe(a.MimeType, a.FileName)
	name, err := s.write(res.FileName, a.Data)
	if err != nil {
		return res, &WriteError{FileName: res.FileName, Err: err}
	}
	res.FileName = name
	return res, nil
}

// maxNameAttempts bounds the search for a free name.
const maxNameAttempts = 100

func (s *Store) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, ".part-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}

	// Link fails on an existing target, so concurrent saves of one name
	// cannot clobber each other.
	prefix := strconv.FormatInt(s.now().UnixMilli(), 10)
	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		switch {
		case i == 1:
			candidate = prefix + "-" + name
		case i > 1:
			candidate = prefix + "-" + strconv.Itoa(i) + "-" + name
		}
		err := os.Link(tmp.Name(), filepath.Join(s.dir, candidate))
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s", name)
}

// FileName returns the base of provided, or "<epoch-millis>.<subtype>" when
// no usable name was supplied.
func FileName(provided, mimeType string, now time.Time) string {
	if provided != "" {
		base := filepath.Base(strings.ReplaceAll(provided, "\\", "/"))
		if base != "." && base != "/" && base != ".." {
			return base
		}
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "." + extension(mimeType)
}

// Kind returns the primary component of a mime type ("image/png" -> "image").
func Kind(mimeType string) string {
	primary, _, _ := strings.Cut(mimeType, "/")
	return strings.TrimSpace(primary)
}

func extension(mimeType string) string {
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok {
		return "bin"
	}
	sub, _, _ = strings.Cut(sub, ";")
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "bin"
	}
	return sub
}
