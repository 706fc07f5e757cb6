// Package form streams multipart requests into text fields and temp-file
// backed file parts.
package form

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// DefaultMaxBytes is the request ceiling used when none is configured.
const DefaultMaxBytes = 50 << 20

// File is one uploaded file spooled to local disk.
type File struct {
	File         *os.File
	OriginalName string
	MimeType     string
	Size         int64
}

// Form is a parsed multipart request. Close releases every spooled file.
type Form struct {
	Fields map[string]string
	Files  map[string]*File

	closed bool
}

// Parse reads the multipart body of r, failing with ErrMalformedRequest when
// the body is unparseable or larger than maxBytes. On error every spooled
// file has already been removed; on success the caller must Close the form.
func Parse(w http.ResponseWriter, r *http.Request, maxBytes int64) (*Form, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, malformed(err, maxBytes)
	}

	f := &Form{Fields: map[string]string{}, Files: map[string]*File{}}
	if err := f.read(mr); err != nil {
		f.Close()
		return nil, malformed(err, maxBytes)
	}
	return f, nil
}

func (f *Form) read(mr *multipart.Reader) error {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}

		if !isFilePart(part) {
			value, err := io.ReadAll(part)
			_ = part.Close()
			if err != nil {
				return err
			}
			if _, seen := f.Fields[name]; !seen {
				f.Fields[name] = string(value)
			}
			continue
		}

		file, err := spool(part)
		_ = part.Close()
		if err != nil {
			return err
		}
		if file == nil {
			continue
		}
		if _, seen := f.Files[name]; seen {
			file.release()
			continue
		}
		f.Files[name] = file
	}
}

// isFilePart reports whether the part carries a filename parameter, even an
// empty one.
func isFilePart(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return part.FileName() != ""
	}
	_, ok := params["filename"]
	return ok
}

// spool copies part to a temp file. Empty unnamed parts yield nil.
func spool(part *multipart.Part) (*File, error) {
	tmp, err := os.CreateTemp("", "simple-publish-upload-*")
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	file := &File{File: tmp, OriginalName: part.FileName()}

	size, err := io.Copy(tmp, part)
	if err != nil {
		file.release()
		return nil, err
	}
	if size == 0 && file.OriginalName == "" {
		file.release()
		return nil, nil
	}
	file.Size = size

	file.MimeType = mediaType(part.Header.Get("Content-Type"))
	if file.MimeType == "" || file.MimeType == "application/octet-stream" {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			file.release()
			return nil, fmt.Errorf("spool upload: %w", err)
		}
		if mt, err := mimetype.DetectReader(tmp); err == nil {
			file.MimeType = mediaType(mt.String())
		}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		file.release()
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	return file, nil
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

func (f *File) release() {
	if f == nil || f.File == nil {
		return
	}
	name := f.File.Name()
	_ = f.File.Close()
	_ = os.Remove(name)
	f.File = nil
}

// Value returns the first value of a text field.
func (f *Form) Value(name string) (string, bool) {
	v, ok := f.Fields[name]
	return v, ok
}

// Optional returns a pointer to the field value, or nil when absent.
func (f *Form) Optional(name string) *string {
	if v, ok := f.Fields[name]; ok {
		return &v
	}
	return nil
}

// FilePart returns the named file as a service input, or nil when absent.
// The reader stays valid until Close.
func (f *Form) FilePart(name string) *simplepublish.FilePart {
	file, ok := f.Files[name]
	if !ok || file.File == nil {
		return nil
	}
	return &simplepublish.FilePart{
		Reader:       file.File,
		OriginalName: file.OriginalName,
		MimeType:     file.MimeType,
		Size:         file.Size,
	}
}

// Close closes and removes every spooled file. It is safe to call twice.
func (f *Form) Close() error {
	if f == nil || f.closed {
		return nil
	}
	f.closed = true
	for _, file := range f.Files {
		file.release()
	}
	return nil
}

func malformed(err error, maxBytes int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request body exceeds %d bytes", simplepublish.ErrMalformedRequest, maxBytes)
	}
	return fmt.Errorf("%w: %w", simplepublish.ErrMalformedRequest, err)
}
