package form

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// Field is one named part of a form submission.
type Field struct {
	Name        string
	FileName    string
	ContentType string
	Data        []byte
}

// IsFile reports whether the field carried a filename.
func (f Field) IsFile() bool {
	return f.FileName != ""
}

// Text returns the field payload as a string.
func (f Field) Text() string {
	return string(f.Data)
}

// Stream yields fields in arrival order and returns io.EOF when exhausted.
// A stream is consumed once.
type Stream interface {
	Next() (Field, error)
}

// ErrNotMultipart is returned for requests that are not multipart/form-data.
var ErrNotMultipart = errors.New("request is not multipart/form-data")

// MultipartStream reads fields from a multipart body in wire order.
type MultipartStream struct {
	reader *multipart.Reader
}

// NewMultipartStream prepares a stream over body using the boundary from
// the request's Content-Type header.
func NewMultipartStream(body io.Reader, contentType string) (*MultipartStream, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, ErrNotMultipart
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("%w: missing boundary", ErrNotMultipart)
	}
	return &MultipartStream{reader: multipart.NewReader(body, boundary)}, nil
}

// Next returns the next field or io.EOF.
func (s *MultipartStream) Next() (Field, error) {
	part, err := s.reader.NextPart()
	if err != nil {
		// Only the bare io.EOF marks the closing boundary; a truncated
		// body comes back as an error wrapping io.EOF.
		if err == io.EOF {
			return Field{}, io.EOF
		}
		return Field{}, fmt.Errorf("failed to read multipart field: %w", err)
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return Field{}, fmt.Errorf("failed to read multipart field %q: %w", part.FormName(), err)
	}

	return Field{
		Name:        part.FormName(),
		FileName:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// SliceStream serves fields from memory.
type SliceStream struct {
	fields []Field
	pos    int
}

// NewSliceStream returns a stream over fields.
func NewSliceStream(fields ...Field) *SliceStream {
	return &SliceStream{fields: fields}
}

// Next returns the next field or io.EOF.
func (s *SliceStream) Next() (Field, error) {
	if s.pos >= len(s.fields) {
		return Field{}, io.EOF
	}
	f := s.fields[s.pos]
	s.pos++
	return f, nil
}
