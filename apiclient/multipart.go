package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// Multipart is a multipart/form-data body, used for poster uploads.
type Multipart struct {
	fields []multipartField
	files  []multipartFile
}

type multipartField struct {
	name  string
	value string
}

type multipartFile struct {
	field    string
	filename string
	content  io.Reader
}

func NewMultipart() *Multipart {
	return &Multipart{}
}

// Field adds a form value. Empty values are still sent.
func (m *Multipart) Field(name, value string) *Multipart {
	m.fields = append(m.fields, multipartField{name: name, value: value})
	return m
}

// File adds a file part read from content when the body is encoded.
func (m *Multipart) File(field, filename string, content io.Reader) *Multipart {
	m.files = append(m.files, multipartFile{field: field, filename: filename, content: content})
	return m
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("field %q: %w", f.name, err)
		}
	}
	for _, f := range m.files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			return nil, "", fmt.Errorf("file %q: %w", f.field, err)
		}
		if _, err := io.Copy(part, f.content); err != nil {
			return nil, "", fmt.Errorf("file %q: %w", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
