// Package extract turns stored document bytes into plain text for chunking.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const contentTypePDF = "application/pdf"

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrInvalidEncoding        = errors.New("text is not valid UTF-8")
)

// ExtractionError reports why a document's text could not be obtained.
type ExtractionError struct {
	ContentType string
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text from %s: %v", e.ContentType, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor converts document bytes to text. Supported inputs are textual
// types (text/*, JSON, XML) and PDF.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text of data. An empty or generic contentType is
// replaced by the sniffed type.
func (e *Extractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mediaType := baseType(contentType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = DetectContentType(data)
	}

	switch {
	case mediaType == contentTypePDF:
		return extractPDF(data)
	case isTextual(mediaType):
		if !utf8.Valid(data) {
			return "", &ExtractionError{ContentType: mediaType, Err: ErrInvalidEncoding}
		}
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	default:
		return "", &ExtractionError{ContentType: mediaType, Err: ErrUnsupportedContentType}
	}
}

// DetectContentType sniffs the media type of data, without parameters.
func DetectContentType(data []byte) string {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(contentTypePDF) {
			return contentTypePDF
		}
	}
	return baseType(detected.String())
}

func extractPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", nil
	}
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{ContentType: contentTypePDF, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{ContentType: contentTypePDF, Err: err}
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractionError{ContentType: contentTypePDF, Err: err}
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", &ExtractionError{ContentType: contentTypePDF, Err: err}
	}
	return string(out), nil
}

func isTextual(mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/xml", "application/x-ndjson", "application/yaml":
		return true
	}
	return strings.HasSuffix(mediaType, "+json") || strings.HasSuffix(mediaType, "+xml")
}

func baseType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType
}
