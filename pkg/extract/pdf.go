package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/ledongthuc/pdf"
)

// PDF extracts the plain text of a PDF document and reports its page count.
func PDF(data []byte) (text string, pages int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("failed to extract pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", 0, fmt.Errorf("failed to extract pdf text: %w", err)
	}

	text = strings.TrimSpace(string(raw))
	if text == "" {
		return "", r.NumPage(), fmt.Errorf("%w: pdf contains no text layer", domain.ErrEmptyDocument)
	}
	return text, r.NumPage(), nil
}

// PlainText validates an uploaded text file.
func PlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", domain.ErrUnsupportedSource)
	}
	text := strings.TrimSpace(strings.TrimPrefix(string(data), "\uFEFF"))
	if text == "" {
		return "", domain.ErrEmptyDocument
	}
	return text, nil
}
