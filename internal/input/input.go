// package input normalizes pasted text and picked files into a submission payload
package input

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
)

// Extension is the only file type the input surface accepts.
const Extension = ".py"

// MinLines is the default gutter floor for the editor.
const MinLines = 15

// FromText builds a payload from directly entered text. No validation is applied.
func FromText(text string) models.Payload {
	return models.Payload{
		Text:     text,
		Source:   models.SourcePaste,
		Origin:   models.UploadFilename,
		Filename: models.UploadFilename,
	}
}

// Accept reports whether a file name passes the drop filter.
func Accept(name string) bool {
	return strings.HasSuffix(name, Extension)
}

// FromReader builds a payload from a picked file's contents.
//
// Names failing [Accept] are rejected before anything is read. Invalid UTF-8 sequences are replaced so the payload
// is always valid text.
func FromReader(name string, r io.Reader) (models.Payload, error) {
	base := filepath.Base(name)
	if !Accept(base) {
		return models.Payload{}, fmt.Errorf("%w: %s is not a Python file", shared.ErrRejectedFile, base)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to read %s: %w", base, err)
	}

	return models.Payload{
		Text:     strings.ToValidUTF8(string(data), "�"),
		Source:   models.SourceFile,
		Origin:   base,
		Filename: models.UploadFilename,
	}, nil
}

// FromFile opens path and delegates to [FromReader].
func FromFile(path string) (models.Payload, error) {
	if !Accept(path) {
		return models.Payload{}, fmt.Errorf("%w: %s is not a Python file", shared.ErrRejectedFile, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return FromReader(path, f)
}

// FirstAccepted returns the first path passing [Accept]. Remaining paths are ignored.
func FirstAccepted(paths []string) (string, bool) {
	for _, p := range paths {
		if Accept(p) {
			return p, true
		}
	}
	return "", false
}

// Lines counts display lines, treating empty text as a single line.
func Lines(text string) int {
	return strings.Count(text, "\n") + 1
}

// Gutter returns the line numbers shown beside the editor: 1 through max(lines, floor).
func Gutter(text string, floor int) []int {
	n := max(Lines(text), floor)
	numbers := make([]int, n)
	for i := range numbers {
		numbers[i] = i + 1
	}
	return numbers
}
