package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// StdinPath selects standard input in ReadSource
const StdinPath = "-"

// DetectMimeType returns the MIME type of the given content
func DetectMimeType(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsText reports whether content is text of any kind.
// Source files are detected as text/plain or one of its descendants (text/x-python, application/json...).
func IsText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ReadSource reads a source file, or stdin when path is "-", and rejects binary content
func ReadSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == StdinPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !IsText(data) {
		return "", fmt.Errorf("%s is not a text file (detected %s)", path, DetectMimeType(data))
	}
	return string(data), nil
}
