// Package sourceview provides read-only, byte-indexed access to a loaded
// assembly source file. It is the leaf dependency of the pipeline (spec
// §2.1): the scanner, parser, and diagnostics renderer all consult a View
// instead of re-reading the file or re-splitting it into lines.
//
// Grounded on the teacher's internal/lineMap.Source, which validates a path
// and loads file content once; View narrows that down to the three
// byte/line accessors the front end actually needs.
package sourceview

import "strings"

// View is an immutable byte buffer over a loaded source file. The zero value
// is not valid; construct with New or Load.
type View struct {
	path    string
	content string
}

// New wraps an in-memory string as a View. Used by tests and by callers that
// already have the source text (e.g. read from stdin).
func New(path, content string) View {
	return View{path: path, content: content}
}

// Load reads the file at path and returns a ready-to-use View.
func Load(path string) (View, error) {
	content, err := readFile(path)
	if err != nil {
		return View{}, err
	}
	return View{path: path, content: content}, nil
}

// Path returns the file path the view was loaded from ("" for in-memory views).
func (v View) Path() string {
	return v.path
}

// Content returns the full source text.
func (v View) Content() string {
	return v.content
}

// Len returns the number of bytes in the source.
func (v View) Len() int {
	return len(v.content)
}

// Substring returns the size bytes starting at index. Both out-of-range
// arguments are clamped so callers never need to bounds-check before
// slicing a token's source text.
func (v View) Substring(index, size int) string {
	if index < 0 {
		index = 0
	}
	if index > len(v.content) {
		return ""
	}
	end := index + size
	if end > len(v.content) {
		end = len(v.content)
	}
	if end < index {
		return ""
	}
	return v.content[index:end]
}

// CharAt returns the byte at index, or 0 if index is out of range.
func (v View) CharAt(index int) byte {
	if index < 0 || index >= len(v.content) {
		return 0
	}
	return v.content[index]
}

// LineOf returns the full text of the line containing the byte at index
// (without its trailing newline) and the byte index of the first character
// of that line.
func (v View) LineOf(index int) (line string, lineStart int) {
	if index < 0 {
		index = 0
	}
	if index > len(v.content) {
		index = len(v.content)
	}

	lineStart = strings.LastIndexByte(v.content[:index], '\n') + 1

	lineEnd := strings.IndexByte(v.content[index:], '\n')
	if lineEnd == -1 {
		lineEnd = len(v.content)
	} else {
		lineEnd += index
	}

	return v.content[lineStart:lineEnd], lineStart
}
