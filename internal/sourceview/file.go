package sourceview

import "os"

// readFile is a var, not a direct call, so tests can stub file access the
// same way the teacher's lineMap package stubs os.Stat/os.ReadFile.
var readFile = func(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
