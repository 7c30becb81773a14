package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeSource strips a byte order mark and converts UTF-16 sources to UTF-8.
func decodeSource(raw []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ReadSource loads and decodes a script file.
func ReadSource(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return "", err
	}
	src, err := decodeSource(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return src, nil
}

// normalize turns a script path into its comparison key.
func normalize(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}
