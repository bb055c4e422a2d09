package protect

import (
	"fmt"
	"path/filepath"
	"strings"

	"routeget/internal/model"
)

var ErrPathEscapesRoot = model.ErrPathEscapesRoot

// WithinRoot соединяет root и относительный путь rel и проверяет, что результат
// остаётся внутри root. Путь из URL приходит с '/' и может содержать '..'
// после декодирования, поэтому без проверки запись возможна в любой каталог.
func WithinRoot(root, rel string) (string, error) {
	rel = strings.TrimLeft(filepath.FromSlash(rel), `/\`)
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathEscapesRoot)
	}

	root = filepath.Clean(root)
	path := filepath.Join(root, rel)

	inside, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPathEscapesRoot, err)
	}
	if inside == "." || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, rel)
	}
	return path, nil
}
