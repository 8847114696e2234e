package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"tldr/internal/apperr"
)

// resolvePath expands a leading "~/" and makes the path absolute.
func resolvePath(path string) (string, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		path = filepath.Join(home, rest)
	}

	return filepath.Abs(path)
}

// readLocalFile reads a user-supplied path and turns the usual filesystem
// failures into messages a user can act on.
func readLocalFile(source, path string) (data []byte, abs string, err error) {
	abs, err = resolvePath(path)
	if err != nil {
		return nil, path, apperr.Wrap(source, apperr.CodeInvalidURL, fmt.Sprintf("invalid path %q", path), err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, abs, fileError(source, abs, err)
	}
	if info.IsDir() {
		return nil, abs, apperr.New(source, apperr.CodeInvalidURL, fmt.Sprintf("%s is a directory, not a file", abs))
	}

	data, err = os.ReadFile(abs)
	if err != nil {
		return nil, abs, fileError(source, abs, err)
	}

	return data, abs, nil
}

func fileError(source, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return apperr.Wrap(source, apperr.CodeNotFound, fmt.Sprintf("file not found: %s", path), err)
	case errors.Is(err, syscall.EISDIR):
		return apperr.Wrap(source, apperr.CodeInvalidURL, fmt.Sprintf("%s is a directory, not a file", path), err)
	case errors.Is(err, fs.ErrPermission):
		return apperr.Wrap(source, apperr.CodeAuth, fmt.Sprintf("permission denied reading %s", path), err)
	default:
		return apperr.Wrap(source, apperr.CodeUnknown, fmt.Sprintf("read %s", path), err)
	}
}
