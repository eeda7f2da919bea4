// Package realpath implements lexical path canonicalization with
// optional symlink chasing, directly grounded on
// original_source/realpath.c's sftp_find_realpath/process_path
// recursive-descent algorithm, per §4.5 of the spec.
package realpath

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrLinkLoop is returned when symlink chasing exceeds maxDepth, the
// depth cap this implementation adds where the C original had none (see
// DESIGN.md's Open Question resolution).
var ErrLinkLoop = errors.New("realpath: too many levels of symbolic links")

const maxDepth = 40

// Readlink resolves one level of symlink; implementations return
// (target, true, nil) when path is a symlink, ("", false, nil) when it
// is not, and a non-nil error for any other failure.
type Readlink func(path string) (target string, isLink bool, err error)

// Resolve canonicalizes path against cwd (used only when path is
// relative), following symlinks via readlink when follow is true. A nil
// readlink is treated as "never a link", matching the C original's
// RP_READLINK-unset behavior.
func Resolve(cwd, path string, follow bool, readlink Readlink) (string, error) {
	if path == "" {
		path = "."
	}
	if !strings.HasPrefix(path, "/") {
		path = strings.TrimSuffix(cwd, "/") + "/" + path
	}
	result := "/"
	return process(result, path, follow, readlink, 0)
}

func process(result, path string, follow bool, readlink Readlink, depth int) (string, error) {
	if depth > maxDepth {
		return "", ErrLinkLoop
	}

	for len(path) > 0 {
		if path[0] == '/' {
			path = path[1:]
			continue
		}
		end := strings.IndexByte(path, '/')
		var element string
		if end < 0 {
			element, path = path, ""
		} else {
			element, path = path[:end], path[end:]
		}

		switch element {
		case ".":
			// stay where we are
		case "..":
			if idx := strings.LastIndexByte(result, '/'); idx > 0 {
				result = result[:idx]
			} else {
				result = "/"
			}
		default:
			oldResult := result
			if result != "/" {
				result += "/"
			}
			result += element

			if follow && readlink != nil {
				target, isLink, err := readlink(result)
				if err != nil {
					return "", err
				}
				if isLink {
					var next string
					if strings.HasPrefix(target, "/") {
						result = "/"
						next = target
					} else {
						result = oldResult
						next = target
					}
					resolved, err := process(result, next, follow, readlink, depth+1)
					if err != nil {
						return "", err
					}
					result = resolved
				}
			}
		}
	}
	return result, nil
}
