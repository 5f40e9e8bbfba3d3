//go:build !linux

package catalog

import "errors"

func inodeID(string) (string, error) {
	return "", errors.ErrUnsupported
}
