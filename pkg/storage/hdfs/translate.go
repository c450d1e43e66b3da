package hdfs

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/marmos91/tablestore/pkg/storage"
)

// resolveRoot canonicalizes the path of u through client and returns the
// root URL every operation of the Backend is resolved against.
//
// The authority and scheme of u are kept; query and fragment are dropped.
// Returns ErrInvalidLocation if u cannot be mapped to a filesystem path and
// ErrConstructionFailure if the path cannot be canonicalized.
func resolveRoot(client Client, u *url.URL) (*url.URL, error) {
	if u.Opaque != "" {
		return nil, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "opaque URL cannot be mapped to a filesystem path")
	}

	dir := u.Path
	if dir == "" {
		dir = "/"
	}
	if !strings.HasPrefix(dir, "/") {
		return nil, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "path %q is not absolute", dir)
	}

	canonical, err := client.Canonicalize(dir)
	if err != nil {
		return nil, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), fmt.Errorf("failed to canonicalize root %q: %w", dir, err))
	}

	root := &url.URL{
		Scheme: u.Scheme,
		User:   u.User,
		Host:   u.Host,
		Path:   canonical,
	}
	return root, nil
}

// pathToFilesystem maps a logical path onto the absolute filesystem path
// below root.
//
// A trailing empty segment of the root path is dropped before the logical
// segments are appended, so the result never contains "//".
func pathToFilesystem(root *url.URL, location storage.Path) string {
	segments := strings.Split(root.Path, "/")
	if n := len(segments); n > 0 && segments[n-1] == "" {
		segments = segments[:n-1]
	}
	segments = append(segments, location.Parts()...)

	abs := strings.Join(segments, "/")
	if abs == "" {
		return "/"
	}
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return abs
}

// filesystemToPath is the inverse of pathToFilesystem.
func filesystemToPath(root *url.URL, abs string) (storage.Path, error) {
	base := strings.TrimSuffix(root.Path, "/")
	if abs != base && !strings.HasPrefix(abs, base+"/") {
		return storage.Path{}, storage.Errorf(storage.ErrInvalidPath, StoreName, abs, "path is outside root %q", root.Path)
	}
	return storage.ParsePath(strings.TrimPrefix(abs, base))
}
