package fat32

import (
	"fmt"
	"strings"
)

const maxPathSegment = 255

// splitPath breaks path into its non-empty components, collapsing runs of
// slashes and ignoring a leading or trailing slash. Paths are resolved from
// the volume's root whether or not they start with "/", since a Volume has
// no notion of a current working directory.
func splitPath(path string) ([]string, error) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s == "" {
			continue
		}
		if len(s) > maxPathSegment {
			return nil, fmt.Errorf("%w: path segment %q exceeds %d bytes", ErrPath, s, maxPathSegment)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// resolveDir walks path, which must name a directory (or be empty/"/" for
// the volume's root), and returns its first cluster.
func (v *Volume) resolveDir(path string) (uint32, error) {
	segs, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	cluster := v.rootCluster
	for _, seg := range segs {
		_, info, err := v.search(cluster, seg)
		if err == ErrEOF {
			return 0, fmt.Errorf("%w: %q not found", ErrPath, seg)
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			return 0, fmt.Errorf("%w: %q is not a directory", ErrPath, seg)
		}
		cluster = info.Cluster
		if cluster == 0 {
			cluster = v.rootCluster // ".." entries pointing at root store 0
		}
	}
	return cluster, nil
}

// resolveParent splits path into the cluster of its containing directory
// and its final (leaf) component, walking every directory in between. It
// does not require the leaf itself to exist, so callers can use it for both
// lookup and creation.
func (v *Volume) resolveParent(path string) (dirCluster uint32, leaf string, err error) {
	segs, err := splitPath(path)
	if err != nil {
		return 0, "", err
	}
	if len(segs) == 0 {
		return 0, "", fmt.Errorf("%w: empty path", ErrPath)
	}
	cluster := v.rootCluster
	for _, seg := range segs[:len(segs)-1] {
		_, info, serr := v.search(cluster, seg)
		if serr == ErrEOF {
			return 0, "", fmt.Errorf("%w: %q not found", ErrPath, seg)
		}
		if serr != nil {
			return 0, "", serr
		}
		if !info.IsDir() {
			return 0, "", fmt.Errorf("%w: %q is not a directory", ErrPath, seg)
		}
		cluster = info.Cluster
		if cluster == 0 {
			cluster = v.rootCluster
		}
	}
	return cluster, segs[len(segs)-1], nil
}

// Stat resolves path and returns the decoded directory entry it names.
func (v *Volume) Stat(path string) (EntryInfo, error) {
	dirCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return EntryInfo{}, err
	}
	_, info, err := v.search(dirCluster, leaf)
	if err == ErrEOF {
		return EntryInfo{}, fmt.Errorf("%w: %q does not exist", ErrPath, path)
	}
	return info, err
}

// ReadDir lists the entries of the directory named by path ("" or "/" for
// the volume's root).
func (v *Volume) ReadDir(path string) ([]EntryInfo, error) {
	cluster, err := v.resolveDir(path)
	if err != nil {
		return nil, err
	}
	return v.readdir(cluster)
}

// Mkdir creates a new subdirectory at path.
func (v *Volume) Mkdir(path string) error {
	dirCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	_, err = v.createSubdirectory(dirCluster, leaf)
	return err
}

// Remove deletes the file or empty directory named by path.
func (v *Volume) Remove(path string) error {
	dirCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	return v.unlink(dirCluster, leaf)
}
