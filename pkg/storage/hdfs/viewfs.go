package hdfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	mountTablePrefix   = "fs.viewfs.mounttable."
	defaultMountTable  = "default"
	linkKeyword        = ".link."
	linkFallbackSuffix = ".linkFallback"
)

// mountPoint links a ViewFS directory to a target filesystem URL.
type mountPoint struct {
	source string
	target *url.URL
}

// mountTable is the parsed ViewFS mount table of one cluster.
type mountTable struct {
	name     string
	links    []mountPoint // longest source first
	fallback *url.URL
}

// parseMountTable extracts the mount table named name from a Hadoop
// configuration:
//
//	fs.viewfs.mounttable.<name>.link./data = hdfs://nn1:8020/data
//	fs.viewfs.mounttable.<name>.linkFallback = hdfs://nn2:8020/
func parseMountTable(name string, conf map[string]string) (*mountTable, error) {
	if name == "" {
		name = defaultMountTable
	}
	table := &mountTable{name: name}
	prefix := mountTablePrefix + name

	for key, value := range conf {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)

		switch {
		case rest == linkFallbackSuffix:
			target, err := url.Parse(value)
			if err != nil {
				return nil, fmt.Errorf("invalid fallback target %q: %w", value, err)
			}
			table.fallback = target
		case strings.HasPrefix(rest, linkKeyword):
			source := path.Clean("/" + strings.TrimPrefix(rest, linkKeyword))
			target, err := url.Parse(value)
			if err != nil {
				return nil, fmt.Errorf("invalid link target %q for %s: %w", value, source, err)
			}
			table.links = append(table.links, mountPoint{source: source, target: target})
		}
	}

	if len(table.links) == 0 && table.fallback == nil {
		return nil, fmt.Errorf("mount table %q has no links", name)
	}
	sort.Slice(table.links, func(i, j int) bool {
		if len(table.links[i].source) != len(table.links[j].source) {
			return len(table.links[i].source) > len(table.links[j].source)
		}
		return table.links[i].source < table.links[j].source
	})
	return table, nil
}

// under reports whether name is dir or lies below it.
func under(name, dir string) bool {
	return dir == "/" || name == dir || strings.HasPrefix(name, dir+"/")
}

// resolve maps a ViewFS path onto the mount serving it and the path in the
// target filesystem. ok is false when no link and no fallback covers name.
func (t *mountTable) resolve(name string) (target *url.URL, physical string, ok bool) {
	name = path.Clean("/" + name)
	for _, link := range t.links {
		if under(name, link.source) {
			rel := strings.TrimPrefix(name, link.source)
			return link.target, path.Join("/", link.target.Path, rel), true
		}
	}
	if t.fallback != nil {
		return t.fallback, path.Join("/", t.fallback.Path, name), true
	}
	return nil, "", false
}

// childMounts returns the names of the directories directly below dir that
// lead to a link source.
func (t *mountTable) childMounts(dir string) []string {
	dir = path.Clean("/" + dir)
	seen := make(map[string]bool)
	var names []string
	for _, link := range t.links {
		if link.source == dir || !under(link.source, dir) {
			continue
		}
		rest := strings.TrimPrefix(strings.TrimPrefix(link.source, dir), "/")
		child := strings.SplitN(rest, "/", 2)[0]
		if !seen[child] {
			seen[child] = true
			names = append(names, child)
		}
	}
	sort.Strings(names)
	return names
}

// viewfsClient routes each path through a ViewFS mount table to the client
// of the target filesystem.
type viewfsClient struct {
	table   *mountTable
	targets map[string]Client // by target authority
}

// newViewFSClient builds a client for the mount table named by the
// authority of u. dial is invoked once per distinct target authority.
func newViewFSClient(u *url.URL, conf map[string]string, dial func(target *url.URL) (Client, error)) (*viewfsClient, error) {
	table, err := parseMountTable(u.Hostname(), conf)
	if err != nil {
		return nil, err
	}

	c := &viewfsClient{table: table, targets: make(map[string]Client)}
	targets := make([]*url.URL, 0, len(table.links)+1)
	for _, link := range table.links {
		targets = append(targets, link.target)
	}
	if table.fallback != nil {
		targets = append(targets, table.fallback)
	}

	for _, target := range targets {
		if _, ok := c.targets[target.Host]; ok {
			continue
		}
		client, err := dial(target)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to connect to mount target %s: %w", target.Redacted(), err)
		}
		c.targets[target.Host] = client
	}
	return c, nil
}

func (c *viewfsClient) route(op, name string) (Client, string, error) {
	target, physical, ok := c.table.resolve(name)
	if !ok {
		return nil, "", &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return c.targets[target.Host], physical, nil
}

// isMountAncestor reports whether name is an internal directory of the
// mount table: not itself served by a link but leading to one.
func (c *viewfsClient) isMountAncestor(name string) bool {
	return len(c.table.childMounts(name)) > 0
}

func (c *viewfsClient) Stat(name string) (fs.FileInfo, error) {
	client, physical, err := c.route("stat", name)
	if err != nil {
		if c.isMountAncestor(name) {
			return mountDirInfo{name: path.Base(path.Clean("/" + name))}, nil
		}
		return nil, err
	}
	return client.Stat(physical)
}

func (c *viewfsClient) Open(name string) (File, error) {
	client, physical, err := c.route("open", name)
	if err != nil {
		return nil, err
	}
	return client.Open(physical)
}

func (c *viewfsClient) Create(name string) (io.WriteCloser, error) {
	client, physical, err := c.route("create", name)
	if err != nil {
		return nil, err
	}
	return client.Create(physical)
}

func (c *viewfsClient) MkdirAll(name string, perm fs.FileMode) error {
	client, physical, err := c.route("mkdir", name)
	if err != nil {
		if c.isMountAncestor(name) {
			return nil
		}
		return err
	}
	return client.MkdirAll(physical, perm)
}

// ReadDir merges the target listing with the mount points below name.
func (c *viewfsClient) ReadDir(name string) ([]fs.FileInfo, error) {
	var infos []fs.FileInfo
	seen := make(map[string]bool)

	client, physical, err := c.route("readdir", name)
	if err == nil {
		infos, err = client.ReadDir(physical)
		if err != nil && !(errors.Is(err, fs.ErrNotExist) && c.isMountAncestor(name)) {
			return nil, err
		}
		for _, info := range infos {
			seen[info.Name()] = true
		}
	} else if !c.isMountAncestor(name) {
		return nil, err
	}

	for _, child := range c.table.childMounts(name) {
		if !seen[child] {
			infos = append(infos, mountDirInfo{name: child})
		}
	}
	return infos, nil
}

func (c *viewfsClient) Remove(name string) error {
	client, physical, err := c.route("remove", name)
	if err != nil {
		return err
	}
	return client.Remove(physical)
}

// sameMount routes from and to, failing with errors.ErrUnsupported when
// they live on different mount targets.
func (c *viewfsClient) sameMount(from, to string) (Client, string, string, error) {
	fromTarget, fromPhysical, ok := c.table.resolve(from)
	if !ok {
		return nil, "", "", &os.LinkError{Op: "rename", Old: from, New: to, Err: fs.ErrNotExist}
	}
	toTarget, toPhysical, ok := c.table.resolve(to)
	if !ok {
		return nil, "", "", &os.LinkError{Op: "rename", Old: from, New: to, Err: fs.ErrNotExist}
	}
	if fromTarget.String() != toTarget.String() {
		return nil, "", "", &os.LinkError{Op: "rename", Old: from, New: to, Err: fmt.Errorf("renames across mount points: %w", errors.ErrUnsupported)}
	}
	return c.targets[fromTarget.Host], fromPhysical, toPhysical, nil
}

func (c *viewfsClient) Rename(from, to string) error {
	client, src, dst, err := c.sameMount(from, to)
	if err != nil {
		return err
	}
	return client.Rename(src, dst)
}

func (c *viewfsClient) RenameNoReplace(from, to string) error {
	client, src, dst, err := c.sameMount(from, to)
	if err != nil {
		return err
	}
	return client.RenameNoReplace(src, dst)
}

// Canonicalize validates name against its target and returns it in ViewFS
// form.
func (c *viewfsClient) Canonicalize(name string) (string, error) {
	clean := path.Clean("/" + name)
	client, physical, err := c.route("canonicalize", clean)
	if err != nil {
		if c.isMountAncestor(clean) {
			return clean, nil
		}
		return "", err
	}
	if _, err := client.Canonicalize(physical); err != nil {
		return "", err
	}
	return clean, nil
}

func (c *viewfsClient) Close() error {
	var errs []error
	for _, client := range c.targets {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// mountDirInfo describes an internal mount table directory.
type mountDirInfo struct {
	name string
}

func (i mountDirInfo) Name() string       { return i.name }
func (i mountDirInfo) Size() int64        { return 0 }
func (i mountDirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (i mountDirInfo) ModTime() time.Time { return time.Time{} }
func (i mountDirInfo) IsDir() bool        { return true }
func (i mountDirInfo) Sys() any           { return nil }
