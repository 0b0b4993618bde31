// Package filesystem holds the shared namespace: a directory tree mapping
// path segments to sub-directories or file records.
package filesystem

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotAFile      = errors.New("not a file")
	ErrNotADirectory = errors.New("not a directory")
	ErrInvalidPath   = errors.New("invalid path")
)

// Namespace is the node's directory tree. All access goes through its
// methods; a single RWMutex serializes writers against readers.
type Namespace struct {
	mu     sync.RWMutex
	root   *Tree
	policy MergePolicy
}

type Option func(*Namespace)

func WithMergePolicy(p MergePolicy) Option {
	return func(ns *Namespace) { ns.policy = p }
}

func New(opts ...Option) *Namespace {
	ns := &Namespace{root: NewDirectory(), policy: LatestWins}
	for _, opt := range opts {
		opt(ns)
	}
	return ns
}

// FromTree builds a namespace over a copy of tree.
func FromTree(tree *Tree, opts ...Option) (*Namespace, error) {
	ns := New(opts...)
	if tree == nil {
		return ns, nil
	}
	if !tree.IsDir() {
		return nil, fmt.Errorf("%w: root must be a directory", ErrNotADirectory)
	}
	ns.root = tree.Clone()
	return ns, nil
}

// SplitPath turns "/a//b/./c" into [a b c]. ".." is rejected.
func SplitPath(p string) ([]string, error) {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		parts = append(parts, seg)
	}
	return parts, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: bad entry name %q", ErrInvalidPath, name)
	}
	return nil
}

// traverse walks parts from the root. Must hold ns.mu (write lock if create).
func (ns *Namespace) traverse(parts []string, create bool) (*Tree, error) {
	current := ns.root
	for i, part := range parts {
		if !current.IsDir() {
			at := path.Join(parts[:i]...)
			if !create {
				// Nothing can exist below a file.
				return nil, fmt.Errorf("%w: %w: /%s", ErrNotFound, ErrNotADirectory, at)
			}
			return nil, fmt.Errorf("%w: /%s", ErrNotADirectory, at)
		}
		next, ok := current.child(part)
		if !ok {
			if !create {
				return nil, fmt.Errorf("%w: /%s", ErrNotFound, path.Join(parts[:i+1]...))
			}
			next = NewDirectory()
			current.setChild(part, next)
		}
		current = next
	}
	if !current.IsDir() {
		return nil, fmt.Errorf("%w: /%s", ErrNotADirectory, path.Join(parts...))
	}
	return current, nil
}

// resolve returns the node at parts, file or directory. Must hold ns.mu.
func (ns *Namespace) resolve(parts []string) (*Tree, error) {
	if len(parts) == 0 {
		return ns.root, nil
	}
	dir, err := ns.traverse(parts[:len(parts)-1], false)
	if err != nil {
		return nil, err
	}
	node, ok := dir.child(parts[len(parts)-1])
	if !ok {
		return nil, fmt.Errorf("%w: /%s", ErrNotFound, path.Join(parts...))
	}
	return node, nil
}

// AddFile creates dirPath as needed and sets name to record, replacing any
// existing entry of that name.
func (ns *Namespace) AddFile(dirPath, name string, record *FileRecord) error {
	if err := validName(name); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: nil record for %q", ErrInvalidPath, name)
	}
	parts, err := SplitPath(dirPath)
	if err != nil {
		return err
	}

	record = record.Clone()
	if record.FileName == "" {
		record.FileName = name
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	dir, err := ns.traverse(parts, true)
	if err != nil {
		return err
	}
	dir.setChild(name, NewFile(record))
	return nil
}

// MakeDirs is mkdir -p.
func (ns *Namespace) MakeDirs(dirPath string) error {
	parts, err := SplitPath(dirPath)
	if err != nil {
		return err
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	_, err = ns.traverse(parts, true)
	return err
}

// Get resolves a full path to its file record.
func (ns *Namespace) Get(filePath string) (*FileRecord, error) {
	parts, err := SplitPath(filePath)
	if err != nil {
		return nil, err
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	node, err := ns.resolve(parts)
	if err != nil {
		return nil, err
	}
	if node.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, "/"+path.Join(parts...))
	}
	return node.File.Clone(), nil
}

// Entry is one row of a directory listing.
type Entry struct {
	Name   string      `json:"name"`
	IsDir  bool        `json:"is_dir"`
	Record *FileRecord `json:"record,omitempty"`
}

// List returns the entries of a directory sorted by name.
func (ns *Namespace) List(dirPath string) ([]Entry, error) {
	parts, err := SplitPath(dirPath)
	if err != nil {
		return nil, err
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	dir, err := ns.traverse(parts, false)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dir.Children))
	for _, name := range dir.sortedNames() {
		c := dir.Children[name]
		entries = append(entries, Entry{Name: name, IsDir: c.IsDir(), Record: c.File.Clone()})
	}
	return entries, nil
}

// FileEntry is a file together with its absolute path.
type FileEntry struct {
	Path   string      `json:"path"`
	Record *FileRecord `json:"record"`
}

// Walk lists every file in the namespace in path order.
func (ns *Namespace) Walk() []FileEntry {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	var files []FileEntry
	var walk func(prefix string, t *Tree)
	walk = func(prefix string, t *Tree) {
		for _, name := range t.sortedNames() {
			c := t.Children[name]
			full := prefix + "/" + name
			if c.IsDir() {
				walk(full, c)
				continue
			}
			files = append(files, FileEntry{Path: full, Record: c.File.Clone()})
		}
	}
	walk("", ns.root)
	return files
}

// Snapshot is a deep copy of the whole tree, safe to hand to the transport.
func (ns *Namespace) Snapshot() *Tree {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.root.Clone()
}
