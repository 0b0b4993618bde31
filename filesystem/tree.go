package filesystem

import (
	"slices"
	"time"

	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

// FileRecord is the leaf of the namespace: where a file's content lives and
// how to put it back together.
type FileRecord struct {
	FileName    string            `msgpack:"file_name" json:"file_name"`
	FileHash    id_tools.PeerID   `msgpack:"file_hash" json:"file_hash"`
	ChunkHashes []id_tools.PeerID `msgpack:"chunk_hashes" json:"chunk_hashes"`
	Size        int64             `msgpack:"size" json:"size"`
	DateAdded   time.Time         `msgpack:"date_added" json:"date_added"`
}

func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.ChunkHashes = slices.Clone(r.ChunkHashes)
	return &out
}

// Tree is one node of the namespace. A node with a File is a leaf, anything
// else is a directory. It is also the serialized form exchanged with peers.
type Tree struct {
	File     *FileRecord      `msgpack:"file,omitempty" json:"file,omitempty"`
	Children map[string]*Tree `msgpack:"children,omitempty" json:"children,omitempty"`
}

func NewDirectory() *Tree {
	return &Tree{Children: make(map[string]*Tree)}
}

func NewFile(record *FileRecord) *Tree {
	return &Tree{File: record}
}

func (t *Tree) IsDir() bool {
	return t.File == nil
}

// Clone returns a deep copy sharing nothing with t.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	if !t.IsDir() {
		return NewFile(t.File.Clone())
	}
	out := &Tree{Children: make(map[string]*Tree, len(t.Children))}
	for name, child := range t.Children {
		if child == nil {
			continue
		}
		out.Children[name] = child.Clone()
	}
	return out
}

func (t *Tree) child(name string) (*Tree, bool) {
	if t.Children == nil {
		return nil, false
	}
	c, ok := t.Children[name]
	return c, ok && c != nil
}

func (t *Tree) setChild(name string, c *Tree) {
	if t.Children == nil {
		t.Children = make(map[string]*Tree)
	}
	t.Children[name] = c
}

func (t *Tree) sortedNames() []string {
	names := make([]string, 0, len(t.Children))
	for name, c := range t.Children {
		if c != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
