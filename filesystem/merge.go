package filesystem

import "fmt"

// MergePolicy decides which side keeps a name when the two trees disagree.
type MergePolicy int

const (
	// LatestWins is a total order over entries, so merging is commutative:
	// a directory beats a file, then the later DateAdded, then the greater
	// FileHash.
	LatestWins MergePolicy = iota
	// SelfWins keeps whatever the local tree already has.
	SelfWins
)

func (p MergePolicy) String() string {
	switch p {
	case LatestWins:
		return "latest-wins"
	case SelfWins:
		return "self-wins"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// ParseMergePolicy accepts the names returned by String.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "latest-wins":
		return LatestWins, nil
	case "self-wins":
		return SelfWins, nil
	}
	return 0, fmt.Errorf("unknown merge policy %q", s)
}

// preferOther reports whether the incoming entry replaces ours.
func (p MergePolicy) preferOther(ours, theirs *Tree) bool {
	if p == SelfWins {
		return false
	}
	if ours.IsDir() != theirs.IsDir() {
		return theirs.IsDir()
	}

	a, b := ours.File, theirs.File
	if !a.DateAdded.Equal(b.DateAdded) {
		return b.DateAdded.After(a.DateAdded)
	}
	if c := a.FileHash.Compare(b.FileHash); c != 0 {
		return c < 0
	}
	return a.FileName < b.FileName
}

// mergeInto folds src into dst. Both must be directories. src is never
// aliased into dst.
func mergeInto(dst, src *Tree, policy MergePolicy) {
	for _, name := range src.sortedNames() {
		theirs := src.Children[name]
		ours, ok := dst.child(name)
		switch {
		case !ok:
			dst.setChild(name, theirs.Clone())
		case ours.IsDir() && theirs.IsDir():
			mergeInto(ours, theirs, policy)
		case policy.preferOther(ours, theirs):
			dst.setChild(name, theirs.Clone())
		}
	}
}

// Merge folds other into the namespace, producing the union of both trees.
func (ns *Namespace) Merge(other *Tree) error {
	if other == nil {
		return nil
	}
	if !other.IsDir() {
		return fmt.Errorf("%w: merged root must be a directory", ErrNotADirectory)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	mergeInto(ns.root, other, ns.policy)
	return nil
}

func (ns *Namespace) Policy() MergePolicy {
	return ns.policy
}
