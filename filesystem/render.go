package filesystem

import "strings"

// String renders the tree one entry per line, children indented by two
// spaces and directories suffixed with "/".
func (ns *Namespace) String() string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	var lines []string
	var render func(t *Tree, indent int)
	render = func(t *Tree, indent int) {
		for _, name := range t.sortedNames() {
			c := t.Children[name]
			if c.IsDir() {
				lines = append(lines, strings.Repeat(" ", indent)+name+"/")
				render(c, indent+2)
				continue
			}
			lines = append(lines, strings.Repeat(" ", indent)+name)
		}
	}
	render(ns.root, 0)
	return strings.Join(lines, "\n")
}
