package main

import (
	"sort"
	"strings"
)

// treeNode is one slot in the tree arena. Parents always have a lower index
// than their children, so bottom-up passes are a single reverse scan.
type treeNode struct {
	name     string
	parent   int // -1 for the root
	children []int
	file     int // Index into the report's files, -1 for directories
	depth    int
	weight   int // Max count for files; sum over descendant files for dirs
	files    int // Visible descendant files
}

func (n *treeNode) isDir() bool { return n.file < 0 }

// fileTree is a trie over slash-separated relative paths. nodes[0] is the root.
type fileTree struct {
	nodes []treeNode
}

// buildTree groups files by path prefix. Files deeper than maxDepth (when
// positive) are left out. Children keep first-seen order, which is traversal
// order for walker output.
func buildTree(files []AggregatedFile, maxDepth int) *fileTree {
	t := &fileTree{nodes: []treeNode{{parent: -1, file: -1}}}
	dirs := map[string]int{"": 0}

	for fi, f := range files {
		segs := strings.Split(f.RelPath, "/")
		if maxDepth > 0 && len(segs) > maxDepth {
			continue
		}

		parent, prefix := 0, ""
		for _, seg := range segs[:len(segs)-1] {
			if prefix == "" {
				prefix = seg
			} else {
				prefix += "/" + seg
			}
			idx, ok := dirs[prefix]
			if !ok {
				idx = t.add(parent, seg, -1)
				dirs[prefix] = idx
			}
			parent = idx
		}
		t.add(parent, segs[len(segs)-1], fi)
	}
	return t
}

func (t *fileTree) add(parent int, name string, file int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{
		name:   name,
		parent: parent,
		file:   file,
		depth:  t.nodes[parent].depth + 1,
	})
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	return idx
}

// finish computes weights and file counts bottom-up, then drops directories
// with no visible files.
func (t *fileTree) finish(files []AggregatedFile) {
	for i := range t.nodes {
		t.nodes[i].weight, t.nodes[i].files = 0, 0
	}
	for i := len(t.nodes) - 1; i > 0; i-- {
		n := &t.nodes[i]
		if !n.isDir() {
			n.weight = files[n.file].MaxCount()
			n.files = 1
		}
		p := &t.nodes[n.parent]
		p.weight += n.weight
		p.files += n.files
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		kept := n.children[:0]
		for _, c := range n.children {
			if t.nodes[c].files > 0 {
				kept = append(kept, c)
			}
		}
		n.children = kept
	}
}

// sortByWeight orders every sibling list by descending weight, then name.
func (t *fileTree) sortByWeight() {
	for i := range t.nodes {
		children := t.nodes[i].children
		sort.SliceStable(children, func(a, b int) bool {
			na, nb := &t.nodes[children[a]], &t.nodes[children[b]]
			if na.weight != nb.weight {
				return na.weight > nb.weight
			}
			return na.name < nb.name
		})
	}
}

// treeRow is one rendered line below the root.
type treeRow struct {
	prefix string // Connector glyphs, 4 columns per level
	node   int
}

// rows lists the tree in display order without recursion.
func (t *fileTree) rows() []treeRow {
	var out []treeRow
	stack := pushChildren(nil, t.nodes[0].children, "")
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		connector, next := "├── ", "│   "
		if f.last {
			connector, next = "└── ", "    "
		}
		out = append(out, treeRow{prefix: f.indent + connector, node: f.node})
		stack = pushChildren(stack, t.nodes[f.node].children, f.indent+next)
	}
	return out
}

type rowFrame struct {
	node   int
	indent string
	last   bool
}

// pushChildren pushes children in reverse so the first child pops first.
func pushChildren(stack []rowFrame, children []int, indent string) []rowFrame {
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, rowFrame{node: children[i], indent: indent, last: i == len(children)-1})
	}
	return stack
}
