package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func countedFile(path string, n int) AggregatedFile {
	return AggregatedFile{
		RelPath: path,
		Class:   ClassText,
		Cells:   []TokenCell{{Tokenizer: "o200k", Count: n, OK: true}},
	}
}

func rowLines(t *fileTree) []string {
	var out []string
	for _, row := range t.rows() {
		out = append(out, row.prefix+t.nodes[row.node].name)
	}
	return out
}

func TestBuildTreeNesting(t *testing.T) {
	files := []AggregatedFile{
		countedFile("README.md", 20),
		countedFile("src/main.go", 100),
		countedFile("src/util/x.go", 5),
	}
	tree := buildTree(files, 0)
	tree.finish(files)

	assert.Equal(t, []string{
		"├── README.md",
		"└── src",
		"    ├── main.go",
		"    └── util",
		"        └── x.go",
	}, rowLines(tree))
	assert.Equal(t, 125, tree.nodes[0].weight)
	assert.Equal(t, 3, tree.nodes[0].files)
}

func TestBuildTreeDepthPrunesEmptyDirs(t *testing.T) {
	files := []AggregatedFile{
		countedFile("src/main.go", 100),
		countedFile("src/util/x.go", 5),
		countedFile("deep/a/b.go", 1),
	}
	tree := buildTree(files, 2)
	tree.finish(files)

	assert.Equal(t, []string{
		"└── src",
		"    └── main.go",
	}, rowLines(tree))
}

func TestSortByWeight(t *testing.T) {
	files := []AggregatedFile{
		countedFile("a.txt", 50),
		countedFile("lib/big.go", 40),
		countedFile("lib/more.go", 40),
		countedFile("b.txt", 60),
		{RelPath: "img.png", Class: ClassBinary},
		countedFile("c.txt", 60),
	}
	tree := buildTree(files, 0)
	tree.finish(files)
	tree.sortByWeight()

	assert.Equal(t, []string{
		"├── lib",
		"│   ├── big.go",
		"│   └── more.go",
		"├── b.txt",
		"├── c.txt",
		"├── a.txt",
		"└── img.png",
	}, rowLines(tree))
}

func TestTreeDepthProperty(t *testing.T) {
	segment := rapid.SampledFrom([]string{"a", "b", "c", "d"})
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(1, 5).Draw(t, "depth")
		n := rapid.IntRange(1, 20).Draw(t, "files")

		seen := map[string]bool{}
		var files []AggregatedFile
		for i := 0; i < n; i++ {
			segs := rapid.SliceOfN(segment, 1, 7).Draw(t, "segments")
			path := strings.Join(segs, "/") + fmt.Sprintf("/f%d.txt", i)
			if seen[path] {
				continue
			}
			seen[path] = true
			files = append(files, countedFile(path, i))
		}

		tree := buildTree(files, k)
		tree.finish(files)
		for _, row := range tree.rows() {
			node := tree.nodes[row.node]
			if node.depth > k {
				t.Fatalf("node %q at depth %d exceeds %d", node.name, node.depth, k)
			}
			if node.isDir() && node.files == 0 {
				t.Fatalf("empty directory %q rendered", node.name)
			}
		}
	})
}
