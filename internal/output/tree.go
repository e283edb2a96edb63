package output

import (
	"strings"

	"github.com/temirov/reposcope/internal/types"
)

const (
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
	directorySuffix     = "/"
	lineSeparator       = "\n"
)

// RenderDirectory renders the children of root; the root itself gets no line.
func RenderDirectory(root *types.TreeNode) string {
	if root == nil {
		return ""
	}
	return RenderTree(root.Children, "")
}

// RenderTree renders nodes as box-drawing lines, each prefixed with prefix.
// Directories end with a slash and are followed by their children; an empty sequence renders as "".
// The result has no trailing newline.
func RenderTree(nodes []*types.TreeNode, prefix string) string {
	lines := make([]string, 0, len(nodes))
	appendTreeLines(&lines, nodes, prefix)
	return strings.Join(lines, lineSeparator)
}

func appendTreeLines(lines *[]string, nodes []*types.TreeNode, prefix string) {
	lastIndex := len(nodes) - 1
	for index, node := range nodes {
		connector := treeBranchConnector
		childPrefix := prefix + treeBranchPadding
		if index == lastIndex {
			connector = treeLastConnector
			childPrefix = prefix + treeLastPadding
		}
		if node.IsDirectory() {
			*lines = append(*lines, prefix+connector+node.Name+directorySuffix)
			appendTreeLines(lines, node.Children, childPrefix)
			continue
		}
		*lines = append(*lines, prefix+connector+node.Name)
	}
}
