// Package types defines every cross‑package data structure used by reposcope.
package types

// NodeKind tags a TreeNode as a file leaf or a directory.
type NodeKind int

const (
	// NodeKindFile marks a leaf node.
	NodeKindFile NodeKind = iota
	// NodeKindDirectory marks a node that owns an ordered list of children.
	NodeKindDirectory
)

const (
	// RemoteTypeDirectory is the type tag GitHub uses for directories in contents listings.
	RemoteTypeDirectory = "dir"
	// RemoteTypeFile is the type tag GitHub uses for regular files.
	RemoteTypeFile = "file"
)

// String returns the lower-case kind name.
func (kind NodeKind) String() string {
	if kind == NodeKindDirectory {
		return "directory"
	}
	return "file"
}

// KindFromRemoteType maps a contents API type tag to a NodeKind.
// Only "dir" produces a directory; symlinks and submodules render as leaves.
func KindFromRemoteType(remoteType string) NodeKind {
	if remoteType == RemoteTypeDirectory {
		return NodeKindDirectory
	}
	return NodeKindFile
}

// TreeNode is one file or directory of a fetched repository tree.
// Children keep the order the remote listing returned them in.
type TreeNode struct {
	Name     string      `json:"name"`
	Kind     NodeKind    `json:"-"`
	Children []*TreeNode `json:"children,omitempty"`
}

// NewFileNode returns a leaf node.
func NewFileNode(name string) *TreeNode {
	return &TreeNode{Name: name, Kind: NodeKindFile}
}

// NewDirectoryNode returns a directory node owning the provided children.
func NewDirectoryNode(name string, children ...*TreeNode) *TreeNode {
	if children == nil {
		children = []*TreeNode{}
	}
	return &TreeNode{Name: name, Kind: NodeKindDirectory, Children: children}
}

// IsDirectory reports whether the node is a directory.
func (node *TreeNode) IsDirectory() bool {
	return node != nil && node.Kind == NodeKindDirectory
}

// CountNodes returns the number of nodes below and including node.
func (node *TreeNode) CountNodes() int {
	if node == nil {
		return 0
	}
	total := 1
	for _, child := range node.Children {
		total += child.CountNodes()
	}
	return total
}

// OutputDecision is either an inline reply or an attachment with a preview.
type OutputDecision interface {
	isOutputDecision()
}

// DecisionInline carries text that fits the channel budget unchanged.
type DecisionInline struct {
	Text string
}

// DecisionAttachment carries a truncated preview and the full content to attach as FileName.
type DecisionAttachment struct {
	Preview  string
	Content  string
	FileName string
}

func (DecisionInline) isOutputDecision()     {}
func (DecisionAttachment) isOutputDecision() {}
