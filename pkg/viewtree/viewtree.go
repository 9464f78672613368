// Package viewtree parses uiautomator hierarchy dumps and resolves
// resource ids to screen coordinates.
package viewtree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

// Node is one view from a hierarchy dump.
type Node struct {
	ResourceID  string      `json:"resourceId"`
	Class       string      `json:"class,omitempty"`
	Text        string      `json:"text,omitempty"`
	ContentDesc string      `json:"contentDesc,omitempty"`
	Bounds      core.Bounds `json:"bounds"`
	Clickable   bool        `json:"clickable,omitempty"`
	Depth       int         `json:"depth"`

	hasResourceID bool // the resource-id attribute was present, even if empty
}

// Center returns the floor midpoint of the node's bounds.
func (n *Node) Center() core.Point {
	return n.Bounds.Center()
}

// Snapshot is a parsed hierarchy. Nodes are in document order.
type Snapshot struct {
	Nodes []*Node
}

// Parse parses uiautomator dump XML.
// Supports both formats:
// - `uiautomator dump`: <hierarchy><node .../></hierarchy>
// - class-named tags (e.g. <android.widget.FrameLayout>) as served by UIAutomator2
func Parse(data []byte) (*Snapshot, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	snap := &Snapshot{}
	foundHierarchy := false
	depth := -1

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse hierarchy: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "hierarchy" {
				foundHierarchy = true
				continue
			}
			depth++

			node := &Node{Depth: depth}
			if t.Name.Local != "node" {
				node.Class = t.Name.Local
			}
			for _, attr := range t.Attr {
				switch attr.Name.Local {
				case "resource-id":
					node.ResourceID = attr.Value
					node.hasResourceID = true
				case "class":
					node.Class = attr.Value
				case "text":
					node.Text = attr.Value
				case "content-desc":
					node.ContentDesc = attr.Value
				case "clickable":
					node.Clickable = attr.Value == "true"
				case "bounds":
					// One unusable node must not spoil the whole dump; it
					// keeps zero bounds.
					if b, err := ParseBounds(attr.Value); err == nil {
						node.Bounds = b
					}
				}
			}
			snap.Nodes = append(snap.Nodes, node)

		case xml.EndElement:
			if t.Name.Local != "hierarchy" {
				depth--
			}
		}
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}
	if len(snap.Nodes) == 0 {
		return nil, fmt.Errorf("invalid page source: hierarchy is empty")
	}

	return snap, nil
}

// ParseFile parses a hierarchy dump from disk.
func ParseFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is inside the run's output tree
	if err != nil {
		return nil, err
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// ParseBounds parses Android bounds "[x1,y1][x2,y2]".
func ParseBounds(s string) (core.Bounds, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), "][", ",")
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return core.Bounds{}, fmt.Errorf("malformed bounds %q", s)
	}
	parts := strings.Split(raw[1:len(raw)-1], ",")
	if len(parts) != 4 {
		return core.Bounds{}, fmt.Errorf("malformed bounds %q", s)
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return core.Bounds{}, fmt.Errorf("malformed bounds %q: %w", s, err)
		}
		v[i] = n
	}

	b := core.Bounds{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if !b.Valid() {
		return core.Bounds{}, fmt.Errorf("inverted or negative bounds %q", s)
	}
	return b, nil
}

// Locate returns the first node, in document order, whose resource-id
// equals id. An empty id selects the first node that carries an empty
// resource-id attribute (the root canvas); nodes without the attribute
// never match. Several matches are not an error; the first one wins.
func (s *Snapshot) Locate(id string) (*Node, error) {
	for _, n := range s.Nodes {
		if n.hasResourceID && n.ResourceID == id {
			return n, nil
		}
	}
	return nil, core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("can't find view with id <%s>", id)).
		WithDetails(map[string]interface{}{"resourceId": id})
}

// CenterOf locates id and returns its center.
func (s *Snapshot) CenterOf(id string) (core.Point, error) {
	n, err := s.Locate(id)
	if err != nil {
		return core.Point{}, err
	}
	return n.Center(), nil
}

// CanvasSize returns the bottom-right corner of the root node.
func (s *Snapshot) CanvasSize() (width, height int, err error) {
	root, err := s.Locate("")
	if err != nil {
		return 0, 0, err
	}
	return root.Bounds.X2, root.Bounds.Y2, nil
}

// Filter returns the nodes whose resource-id contains substr.
func (s *Snapshot) Filter(substr string) []*Node {
	var out []*Node
	for _, n := range s.Nodes {
		if strings.Contains(n.ResourceID, substr) {
			out = append(out, n)
		}
	}
	return out
}
