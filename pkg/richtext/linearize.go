// Package richtext flattens editor document trees into plain text for scanning.
//
// Both ProseMirror/TipTap documents (children under "content") and Lexical
// documents (children under "children", wrapped in "root") are understood.
package richtext

import (
	"strings"

	"github.com/tidwall/gjson"
)

// childKeys are the node fields that may hold child nodes.
var childKeys = []string{"content", "children"}

// Linearize concatenates every text run of the tree in depth-first pre-order,
// separated by a single space. Nodes with an unexpected shape are skipped so a
// single bad node does not lose the rest of the document.
func Linearize(doc string) string {
	if !gjson.Valid(doc) {
		return ""
	}

	root := gjson.Parse(doc)
	for _, key := range []string{"root", "doc"} {
		if wrapped := root.Get(key); wrapped.IsObject() {
			root = wrapped
			break
		}
	}

	var runs []string
	if root.IsArray() {
		root.ForEach(func(_, node gjson.Result) bool {
			walk(node, &runs)
			return true
		})
	} else {
		walk(root, &runs)
	}
	return strings.Join(runs, " ")
}

func walk(node gjson.Result, runs *[]string) {
	if !node.IsObject() {
		return
	}

	if text := node.Get("text"); text.Exists() && text.Type == gjson.String && text.Str != "" {
		*runs = append(*runs, text.Str)
	}

	for _, key := range childKeys {
		kids := node.Get(key)
		if !kids.IsArray() {
			continue
		}
		kids.ForEach(func(_, child gjson.Result) bool {
			walk(child, runs)
			return true
		})
	}
}

// nodeKeys mark a JSON object as an editor node or document wrapper.
var nodeKeys = []string{"type", "root", "doc", "content", "children"}

// IsDocument reports whether content looks like a serialized document tree:
// a JSON object carrying a node key, or an array whose first element does.
// Other JSON, such as a chat message that happens to read `["Alice"]`, is text.
func IsDocument(content string) bool {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return false
	}
	if !gjson.Valid(trimmed) {
		return false
	}

	root := gjson.Parse(trimmed)
	if root.IsArray() {
		root = root.Get("0")
	}
	return isNode(root)
}

func isNode(v gjson.Result) bool {
	if !v.IsObject() {
		return false
	}
	for _, key := range nodeKeys {
		if v.Get(key).Exists() {
			return true
		}
	}
	return false
}

// ParseContent linearizes structured content and returns anything else unchanged.
func ParseContent(content string) string {
	if !IsDocument(content) {
		return content
	}
	return Linearize(strings.TrimSpace(content))
}
