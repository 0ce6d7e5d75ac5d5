package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearizeProseMirror(t *testing.T) {
	doc := `{
		"type": "doc",
		"content": [
			{"type": "paragraph", "content": [
				{"type": "text", "text": "Alice walked"},
				{"type": "text", "marks": [{"type": "bold"}], "text": "to the Castle."}
			]},
			{"type": "horizontalRule"},
			{"type": "paragraph", "content": [{"type": "text", "text": "Night fell."}]}
		]
	}`

	assert.Equal(t, "Alice walked to the Castle. Night fell.", Linearize(doc))
}

func TestLinearizeLexical(t *testing.T) {
	doc := `{"root": {"type": "root", "children": [
		{"type": "paragraph", "children": [{"type": "text", "text": "The Shadow Mage"}]},
		{"type": "list", "children": [
			{"type": "listitem", "children": [{"type": "text", "text": "appeared."}]}
		]}
	]}}`

	assert.Equal(t, "The Shadow Mage appeared.", Linearize(doc))
}

func TestLinearizeSkipsMalformedNodes(t *testing.T) {
	doc := `{"type": "doc", "content": [
		"not a node",
		{"type": "text", "text": 42},
		{"type": "paragraph", "content": {"oops": true}},
		{"type": "paragraph", "content": [null, {"type": "text", "text": "Survivor"}]}
	]}`

	assert.Equal(t, "Survivor", Linearize(doc))
}

func TestLinearizeInvalidJSON(t *testing.T) {
	assert.Equal(t, "", Linearize(`{"type": "doc", "content": [`))
	assert.Equal(t, "", Linearize(""))
}

func TestParseContent(t *testing.T) {
	assert.Equal(t, "plain prose stays", ParseContent("plain prose stays"))
	assert.Equal(t, "{broken json", ParseContent("{broken json"))
	assert.Equal(t, "Hello there", ParseContent(`  {"type":"doc","content":[{"type":"text","text":"Hello"},{"type":"text","text":"there"}]}`))
	assert.Equal(t, "", ParseContent(""))
}

func TestIsDocument(t *testing.T) {
	assert.True(t, IsDocument(`{"type":"doc"}`))
	assert.True(t, IsDocument(`[{"type":"text","text":"a"}]`))
	assert.False(t, IsDocument("Once upon a time"))
	assert.False(t, IsDocument(`["Alice"]`))
	assert.False(t, IsDocument(`{"name": "Alice"}`))
	assert.False(t, IsDocument(`[]`))
}

func TestParseContentKeepsPlainJSON(t *testing.T) {
	assert.Equal(t, `["Alice"]`, ParseContent(`["Alice"]`))
	assert.Equal(t, `{"hero": "Alice"}`, ParseContent(`{"hero": "Alice"}`))
	assert.Equal(t, "Alice", ParseContent(`{"root": {"children": [{"text": "Alice"}]}}`))
}
