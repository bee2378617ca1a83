package inspect

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/testutils"
)

func fixtureTree(t *testing.T) *gatt.Tree {
	h := testutils.NewTestHelper(t)
	b := gatt.NewBuilder("/com/test")
	testutils.NewFixture(h.Logger).Configure(b)
	tree, err := b.Build()
	require.NoError(t, err)
	return tree
}

func TestText(t *testing.T) {
	// GOAL: Verify the text listing shows every node in declaration order with known names, flags and handlers
	//
	// TEST SCENARIO: Render the fixture tree with handlers → matches the expected listing

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fixtureTree(t), Options{Handlers: true}))

	testutils.NewTextAsserter(t).Assert(buf.String(), `
/com/test (7 nodes)
service battery (180f) Battery Service
  characteristic level (2a19) Battery Level [read, notify] <read, update>
service text (00000001-1e3c-fad4-74e2-97a033f1bfaa)
  characteristic string (00000002-1e3c-fad4-74e2-97a033f1bfaa) [read, write, notify] <read, write, update>
    descriptor description (2901) Characteristic User Description [read] <read>
service clock (1805) Current Time Service
  characteristic tick (2a2b) Current Time [read, notify] <read, event/1>
`)
}

func TestTextWithoutHandlers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fixtureTree(t), Options{}))
	assert.NotContains(t, buf.String(), "<read")
	assert.Contains(t, buf.String(), "  characteristic level (2a19) Battery Level [read, notify]\n")
}

func TestTextColors(t *testing.T) {
	var plain, colored bytes.Buffer
	tree := fixtureTree(t)
	require.NoError(t, Text(&plain, tree, Options{Handlers: true}))
	require.NoError(t, Text(&colored, tree, Options{Handlers: true, Colors: true}))

	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Equal(t, plain.String(), testutils.StripANSI(colored.String()))
}

func TestJSON(t *testing.T) {
	// GOAL: Verify the JSON dump mirrors the tree structure
	//
	// TEST SCENARIO: Dump the fixture tree → root, node count and nested children match

	data, err := JSON(fixtureTree(t))
	require.NoError(t, err)

	testutils.NewJSONAsserter(t).Assert(string(data), `{
		"root": "/com/test",
		"nodes": 7,
		"services": [
			{
				"kind": "service",
				"name": "battery",
				"uuid": "180f",
				"known": "Battery Service",
				"children": [
					{"name": "level", "path": "battery/level", "flags": ["read", "notify"], "handlers": ["read", "update"]}
				]
			},
			{
				"name": "text",
				"children": [
					{
						"name": "string",
						"handlers": ["read", "write", "update"],
						"children": [
							{"kind": "descriptor", "name": "description", "path": "text/string/description", "uuid": "2901"}
						]
					}
				]
			},
			{
				"name": "clock",
				"children": [
					{"name": "tick", "handlers": ["read", "event/1"]}
				]
			}
		]
	}`)
}

func TestDescribeEmptyFields(t *testing.T) {
	doc := Describe(fixtureTree(t))
	require.Len(t, doc.Services, 3)

	svc := doc.Services[1]
	assert.Empty(t, svc.Known, "custom 128-bit UUIDs have no assigned name")
	assert.Empty(t, svc.Flags)
	assert.Empty(t, svc.Handlers)
}
