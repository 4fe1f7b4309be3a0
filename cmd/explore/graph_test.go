package main

import (
	"bytes"
	"testing"

	"github.com/kenoir/weco-concept-explorer/domain/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	g := graph.New("a", "Anatomy", "Subject")
	g.AddNode("b", "Biology", "", 1)
	g.AddEdge("a", "b")

	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, g))
	assert.Equal(t, "Anatomy (a) [Subject]\n  Biology (b)\n\n2 nodes, 1 edges, max depth 1\n", buf.String())
}

func TestWriteText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, graph.New("a", "Anatomy", "")))
	assert.Contains(t, buf.String(), "No related concepts found.")
}

func TestGraphCommand_RejectsUnknownFormat(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"graph", "a", "--format", "png"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestGraphCommand_RequiresID(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"graph"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
