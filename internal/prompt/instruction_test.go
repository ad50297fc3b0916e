package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
)

func TestBuildInstruction_EmptySnapshot(t *testing.T) {
	out := BuildInstruction(llm.FileSystemSnapshot{})
	assert.True(t, strings.HasSuffix(out, EmptyProjectPlaceholder+"\n"))

	// Nil and empty snapshots render identically.
	assert.Equal(t, out, BuildInstruction(nil))
}

func TestBuildInstruction_SortedFileListing(t *testing.T) {
	snapshot := llm.FileSystemSnapshot{
		"src/main.js":  "",
		"index.html":   "",
		"assets/a.css": "",
	}

	out := BuildInstruction(snapshot)

	aIdx := strings.Index(out, "- assets/a.css\n")
	iIdx := strings.Index(out, "- index.html\n")
	sIdx := strings.Index(out, "- src/main.js\n")
	require.NotEqual(t, -1, aIdx)
	require.NotEqual(t, -1, iIdx)
	require.NotEqual(t, -1, sIdx)
	assert.Less(t, aIdx, iIdx)
	assert.Less(t, iIdx, sIdx)

	assert.NotContains(t, out, EmptyProjectPlaceholder)
}

func TestBuildInstruction_Deterministic(t *testing.T) {
	snapshot := llm.FileSystemSnapshot{
		"a.txt": "1", "b.txt": "2", "c.txt": "3", "d.txt": "4", "e.txt": "5",
	}

	first := BuildInstruction(snapshot)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, BuildInstruction(snapshot))
	}
}

func TestBuildInstruction_ContentNeverLeaks(t *testing.T) {
	snapshot := llm.FileSystemSnapshot{
		"secrets.env": "API_KEY=super-secret-value",
	}

	out := BuildInstruction(snapshot)
	assert.Contains(t, out, "- secrets.env\n")
	assert.NotContains(t, out, "super-secret-value")
}

func TestBuildInstruction_ProtocolText(t *testing.T) {
	out := BuildInstruction(nil)

	// The protocol steps are part of every instruction, file list or not.
	for _, fragment := range []string{
		"plan_steps",
		"create_or_update_files",
		"run_build_and_lint",
		"finish_task",
		"search_pexels_for_images",
		"Current project files:",
	} {
		assert.Contains(t, out, fragment)
	}
}
