package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/habiliai/docstore"
	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/document"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (root string, configFile string, first *document.Document) {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	configFile = filepath.Join(t.TempDir(), "docstore.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(fmt.Sprintf("store:\n  roots:\n    - %s\nlog:\n  level: error\n", root)), 0o644))

	conf, err := config.Load(configFile)
	require.NoError(t, err)
	ds, err := docstore.New(context.Background(), docstore.WithConfig(conf), docstore.WithLogger(mylog.Discard()))
	require.NoError(t, err)
	defer ds.Close()

	first, err = ds.Documents().Write(context.Background(), "a.md", []byte("first"))
	require.NoError(t, err)
	_, err = ds.Documents().Write(context.Background(), "a.md", []byte("second"))
	require.NoError(t, err)

	return root, configFile, first
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestHistoryCmd(t *testing.T) {
	_, configFile, first := setup(t)

	lines := strings.Split(strings.TrimSpace(run(t, "--config", configFile, "history", "a.md")), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Update a.md")
	assert.Contains(t, lines[1], "Create a.md")
	assert.True(t, strings.HasPrefix(lines[1], first.Revision[:12]))

	limited := run(t, "--config", configFile, "history", "a.md", "--limit", "1", "--json")
	assert.Contains(t, limited, `"message": "Update a.md"`)
	assert.NotContains(t, limited, "Create a.md")
}

func TestRevertCmd(t *testing.T) {
	root, configFile, first := setup(t)

	out := run(t, "--config", configFile, "revert", root, first.Revision, "-m", "Back to first")
	assert.Contains(t, out, "Back to first")

	content, err := os.ReadFile(filepath.Join(root, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
}

func TestRevertCmdRequiresArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"revert", "only-root"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
