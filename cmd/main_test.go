package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natanjunges/dist-tools/pkg"
	"github.com/natanjunges/dist-tools/pkg/tasksys"
)

func testProject(t *testing.T) (context.Context, string, *pkg.Config) {
	t.Helper()

	logger := zerolog.Nop()
	ctx := tasksys.WithLogger(context.Background(), &logger)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, pkg.ConfigName),
		[]byte("name: example\nversion: 1.0.0\n"), 0660))

	cfg, err := pkg.LoadConfig(root)
	require.NoError(t, err)

	return ctx, root, cfg
}

func TestLoadTasksWithoutScript(t *testing.T) {
	ctx, root, cfg := testProject(t)

	tasks, err := loadTasks(ctx, root, cfg, map[string]string{}, false)
	require.NoError(t, err)

	for _, name := range []string{"env", "build", "all", "upload", "clean"} {
		assert.Contains(t, tasks, name)
	}
}

func TestLoadTasksScriptOverridesPipeline(t *testing.T) {
	ctx, root, cfg := testProject(t)

	script := `
def configure():
    task("build", desc="custom build", cmds=["echo custom"])
    task("docs", desc="renders the docs", cmds=["echo docs"])
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ScriptName), []byte(script), 0660))

	tasks, err := loadTasks(ctx, root, cfg, map[string]string{}, false)
	require.NoError(t, err)

	assert.Equal(t, "custom build", tasks["build"].Desc)
	assert.Contains(t, tasks, "docs")
	// untouched built-ins survive
	assert.Contains(t, tasks, "clean")
}

func TestLoadTasksUsesCache(t *testing.T) {
	ctx, root, cfg := testProject(t)

	script := `
def configure():
    task("docs", desc="first version", cmds=["echo docs"])
`
	scriptPath := filepath.Join(root, ScriptName)
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0660))

	// the cache only gets written once the environment directory exists
	require.NoError(t, os.MkdirAll(cfg.EnvPath(root), 0770))

	tasks, err := loadTasks(ctx, root, cfg, map[string]string{}, false)
	require.NoError(t, err)
	assert.Equal(t, "first version", tasks["docs"].Desc)
	assert.FileExists(t, filepath.Join(cfg.EnvPath(root), cacheName))

	// a stale cache is ignored when the script changes
	newScript := `
def configure():
    task("docs", desc="second version", cmds=["echo docs"])
`
	require.NoError(t, os.WriteFile(scriptPath, []byte(newScript), 0660))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(scriptPath, future, future))

	tasks, err = loadTasks(ctx, root, cfg, map[string]string{}, false)
	require.NoError(t, err)
	assert.Equal(t, "second version", tasks["docs"].Desc)
}

func TestOptionsMatch(t *testing.T) {
	assert.True(t, optionsMatch(map[string]string{}, map[string]string{}))
	assert.True(t, optionsMatch(map[string]string{"a": "1"}, map[string]string{"a": "1"}))
	assert.False(t, optionsMatch(map[string]string{"a": "1"}, map[string]string{"a": "2"}))
	assert.False(t, optionsMatch(map[string]string{"a": "1"}, map[string]string{}))
}
