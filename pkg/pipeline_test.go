package pkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natanjunges/dist-tools/pkg/tasksys"
)

func pipelineFixture(t *testing.T) (context.Context, string, *Config, tasksys.TaskList) {
	t.Helper()

	logger := zerolog.Nop()
	ctx := tasksys.WithLogger(context.Background(), &logger)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0770))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.py"), []byte("print('hi')\n"), 0660))

	cfg := &Config{
		Name:     "example",
		Version:  "1.0.0",
		Sources:  []string{"src"},
		IndexURL: "https://index.invalid/upload",
	}
	cfg.applyDefaults()

	return ctx, root, cfg, BuildPipeline(root, cfg)
}

func TestPipelineTaskSet(t *testing.T) {
	_, _, _, tasks := pipelineFixture(t)

	for _, name := range []string{"env", "build", "all", "upload", "clean"} {
		require.Contains(t, tasks, name)
	}

	assert.Equal(t, []string{"env"}, tasks["build"].Deps)
	assert.Equal(t, []string{"build"}, tasks["all"].Deps)
	assert.Equal(t, []string{"env"}, tasks["upload"].Deps)
	assert.Empty(t, tasks["clean"].Deps)
}

func TestPipelineDefaultRunBuildsArtifacts(t *testing.T) {
	ctx, root, cfg, tasks := pipelineFixture(t)

	err := tasksys.RunTask(ctx, root, "all", tasks, false, false)
	require.NoError(t, err)

	env := NewEnvironment(root, cfg)
	assert.True(t, env.Valid(), "default run must create the environment")
	assert.FileExists(t, filepath.Join(cfg.OutPath(root), "example-1.0.0.tar.gz"))
	assert.FileExists(t, filepath.Join(cfg.OutPath(root), SumsName))
}

func TestPipelineSecondRunKeepsEnvironment(t *testing.T) {
	ctx, root, cfg, tasks := pipelineFixture(t)

	require.NoError(t, tasksys.RunTask(ctx, root, "all", tasks, false, false))

	env := NewEnvironment(root, cfg)
	stampBefore, err := os.Stat(env.StampPath())
	require.NoError(t, err)

	require.NoError(t, tasksys.RunTask(ctx, root, "all", tasks, false, false))

	stampAfter, err := os.Stat(env.StampPath())
	require.NoError(t, err)
	assert.Equal(t, stampBefore.ModTime(), stampAfter.ModTime())
}

func TestPipelineUploadWithoutBuildFails(t *testing.T) {
	ctx, root, _, tasks := pipelineFixture(t)

	err := tasksys.RunTask(ctx, root, "upload", tasks, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No artifacts to publish")
}

func TestPipelineClean(t *testing.T) {
	ctx, root, cfg, tasks := pipelineFixture(t)

	require.NoError(t, tasksys.RunTask(ctx, root, "all", tasks, false, false))

	err := tasksys.RunTask(ctx, root, "clean", tasks, false, true)
	require.NoError(t, err)

	_, statErr := os.Stat(cfg.EnvPath(root))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.OutPath(root))
	assert.True(t, os.IsNotExist(statErr))

	// cleaning an already clean project succeeds
	err = tasksys.RunTask(ctx, root, "clean", tasks, false, true)
	require.NoError(t, err)
}
