package tasksys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, root, content string) string {
	t.Helper()

	scriptPath := filepath.Join(root, "tasks.star")
	require.NoError(t, os.WriteFile(scriptPath, []byte(content), 0660))
	return scriptPath
}

func TestRunScriptCollectsTasks(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
flavor = option("flavor", default="vanilla", help="artifact flavor")

def configure():
    prepare = task(
        "prepare",
        desc="prepares the output directory",
        cmds=["mkdir -p out"],
    )

    task(
        "all",
        desc="builds the " + flavor + " artifacts",
        deps=["prepare"],
        cmds=["echo done"],
    )
`)

	tasks, options, err := RunScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	require.Contains(t, tasks, "prepare")
	require.Contains(t, tasks, "all")
	assert.Equal(t, []string{"prepare"}, tasks["all"].Deps)
	assert.Equal(t, "builds the vanilla artifacts", tasks["all"].Desc)

	require.Contains(t, options, "flavor")
	assert.Equal(t, "vanilla", options["flavor"].Default())
}

func TestRunScriptOptionOverride(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
flavor = option("flavor", default="vanilla")

def configure():
    task("all", desc=flavor, cmds=[])
`)

	tasks, _, err := RunScript(testContext(), scriptPath, root, map[string]string{"flavor": "mocha"}, true)
	require.NoError(t, err)
	assert.Equal(t, "mocha", tasks["all"].Desc)
}

func TestRunScriptAnonymousTasksAreHidden(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
def configure():
    helper = task(cmds=["echo helper"])
    task("all", desc="main", cmds=[helper])
`)

	tasks, _, err := RunScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	// only the named task shows up in the list
	require.Len(t, tasks, 1)
	require.Contains(t, tasks, "all")

	require.Len(t, tasks["all"].Cmds, 1)
	ref, ok := tasks["all"].Cmds[0].(TaskRef)
	require.True(t, ok)
	assert.True(t, ref.Task.Hidden)
}

func TestRunScriptTupleCommands(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
def configure():
    task(
        "all",
        desc="tuple command",
        cmds=[("echo", "two words")],
    )
`)

	tasks, _, err := RunScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	require.Len(t, tasks["all"].Cmds, 1)
	shell, ok := tasks["all"].Cmds[0].(ShellCmd)
	require.True(t, ok)
	assert.Equal(t, "echo 'two words'", shell.Content)
}

func TestRunScriptMissingConfigure(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `x = 1`)

	_, _, err := RunScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure")
}

func TestRunScriptReservedTaskName(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
def configure():
    task("configure", cmds=[])
`)

	_, _, err := RunScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.Error(t, err)
}

func TestRunScriptTaskBaseNormalization(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0770))
	scriptPath := writeScript(t, root, `
def configure():
    task("all", base="//sub", cmds=["echo hi"])
`)

	tasks, _, err := RunScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	expected, err := filepath.Abs(filepath.Join(root, "sub"))
	require.NoError(t, err)
	assert.Equal(t, expected, tasks["all"].Base)
}

func TestCacheRoundtrip(t *testing.T) {
	root := t.TempDir()
	scriptPath := writeScript(t, root, `
def configure():
    task("all", desc="cached", deps=[], cmds=["echo hi"])
`)

	tasks, _, err := RunScript(testContext(), scriptPath, root, map[string]string{"k": "v"}, true)
	require.NoError(t, err)

	cachePath := filepath.Join(root, "tasks.cache")
	require.NoError(t, WriteCache(cachePath, map[string]string{"k": "v"}, tasks))

	options, loaded, err := ReadCache(cachePath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, options)

	require.Contains(t, loaded, "all")
	assert.Equal(t, "cached", loaded["all"].Desc)
	require.Len(t, loaded["all"].Cmds, 1)
}
