package pkg

import (
	"context"
	"os"
	"path/filepath"

	"github.com/natanjunges/dist-tools/pkg/tasksys"
	"github.com/rotisserie/eris"
)

// BuildPipeline synthesizes the built-in packaging tasks for a project.
// A tasks.star script can override any of them; the dependency chain stays
// env -> build -> upload either way.
func BuildPipeline(projectRoot string, cfg *Config) tasksys.TaskList {
	env := NewEnvironment(projectRoot, cfg)
	outDir := cfg.OutPath(projectRoot)

	stampRel := filepath.ToSlash(filepath.Join(cfg.EnvDir, envStampName))

	envTask := &tasksys.Task{
		Name:         "env",
		Desc:         "Sets up the isolated tool environment",
		Base:         projectRoot,
		SkipIfExists: []string{stampRel},
		Cmds: []tasksys.TaskCmd{
			tasksys.FuncCmd{
				Name: "set up tool environment",
				Fn: func(ctx context.Context) error {
					PrintTask("Setting up tool environment")
					return env.Provision(ctx, projectRoot, cfg)
				},
			},
		},
	}

	buildTask := &tasksys.Task{
		Name: "build",
		Desc: "Packs the project sources into distributable artifacts",
		Base: projectRoot,
		Deps: []string{"env"},
		Env:  map[string]string{"PATH": prependedPath(env)},
		Cmds: []tasksys.TaskCmd{
			tasksys.FuncCmd{
				Name: "pack artifacts",
				Fn: func(ctx context.Context) error {
					PrintTask("Building artifacts")
					_, err := PackDist(ctx, projectRoot, cfg)
					return err
				},
			},
		},
	}

	allTask := &tasksys.Task{
		Name: "all",
		Desc: "Sets up the environment and builds artifacts (default)",
		Base: projectRoot,
		Deps: []string{"build"},
	}

	uploadTask := &tasksys.Task{
		Name: "upload",
		Desc: "Publishes the built artifacts to the package index",
		Base: projectRoot,
		Deps: []string{"env"},
		Env:  map[string]string{"PATH": prependedPath(env)},
		Cmds: []tasksys.TaskCmd{
			tasksys.FuncCmd{
				Name: "publish artifacts",
				Fn: func(ctx context.Context) error {
					PrintTask("Publishing artifacts")
					uploader, err := NewUploader(cfg)
					if err != nil {
						return err
					}

					return uploader.UploadAll(ctx, outDir, cfg)
				},
			},
		},
	}

	cleanTask := &tasksys.Task{
		Name: "clean",
		Desc: "Removes the environment and output directories",
		Base: projectRoot,
		Cmds: []tasksys.TaskCmd{
			tasksys.FuncCmd{
				Name: "remove environment and artifacts",
				Fn: func(ctx context.Context) error {
					PrintTask("Cleaning up")
					err := env.Remove()
					if err != nil {
						return err
					}

					err = os.RemoveAll(outDir)
					if err != nil {
						return eris.Wrapf(err, "Failed to remove output directory %s", outDir)
					}

					return nil
				},
			},
		},
	}

	tasks := tasksys.TaskList{}
	for _, task := range []*tasksys.Task{envTask, buildTask, allTask, uploadTask, cleanTask} {
		tasks[task.Name] = task
	}

	return tasks
}

func prependedPath(env Environment) string {
	return env.BinPath() + string(os.PathListSeparator) + os.Getenv("PATH")
}
