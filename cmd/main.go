package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/natanjunges/dist-tools/pkg"
	"github.com/natanjunges/dist-tools/pkg/tasksys"
)

// ScriptName is the optional task script that overrides the built-in
// packaging pipeline.
const ScriptName = "tasks.star"

const cacheName = "tasks.cache"

var rootCmd = &cobra.Command{
	Use:   "dist [task [task ...]] [option=value ...]",
	Short: "Packaging and publish automation",
	Long: `dist drives the packaging pipeline of a project: it sets up an isolated
tool environment, packs the sources into distributable artifacts and can
publish them to a package index. Without arguments the default "all" task
runs, which ensures the environment and builds the artifacts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		taskArgs := make([]string, 0)
		options := make(map[string]string)

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		noCache, err := cmd.Flags().GetBool("no-cache")
		if err != nil {
			return err
		}

		list, err := cmd.Flags().GetBool("list")
		if err != nil {
			return err
		}

		for _, part := range args {
			pos := strings.Index(part, "=")
			if pos > -1 {
				options[part[:pos]] = part[pos+1:]
			} else {
				taskArgs = append(taskArgs, part)
			}
		}

		ctx, logger, projectRoot, cfg, err := setupContext(cmd)
		if err != nil {
			return err
		}

		taskList, err := loadTasks(ctx, projectRoot, cfg, options, noCache)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load tasks")
		}

		if list {
			printTaskList(taskList)
			return nil
		}

		if len(taskArgs) == 0 {
			taskArgs = []string{"all"}
		}

		for _, name := range taskArgs {
			err = tasksys.RunTask(ctx, projectRoot, name, taskList, dryRun, force)
			if err != nil {
				logger.Fatal().Err(err).Msgf("Failed task %s:", name)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.Flags().BoolP("force", "f", false, "always execute the passed tasks even if they don't have to run")
	rootCmd.Flags().Bool("no-cache", false, "ignore the parsed task script cache")
	rootCmd.Flags().BoolP("list", "l", false, "list the available tasks and exit")
}

// setupContext prepares the logger, project root and configuration shared by
// all pipeline commands.
func setupContext(cmd *cobra.Command) (context.Context, *zerolog.Logger, string, *pkg.Config, error) {
	logger := zerolog.New(NewConsoleWriter())
	ctx := tasksys.WithLogger(cmd.Context(), &logger)

	projectRoot, err := pkg.GetProjectRoot()
	if err != nil {
		return nil, nil, "", nil, err
	}

	cfg, err := pkg.LoadConfig(projectRoot)
	if err != nil {
		return nil, nil, "", nil, err
	}

	return ctx, &logger, projectRoot, cfg, nil
}

// loadTasks merges the built-in pipeline with the project's task script, if
// one exists. Parsed scripts are cached inside the environment directory and
// reused as long as the script hasn't changed and the options match.
func loadTasks(ctx context.Context, projectRoot string, cfg *pkg.Config, options map[string]string, noCache bool) (tasksys.TaskList, error) {
	taskList := pkg.BuildPipeline(projectRoot, cfg)

	scriptPath := filepath.Join(projectRoot, ScriptName)
	info, err := os.Stat(scriptPath)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return taskList, nil
		}
		return nil, eris.Wrapf(err, "Failed to check %s", scriptPath)
	}

	cachePath := filepath.Join(cfg.EnvPath(projectRoot), cacheName)
	if !noCache {
		cacheInfo, err := os.Stat(cachePath)
		if err == nil && cacheInfo.ModTime().After(info.ModTime()) {
			cachedOptions, scriptTasks, err := tasksys.ReadCache(cachePath)
			if err == nil && optionsMatch(cachedOptions, options) {
				for name, task := range scriptTasks {
					taskList[name] = task
				}
				return taskList, nil
			}
		}
	}

	scriptTasks, _, err := tasksys.RunScript(ctx, scriptPath, projectRoot, options, true)
	if err != nil {
		return nil, err
	}

	// the cache lives in the environment directory, so it only exists once
	// the env task ran at least once
	_, statErr := os.Stat(cfg.EnvPath(projectRoot))
	if statErr == nil {
		err = tasksys.WriteCache(cachePath, options, scriptTasks)
		if err != nil {
			pkg.PrintError(err.Error())
		}
	}

	for name, task := range scriptTasks {
		taskList[name] = task
	}

	return taskList, nil
}

func optionsMatch(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}

	for key, value := range a {
		if b[key] != value {
			return false
		}
	}

	return true
}

func printTaskList(taskList tasksys.TaskList) {
	fmt.Println("Available tasks:")
	maxNameLen := 0
	sortedNames := make([]string, 0)
	for _, task := range taskList {
		if task.Hidden {
			continue
		}

		nameLen := len(task.Name)
		if nameLen > maxNameLen {
			maxNameLen = nameLen
		}

		sortedNames = append(sortedNames, task.Name)
	}

	sort.Strings(sortedNames)

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range sortedNames {
		fmt.Printf(lineFmt, name+":", taskList[name].Desc)
	}
}

// runPipelineTask is the shared implementation of the env/build/upload/clean
// shortcut commands.
func runPipelineTask(cmd *cobra.Command, name string, force bool) error {
	ctx, logger, projectRoot, cfg, err := setupContext(cmd)
	if err != nil {
		return err
	}

	taskList, err := loadTasks(ctx, projectRoot, cfg, map[string]string{}, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load tasks")
	}

	err = tasksys.RunTask(ctx, projectRoot, name, taskList, false, force)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Failed task %s:", name)
	}

	return nil
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
