package pkg

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// GetProjectRoot walks up from the working directory until it finds a
// dist.yml. A directory with a .git entry is accepted as a fallback so the
// config load that follows can report the exact dist.yml path it expected
// instead of a generic lookup failure.
func GetProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", eris.Wrap(err, "Failed to retrieve the current working directory")
	}

	gitRoot := ""
	path := wd
	for {
		_, err := os.Stat(filepath.Join(path, ConfigName))
		if err == nil {
			return path, nil
		}

		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "Error occurred while searching for %s", ConfigName)
		}

		if gitRoot == "" {
			_, err = os.Stat(filepath.Join(path, ".git"))
			if err == nil {
				gitRoot = path
			}
		}

		nextPath := filepath.Dir(path)
		if path == nextPath {
			break
		}
		path = nextPath
	}

	if gitRoot != "" {
		return gitRoot, nil
	}

	return "", eris.New("Project root not found")
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
