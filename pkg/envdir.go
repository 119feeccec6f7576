package pkg

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

const envStampName = "env.stamp"

// Environment is the isolated, disposable directory that holds the tooling
// used by the build and upload steps. It is separate from any system-wide
// installation and safe to delete at any time.
type Environment struct {
	Dir string
}

type envStamp struct {
	CreatedAt time.Time `json:"createdAt"`
	Version   string    `json:"version"`
}

// NewEnvironment returns a handle for the environment of the given project.
func NewEnvironment(projectRoot string, cfg *Config) Environment {
	return Environment{Dir: cfg.EnvPath(projectRoot)}
}

// BinPath returns the directory that holds installed tool binaries. It is
// prepended to PATH for all task commands.
func (e Environment) BinPath() string {
	return filepath.Join(e.Dir, "bin")
}

// StampPath returns the marker file that declares the environment valid.
func (e Environment) StampPath() string {
	return filepath.Join(e.Dir, envStampName)
}

// Valid reports whether the environment exists and has been fully
// provisioned. A directory without a stamp counts as invalid since a
// previous setup run must have been interrupted.
func (e Environment) Valid() bool {
	info, err := os.Stat(e.Dir)
	if err != nil || !info.IsDir() {
		return false
	}

	_, err = os.Stat(e.StampPath())
	return err == nil
}

// Provision creates the environment directory and installs the configured
// tooling into it. Calling it on a valid environment is a no-op.
func (e Environment) Provision(ctx context.Context, projectRoot string, cfg *Config) error {
	if e.Valid() {
		PrintSubtask("environment already set up, nothing to do")
		return nil
	}

	err := os.MkdirAll(e.BinPath(), 0770)
	if err != nil {
		return eris.Wrapf(err, "Failed to create environment directory %s", e.Dir)
	}

	err = FetchTools(ctx, projectRoot, cfg, e, false)
	if err != nil {
		return err
	}

	err = InstallGoTools(projectRoot, e)
	if err != nil {
		return err
	}

	stamp := envStamp{
		CreatedAt: time.Now(),
		Version:   cfg.Version,
	}
	stampData, err := json.Marshal(stamp)
	if err != nil {
		return eris.Wrap(err, "Failed to serialize environment stamp")
	}

	err = os.WriteFile(e.StampPath(), stampData, os.FileMode(0660))
	if err != nil {
		return eris.Wrapf(err, "Failed to write environment stamp %s", e.StampPath())
	}

	return nil
}

// Remove deletes the environment directory. Missing directories are fine.
func (e Environment) Remove() error {
	err := os.RemoveAll(e.Dir)
	if err != nil {
		return eris.Wrapf(err, "Failed to remove environment directory %s", e.Dir)
	}

	return nil
}
