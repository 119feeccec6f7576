package pkg

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ConfigName is the project file that marks the project root and configures
// the packaging pipeline.
const ConfigName = "dist.yml"

// ToolSpec describes a pinned external tool that gets downloaded into the
// isolated environment. URLs can contain {VAR} placeholders which are
// resolved against the Vars map and the implicit OS/arch variables.
type ToolSpec struct {
	Condition  string `yaml:"if,omitempty"`
	Rejections string `yaml:"ifNot,omitempty"`
	URL        string
	Dest       string
	Sha256     string
	Strip      int
	MarkExec   []string `yaml:"markExec,omitempty"`
}

// Config is the parsed dist.yml.
type Config struct {
	Name     string
	Version  string
	EnvDir   string   `yaml:"envDir"`
	OutDir   string   `yaml:"outDir"`
	Formats  []string `yaml:"formats"`
	Sources  []string `yaml:"sources"`
	Exclude  []string `yaml:"exclude"`
	IndexURL string   `yaml:"indexUrl"`
	Vars     map[string]string
	Tools    map[string]ToolSpec
}

func (c *Config) applyDefaults() {
	if c.EnvDir == "" {
		c.EnvDir = ".dist-env"
	}
	if c.OutDir == "" {
		c.OutDir = "dist"
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{"tar.gz"}
	}
	if len(c.Sources) == 0 {
		c.Sources = []string{"."}
	}
	if c.Vars == nil {
		c.Vars = map[string]string{}
	}
}

// LoadConfig reads and validates the dist.yml in the given project root.
func LoadConfig(projectRoot string) (*Config, error) {
	cfgPath := filepath.Join(projectRoot, ConfigName)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, eris.Wrapf(err, "Could not open file %s.", cfgPath)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse %s.", cfgPath)
	}

	if cfg.Name == "" {
		return nil, eris.Errorf("%s does not set a project name", cfgPath)
	}
	if cfg.Version == "" {
		return nil, eris.Errorf("%s does not set a project version", cfgPath)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// EnvPath returns the absolute path of the isolated environment directory.
func (c *Config) EnvPath(projectRoot string) string {
	return filepath.Join(projectRoot, c.EnvDir)
}

// OutPath returns the absolute path of the artifact output directory.
func (c *Config) OutPath(projectRoot string) string {
	return filepath.Join(projectRoot, c.OutDir)
}
