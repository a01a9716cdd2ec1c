package yaml

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// DefaultConfigFile is read when no path is given
const DefaultConfigFile = "config.yaml"

// envOverrides maps environment variables to the YAML keys they replace
var envOverrides = map[string]string{
	"SONARQUBE_URL":     "sonarqube_url",
	"SONARQUBE_TOKEN":   "sonarqube_token",
	"SONARSCANNER_PATH": "sonarscanner_path",
}

// ConfigLoader reads the YAML file and overlays a .env file and the process
// environment. Precedence: environment, then .env, then the YAML file.
type ConfigLoader struct {
	parser    *ConfigParser
	envFile   string
	lookupEnv func(string) (string, bool)
}

// NewConfigLoader creates a loader. envFile may be empty to skip the .env overlay.
func NewConfigLoader(envFile string) *ConfigLoader {
	return &ConfigLoader{
		parser:    NewConfigParser(),
		envFile:   envFile,
		lookupEnv: os.LookupEnv,
	}
}

// Load reads configuration from path (DefaultConfigFile when empty)
func (l *ConfigLoader) Load(path string) (*entities.ScannerConfig, error) {
	const op = "config.load"

	if path == "" {
		path = DefaultConfigFile
	}

	//nolint:gosec // G304: path is the operator supplied configuration file
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, scanerr.ConfigError(op, "configuration file not found: "+filepath.Clean(path), err)
	}
	if err != nil {
		return nil, scanerr.ConfigError(op, "failed to read configuration file", err)
	}

	overrides, err := l.overrides()
	if err != nil {
		return nil, err
	}
	return l.parser.Parse(data, overrides)
}

// overrides collects values from the .env file and the environment
func (l *ConfigLoader) overrides() (map[string]string, error) {
	overrides := make(map[string]string, len(envOverrides))

	if l.envFile != "" {
		dotenv, err := godotenv.Read(l.envFile)
		switch {
		case err == nil:
			for name, key := range envOverrides {
				if v := dotenv[name]; v != "" {
					overrides[key] = v
				}
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, scanerr.ConfigError("config.dotenv", "failed to read "+l.envFile, err)
		}
	}

	for name, key := range envOverrides {
		if v, ok := l.lookupEnv(name); ok && v != "" {
			overrides[key] = v
		}
	}
	return overrides, nil
}
