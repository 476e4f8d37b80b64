package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/remote-mirror/pkg/errors"
)

const (
	// ConfigPath is the default path to the mirror config.
	ConfigPath = "~/.mirror.yaml"

	// InitialConfigVersion is the first version of the mirror config. Config
	// files that do not specify a version will default to this version.
	InitialConfigVersion = "v1alpha1"

	// SupportedConfigVersion is the version of the mirror config supported by
	// the current binary.
	SupportedConfigVersion = "v1alpha1"
)

// The supported remote backends.
const (
	BackendS3  = "s3"
	BackendDir = "dir"
)

// Config is the list of accounts to mirror.
type Config struct {
	Version  string    `json:"version,omitempty"`
	Accounts []Account `json:"accounts"`

	// Retries is how many times a failed command is retried. If it's unset,
	// the default is used.
	Retries *int `json:"retries,omitempty"`
}

// Account pairs a local directory with the remote account it's mirrored to.
type Account struct {
	Name      string `json:"name"`
	LocalRoot string `json:"localRoot"`

	// Synchronize is whether `mirror sync` processes the account when no
	// account is named explicitly.
	Synchronize bool `json:"synchronize"`

	// Exclude is a list of glob patterns of local paths that aren't mirrored.
	Exclude []string `json:"exclude,omitempty"`

	Remote Remote `json:"remote"`
}

// Remote describes where an account's files are stored.
type Remote struct {
	Backend string `json:"backend"`

	// Used by the s3 backend.
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`

	// Used by the dir backend.
	Path string `json:"path,omitempty"`
}

// Account returns the account named `name`.
func (cfg Config) Account(name string) (Account, bool) {
	for _, acct := range cfg.Accounts {
		if acct.Name == name {
			return acct, true
		}
	}
	return Account{}, false
}

// SetAccount adds the account, or replaces the account with the same name.
func (cfg *Config) SetAccount(acct Account) {
	for i, existing := range cfg.Accounts {
		if existing.Name == acct.Name {
			cfg.Accounts[i] = acct
			return
		}
	}
	cfg.Accounts = append(cfg.Accounts, acct)
}

// Validate checks that every account has the fields its backend needs.
func (cfg Config) Validate() error {
	if cfg.Retries != nil && *cfg.Retries < 0 {
		return errors.NewFriendlyError("retries must not be negative")
	}

	names := map[string]bool{}
	for _, acct := range cfg.Accounts {
		if err := acct.Validate(); err != nil {
			if acct.Name == "" {
				return err
			}
			return errors.WithContext(err, acct.Name)
		}

		if names[acct.Name] {
			return errors.NewFriendlyError("Account %q is defined more than once", acct.Name)
		}
		names[acct.Name] = true
	}
	return nil
}

// Validate checks that the account has the fields its backend needs.
func (acct Account) Validate() error {
	switch {
	case acct.Name == "":
		return errors.MissingFieldError{Field: "name"}
	case acct.LocalRoot == "":
		return errors.MissingFieldError{Field: "localRoot"}
	}

	switch acct.Remote.Backend {
	case BackendS3:
		if acct.Remote.Bucket == "" {
			return errors.MissingFieldError{Field: "remote.bucket"}
		}
	case BackendDir:
		if acct.Remote.Path == "" {
			return errors.MissingFieldError{Field: "remote.path"}
		}
	case "":
		return errors.MissingFieldError{Field: "remote.backend"}
	default:
		return errors.NewFriendlyError("Unsupported remote backend %q. "+
			"Expected %q or %q.", acct.Remote.Backend, BackendS3, BackendDir)
	}
	return nil
}

// parseConfigErrTemplate is shown when the mirror config doesn't match Config.
// The yaml library's errors lose their context, so the parser's message is
// passed on as is.
const parseConfigErrTemplate = "The mirror config could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields, such as quoting `retries`\n" +
	" - Misspelling account fields, such as `localRoot` or `remote.backend`\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The configuration file %q is incompatible "+
		"with this version of mirror.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

// parseConfig reads the config at `path` into `config`. The version is checked
// with a lenient unmarshal first, so that an old config file is reported as
// incompatible rather than as having unknown fields.
func parseConfig(path string, config *Config, expVersion string) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	err = yaml.Unmarshal(configBytes, config)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if config.Version != expVersion {
		return incompatibleVersionError{path, expVersion, config.Version}
	}

	err = yaml.UnmarshalStrict(configBytes, config, yaml.DisallowUnknownFields)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseConfig attempts to parse the Config stored in the default path.
func ParseConfig() (Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	config := Config{Version: InitialConfigVersion}
	if err := parseConfig(path, &config, SupportedConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return Config{}, errors.NewFriendlyError("The mirror config "+
				"file doesn't exist at %q. Please run `mirror config` to "+
				"add an account.", path)
		}
		return Config{}, errors.WithContext(err, "parse")
	}

	if err := config.Validate(); err != nil {
		return Config{}, errors.WithContext(err, "validate")
	}

	for i, acct := range config.Accounts {
		acct.LocalRoot, err = resolvePath(path, acct.LocalRoot)
		if err != nil {
			return Config{}, errors.WithContext(err, "expand local root")
		}

		if acct.Remote.Path != "" {
			acct.Remote.Path, err = resolvePath(path, acct.Remote.Path)
			if err != nil {
				return Config{}, errors.WithContext(err, "expand remote path")
			}
		}
		config.Accounts[i] = acct
	}
	return config, nil
}

// resolvePath expands the home directory in `path`, and evaluates relative
// paths relative to the config file.
func resolvePath(configPath, path string) (string, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(configPath), path)
	}
	return path, nil
}

// WriteConfig writes the given config to disk. The file is only readable by
// the user, since it may contain secret keys.
func WriteConfig(cfg Config) error {
	cfg.Version = SupportedConfigVersion
	path, err := GetConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0600); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetConfigPath returns the path to the mirror config. This path is
// expanded, so it can be directly passed to file operations.
func GetConfigPath() (string, error) {
	return homedirExpand(ConfigPath)
}

// Exists returns whether the mirror config file has been created.
func Exists() (bool, error) {
	path, err := GetConfigPath()
	if err != nil {
		return false, errors.WithContext(err, "expand config path")
	}
	return afero.Exists(fs, path)
}
