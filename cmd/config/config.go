package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/remote-mirror/cmd/util"
	"github.com/sidkik/remote-mirror/pkg/config"
	"github.com/sidkik/remote-mirror/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout              io.Writer = os.Stdout
	stdin               io.Reader = os.Stdin
	guessDefaults                 = guessDefaultsImpl
	parseConfig                   = config.ParseConfig
	configExists                  = config.Exists
	writeConfig                   = config.WriteConfig
	getConfigPath                 = config.GetConfigPath
	readSecret                    = util.PromptSecret
	stat                          = os.Stat
	getWorkingDirectory           = os.Getwd
	getenv                        = os.Getenv
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.Account
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Add or update an account in the mirror configuration",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}

	optionalHelp := "Optional: If not set, `mirror config` will interactively prompt."
	cmd.Flags().StringVar(&cliOpts.Name, "name", "",
		"Set the name of the account. "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.LocalRoot, "local-root", "",
		"Set the local directory that's mirrored. "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.Remote.Backend, "backend", "",
		"Set the remote backend (s3 or dir). "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.Remote.Bucket, "bucket", "",
		"Set the S3 bucket. "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.Remote.Prefix, "prefix", "",
		"Set the key prefix within the S3 bucket. "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.Remote.Region, "region", "",
		"Set the S3 region. "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.Remote.Endpoint, "endpoint", "",
		"Set a custom S3 endpoint, such as a MinIO server. "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.Remote.AccessKey, "access-key", "",
		"Set the S3 access key. "+optionalHelp)
	cmd.Flags().StringVar(&cliOpts.Remote.Path, "path", "",
		"Set the destination directory of the dir backend. "+optionalHelp)
	cmd.Flags().StringSliceVar(&cliOpts.Exclude, "exclude", nil,
		"Glob patterns of local paths that aren't mirrored.")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the configured accounts",
		Run: func(_ *cobra.Command, _ []string) {
			cfg, err := parseConfig()
			if err != nil {
				err = errors.WithContext(err, "read config")
				util.HandleFatalError(err)
			}

			listAccounts(stdout, cfg)
		},
	})

	return cmd
}

// SetupConfig prompts for the fields of an account that weren't set in
// `cliOpts`, and saves the account to the mirror config.
func SetupConfig(cliOpts config.Account) error {
	cfg, err := readCurrentConfig()
	if err != nil {
		return errors.WithContext(err, "read current config")
	}

	acct, err := generateAccount(cfg, cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate account")
	}

	cfg.SetAccount(acct)
	if err := cfg.Validate(); err != nil {
		return errors.WithContext(err, "validate")
	}

	if err := writeConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := getConfigPath()
	if err != nil {
		return errors.WithContext(err, "get config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

// readCurrentConfig returns the existing config, or an empty one if it hasn't
// been created yet. Malformed configs aren't overwritten.
func readCurrentConfig() (config.Config, error) {
	exists, err := configExists()
	if err != nil {
		return config.Config{}, errors.WithContext(err, "check config")
	}

	if !exists {
		return config.Config{Version: config.SupportedConfigVersion}, nil
	}
	return parseConfig()
}

var validAccountName = regexp.MustCompile(`^[-_.a-zA-Z0-9]+$`)

func accountNameValidationFn(name string) (string, bool) {
	if validAccountName.MatchString(name) {
		return "", true
	}
	return "The account name may only contain letters, numbers, " +
		"and the `-`, `_` and `.` characters. Please pick another name.", false
}

func localRootValidationFn(path string) (string, bool) {
	fi, err := stat(path)
	switch {
	case os.IsNotExist(err):
		return fmt.Sprintf("%q does not exist. Please pick another directory.", path), false
	case err != nil:
		return fmt.Sprintf("Failed to access %q (%s). Please pick another directory.",
			path, err), false
	case !fi.IsDir():
		return fmt.Sprintf("%q is not a directory. Please pick another directory.", path), false
	}
	return "", true
}

func backendValidationFn(backend string) (string, bool) {
	if backend == config.BackendS3 || backend == config.BackendDir {
		return "", true
	}
	return fmt.Sprintf("The backend must be either %q or %q.",
		config.BackendS3, config.BackendDir), false
}

func requiredValidationFn(resp string) (string, bool) {
	if resp == "" {
		return "This field is required.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateAccount interacts with the user to decide what the account's
// desired configuration is. The answers of the existing account with the same
// name, if any, are offered as choices.
func generateAccount(cfg config.Config, cliOpts config.Account) (config.Account, error) {
	defaults := guessDefaults()
	acct := cliOpts

	if acct.Name == "" {
		err := ask(prompt{
			helpString: "Enter a name for the account.\n" +
				"If an account with the same name already exists, it's updated.",
			prompt:        "Account name",
			defaultAnswer: defaults.Name,
			field:         &acct.Name,
			validationFn:  accountNameValidationFn,
		})
		if err != nil {
			return config.Account{}, err
		}
	}

	curr, exists := cfg.Account(acct.Name)
	if exists {
		log.WithField("account", acct.Name).Debug("Updating existing account")
	}

	var prompts []prompt
	if acct.LocalRoot == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the local directory to mirror.\n" +
				"It defaults to the current directory.",
			prompt:        "Local directory",
			defaultAnswer: defaults.LocalRoot,
			currAnswer:    curr.LocalRoot,
			field:         &acct.LocalRoot,
			validationFn:  localRootValidationFn,
		})
	}

	if acct.Remote.Backend == "" {
		prompts = append(prompts, prompt{
			helpString: fmt.Sprintf("Enter where the files are mirrored to.\n"+
				"Use %q for an S3 bucket, or %q for a directory such as a network mount.",
				config.BackendS3, config.BackendDir),
			prompt:        "Remote backend",
			defaultAnswer: defaults.Remote.Backend,
			currAnswer:    curr.Remote.Backend,
			field:         &acct.Remote.Backend,
			validationFn:  backendValidationFn,
		})
	}

	for _, p := range prompts {
		if err := ask(p); err != nil {
			return config.Account{}, err
		}
	}

	var err error
	switch acct.Remote.Backend {
	case config.BackendS3:
		err = promptS3(&acct.Remote, curr.Remote, defaults.Remote)
	case config.BackendDir:
		err = promptDir(&acct.Remote, curr.Remote)
	}
	if err != nil {
		return config.Account{}, err
	}

	if len(acct.Exclude) == 0 {
		acct.Exclude = curr.Exclude
	}

	// New accounts are synchronized by default.
	acct.Synchronize = !exists || curr.Synchronize
	return acct, nil
}

func promptS3(remote *config.Remote, curr, defaults config.Remote) error {
	var prompts []prompt
	if remote.Bucket == "" {
		prompts = append(prompts, prompt{
			helpString:   "Enter the name of the S3 bucket.",
			prompt:       "Bucket",
			currAnswer:   curr.Bucket,
			field:        &remote.Bucket,
			validationFn: requiredValidationFn,
		})
	}

	if remote.Prefix == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the key prefix that the files are stored under.\n" +
				"Leave it empty to use the whole bucket.",
			prompt:     "Key prefix",
			currAnswer: curr.Prefix,
			field:      &remote.Prefix,
		})
	}

	if remote.Region == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the region of the bucket.\n" +
				"Leave it empty to use the region from the AWS configuration.",
			prompt:        "Region",
			defaultAnswer: defaults.Region,
			currAnswer:    curr.Region,
			field:         &remote.Region,
		})
	}

	if remote.Endpoint == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the URL of an S3 compatible server, such as MinIO.\n" +
				"Leave it empty to use AWS.",
			prompt:     "Endpoint",
			currAnswer: curr.Endpoint,
			field:      &remote.Endpoint,
		})
	}

	if remote.AccessKey == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the access key ID.\n" +
				"Leave it empty to use the credentials from the AWS configuration.",
			prompt:     "Access key ID",
			currAnswer: curr.AccessKey,
			field:      &remote.AccessKey,
		})
	}

	for _, p := range prompts {
		if err := ask(p); err != nil {
			return err
		}
	}

	if remote.AccessKey == "" {
		remote.SecretKey = ""
		return nil
	}

	if remote.AccessKey == curr.AccessKey && curr.SecretKey != "" {
		secret, err := readSecret("Secret access key (leave empty to keep the current one): ")
		if err != nil {
			return errors.WithContext(err, "read secret key")
		}
		if secret == "" {
			secret = curr.SecretKey
		}
		remote.SecretKey = secret
		return nil
	}

	for remote.SecretKey == "" {
		secret, err := readSecret("Secret access key: ")
		if err != nil {
			return errors.WithContext(err, "read secret key")
		}
		remote.SecretKey = secret
	}
	return nil
}

func promptDir(remote *config.Remote, curr config.Remote) error {
	if remote.Path != "" {
		return nil
	}

	return ask(prompt{
		helpString: "Enter the directory that the files are mirrored to.\n" +
			"It must already exist.",
		prompt:       "Remote directory",
		currAnswer:   curr.Path,
		field:        &remote.Path,
		validationFn: requiredValidationFn,
	})
}

// ask prompts the user until the response passes validation, and stores it in
// the prompt's field.
func ask(p prompt) error {
	for {
		resp, err := promptUser(p.helpString, p.prompt, p.defaultAnswer, p.currAnswer)
		if err != nil {
			return errors.WithContext(err, "read response")
		}

		if p.validationFn == nil {
			*p.field = resp
			return nil
		}

		validationErr, ok := p.validationFn(resp)
		if ok {
			*p.field = resp
			return nil
		}

		fmt.Fprintln(stdout, validationErr)
	}
}

// guessDefaults tries to guess reasonable defaults for the fields of a new
// account.
func guessDefaultsImpl() (acct config.Account) {
	if wd, err := getWorkingDirectory(); err == nil {
		acct.LocalRoot = wd
		acct.Name = sanitizeAccountName(filepath.Base(wd))
	} else {
		log.WithError(err).Info("Failed to guess local directory")
	}

	acct.Remote.Backend = config.BackendS3
	acct.Remote.Region = getenv("AWS_REGION")
	return acct
}

var (
	invalidAccountNameChars = regexp.MustCompile(`[^-_.a-z0-9]+`)
	leadingOrTrailingHyphen = regexp.MustCompile(`^-*(.*?)-*$`)
)

func sanitizeAccountName(original string) (sanitized string) {
	sanitized = strings.ToLower(original)
	sanitized = invalidAccountNameChars.ReplaceAllString(sanitized, "-")
	sanitized = leadingOrTrailingHyphen.ReplaceAllString(sanitized, "$1")

	if _, ok := accountNameValidationFn(sanitized); !ok {
		return ""
	}
	return sanitized
}

func listAccounts(out io.Writer, cfg config.Config) {
	w := tabwriter.NewWriter(out, 0, 10, 3, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tLOCAL DIRECTORY\tREMOTE\tSYNCHRONIZE")
	for _, acct := range cfg.Accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n",
			acct.Name, acct.LocalRoot, describeRemote(acct.Remote), acct.Synchronize)
	}
}

func describeRemote(remote config.Remote) string {
	switch remote.Backend {
	case config.BackendS3:
		desc := "s3://" + remote.Bucket
		if remote.Prefix != "" {
			desc += "/" + strings.Trim(remote.Prefix, "/")
		}
		if remote.Endpoint != "" {
			desc += fmt.Sprintf(" (%s)", remote.Endpoint)
		}
		return desc
	case config.BackendDir:
		return remote.Path
	default:
		return remote.Backend
	}
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimSpace(choiceStr)

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp), nil
}
