package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	goSync "sync"
	"time"

	"github.com/buger/goterm"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/remote-mirror/cmd/util"
	"github.com/sidkik/remote-mirror/pkg/config"
	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/fswatch"
	"github.com/sidkik/remote-mirror/pkg/remote/backend"
	mirror "github.com/sidkik/remote-mirror/pkg/sync"
)

const defaultPollInterval = 10 * time.Minute

// Mocked for unit testing.
var (
	stdout        io.Writer = os.Stdout
	parseConfig             = config.ParseConfig
	newClient               = backend.New
	isTerminal              = util.IsTerminal
	promptYesOrNo           = util.PromptYesOrNo
	watchDir                = fswatch.Watch
)

type syncCmd struct {
	yes          bool
	dryRun       bool
	watch        bool
	accounts     []string
	pollInterval time.Duration

	retries int
	out     io.Writer
	log     log.FieldLogger
	clock   clockwork.Clock

	// fs is the local filesystem. The OS filesystem is used if it's nil.
	fs afero.Fs
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var cmd syncCmd
	cobraCmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror local directories onto their remote accounts",
		Long: `Make each remote account contain exactly the files and folders of its
local directory. Remote files that don't exist locally are deleted.

By default, every account with "synchronize: true" is processed. Use
--account to pick accounts explicitly.`,
		Run: func(_ *cobra.Command, _ []string) {
			cfg, err := parseConfig()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "parse config"))
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				c := make(chan os.Signal, 1)
				signal.Notify(c, os.Interrupt)
				<-c
				log.Info("Interrupted. Stopping after the current command.")
				cancel()
			}()

			cmd.out = stdout
			cmd.log = log.StandardLogger()
			cmd.clock = clockwork.NewRealClock()
			if err := cmd.run(ctx, cfg); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cobraCmd.Flags().BoolVarP(&cmd.yes, "yes", "y", false,
		"Delete remote files without asking for confirmation")
	cobraCmd.Flags().BoolVar(&cmd.dryRun, "dry-run", false,
		"Print the changes without applying them")
	cobraCmd.Flags().BoolVar(&cmd.watch, "watch", false,
		"Keep running, and synchronize again whenever a local directory changes")
	cobraCmd.Flags().DurationVar(&cmd.pollInterval, "poll-interval", defaultPollInterval,
		"How often to synchronize in --watch mode when nothing changes locally")
	cobraCmd.Flags().StringSliceVar(&cmd.accounts, "account", nil,
		"The accounts to synchronize. Defaults to every account with `synchronize: true`")
	return cobraCmd
}

func (cmd syncCmd) run(ctx context.Context, cfg config.Config) error {
	accounts, err := selectAccounts(cfg, cmd.accounts)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		return errors.NewFriendlyError("There are no accounts to synchronize.\n" +
			"Run `mirror config` to add one, or set `synchronize: true` on an " +
			"existing account.")
	}

	cmd.retries = mirror.DefaultRetries
	if cfg.Retries != nil {
		cmd.retries = *cfg.Retries
	}

	if cmd.watch {
		return cmd.watchAccounts(ctx, accounts)
	}
	return cmd.syncAll(ctx, accounts)
}

// selectAccounts returns the accounts named in `names`, or every account
// that's marked for synchronization if no names are given.
func selectAccounts(cfg config.Config, names []string) ([]config.Account, error) {
	if len(names) == 0 {
		var accounts []config.Account
		for _, acct := range cfg.Accounts {
			if acct.Synchronize {
				accounts = append(accounts, acct)
			}
		}
		return accounts, nil
	}

	var accounts []config.Account
	for _, name := range names {
		acct, ok := cfg.Account(name)
		if !ok {
			return nil, errors.NewFriendlyError("Unknown account %q.\n"+
				"Run `mirror config list` to see the configured accounts.", name)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// syncAll synchronizes the accounts in order. A failure only aborts the
// account it happened in.
func (cmd syncCmd) syncAll(ctx context.Context, accounts []config.Account) error {
	var failed []string
	for _, acct := range accounts {
		if ctx.Err() != nil {
			break
		}

		if err := cmd.syncAccount(ctx, acct); err != nil {
			cmd.log.WithError(err).WithField("account", acct.Name).
				Error("Failed to synchronize account")
			failed = append(failed, fmt.Sprintf("%q", acct.Name))
		}
	}

	if ctx.Err() != nil {
		return errors.NewFriendlyError("Synchronization was interrupted.")
	}

	if len(failed) != 0 {
		return errors.NewFriendlyError("Failed to synchronize %s. "+
			"See the errors above for details.", strings.Join(failed, ", "))
	}
	return nil
}

func (cmd syncCmd) syncAccount(ctx context.Context, acct config.Account) error {
	acctLog := cmd.log.WithField("account", acct.Name)

	client, creds, err := newClient(acct.Remote)
	if err != nil {
		return errors.WithContext(err, "create remote client")
	}

	if err := client.Login(ctx, creds); err != nil {
		return errors.WithContext(err, "login")
	}

	plan, err := mirror.NewPlan(ctx, client, mirror.PlanOptions{
		LocalRoot: acct.LocalRoot,
		Excludes:  acct.Exclude,
		Fs:        cmd.fs,
	})
	if err != nil {
		return errors.WithContext(err, "plan")
	}

	if len(plan.Commands) == 0 {
		fmt.Fprintf(cmd.out, "%s is up to date.\n", acct.Name)
		return nil
	}

	cmd.printPlan(acct.Name, plan.Commands)
	if cmd.dryRun {
		return nil
	}

	policy := mirror.DefaultRetryPolicy()
	policy.MaxRetries = cmd.retries
	if cmd.clock != nil {
		policy.Clock = cmd.clock
	}

	progress := util.NewProgressPrinter(cmd.out, fmt.Sprintf("Uploading to %s", acct.Name))
	executor := mirror.Executor{
		Client:   client,
		Fs:       cmd.fs,
		Retry:    policy,
		Progress: progress.Update,
		Log:      acctLog,
	}
	if !cmd.yes {
		executor.Confirm = cmd.confirmDelete
	}

	report, err := executor.Execute(ctx, plan.Commands, plan.Index)
	progress.StopWithPrint(util.ClearProgress)
	cmd.printReport(acct.Name, report)
	if err != nil {
		return errors.WithContext(err, "execute")
	}
	return nil
}

// confirmDelete asks the user whether a remote item may be deleted. Deletions
// are denied when stdin isn't interactive.
func (cmd syncCmd) confirmDelete(c mirror.Command) bool {
	if !isTerminal() {
		cmd.log.WithField("path", c.Path).Warn(
			"Not deleting since stdin isn't interactive. Use --yes to allow deletions.")
		return false
	}

	ok, err := promptYesOrNo(fmt.Sprintf("Delete %s from the remote account?", c.Path))
	if err != nil {
		cmd.log.WithError(err).Warn("Failed to read confirmation. Not deleting.")
		return false
	}
	return ok
}

func (cmd syncCmd) printPlan(name string, commands []mirror.Command) {
	fmt.Fprintf(cmd.out, "Changes to %s:\n", name)
	for _, c := range commands {
		color := goterm.GREEN
		if c.Kind.IsDelete() {
			color = goterm.RED
		}
		fmt.Fprintln(cmd.out, goterm.Color("  "+c.String(), color))
	}
	fmt.Fprintln(cmd.out, mirror.Summarize(commands))
}

func (cmd syncCmd) printReport(name string, report mirror.Report) {
	fmt.Fprintf(cmd.out, "Synchronized %s: %d succeeded, %d skipped, %d failed, %d not run.\n",
		name, report.Count(mirror.Succeeded), report.Count(mirror.Skipped),
		report.Count(mirror.Failed), report.Count(mirror.Pending))
}

// watchAccounts synchronizes the accounts, and then synchronizes them again
// whenever their local directory changes, or the poll interval passes. It
// runs until `ctx` is cancelled.
func (cmd syncCmd) watchAccounts(ctx context.Context, accounts []config.Account) error {
	var lock goSync.Mutex
	changed := map[string]bool{}
	notify := make(chan struct{}, 1)

	for _, acct := range accounts {
		acct := acct
		events, err := watchDir(ctx, acct.LocalRoot, acct.Exclude)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("watch %s", acct.LocalRoot))
		}

		go func() {
			for range events {
				lock.Lock()
				changed[acct.Name] = true
				lock.Unlock()

				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}()
	}

	toSync := accounts
	for {
		if err := cmd.syncAll(ctx, toSync); err != nil {
			cmd.log.WithError(err).Warn("Synchronization failed. Waiting for the next change.")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-notify:
			lock.Lock()
			toSync = nil
			for _, acct := range accounts {
				if changed[acct.Name] {
					toSync = append(toSync, acct)
				}
			}
			changed = map[string]bool{}
			lock.Unlock()
			cmd.log.Debug("Local change detected")
		case <-cmd.clock.After(cmd.pollInterval):
			toSync = accounts
		}
	}
}
