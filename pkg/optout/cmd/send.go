package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/optout-tools/optout/pkg/history"
	"github.com/optout-tools/optout/pkg/mail"
	"github.com/optout-tools/optout/pkg/metrics"
	"github.com/optout-tools/optout/pkg/optout/config"
	"github.com/optout-tools/optout/pkg/optout/directory"
	"github.com/optout-tools/optout/pkg/optout/output"
	"github.com/optout-tools/optout/pkg/optout/run"
)

// listProfiles is the value --profile takes when given without a name.
const listProfiles = "?"

type sendOptions struct {
	list    bool
	profile string
	rng     string
	resume  bool
	refresh bool
	dryRun  bool
	yes     bool
}

func newSendCommand() *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "optout [--profile NAME] [--range RANGE]",
		Short: "Send CPRA opt-out requests to data brokers",
		Long: `Send a California Privacy Rights Act opt-out and deletion request to every
data broker in the directory, one email per broker through your mail account's
SMTP relay.

Ranges use the ids shown by --list: 1-50, 435-, -50 or a single id. When the
relay's daily sending limit is reached the run stops and prints the command
that continues it.`,
		Example: `  optout --list
  optout --profile
  optout --profile work --range 1-50
  optout --profile=work --resume --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.profile == listProfiles {
				if len(args) == 1 {
					opts.profile = args[0]
				} else {
					return runListProfiles(cmd)
				}
			} else if len(args) == 1 {
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			if opts.list {
				return runListBrokers(cmd, opts)
			}
			return runSend(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.list, "list", false, "List every broker with its id and exit")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Sender profile; without a name, list the configured profiles. Write --profile=NAME when NAME is also a subcommand (default \""+config.DefaultProfile+"\")")
	cmd.Flags().Lookup("profile").NoOptDefVal = listProfiles
	cmd.Flags().StringVar(&opts.rng, "range", "", "Brokers to send to: 1-50, 435-, -50 or 7 (default all)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Start after the last broker this profile sent to")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "Download a fresh copy of the broker directory first")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the messages instead of sending them")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.MarkFlagsMutuallyExclusive("range", "resume")

	return cmd
}

func loadBrokers(cmd *cobra.Command, rt *runtimeState, cfg *config.Config, refresh bool) ([]directory.Broker, error) {
	dir := &directory.Directory{Path: cfg.Directory.Path, URL: cfg.Directory.URL, Logger: rt.Logger()}
	if refresh {
		if err := dir.Refresh(cmd.Context()); err != nil {
			return nil, err
		}
	}
	return dir.Load(cmd.Context())
}

func runListBrokers(cmd *cobra.Command, opts *sendOptions) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	cfg, err := rt.configOrDefault()
	if err != nil {
		return err
	}
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	brokers, err := loadBrokers(cmd, rt, cfg, opts.refresh)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		output.WriteBrokerTable(rt.Writer(), brokers)
		return nil
	}
	return output.WriteObject(rt.Writer(), format, brokers)
}

func runListProfiles(cmd *cobra.Command) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	if err := rt.EnsureConfigLoaded(); err != nil {
		return err
	}
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	names := rt.cfg.ProfileNames()
	if format == output.FormatTable {
		output.WriteProfileList(rt.Writer(), names, config.DefaultProfile)
		return nil
	}
	return output.WriteObject(rt.Writer(), format, names)
}

func runSend(cmd *cobra.Command, opts *sendOptions) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	if err := rt.EnsureConfigLoaded(); err != nil {
		return err
	}
	cfg := rt.cfg
	log := rt.Logger()

	name := opts.profile
	if name == "" {
		name = config.DefaultProfile
	}
	profile, err := cfg.Profile(name)
	if err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	pace, err := cfg.SendDelay()
	if err != nil {
		return err
	}

	brokers, err := loadBrokers(cmd, rt, cfg, opts.refresh)
	if err != nil {
		return err
	}

	var store *history.Store
	if !opts.dryRun || opts.resume {
		store, err = history.Open(cfg.Settings.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	rng := directory.All
	switch {
	case opts.resume:
		last, ok, err := store.LastSent(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("read send history: %w", err)
		}
		if ok {
			rng = directory.Range{Start: last + 1}
		}
		if rng.Start > len(brokers) {
			_, _ = fmt.Fprintf(rt.Writer(), "Profile %q has already sent to all %d brokers.\n", name, len(brokers))
			return nil
		}
	case opts.rng != "":
		rng, err = directory.ParseRange(opts.rng)
		if err != nil {
			return err
		}
	}
	targets, err := directory.Filter(brokers, rng)
	if err != nil {
		return err
	}

	var credential string
	if !opts.dryRun {
		credential, err = profile.ResolveCredential()
		if err != nil {
			return err
		}
		if !opts.yes {
			ok, err := confirm(cmd.InOrStdin(), rt.Writer(), confirmation(name, rng, targets, len(brokers)))
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(rt.Writer(), "Aborted.")
				return nil
			}
		}
	}

	dialer := mail.NewDialer(mail.RelayConfig{
		Host:               cfg.Relay.Host,
		Port:               cfg.Relay.Port,
		SSL:                cfg.Relay.SSL,
		InsecureSkipVerify: cfg.Relay.InsecureSkipVerify,
		LocalName:          cfg.Relay.LocalName,
	})
	ctrl := &run.Controller{Connector: dialer, Pace: pace, Logger: log, Out: rt.Writer()}
	if store != nil && !opts.dryRun {
		ctrl.Recorder = store
	}

	res := ctrl.Execute(cmd.Context(), run.Plan{
		RunID:      uuid.NewString(),
		Profile:    profile,
		Credential: credential,
		Targets:    targets,
		Range:      rng,
		DryRun:     opts.dryRun,
	})

	if err := metrics.WriteTextfile(cfg.Settings.MetricsTextfile); err != nil {
		log.Warnw("Could not write metrics textfile", "path", cfg.Settings.MetricsTextfile, "error", err)
	}
	if opts.dryRun {
		return res.Err
	}

	run.Report(rt.Writer(), res, cmd.Root().Name(), name)
	switch res.State {
	case run.StatePaused:
		return &ExitError{Code: ExitPaused, Err: res.Err, Quiet: true}
	case run.StateFailed:
		if res.FailedID != 0 {
			return fmt.Errorf("stopped at broker #%d after %d sent: %w", res.FailedID, res.Sent, res.Err)
		}
		return res.Err
	}
	return nil
}

func confirmation(profile string, rng directory.Range, targets []directory.Broker, total int) string {
	if rng == directory.All {
		return fmt.Sprintf("You are about to send emails to ALL %d brokers listed using profile '%s'.", total, profile)
	}
	last := targets[len(targets)-1].ID
	return fmt.Sprintf("You are about to send %d emails to brokers #%d through #%d using profile '%s'.", len(targets), rng.Start, last, profile)
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	_, _ = fmt.Fprintln(out, prompt)
	_, _ = fmt.Fprint(out, "Continue? (y/n): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
