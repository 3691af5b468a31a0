package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/optout-tools/optout/pkg/optout/config"
)

func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage relay credentials in the OS keyring",
	}
	cmd.AddCommand(newCredentialSetCommand())
	return cmd
}

func newCredentialSetCommand() *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the relay password of a profile in the OS keyring",
		Long: `Read the relay password (for Gmail, an app password) from stdin and store it
in the OS keyring under the profile's sender address. Set
"sender_credential_keyring": true in the profile to use it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			p, err := rt.cfg.Profile(profile)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s: ", p.Sender())
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if err := config.StoreCredential(p.Sender(), strings.TrimSpace(line)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Stored credential for profile %q in the keyring.\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", config.DefaultProfile, "Profile whose sender password to store")
	return cmd
}
