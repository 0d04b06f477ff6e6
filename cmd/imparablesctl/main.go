package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "imparablesctl",
		Short: "Admin panel client for the Imparables CMS",
		Long: `imparablesctl logs editors and admins into the Imparables CMS API,
keeps the session in a local file or in Redis, and warns before it expires.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", "", "API base URL (default from IMPARABLES_API_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.backend, "session-backend", "", "session storage: file, redis or memory")

	rootCmd.AddCommand(
		loginCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
		usersCmd(opts),
		watchCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "imparablesctl %s (%s)\n", version, commit)
		},
	}
}
