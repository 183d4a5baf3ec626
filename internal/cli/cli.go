package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffersonwarrior/asynchttp/internal/config"
	"github.com/jeffersonwarrior/asynchttp/internal/version"
)

// CLI represents the command-line interface
type CLI struct {
	rootCmd *cobra.Command
	out     io.Writer
	errOut  io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI() *CLI {
	cli := &CLI{
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	cli.rootCmd = &cobra.Command{
		Use:   "asynchttp",
		Short: "asynchttp - asynchronous HTTP client with bearer-token retry",
		Long: `asynchttp drives HTTP requests through a non-blocking request manager.
Requests made on behalf of a user are authorized with locally issued bearer
tokens and retried with a refreshed token when the server answers 401.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.setupFlags()
	cli.rootCmd.AddCommand(
		cli.newFetchCommand(),
		cli.newTokenCommand(),
		cli.newVersionCommand(),
	)

	return cli
}

// setupFlags sets up command line flags
func (cli *CLI) setupFlags() {
	cli.rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to configuration file")
	cli.rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig loads the configuration file and applies persistent flag overrides
func (cli *CLI) loadConfig() (*config.Config, error) {
	path, _ := cli.rootCmd.PersistentFlags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, err := cli.rootCmd.PersistentFlags().GetString("log-level"); err == nil && level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func (cli *CLI) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cli.out, "asynchttp version %s\n", version.Version())
			return err
		},
	}
}

// SetOutput redirects command output.
func (cli *CLI) SetOutput(out, errOut io.Writer) {
	cli.out = out
	cli.errOut = errOut
	cli.rootCmd.SetOut(out)
	cli.rootCmd.SetErr(errOut)
}

// SetArgs overrides os.Args, for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

// Execute executes the CLI. Cancelling ctx interrupts running requests.
func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}
