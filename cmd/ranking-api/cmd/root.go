package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ahmethakanbesel/ranking-api/internal/client"
)

const (
	defaultServerURL    = "http://localhost:8080"
	defaultPollInterval = time.Second
)

// clientOptions are shared by every command that talks to a running server.
// Values resolve in order: flag, RANKING_API_* environment, config file,
// flag default.
type clientOptions struct {
	v       *viper.Viper
	cfgFile string
}

func (o *clientOptions) load() error {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			o.v.AddConfigPath(home)
		}
		o.v.SetConfigName(".ranking-api")
		o.v.SetConfigType("yaml")
	}

	o.v.SetEnvPrefix("RANKING_API")
	o.v.AutomaticEnv()

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (o *clientOptions) client() *client.Client {
	return client.New(o.v.GetString("url"))
}

func (o *clientOptions) pollInterval() time.Duration {
	if d := o.v.GetDuration("poll_interval"); d > 0 {
		return d
	}
	return defaultPollInterval
}

// NewRootCmd builds the command tree. A fresh tree is built per invocation
// so flag and config state never leak between runs.
func NewRootCmd() *cobra.Command {
	opts := &clientOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "ranking-api",
		Short: "Generate ranking compilation videos",
		Long: `ranking-api runs the ranking video service and talks to it.

Start the service:
  ranking-api serve

Submit a job and follow it until it finishes:
  ranking-api submit --niche "skateboarding fails" --count 5 --wait

Inspect jobs:
  ranking-api status <job-id>
  ranking-api list --status processing
  ranking-api cancel <job-id>

Configuration:
  The service reads its settings from the environment (or a .env file).
  Client commands read flags, then the environment, then $HOME/.ranking-api.yaml:
    RANKING_API_URL             server URL (default: http://localhost:8080)
    RANKING_API_POLL_INTERVAL   polling interval for --wait (default: 1s)`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.ranking-api.yaml)")
	flags.String("server", defaultServerURL, "ranking-api server URL")
	flags.Duration("poll-interval", defaultPollInterval, "status polling interval")
	_ = opts.v.BindPFlag("url", flags.Lookup("server"))
	_ = opts.v.BindPFlag("poll_interval", flags.Lookup("poll-interval"))

	root.AddCommand(
		newServeCmd(),
		newSubmitCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newCancelCmd(opts),
	)
	return root
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
