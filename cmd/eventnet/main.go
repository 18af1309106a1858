package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zeusync/eventnet/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// options are the flags shared by every command. Non-empty values override
// the config file.
type options struct {
	configPath string
	transport  string
	logLevel   string
}

func (o *options) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.transport != "" {
		cfg.Transport = o.transport
	}
	if o.logLevel != "" {
		if err = cfg.Log.Level.UnmarshalText([]byte(o.logLevel)); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "eventnet",
		Short: "Length-prefixed packet transport over WebSocket or TCP",
		Long: `eventnet moves kind-tagged binary packets between peers.

Every packet is CBOR-encoded and framed with an 8 byte little-endian
length prefix, over either WebSocket binary messages or raw TCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&opts.transport, "transport", "t", "", "websocket or tcp")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(
		serveCmd(opts),
		dialCmd(opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eventnet %s (%s)\n", version, commit)
		},
	}
}
