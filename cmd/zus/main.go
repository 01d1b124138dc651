// Command zus packs raw frame files into aligned zstd packs and unpacks them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/zus"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app holds state shared by all commands of one invocation.
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		out:    stdout,
		errOut: stderr,
	}

	cmd := &cobra.Command{
		Use:               "zus",
		Short:             "Pack and unpack aligned zstd frame archives",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (default ./zus.yaml)")
	pf.String("log-level", "warn", "Log level: debug, info, warn, or error")

	cmd.AddCommand(
		a.packCommand(),
		a.inspectCommand(),
		a.unpackCommand(),
		a.indexCommand(),
	)
	return cmd
}

// setup loads configuration from flags, ZUS_* environment variables, and an
// optional config file, in that order of precedence.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.v.SetEnvPrefix("ZUS")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		a.v.SetConfigName("zus")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("loaded config", "path", used)
	}
	return nil
}

// openPack maps a pack, seeding the reader from a sidecar index when one is
// configured.
func (a *app) openPack(path string) (*zus.File, error) {
	opts := []zus.ReaderOption{zus.WithReaderLogger(a.logger)}
	if idxPath := a.v.GetString("index"); idxPath != "" {
		data, err := os.ReadFile(idxPath) //nolint:gosec // user-supplied path
		if err != nil {
			return nil, err
		}
		idx, err := zus.LoadIndex(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", idxPath, err)
		}
		opts = append(opts, zus.WithFrameIndex(idx))
	}
	return zus.Open(path, opts...)
}
