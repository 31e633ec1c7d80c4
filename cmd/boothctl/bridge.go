package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fraxinas/photobooth/internal/config"
	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/tweet"
)

type bridgeFlags struct {
	config string
	listen string
	status string
	dryRun bool
}

func newBridgeCmd() *cobra.Command {
	flags := &bridgeFlags{}

	cmd := &cobra.Command{
		Use:   "tweet-bridge",
		Short: "Post photo URLs received on a socket to Twitter",
		Long: `Listens on a TCP address for one URL per connection, downloads the
image and posts it with the configured status text. Credentials come from
the bridge section of the config file or the PHOTOBOOTH_TWITTER_*
environment variables.`,
		Example: `  # Verify the credentials and serve on the configured address
  boothctl tweet-bridge --config configs/photobooth.yaml

  # Try the booth without posting
  boothctl tweet-bridge --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBridgeConfig(flags)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runBridge(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Path to the photobooth config file (defaults apply when empty)")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "Override bridge.listen")
	cmd.Flags().StringVar(&flags.status, "status", "", "Override the status text")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Log posts instead of sending them")

	return cmd
}

func loadBridgeConfig(flags *bridgeFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.config != "" {
		cfg, err = config.Load(flags.config)
	} else {
		cfg, err = config.Parse([]byte("{}"))
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.listen != "" {
		cfg.Bridge.Listen = flags.listen
	}
	if flags.status != "" {
		cfg.Bridge.Status = flags.status
	}
	if flags.dryRun {
		cfg.Bridge.DryRun = true
	}
	return cfg, nil
}

// newPoster verifies the account before the bridge starts listening.
func newPoster(ctx context.Context, cfg *config.Config, ep tweet.Endpoints) (tweet.Poster, error) {
	if cfg.Bridge.DryRun {
		return tweet.LogPoster{}, nil
	}
	tw, err := tweet.NewTwitter(ctx, cfg.Bridge.Credentials, ep)
	if err != nil {
		return nil, err
	}
	name, err := tw.Verify(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	debug.Info("Posting as @%s", name)
	return tw, nil
}

func runBridge(ctx context.Context, cfg *config.Config) error {
	debug.Init(max(cfg.Defaults.DebugLevel, debug.LevelInfo))

	poster, err := newPoster(ctx, cfg, tweet.DefaultEndpoints)
	if err != nil {
		return err
	}
	b := tweet.NewBridge(poster, tweet.BridgeOptions{
		MaxURLBytes:     cfg.Bridge.MaxURLBytes,
		ReadTimeout:     cfg.BridgeReadTimeout(),
		DownloadTimeout: cfg.BridgeDownloadTimeout(),
		MaxImageBytes:   cfg.Bridge.MaxImageBytes,
		TempFile:        cfg.Bridge.TempFile,
		Status:          cfg.Bridge.Status,
	})
	return b.ListenAndServe(ctx, cfg.Bridge.Listen)
}
