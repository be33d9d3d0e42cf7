package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/labstack/echo/v5"

	"github.com/playkit/dtg/internal/api"
	"github.com/playkit/dtg/internal/app"
	"github.com/playkit/dtg/internal/infra/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "dtg",
		Short: "dtg downloads HLS streams for offline playback",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(
		addCmd(),
		startCmd(),
		pauseCmd(),
		resumeCmd(),
		cancelCmd(),
		removeCmd(),
		listCmd(),
		serveCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withContext(fn func(*app.Context, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		ctx, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("startup error: %w", err)
		}
		defer ctx.Close()
		return fn(ctx, cmd, args)
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <master-playlist-url>",
		Short: "Localize a master playlist and plan its downloads",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			item, err := ctx.Mgr.Add(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("added item %s (estimated %d bytes)\n", item.ID, item.EstimatedSize)
			return nil
		}),
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <item-id>",
		Short: "Start (or resume) downloading an item",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			return ctx.Mgr.Start(args[0])
		}),
	}
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <item-id>",
		Short: "Pause an in-progress item",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			return ctx.Mgr.Pause(args[0])
		}),
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <item-id>",
		Short: "Resume a paused item",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			return ctx.Mgr.Resume(args[0])
		}),
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <item-id>",
		Short: "Cancel an item's active session",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			return ctx.Mgr.Cancel(args[0])
		}),
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item and its downloaded files",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			return ctx.Mgr.Remove(args[0])
		}),
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked items and their progress",
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			for _, item := range ctx.Mgr.ListItems() {
				fmt.Printf("%s\t%s\t%d/%d bytes\t%s\n", item.ID, item.State,
					item.DownloadedSize.Load(), item.EstimatedSize, item.SourceURL)
			}
			return nil
		}),
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the loopback playback and status server",
		RunE: withContext(func(ctx *app.Context, cmd *cobra.Command, args []string) error {
			e := echo.New()
			itemsRoot := ctx.Config.Download.RootDir + "/items"
			api.RegisterRoutes(e, ctx.Mgr, itemsRoot, ctx.Logger)

			// A configured port of 0 means "pick a free loopback port";
			// listening ourselves lets us log the resolved address before
			// handing the listener to echo.
			ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", ctx.Config.Playback.Port))
			if err != nil {
				return fmt.Errorf("could not bind playback server: %w", err)
			}
			ctx.Logger.Info("playback server listening on %s", ln.Addr())
			srv := &http.Server{Handler: e}

			sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			select {
			case <-sigCtx.Done():
				return srv.Close()
			case err := <-errCh:
				return err
			}
		}),
	}
}
