package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/vending/vending-gui/config"
	"github.com/vending/vending-gui/internal/adapter/controller"
)

const (
	ServiceName      = "vending-gui"
	ServiceNamespace = "vending"

	// DefaultUILogFile receives logs while termui owns the terminal.
	DefaultUILogFile = "vending-gui.log"
)

var (
	version = "0.0.0"
	commit  = "hash"
)

// globalKeys maps global CLI flags onto config keys.
var globalKeys = map[string]string{
	"type":       "machine.type",
	"instance":   "machine.instance_id",
	"controller": "controller.base_url",
	"transport":  "controller.stream_transport",
	"log-level":  "log.level",
}

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Display and control client for a vending machine controller",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file (yaml, toml or json)",
				EnvVars: []string{"VENDING_CONFIG"},
			},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Vending machine type"},
			&cli.IntFlag{Name: "instance", Aliases: []string{"i"}, Usage: "Vending machine instance id"},
			&cli.StringFlag{Name: "controller", Usage: "Controller base url"},
			&cli.StringFlag{Name: "transport", Usage: "Event stream transport (sse|ws)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (debug|info|warn|error)"},
		},
		Commands: []*cli.Command{
			uiCmd(),
			watchCmd(),
			serveCmd(),
			creditCmd(),
			selectCmd(),
			withdrawCmd(),
		},
	}

	return app.Run(os.Args)
}

func uiCmd() *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Run the terminal dashboard",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			// the dashboard owns stderr
			if cfg.Log.File == "" {
				cfg.Log.File = DefaultUILogFile
			}
			return runApp(c.Context, NewUIApp(cfg))
		},
	}
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run a headless session and log every state change",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return runApp(c.Context, NewWatchApp(cfg))
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run a headless session behind the local HTTP surface",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.HTTP.Addr = c.String("addr")
			}
			return runApp(c.Context, NewServeApp(cfg))
		},
	}
}

func creditCmd() *cli.Command {
	return &cli.Command{
		Name:      "credit",
		Usage:     "Insert a coin",
		ArgsUsage: "<amount>",
		Action: oneShot(func(ctx context.Context, c *cli.Context, commands controller.Commander) error {
			amount, err := strconv.Atoi(c.Args().First())
			if err != nil {
				return fmt.Errorf("credit %q: %w", c.Args().First(), controller.ErrInvalidAmount)
			}
			return commands.InsertCredit(ctx, amount)
		}),
	}
}

func selectCmd() *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Select a product",
		ArgsUsage: "<code>",
		Action: oneShot(func(ctx context.Context, c *cli.Context, commands controller.Commander) error {
			return commands.SelectProduct(ctx, c.Args().First())
		}),
	}
}

func withdrawCmd() *cli.Command {
	return &cli.Command{
		Name:  "withdraw",
		Usage: "Withdraw the inserted credit",
		Action: oneShot(func(ctx context.Context, _ *cli.Context, commands controller.Commander) error {
			return commands.WithdrawCredit(ctx)
		}),
	}
}

// loadConfig layers global flags over file and environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	fs := config.Flags()
	for flag, key := range globalKeys {
		if !c.IsSet(flag) {
			continue
		}
		if err := fs.Set(key, fmt.Sprint(c.Value(flag))); err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
	}
	return config.LoadConfig(c.String("config"), fs)
}

// runApp starts app and blocks until a signal or a module asks to shut
// down. A non-zero exit code from the shutdown is returned as cli.Exit.
func runApp(ctx context.Context, app *fx.App) error {
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	sig := <-app.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}

	if sig.ExitCode != 0 {
		return cli.Exit("", sig.ExitCode)
	}
	return nil
}

func oneShot(run func(context.Context, *cli.Context, controller.Commander) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		var commands controller.Commander
		app := NewCommandApp(cfg, &commands)
		if err := app.Err(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context, cfg.Controller.Timeout)
		defer cancel()

		if err := app.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = app.Stop(context.Background()) }()

		return run(ctx, c, commands)
	}
}
