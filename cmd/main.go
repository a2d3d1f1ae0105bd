package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/terabiome/golem/internal/config"
	"github.com/terabiome/golem/internal/image"
	"github.com/terabiome/golem/internal/initramfs"
	"github.com/terabiome/golem/internal/run"
	"github.com/terabiome/golem/pkg/constants"
	"github.com/terabiome/golem/pkg/executor"
	"github.com/terabiome/golem/pkg/logger"
	"github.com/terabiome/golem/pkg/proc"
	"github.com/terabiome/golem/pkg/telemetry"
	"github.com/terabiome/golem/pkg/templator"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	if cfg.TelemetryEnabled {
		tel, err := telemetry.Initialize("golem")
		if err != nil {
			log.Error("failed to initialize telemetry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	app := &cli.App{
		Name:                 "golem",
		Usage:                "Assemble and manipulate bootable workload images",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "workload",
				Aliases: []string{"w"},
				Usage:   "Workload configuration path (names the run)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show all log levels on the console",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "One-time workspace setup (initramfs tree, busybox, kernel patches)",
				Action: func(cliCtx *cli.Context) error {
					rctx, err := newRunContext(cfg, cliCtx, "init")
					if err != nil {
						return err
					}
					defer rctx.Close()

					init := newInitializer(cfg, rctx.Logger())
					return init.Setup(ctx)
				},
			},
			{
				Name:  "image",
				Usage: "Operate on workload disk images",
				Action: func(c *cli.Context) error {
					fmt.Println("use subcommand instead:")
					for _, subcmd := range c.Command.Subcommands {
						fmt.Printf("\t - %s %s %s\n", c.App.Name, c.Command.Name, subcmd.Name)
					}
					return nil
				},
				Subcommands: []*cli.Command{
					{
						Name:      "cp",
						Usage:     "Copy files into or out of an image",
						ArgsUsage: "<image> <src:dst>...",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "direction",
								Aliases: []string{"d"},
								Usage:   "Transfer direction: in or out",
								Value:   "in",
							},
						},
						Action: func(cliCtx *cli.Context) error {
							rctx, err := newRunContext(cfg, cliCtx, "cp")
							if err != nil {
								return err
							}
							defer rctx.Close()

							args := cliCtx.Args().Slice()
							if len(args) < 2 {
								return errors.New("need an image path and at least one src:dst pair")
							}

							specs, err := parseSpecs(args[1:])
							if err != nil {
								return err
							}

							mgr := newImageManager(cfg, rctx.Logger())
							return mgr.CopyFiles(ctx, args[0], specs, image.Direction(cliCtx.String("direction")))
						},
					},
					{
						Name:      "overlay",
						Usage:     "Apply an overlay directory onto an image's root",
						ArgsUsage: "<image> <overlay-dir>",
						Action: func(cliCtx *cli.Context) error {
							rctx, err := newRunContext(cfg, cliCtx, "overlay")
							if err != nil {
								return err
							}
							defer rctx.Close()

							if cliCtx.NArg() != 2 {
								return errors.New("need an image path and an overlay directory")
							}

							mgr := newImageManager(cfg, rctx.Logger())
							return mgr.ApplyOverlay(ctx, cliCtx.Args().Get(0), cliCtx.Args().Get(1))
						},
					},
					{
						Name:      "to-cpio",
						Usage:     "Convert a disk image into an initramfs cpio archive",
						ArgsUsage: "<image> <output.cpio>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "distro",
								Usage: "Distro of the image (selects the append blob)",
							},
						},
						Action: func(cliCtx *cli.Context) error {
							rctx, err := newRunContext(cfg, cliCtx, "to-cpio")
							if err != nil {
								return err
							}
							defer rctx.Close()

							if cliCtx.NArg() != 2 {
								return errors.New("need an image path and an output path")
							}

							distro := cliCtx.String("distro")
							if distro == "" {
								distro = cfg.Distro
							}

							mgr := newImageManager(cfg, rctx.Logger())
							return mgr.ToCpio(ctx, distro, cliCtx.Args().Get(0), cliCtx.Args().Get(1))
						},
					},
				},
			},
			{
				Name:      "runscript",
				Usage:     "Generate the boot command script for a workload command",
				ArgsUsage: "<command>",
				Action: func(cliCtx *cli.Context) error {
					if cliCtx.NArg() < 1 {
						return errors.New("need a command to wrap")
					}

					engine := templator.NewEngine()
					if err := engine.LoadTemplate(constants.TemplateRunScript, cfg.RunScriptTemplate); err != nil {
						return err
					}

					command := strings.Join(cliCtx.Args().Slice(), " ")
					path, err := image.WriteRunScript(engine, cfg.CommandScript, command)
					if err != nil {
						return err
					}

					fmt.Println(path)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newRunContext names the run after the workload config and operation, then
// points logging at the run's log file.
func newRunContext(cfg *config.Config, cliCtx *cli.Context, operation string) (*run.Context, error) {
	rctx := run.New(cfg.LogDir, cliCtx.String("workload"), operation)
	if err := rctx.InitLogging(cliCtx.Bool("verbose")); err != nil {
		return nil, err
	}
	rctx.Logger().Info("run started", slog.String("run", rctx.Name()))
	return rctx, nil
}

func newImageManager(cfg *config.Config, log *slog.Logger) *image.Manager {
	runner := executor.NewRunner(executor.NewLocal(log), log)
	waiter := proc.NewPollWaiter(log)
	return image.NewManager(runner, waiter, log, cfg.MountDir, cfg.CpioAppendsDir)
}

func newInitializer(cfg *config.Config, log *slog.Logger) *initramfs.Initializer {
	exec := executor.NewLocal(log)
	runner := executor.NewRunner(exec, log)
	return initramfs.NewInitializer(exec, runner, log, initramfs.Options{
		Root:          cfg.InitramfsRoot,
		BusyboxDir:    cfg.BusyboxDir,
		BusyboxConfig: cfg.BusyboxConfig,
		BoardDir:      cfg.BoardDir,
		LinuxDir:      cfg.LinuxDir,
		Jobs:          cfg.Jobs,
	})
}

// parseSpecs turns src:dst arguments into FileSpecs.
func parseSpecs(args []string) ([]image.FileSpec, error) {
	specs := make([]image.FileSpec, 0, len(args))
	for _, arg := range args {
		src, dst, ok := strings.Cut(arg, ":")
		if !ok || src == "" || dst == "" {
			return nil, fmt.Errorf("malformed file spec %q: want src:dst", arg)
		}
		specs = append(specs, image.FileSpec{Src: src, Dst: dst})
	}
	return specs, nil
}
