// Command stagehand runs the editor runtime for one project directory: the
// frame loop, the script host, the hot-reload watcher and the remote command
// port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/config"
	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stagehand/editor/internal/core/event"
	coresys "github.com/stagehand/editor/internal/core/system"
	"github.com/stagehand/editor/internal/editor"
	"github.com/stagehand/editor/internal/persist"
	"github.com/stagehand/editor/internal/project"
	"github.com/stagehand/editor/internal/remote"
	"github.com/stagehand/editor/internal/scene"
	"github.com/stagehand/editor/internal/scripting"
	"github.com/stagehand/editor/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgFlag := flag.String("config", "", "config file (default <project>/editor.toml)")
	profFlag := flag.String("profile", "", "write a cpu or mem profile to the working directory")
	hashFlag := flag.String("hash-password", "", "print the bcrypt hash for remote.password_hash and exit")
	flag.Parse()

	if *hashFlag != "" {
		hash, err := remote.HashPassword(*hashFlag)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	}

	switch *profFlag {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q", *profFlag)
	}

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}
	proj, err := project.OpenOrCreate(root)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}

	// 1. Config
	cfgPath := filepath.Join(proj.Root, config.FileName)
	if p := os.Getenv("STAGEHAND_CONFIG"); p != "" {
		cfgPath = p
	}
	if *cfgFlag != "" {
		cfgPath = *cfgFlag
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if lvl := os.Getenv("STAGEHAND_LOG"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	// 2. Logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log.Info("project opened", zap.String("root", proj.Root), zap.String("name", proj.Manifest.Name))

	sink := console.Default()
	sink.Resize(cfg.Scripting.ConsoleCapacity)

	// 3. Assets and world
	reg, err := asset.LoadRegistry(proj.RegistryPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Save(proj.RegistryPath()); err != nil {
			log.Warn("save asset registry", zap.Error(err))
		}
	}()
	loader := asset.NewFileLoader(proj.AssetsDir(), reg)
	world := ecs.NewWorld()
	bus := event.NewBus()

	// 4. Scripting
	backend, err := scripting.NewLuaBackend(scene.NewAccessor(world, reg, loader, log.Named("bridge")), sink, proj.ScriptsDir(), log.Named("lua"))
	if err != nil {
		return fmt.Errorf("lua backend: %w", err)
	}
	defer backend.Close()
	host := scripting.NewHost(backend, proj.ScriptsDir(),
		scripting.WithFlushDelay(cfg.Scripting.FlushDelay.Duration),
		scripting.WithConsole(sink),
		scripting.WithLogger(log.Named("scripts")),
	)

	// 5. Systems
	sched := coresys.NewScheduler(cfg.Editor.FixedTimestep.Duration, cfg.Editor.MaxFixedSteps, sink, log.Named("scheduler"))
	sched.Register(system.NewScriptSystem(host))
	sched.Register(system.NewEventDispatchSystem(bus))
	sched.Register(system.NewTransformSystem("event_dispatch"))
	sched.Register(system.NewCleanupSystem("transform_propagate"))

	templates, err := editor.LoadTemplates(proj.TemplatesDir())
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	log.Info("templates loaded", zap.Int("count", templates.Count()))

	// 6. Revision history
	var revisions editor.RevisionStore
	if cfg.Database.DSN != "" {
		dbCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(dbCtx); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		cancel()
		revisions = persist.NewSceneRepo(db)
	}

	ed, err := editor.New(editor.Deps{
		World:     world,
		Assets:    reg,
		Loader:    loader,
		Scheduler: sched,
		Host:      host,
		Bus:       bus,
		Console:   sink,
		Project:   proj,
		Templates: templates,
		Revisions: revisions,
		Log:       log.Named("editor"),
		QueueSize: cfg.Editor.CommandQueueSize,
	})
	if err != nil {
		return err
	}
	defer ed.Close()

	if p := proj.DefaultScenePath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			if resp := ed.Execute(editor.Load{Path: p}); !resp.OK {
				log.Warn("default scene not loaded", zap.String("path", p), zap.String("error", resp.Error.Message))
			}
		} else {
			ed.SetScene(p, proj.Manifest.DefaultScene)
		}
	}

	// 7. Run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ed.Run(ctx, cfg.Editor.TickRate.Duration) })

	if cfg.Remote.Enabled {
		h := remote.NewHandler(ed, cfg.Remote.PasswordHash, log.Named("remote"))
		srv, err := remote.Listen(cfg.Remote.Network, cfg.Remote.Address, h, remote.Options{
			OutQueueSize: cfg.Remote.OutQueueSize,
			ReadTimeout:  cfg.Remote.ReadTimeout.Duration,
			WriteTimeout: cfg.Remote.WriteTimeout.Duration,
			MaxLineBytes: cfg.Remote.MaxLineBytes,
		}, log.Named("remote"))
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("remote listen: %w", err)
		}
		g.Go(func() error { return srv.Serve(ctx) })

		if cfg.Remote.WebSocketAddress != "" {
			bridge, err := remote.NewWSBridge(cfg.Remote.WebSocketAddress, srv, log.Named("remote"))
			if err != nil {
				stop()
				_ = g.Wait()
				return fmt.Errorf("websocket listen: %w", err)
			}
			g.Go(func() error { return bridge.Serve(ctx) })
		}
	}

	if cfg.Scripting.Watch {
		changed := make(chan string, 64)
		ext := cfg.Scripting.Extension
		if proj.Manifest.ScriptExtension != "" {
			ext = proj.ScriptExtension()
		}
		watcher := scripting.NewWatcher(proj.ScriptsDir(), ext, cfg.Scripting.WatchInterval.Duration, log.Named("watch"))
		g.Go(func() error { return watcher.Run(ctx, changed) })
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case p := <-changed:
					if !ed.Post(editor.ReloadScript{Path: p}) {
						log.Warn("command queue full, reload dropped", zap.String("path", p))
					}
				}
			}
		})
	}

	log.Info("editor running", zap.Duration("tick", cfg.Editor.TickRate.Duration))
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("editor stopped")
	return err
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
