package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/duel-room-server/internal/carddb"
	"github.com/DoyleJ11/duel-room-server/internal/config"
	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/coreprovider"
	"github.com/DoyleJ11/duel-room-server/internal/httpapi"
	"github.com/DoyleJ11/duel-room-server/internal/hub"
	"github.com/DoyleJ11/duel-room-server/internal/logging"
	"github.com/DoyleJ11/duel-room-server/internal/replay"
	"github.com/DoyleJ11/duel-room-server/internal/resources"
	"github.com/DoyleJ11/duel-room-server/internal/roomhost"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cards, err := carddb.Open(cfg.CardDBs...)
	if err != nil {
		return err
	}
	defer cards.Close()

	banlists := resources.NewBanlists(cfg.BanlistDir, log.Named("banlists"))
	if _, err := banlists.Reload(); err != nil {
		return err
	}
	scripts := resources.NewScripts(cfg.ScriptDirs, log.Named("scripts"))

	replays, err := openReplays(cfg)
	if err != nil {
		return err
	}
	defer replays.Close()

	engines, err := coreprovider.New(coreprovider.Options{
		Dir:         cfg.CoreDir,
		FileRegex:   cfg.CoreFileRegex,
		TmpDir:      cfg.CoreTmpDir,
		LoadPerCall: cfg.CoreLoadPerCall,
	}, loader(cfg, log.Named("core")), log.Named("coreprovider"))
	if err != nil {
		return err
	}
	defer engines.Close()

	h := hub.NewHub(context.Background(), hub.Deps{
		Engines:             engines,
		Cards:               cards,
		Scripts:             scripts,
		Banlists:            banlists,
		Replays:             replays,
		Sink:                logging.NewSink(log.Named("engine")),
		Log:                 log.Named("room"),
		MaxConnectionsPerIP: cfg.MaxConnectionsPerIP,
	})
	hosting := roomhost.NewServer(h, banlists, roomhost.Options{}, log.Named("hosting"))

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Rooms:        h,
			Hosting:      hosting,
			Engines:      engines,
			Banlists:     banlists,
			Replays:      replays,
			WebhookToken: cfg.WebhookToken,
			ListingTTL:   2 * time.Second,
			Log:          log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hosting.ListenAndServe(gctx, cfg.HostingAddr)
	})
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if n := h.Close(sctx); n > 0 {
			log.Info("rooms still dueling at shutdown", zap.Int("rooms", n))
		}
		h.Shutdown()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}

func openReplays(cfg config.Config) (replay.Store, error) {
	if cfg.ReplayDSN != "" {
		return replay.OpenPostgres(cfg.ReplayDSN)
	}
	return replay.OpenSQLite(cfg.ReplaySQLitePath)
}

func loader(cfg config.Config, log *zap.Logger) coreprovider.Loader {
	return func(path string) (core.Binding, error) {
		switch cfg.CoreType {
		case config.CoreTypeHornet:
			h, err := core.SpawnHornet(cfg.HornetPath, path, cfg.HornetTimeout, log)
			if err != nil {
				return nil, err
			}
			return h, nil
		default:
			p, err := core.OpenPlugin(path)
			if err != nil {
				return nil, err
			}
			return p, nil
		}
	}
}
