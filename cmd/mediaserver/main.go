package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/JustinTDCT/mediaserver/internal/admin"
	"github.com/JustinTDCT/mediaserver/internal/auth"
	"github.com/JustinTDCT/mediaserver/internal/cache"
	"github.com/JustinTDCT/mediaserver/internal/config"
	"github.com/JustinTDCT/mediaserver/internal/db"
	"github.com/JustinTDCT/mediaserver/internal/httpapi"
	"github.com/JustinTDCT/mediaserver/internal/indexer"
	"github.com/JustinTDCT/mediaserver/internal/jobs"
	"github.com/JustinTDCT/mediaserver/internal/library"
	"github.com/JustinTDCT/mediaserver/internal/metadata"
	"github.com/JustinTDCT/mediaserver/internal/models"
	"github.com/JustinTDCT/mediaserver/internal/network"
	"github.com/JustinTDCT/mediaserver/internal/probe"
	"github.com/JustinTDCT/mediaserver/internal/progress"
	"github.com/JustinTDCT/mediaserver/internal/scheduler"
	"github.com/JustinTDCT/mediaserver/internal/search"
	"github.com/JustinTDCT/mediaserver/internal/source"
	"github.com/JustinTDCT/mediaserver/internal/store"
	"github.com/JustinTDCT/mediaserver/internal/streamhttp"
	"github.com/JustinTDCT/mediaserver/internal/subtitles"
	"github.com/JustinTDCT/mediaserver/internal/transcode"
	"github.com/JustinTDCT/mediaserver/internal/version"
	"github.com/JustinTDCT/mediaserver/internal/watch"
	"github.com/JustinTDCT/mediaserver/internal/watcher"
)

const bannerArt = `
  __  __          _ _       ____
 |  \/  | ___  __| (_) __ _/ ___|  ___ _ ____   _____ _ __
 | |\/| |/ _ \/ _` + "`" + ` | |/ _` + "`" + ` \___ \ / _ \ '__\ \ / / _ \ '__|
 | |  | |  __/ (_| | | (_| |___) |  __/ |   \ V /  __/ |
 |_|  |_|\___|\__,_|_|\__,_|____/ \___|_|    \_/ \___|_|
`

func main() {
	fmt.Println(bannerArt)
	fmt.Printf("  version %s\n\n", version.Load().Version)

	cfg := config.Load()

	conn, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer conn.Close()

	if err := db.Migrate(conn, "migrations"); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	cfg.MergeFromDB(conn)

	st := store.New(conn)

	cipher, err := source.NewCredentialCipher(cfg.ServerSecret)
	if err != nil {
		log.Fatalf("credential cipher: %v", err)
	}

	pool := source.NewPool(func(sourceID int64) (source.ProtocolClient, error) {
		src, err := st.GetSource(sourceID)
		if err != nil {
			return nil, err
		}
		creds, err := cipher.Decrypt(src.EncryptedCredential)
		if err != nil {
			return nil, err
		}
		return source.BuildClient(src, creds)
	})
	defer pool.CloseAll()

	issuer := auth.NewIssuer(cfg.ServerSecret, cfg.CredentialTTL)
	middleware := auth.NewMiddleware(issuer, st)
	authHandler := auth.NewHandler(st, issuer)

	hub := progress.NewHub()

	queue := jobs.NewQueue(cfg.RedisAddr)

	scanner := indexer.NewScanner(st, queue, hub)

	prober := probe.New(cfg.FFprobePath)
	transcoder := transcode.New(cfg.FFmpegPath)

	cacheMgr := cache.New(cfg.CacheRoot, cfg.CacheSizeCapBytes, cfg.CacheTTL)
	if err := cacheMgr.Start(); err != nil {
		log.Fatalf("cache manager start: %v", err)
	}
	defer cacheMgr.Stop()

	streamer := streamhttp.New(st, pool, prober, transcoder, cacheMgr, queue)

	provider := metadata.NewTMDBProvider(cfg.MetadataAPIKey, cfg.MetadataLanguage)
	metadataHandler := jobs.NewMetadataHandler(st, provider)
	hlsHandler := jobs.NewHLSHandler(st, transcoder, cacheMgr.Root(), cfg.SegmentDurationSec)
	queue.RegisterHandler(jobs.TaskMetadataEnrich, metadataHandler)
	queue.RegisterHandler(jobs.TaskGenerateHLS, hlsHandler)

	go func() {
		if err := queue.Start(context.Background()); err != nil {
			log.Printf("job queue worker stopped: %v", err)
		}
	}()
	defer queue.Stop()

	transcoderCtx, cancelTranscoder := context.WithCancel(context.Background())
	go func() {
		if err := transcoder.Serve(transcoderCtx); err != nil {
			log.Printf("transcoder supervisor stopped: %v", err)
		}
	}()
	defer cancelTranscoder()

	deps := httpapi.Deps{
		Issuer:      issuer,
		AuthHandler: authHandler,
		Middleware:  middleware,
		Library:     library.NewHandlers(st, scanner, pool),
		Streamer:    streamer,
		Subtitles:   subtitles.NewHandlers(st),
		Network:     network.NewHandlers(st, pool, cipher),
		Watch:       watch.NewHandlers(st),
		Search:      search.NewHandler(st),
		Admin:       admin.NewHandlers(st, cacheMgr),
		Progress:    hub,
	}
	router := httpapi.NewRouter(deps)

	// Filesystem watch covers Local sources only — FTP/SMB/UPnP have no
	// change-notification API, so those rely on the scheduled-scan checker
	// below instead.
	fsWatcher, err := watcher.New(func(sourceID int64, path string, isCreate bool) {
		src, err := st.GetSource(sourceID)
		if err != nil {
			log.Printf("[watcher] source lookup error: %v", err)
			return
		}
		if !isCreate {
			log.Printf("[watcher] %s removed under source %q (no availability flag to clear)", path, src.Name)
			return
		}
		client, err := pool.Acquire(context.Background(), sourceID, path)
		if err != nil {
			log.Printf("[watcher] acquire connection error: %v", err)
			return
		}
		if err := scanner.StartAsync(context.Background(), src, client); err != nil {
			log.Printf("[watcher] scan dispatch error for %s: %v", path, err)
		}
	})
	if err != nil {
		log.Printf("filesystem watcher failed to start: %v", err)
	} else {
		sources, err := st.ListSources()
		if err != nil {
			log.Printf("[watcher] could not list sources to watch: %v", err)
		}
		for _, src := range sources {
			if !src.Enabled || src.Protocol != models.ProtocolLocal || src.BasePath == nil {
				continue
			}
			fsWatcher.WatchSource(src.ID, *src.BasePath)
		}
		fsWatcher.Start()
		defer fsWatcher.Stop()
	}

	scanScheduler := scheduler.New(st, func(src *models.Source) {
		client, err := pool.Acquire(context.Background(), src.ID, "/")
		if err != nil {
			log.Printf("[scheduler] acquire connection error for %q: %v", src.Name, err)
			return
		}
		if _, err := scanner.Scan(context.Background(), src, client); err != nil {
			log.Printf("[scheduler] scan error for %q: %v", src.Name, err)
		}
	})
	scanScheduler.Start()
	defer scanScheduler.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("server listening on http://localhost%s\n", addr)
	log.Printf("websocket available at ws://localhost%s/api/v1/ws\n", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
