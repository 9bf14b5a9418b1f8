package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/api"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/archive"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/auth"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/board"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/config"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/indexer"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/logstore"
	"github.com/moccorine/legacy-kuzuha-php-sub000/internal/logging"
)

var (
	httpAddr          = flag.String("http", "127.0.0.1:8080", "HTTP listen address")
	configPath        = flag.String("config", "", "path to bbs.yaml (defaults apply if empty)")
	dataDir           = flag.String("data-dir", "", "override data_dir from config")
	lockWait          = flag.Duration("lock-wait", 10*time.Second, "max wait for the log lock before failing a request")
	indexSyncInterval = flag.Duration("index-sync-interval", 60*time.Second, "archive index sync interval")
	mdnsEnabled       = flag.Bool("mdns", false, "advertise the board on the LAN via mDNS")
	mdnsService       = flag.String("mdns-service", defaultMdnsService, "mDNS service type")
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-pass":
			os.Exit(runHashPass(os.Args[2:]))
		case "reindex":
			os.Exit(runReindex(os.Args[2:]))
		}
	}

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error.Fatalf("config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logging.Error.Fatalf("data dir: %v", err)
	}

	log := logstore.New(cfg.LogPath(), logstore.WithLockWait(*lockWait))
	if err := log.Init(); err != nil {
		logging.Error.Fatalf("main log: %v", err)
	}

	var arch *archive.Store
	if cfg.Archive.Enabled {
		arch = archive.New(cfg.ArchiveDir(), cfg.Archive.Ext, cfg.ArchiveGranularity(), cfg.Archive.MaxBytes)
	}

	var admin board.AdminVerifier
	if cfg.Admin.CredentialHash != "" {
		v, err := auth.NewVerifier(cfg.Admin.CredentialHash)
		if err != nil {
			logging.Error.Fatalf("admin credential: %v", err)
		}
		admin = v
	}

	svc := board.NewService(log, arch, admin, nil, board.Config{
		MaxEntries:  cfg.LogSave,
		CheckCount:  cfg.CheckCount,
		CooldownSec: cfg.SPTimeSec,
		AdminWord:   cfg.Admin.Word,
	})

	var ix *indexer.Indexer
	if cfg.Index.Enabled && arch != nil {
		ix, err = indexer.Open(cfg.IndexDBPath())
		if err != nil {
			logging.Error.Fatalf("index: %v", err)
		}
		defer ix.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signals := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		signals = append(signals, syscall.SIGTERM)
	}
	signal.Notify(sigCh, signals...)
	go func() {
		<-sigCh
		logging.Info.Printf("signal received, shutting down")
		cancel()
	}()

	if ix != nil {
		go indexSyncLoop(ctx, ix, arch, *indexSyncInterval)
	}

	if *mdnsEnabled {
		stop, err := advertiseMdns(*httpAddr, *mdnsService)
		if err != nil {
			logging.Warn.Printf("mdns advertise failed: %v", err)
		} else {
			defer stop()
		}
	}

	srv := &http.Server{
		Addr:    *httpAddr,
		Handler: (&api.Server{Log: log, Board: svc, Archive: arch, Indexer: ix}).Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info.Printf("bbsd listening on %s (log=%s)", *httpAddr, cfg.LogPath())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error.Fatalf("http: %v", err)
	}
}

// indexSyncLoop は定期的にアーカイブを走査して検索インデックスへ取り込む。
func indexSyncLoop(ctx context.Context, ix *indexer.Indexer, arch *archive.Store, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	// 起動直後に一回。
	if err := ix.SyncArchive(ctx, arch); err != nil {
		logging.Warn.Printf("index sync: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := ix.SyncArchive(ctx, arch); err != nil {
				logging.Warn.Printf("index sync: %v", err)
			}
		}
	}
}

// runHashPass は管理者パスワードの保存用ハッシュを標準出力に出す。
// 出力を bbs.yaml の admin.credential_hash に貼り付けて使う。
func runHashPass(args []string) int {
	fs := flag.NewFlagSet("hash-pass", flag.ExitOnError)
	secret := fs.String("secret", "", "admin secret to hash")
	_ = fs.Parse(args)

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: bbsd hash-pass -secret <admin secret>")
		return 2
	}
	hash, err := auth.HashCredential(*secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash-pass: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}

// runReindex は検索インデックスを作り直す。インデックスは導出データ
// なので、壊れたら消してこれを実行すればよい。
func runReindex(args []string) int {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configFlag := fs.String("config", "", "path to bbs.yaml")
	dataFlag := fs.String("data-dir", "", "override data_dir from config")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reindex: config: %v\n", err)
		return 1
	}
	if *dataFlag != "" {
		cfg.DataDir = *dataFlag
	}

	if err := os.Remove(cfg.IndexDBPath()); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "reindex: remove old index: %v\n", err)
		return 1
	}
	_ = os.Remove(cfg.IndexDBPath() + "-wal")
	_ = os.Remove(cfg.IndexDBPath() + "-shm")

	ix, err := indexer.Open(cfg.IndexDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "reindex: open: %v\n", err)
		return 1
	}
	defer ix.Close()

	arch := archive.New(cfg.ArchiveDir(), cfg.Archive.Ext, cfg.ArchiveGranularity(), cfg.Archive.MaxBytes)
	if err := ix.SyncArchive(context.Background(), arch); err != nil {
		fmt.Fprintf(os.Stderr, "reindex: %v\n", err)
		return 1
	}
	fmt.Printf("reindexed %s\n", filepath.Clean(cfg.ArchiveDir()))
	return 0
}
