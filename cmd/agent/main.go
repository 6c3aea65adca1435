package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dumpzone/internal/backup"
	"dumpzone/internal/clientid"
	"dumpzone/internal/daybook/model"
	"dumpzone/internal/localstore"
	"dumpzone/internal/notion"
	"dumpzone/internal/remote"
	"dumpzone/internal/rollover"
	syncpkg "dumpzone/internal/sync"
	"dumpzone/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

func main() {
	backupPath := flag.String("backup", "", "write a backup of the local store to this file and exit")
	restorePath := flag.String("restore", "", "restore the local store from this backup file and exit")
	flag.Parse()

	logger.Init()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	dataDir := os.Getenv("DUMPZONE_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Sugar.Fatalf("Cannot resolve home directory: %v", err)
		}
		dataDir = filepath.Join(home, ".dumpzone")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Sugar.Fatalf("Cannot create data dir %s: %v", dataDir, err)
	}

	store, err := localstore.Open(filepath.Join(dataDir, "dumpzone.db"))
	if err != nil {
		logger.Sugar.Fatalf("Cannot open local store: %v", err)
	}
	defer store.Close()

	if *backupPath != "" {
		if err := backup.WriteFile(store, *backupPath); err != nil {
			logger.Sugar.Fatalf("Backup failed: %v", err)
		}
		logger.Sugar.Infof("Backup written to %s", *backupPath)
		return
	}
	if *restorePath != "" {
		if err := backup.RestoreFile(store, *restorePath, time.Now()); err != nil {
			logger.Sugar.Fatalf("Restore failed: %v", err)
		}
		logger.Sugar.Infof("Restored local store from %s", *restorePath)
		return
	}

	deviceID, err := clientid.Load(dataDir)
	if err != nil {
		logger.Sugar.Fatalf("Cannot load client id: %v", err)
	}

	serverURL := os.Getenv("DUMPZONE_SERVER_URL")
	token := os.Getenv("DUMPZONE_TOKEN")

	client := remote.NewClient(serverURL, token, deviceID)
	coord := syncpkg.NewCoordinator(store, client, deviceID)
	defer coord.Close()

	if serverURL != "" && token != "" {
		userID, err := subjectOf(token)
		if err != nil {
			logger.Sugar.Warnf("Cannot read token subject, staying signed out: %v", err)
		} else {
			coord.SetUserID(userID)
			logger.Sugar.Infof("Signed in as %s on %s", userID, serverURL)
		}
	} else {
		logger.Sugar.Info("No server configured, running local-only")
	}

	exporter := notion.NewClient(os.Getenv("NOTION_TOKEN"), os.Getenv("NOTION_DATABASE_ID"))
	if exporter.Connected() {
		logger.Sugar.Info("Notion export enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := rollover.New(coord, exporter)
	go monitor.Run(ctx)

	if coord.Authenticated() {
		err := coord.SubscribeToCurrentDay(ctx, func(content string) {
			logger.Sugar.Debugf("Current day updated (%d bytes)", len(content))
		})
		if err != nil {
			logger.Sugar.Warnf("Live sync unavailable: %v", err)
		}

		err = coord.SubscribeToHistory(ctx, func(entries []model.Entry) {
			logger.Sugar.Debugf("History updated (%d entries)", len(entries))
		})
		if err != nil {
			logger.Sugar.Warnf("History feed unavailable: %v", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Sugar.Info("dumpzone agent shutting down")
}

// subjectOf extracts the user id from the token without verifying the
// signature. The server is the verifier; the agent only needs to know which
// account it is talking for.
func subjectOf(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	return claims.GetSubject()
}
