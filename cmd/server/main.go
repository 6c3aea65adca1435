package main

import (
	"net/http"
	"os"

	"dumpzone/config/database"
	"dumpzone/internal/datekey"
	"dumpzone/internal/daybook/repository"
	"dumpzone/pkg/logger"
	"dumpzone/router"
	"dumpzone/socket"

	"github.com/joho/godotenv"
)

func main() {
	logger.Init()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db := database.Connect()
	defer db.Close()

	repo := repository.NewDaybookRepository(db)

	// The Hub manages every connected device and fans realtime changes out
	// to a user's other devices.
	hub := socket.NewHub(repo, datekey.Today)
	go hub.Run()
	go hub.SaveWorker()

	handler := router.Setup(db, hub)

	addr := os.Getenv("DUMPZONE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Sugar.Infof("dumpzone server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Sugar.Fatalf("Server exited: %v", err)
	}
}
