package router

import (
	"database/sql"
	"net/http"

	daybookHandler "dumpzone/internal/daybook"
	"dumpzone/internal/daybook/repository"
	"dumpzone/internal/daybook/service"
	"dumpzone/middleware"
	"dumpzone/socket"
)

func Setup(db *sql.DB, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r)
		socket.ServeWs(hub, w, r, userID)
	})
	mux.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// REST API
	repo := repository.NewDaybookRepository(db)
	svc := service.NewDaybookService(repo, hub)
	h := daybookHandler.NewDaybookHandler(svc)
	auth := middleware.AuthMiddleware

	mux.Handle("/api/day", auth(http.HandlerFunc(h.Day)))
	mux.Handle("/api/entries", auth(http.HandlerFunc(h.Entries)))
	mux.Handle("/api/entries/update", auth(http.HandlerFunc(h.UpdateEntry)))
	mux.Handle("/api/entries/delete", auth(http.HandlerFunc(h.DeleteEntry)))

	return middleware.CORSMiddleware(mux)
}
