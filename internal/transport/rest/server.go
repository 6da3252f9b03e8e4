package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// roomLister is the read-only slice of the game manager the REST surface
// needs.
type roomLister interface {
	ListRooms() []entity.RoomSummary
}

func Start(port string, rooms roomLister) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", pingHandler)
	mux.HandleFunc("/rooms", roomsHandler(rooms))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
