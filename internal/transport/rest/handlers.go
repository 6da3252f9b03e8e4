package rest

import (
	"encoding/json"
	"net/http"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// roomsHandler exposes the room registry as a read-only JSON projection,
// mostly for monitoring and debugging.
func roomsHandler(rooms roomLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		summaries := rooms.ListRooms()
		if summaries == nil {
			summaries = []entity.RoomSummary{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summaries); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
