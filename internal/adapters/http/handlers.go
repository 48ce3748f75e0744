package http

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/skatehub/gateway/internal/app"
	"github.com/skatehub/gateway/internal/domain"
)

type statsResponse struct {
	app.Stats
	Sessions int `json:"sessions"`
	Subjects int `json:"subjects"`
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleStats(rooms *app.RoomRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, subjects := rooms.Connections().Count()
		c.JSON(http.StatusOK, statsResponse{Stats: rooms.Stats(), Sessions: sessions, Subjects: subjects})
	}
}

// handleRooms lists live rooms, optionally filtered with ?type=.
func handleRooms(rooms *app.RoomRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := domain.RoomType(c.Query("type"))
		if filter != "" && !filter.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"code": domain.CodeMalformedRoomKey, "message": "unknown room type"})
			return
		}
		list := rooms.List()
		out := list[:0]
		for _, info := range list {
			if filter == "" || info.Type == filter {
				out = append(out, info)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		c.JSON(http.StatusOK, gin.H{"rooms": out, "count": len(out)})
	}
}
