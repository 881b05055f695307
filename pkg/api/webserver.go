package api

import (
	"context"
	"net/http"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/store"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gin-gonic/gin"
)

//TrackReporter returns the per track team votes of the running session
type TrackReporter interface {
	TrackSummaries(ctx context.Context) ([]store.TrackSummary, error)
}

//SetRouter builds the HTTP API. tracks may be nil when no recorder is configured.
func SetRouter(state *State, hub *Hub, tracks TrackReporter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/status", func(ctx *gin.Context) {
		status := state.Status()
		if hub != nil {
			status.Viewers = hub.ClientCount()
		}
		ctx.JSON(http.StatusOK, status)
	})

	apiRoutes.GET("/observations", func(ctx *gin.Context) {
		result, ok := state.Latest()
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "no frame was processed yet"})
			return
		}
		ctx.JSON(http.StatusOK, result)
	})

	apiRoutes.GET("/tracks", func(ctx *gin.Context) {
		if tracks == nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "recording is disabled"})
			return
		}

		summaries, err := tracks.TrackSummaries(ctx.Request.Context())
		if err != nil {
			logger.Errorf(ctx.Request.Context(), "api/tracks: %v", err)
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.JSON(http.StatusOK, summaries)
	})

	if hub != nil {
		apiRoutes.GET("/ws", hub.ServeWS)
	}

	return r
}

//requestLogger logs every request through the request context logger
func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.Debugf(ctx.Request.Context(), "api: %s %s -> %d (%v)", ctx.Request.Method, ctx.Request.URL.Path, ctx.Writer.Status(), time.Since(start))
	}
}
