package service

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter строит публичный HTTP: /ws, /api/snapshot и статика из staticDir.
func NewRouter(reg *Registry, staticDir string, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		AllowMethods:    []string{"GET"},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/ws", gin.WrapF(ServeWS(reg, log)))

	r.GET("/api/snapshot", func(c *gin.Context) {
		current := reg.Current()
		payload, err := Encode(current)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
	})

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "observers": reg.Len()})
	})

	if staticDir != "" {
		if st, err := os.Stat(staticDir); err == nil && st.IsDir() {
			r.NoRoute(gin.WrapH(http.FileServer(http.Dir(staticDir))))
		} else {
			log.Warn("static dir not found, serving API only", zap.String("dir", staticDir))
		}
	}
	return r
}
