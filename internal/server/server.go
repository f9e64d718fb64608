// Package server exposes the scanner over HTTP for the web UI. Two
// operations exist: /api/swipes reports the current quota week and
// /api/history reports all recent activity regardless of the window.
package server

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/NickJuneau/mealmate-v2-web/internal/message"
	"github.com/NickJuneau/mealmate-v2-web/internal/scan"

	"github.com/gin-gonic/gin"
)

// Scanner is what the handlers need from the scan orchestrator.
type Scanner interface {
	Scan(ctx context.Context, opts scan.Options) (*message.ScanResult, error)
}

const (
	previewLimit = 12

	swipesMaxResults  = 250
	historyDays       = 30
	historyMaxResults = 500
)

// NewRouter wires the API. mealsPerWeek sizes the "remaining" figure
// on the swipes response.
func NewRouter(sc Scanner, mealsPerWeek int) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/api/swipes", func(c *gin.Context) {
		days, ok := intQuery(c, "days", 7)
		if !ok {
			return
		}
		res, err := sc.Scan(c.Request.Context(), scan.Options{
			Days:       days,
			MaxResults: swipesMaxResults,
			IgnoreWeek: boolQuery(c, "ignoreWeek"),
			Debug:      boolQuery(c, "debug"),
		})
		if err != nil {
			log.Printf("api/swipes: scan failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		preview := res.Events
		if len(preview) > previewLimit {
			preview = preview[:previewLimit]
		}
		remaining := mealsPerWeek - res.Used
		if remaining < 0 {
			remaining = 0
		}
		c.JSON(http.StatusOK, gin.H{
			"weekStart": res.WeekStart,
			"used":      res.Used,
			"remaining": remaining,
			"preview":   preview,
			"meta": gin.H{
				"usedRecent":       res.UsedRecent,
				"totalFoundRecent": res.TotalFoundRecent,
			},
		})
	})

	r.GET("/api/history", func(c *gin.Context) {
		days, ok := intQuery(c, "days", historyDays)
		if !ok {
			return
		}
		// History is all recent events, so the weekly window is
		// always ignored here.
		res, err := sc.Scan(c.Request.Context(), scan.Options{
			Days:       days,
			MaxResults: historyMaxResults,
			IgnoreWeek: true,
			Debug:      boolQuery(c, "debug"),
		})
		if err != nil {
			log.Printf("api/history: scan failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"weekStart":  res.WeekStart,
			"usedRecent": res.UsedRecent,
			"events":     res.Events,
		})
	})

	return r
}

func boolQuery(c *gin.Context, name string) bool {
	v := c.Query(name)
	return v == "1" || v == "true"
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return n, true
}
