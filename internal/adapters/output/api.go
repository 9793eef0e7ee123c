package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/ports"
	"github.com/xoelrdgz/pagewarden/internal/sink"
)

// maxSignalBody bounds POST /api/signals bodies.
const maxSignalBody = 1 << 20

// APIOptions wires the reporting API to the running monitor.
type APIOptions struct {
	Events   *sink.EventLog
	Decoder  ports.SignalDecoder
	Submit   func(domain.Signal) bool // Queues an ingested signal
	Notifier *TabNotifier             // Source of the SSE alert stream, may be nil
	Health   http.Handler             // Served on /ready, may be nil
}

// API is the reporting and ingest HTTP surface.
//
// Routes:
//   - GET    /api/events          Filtered events, most recent first
//   - DELETE /api/events          Clear the log
//   - GET    /api/events/summary  Per-origin category counts
//   - GET    /api/origins         Distinct origins
//   - GET    /api/export          Pretty JSON attachment
//   - POST   /api/import          Replace the log with an export
//   - GET    /api/alerts/:tab     Server-sent alert stream for a tab
//   - PUT    /api/tabs/active     Select the fallback tab for alerts
//   - POST   /api/signals         Ingest one signal envelope
//   - GET    /ready               Health probe
type API struct {
	opts   APIOptions
	router *gin.Engine
	server *http.Server
}

func NewAPI(opts APIOptions) *API {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	a := &API{opts: opts, router: router}

	api := router.Group("/api")
	{
		api.GET("/events", a.listEvents)
		api.DELETE("/events", a.clearEvents)
		api.GET("/events/summary", a.summary)
		api.GET("/origins", a.origins)
		api.GET("/export", a.export)
		api.POST("/import", a.importEvents)
		api.GET("/alerts/:tab", a.streamAlerts)
		api.PUT("/tabs/active", a.setActiveTab)
		api.POST("/signals", a.ingestSignal)
	}
	if opts.Health != nil {
		router.GET("/ready", gin.WrapH(opts.Health))
	}

	return a
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("API request")
	}
}

func (a *API) Handler() http.Handler {
	return a.router
}

// Start serves the API on addr in the background.
func (a *API) Start(addr string) error {
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting reporting API")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Reporting API error")
		}
	}()
	return nil
}

func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// parseFilter reads origin, category, severity and limit query parameters.
func parseFilter(c *gin.Context) (sink.Filter, error) {
	f := sink.Filter{Origin: c.Query("origin")}

	if v := c.Query("category"); v != "" {
		category, err := domain.ParseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = category
	}
	if v := c.Query("severity"); v != "" {
		severity, err := domain.ParseSeverity(v)
		if err != nil {
			return f, err
		}
		f.MinSeverity = &severity
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = limit
	}
	return f, nil
}

func (a *API) listEvents(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a.opts.Events.Query(filter))
}

func (a *API) clearEvents(c *gin.Context) {
	if err := a.opts.Events.Clear(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear stored events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear stored events", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) summary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"origins":    a.opts.Events.Summary(),
		"categories": a.opts.Events.CategoryCounts(),
		"total":      a.opts.Events.Len(),
	})
}

func (a *API) origins(c *gin.Context) {
	c.JSON(http.StatusOK, a.opts.Events.Origins())
}

func (a *API) export(c *gin.Context) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sink.DefaultExportName))
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	if err := a.opts.Events.Export(c.Writer); err != nil {
		log.Error().Err(err).Msg("Failed to export events")
	}
}

func (a *API) importEvents(c *gin.Context) {
	n, err := a.opts.Events.Import(io.LimitReader(c.Request.Body, 16*maxSignalBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid export file", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func parseTab(v string) (domain.TabID, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid tab id %q", v)
	}
	return domain.TabID(n), nil
}

func (a *API) streamAlerts(c *gin.Context) {
	if a.opts.Notifier == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert stream not enabled"})
		return
	}
	tab, err := parseTab(c.Param("tab"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receiver := a.opts.Notifier.Register(tab)
	defer a.opts.Notifier.Unregister(receiver)

	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Receiver-ID", receiver.ID)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case alert, ok := <-receiver.Alerts:
			if !ok {
				return false
			}
			c.SSEvent("alert", alert)
			return true
		}
	})
}

func (a *API) setActiveTab(c *gin.Context) {
	if a.opts.Notifier == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert stream not enabled"})
		return
	}
	var req struct {
		TabID domain.TabID `json:"tabId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}
	a.opts.Notifier.SetActiveTab(req.TabID)
	c.Status(http.StatusNoContent)
}

func (a *API) ingestSignal(c *gin.Context) {
	if a.opts.Decoder == nil || a.opts.Submit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Signal ingest not enabled"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignalBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body", "details": err.Error()})
		return
	}

	sig, err := a.opts.Decoder.Decode(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signal", "details": err.Error()})
		return
	}
	if sig == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if !a.opts.Submit(sig) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline saturated"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"kind": sig.Kind()})
}
