// Package api registers the loopback HTTP surface: the playback file
// server and a small status/control API over the manager, in the shape
// of the teacher's internal/api route registration.
package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/playkit/dtg/internal/domain"
	"github.com/playkit/dtg/internal/infra/logger"
	"github.com/playkit/dtg/internal/manager"
)

// RegisterRoutes wires the status/control endpoints and the playback
// static file server rooted at <root>/items.
func RegisterRoutes(e *echo.Echo, mgr *manager.Manager, itemsRoot string, log *logger.Logger) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	ctrl := &itemsController{mgr: mgr}

	e.POST("/items", ctrl.Add)
	e.GET("/items", ctrl.List)
	e.GET("/items/:id", ctrl.Get)
	e.POST("/items/:id/start", ctrl.Start)
	e.POST("/items/:id/pause", ctrl.Pause)
	e.POST("/items/:id/resume", ctrl.Resume)
	e.POST("/items/:id/cancel", ctrl.Cancel)
	e.DELETE("/items/:id", ctrl.Remove)

	// Playback server: Range-aware static file serving of every item's
	// rewritten playlist tree, at http://127.0.0.1:<port>/<safe(id)>/...
	// echo.Static uses http.ServeContent under the hood, which natively
	// honors Range requests (spec's playback-server requirement).
	e.Static("/", itemsRoot)
}

type itemsController struct {
	mgr *manager.Manager
}

type addRequest struct {
	SourceURL string `json:"sourceUrl"`
}

func (c *itemsController) Add(ctx *echo.Context) error {
	var req addRequest
	if err := ctx.Bind(&req); err != nil || req.SourceURL == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "sourceUrl is required"})
	}

	item, err := c.mgr.Add(req.SourceURL)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, itemView(item))
}

func (c *itemsController) List(ctx *echo.Context) error {
	items := c.mgr.ListItems()
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, itemView(item))
	}
	return ctx.JSON(http.StatusOK, views)
}

func (c *itemsController) Get(ctx *echo.Context) error {
	item, err := c.mgr.GetItem(ctx.Param("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, itemView(item))
}

func (c *itemsController) Start(ctx *echo.Context) error {
	if err := c.mgr.Start(ctx.Param("id")); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (c *itemsController) Pause(ctx *echo.Context) error {
	if err := c.mgr.Pause(ctx.Param("id")); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (c *itemsController) Resume(ctx *echo.Context) error {
	if err := c.mgr.Resume(ctx.Param("id")); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (c *itemsController) Cancel(ctx *echo.Context) error {
	if err := c.mgr.Cancel(ctx.Param("id")); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (c *itemsController) Remove(ctx *echo.Context) error {
	if err := c.mgr.Remove(ctx.Param("id")); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func itemView(item *domain.Item) map[string]any {
	return map[string]any{
		"id":             item.ID,
		"sourceUrl":      item.SourceURL,
		"state":          item.State,
		"estimatedSize":  item.EstimatedSize,
		"downloadedSize": item.DownloadedSize.Load(),
		"error":          item.Error,
		"playbackPath":   "/" + domain.SafeItemID(item.ID) + "/master.m3u8",
	}
}

func respondError(ctx *echo.Context, err error) error {
	derr, ok := err.(*domain.Error)
	if !ok {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	status := http.StatusInternalServerError
	switch derr.Kind {
	case domain.ErrKindItemNotFound:
		status = http.StatusNotFound
	case domain.ErrKindInvalidState:
		status = http.StatusConflict
	case domain.ErrKindMalformedPlaylist, domain.ErrKindUnknownPlaylistType:
		status = http.StatusUnprocessableEntity
	}
	return ctx.JSON(status, map[string]string{"error": derr.Error(), "kind": string(derr.Kind)})
}
