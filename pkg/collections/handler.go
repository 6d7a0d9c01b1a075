// Package collections exposes the query engine over HTTP under /collections.
package collections

import (
	"context"

	"github.com/nimburion/docquery/pkg/controller"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/query"
	"github.com/nimburion/docquery/pkg/server/router"
)

// Prefix is the path every collections route is mounted under.
const Prefix = "/collections"

// Handler serves the collections endpoints.
type Handler struct {
	engine *query.Engine
	log    logger.Logger
}

// NewHandler creates a Handler backed by engine.
func NewHandler(engine *query.Engine, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{engine: engine, log: log}
}

// Register mounts the collections routes on r.
func (h *Handler) Register(r router.Router) {
	g := r.Group(Prefix)

	g.GET("/readrecords/:query", serve(h, query.DecodeReadRecords, h.engine.ReadRecords))
	g.GET("/views/:query", serve(h, query.DecodeFieldValue, h.engine.View))
	g.GET("/readrecordfieldvalue/:query", serve(h, query.DecodeFieldValue, h.engine.ReadRecordFieldValue))
	g.GET("/groupby/:query", serve(h, query.DecodeGroupBy, h.engine.GroupBy))
	g.GET("/groupbyset/:query", serve(h, query.DecodeGroupBySet, h.engine.GroupBySet))
	g.GET("/calculations/:query", serve(h, query.DecodeCalculate, h.engine.Calculate))
	g.GET("/measures/:query", serve(h, query.DecodeMeasure, h.engine.Measure))
	g.GET("/sample/:query", serve(h, query.DecodeSample, h.engine.Sample))
	g.GET("/analytics", h.Analytics)
	g.POST("/create/:query", h.Create)
}

// serve builds a handler that decodes the raw request path, runs the
// operation and writes its result.
func serve[P, R any](h *Handler, decode func(string) (P, error), run func(context.Context, P) (R, error)) router.HandlerFunc {
	return func(c router.Context) error {
		params, err := decode(c.RawParam("query"))
		if err != nil {
			h.log.WithContext(c.Request().Context()).Debug("query rejected", "route", c.Route(), "error", err)
			return controller.Error(c, err)
		}
		out, err := run(c.Request().Context(), params)
		if err != nil {
			return controller.Error(c, err)
		}
		return controller.Results(c, out)
	}
}

// Analytics returns the inventory cost and stock breakdowns.
func (h *Handler) Analytics(c router.Context) error {
	out, err := h.engine.Analytics(c.Request().Context())
	if err != nil {
		return controller.Error(c, err)
	}
	return controller.Results(c, out)
}

// Create inserts the JSON object in the body into the collection named by the path.
func (h *Handler) Create(c router.Context) error {
	ctx := c.Request().Context()
	params, err := query.DecodeCreate(c.RawParam("query"))
	if err != nil {
		return controller.Error(c, err)
	}

	var doc map[string]interface{}
	if err := c.Bind(&doc); err != nil {
		h.log.WithContext(ctx).Debug("create body rejected", "collection", params.Collection, "error", err)
		return controller.Error(c, controller.NewValidationError("request body must be a JSON object", map[string]interface{}{
			"operation": query.OpCreate,
		}))
	}

	out, err := h.engine.Create(ctx, params, doc)
	if err != nil {
		return controller.Error(c, err)
	}
	return controller.Results(c, out)
}
