package v1

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/analytics"
	"github.com/stamns/Next-blog-sub000/internal/timeframe"
)

var errInvalidParam = errors.New("invalid parameter")

// DashboardHandler serves the read-only aggregation queries.
type DashboardHandler struct {
	parser          *timeframe.TimeFrameParser
	defaultTz       string
	realtimeMinutes int
	now             func() time.Time
}

func NewDashboardHandler(defaultTz string, realtimeMinutes int, provider ...timeframe.TimeProvider) *DashboardHandler {
	return &DashboardHandler{
		parser:          timeframe.NewTimeFrameParser(provider...),
		defaultTz:       defaultTz,
		realtimeMinutes: realtimeMinutes,
		now:             time.Now,
	}
}

func (h *DashboardHandler) SummaryAction(ctx *cartridge.Context) error {
	tf, err := h.timeFrame(ctx)
	if err != nil {
		return badRequest(ctx, err)
	}
	summary, err := analytics.GetSummary(ctx.UserContext(), h.db(ctx), tf, h.now())
	return respond(ctx, summary, err)
}

func (h *DashboardHandler) TimeSeriesAction(ctx *cartridge.Context) error {
	tf, err := h.timeFrame(ctx)
	if err != nil {
		return badRequest(ctx, err)
	}
	points, err := analytics.GetTimeSeries(ctx.UserContext(), h.db(ctx), tf)
	return respond(ctx, points, err)
}

func (h *DashboardHandler) TopPagesAction(ctx *cartridge.Context) error {
	params, err := h.queryParams(ctx)
	if err != nil {
		return badRequest(ctx, err)
	}
	pages, err := analytics.GetTopPages(ctx.UserContext(), h.db(ctx), params)
	return respond(ctx, pages, err)
}

func (h *DashboardHandler) TopReferrersAction(ctx *cartridge.Context) error {
	params, err := h.queryParams(ctx)
	if err != nil {
		return badRequest(ctx, err)
	}
	referrers, err := analytics.GetTopReferrers(ctx.UserContext(), h.db(ctx), params)
	return respond(ctx, referrers, err)
}

// BreakdownAction returns a handler for one visitor dimension.
func (h *DashboardHandler) BreakdownAction(dim analytics.Dimension) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		params, err := h.queryParams(ctx)
		if err != nil {
			return badRequest(ctx, err)
		}
		items, err := analytics.GetBreakdown(ctx.UserContext(), h.db(ctx), params, dim)
		return respond(ctx, items, err)
	}
}

func (h *DashboardHandler) RealtimeAction(ctx *cartridge.Context) error {
	minutes, err := queryInt(ctx, "minutes", h.realtimeMinutes)
	if err != nil {
		return badRequest(ctx, err)
	}
	visitors, err := analytics.GetRealtimeVisitors(ctx.UserContext(), h.db(ctx), h.now(), minutes)
	return respond(ctx, visitors, err)
}

func (h *DashboardHandler) VisitorsAction(ctx *cartridge.Context) error {
	page, err := queryInt(ctx, "page", 1)
	if err != nil {
		return badRequest(ctx, err)
	}
	pageSize, err := queryInt(ctx, "pageSize", analytics.DefaultPageSize)
	if err != nil {
		return badRequest(ctx, err)
	}
	list, err := analytics.ListVisitors(ctx.UserContext(), h.db(ctx), page, pageSize)
	return respond(ctx, list, err)
}

func (h *DashboardHandler) VisitorDetailAction(ctx *cartridge.Context) error {
	detail, err := analytics.GetVisitorDetail(ctx.UserContext(), h.db(ctx), ctx.Params("id"))
	return respond(ctx, detail, err)
}

func (h *DashboardHandler) db(ctx *cartridge.Context) *gorm.DB {
	return ctx.DBManager.GetConnection()
}

func (h *DashboardHandler) timeFrame(ctx *cartridge.Context) (*timeframe.TimeFrame, error) {
	tz := ctx.Query("tz")
	if tz == "" {
		tz = h.defaultTz
	}
	return h.parser.ParseTimeFrame(timeframe.TimeFrameParserParams{
		StartDate:   ctx.Query("startDate"),
		EndDate:     ctx.Query("endDate"),
		Tz:          tz,
		Granularity: ctx.Query("granularity"),
	})
}

func (h *DashboardHandler) queryParams(ctx *cartridge.Context) (analytics.QueryParams, error) {
	tf, err := h.timeFrame(ctx)
	if err != nil {
		return analytics.QueryParams{}, err
	}
	limit, err := queryInt(ctx, "limit", analytics.DefaultLimit)
	if err != nil {
		return analytics.QueryParams{}, err
	}
	return analytics.NewQueryParams(tf, limit), nil
}

// queryInt reads an optional integer query parameter. Present but
// non-numeric values are an error rather than silently defaulted.
func queryInt(ctx *cartridge.Context, key string, fallback int) (int, error) {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %q is not a number", errInvalidParam, key, raw)
	}
	return n, nil
}

func badRequest(ctx *cartridge.Context, err error) error {
	ctx.Logger.Debug("Rejected dashboard query", slog.String("path", ctx.Path()), slog.Any("error", err))
	return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func respond(ctx *cartridge.Context, body any, err error) error {
	switch {
	case err == nil:
		return ctx.JSON(body)
	case errors.Is(err, analytics.ErrVisitorNotFound):
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "visitor not found"})
	case errors.Is(err, analytics.ErrDataUnavailable):
		ctx.Logger.Error("Dashboard query failed", slog.String("path", ctx.Path()), slog.Any("error", err))
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "data unavailable"})
	default:
		ctx.Logger.Error("Dashboard query failed", slog.String("path", ctx.Path()), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
