package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"github.com/stamns/Next-blog-sub000/internal/events"
)

const (
	errInvalidRequest = "Invalid request"
	errCollection     = "Failed to collect event"
)

// IngestHandler accepts tracking events from the browser script.
type IngestHandler struct {
	collector *events.Collector
	enricher  *events.Enricher
	now       func() time.Time
}

func NewIngestHandler(collector *events.Collector, enricher *events.Enricher) *IngestHandler {
	return &IngestHandler{
		collector: collector,
		enricher:  enricher,
		now:       time.Now,
	}
}

// TrackAction collects one event and answers with the visitor and session
// ids it was attributed to. Events that changed nothing answer 202.
func (h *IngestHandler) TrackAction(ctx *cartridge.Context) error {
	result, err := h.ingest(ctx)
	switch {
	case errors.Is(err, errMalformedBody):
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	case errors.Is(err, events.ErrUnsupportedEvent):
		return ctx.SendStatus(http.StatusAccepted)
	case err != nil:
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": errCollection,
			"code":  "COLLECTION_ERROR",
		})
	}

	if !result.Recorded {
		return ctx.Status(http.StatusAccepted).JSON(result)
	}
	return ctx.Status(http.StatusOK).JSON(result)
}

// BeaconAction is the sendBeacon variant: the browser never reads the
// response, so every outcome answers 202.
func (h *IngestHandler) BeaconAction(ctx *cartridge.Context) error {
	if _, err := h.ingest(ctx); err != nil && !errors.Is(err, events.ErrUnsupportedEvent) {
		ctx.Logger.Debug("Beacon event dropped", slog.Any("error", err))
	}
	return ctx.SendStatus(http.StatusAccepted)
}

var errMalformedBody = errors.New("malformed event body")

func (h *IngestHandler) ingest(ctx *cartridge.Context) (events.Result, error) {
	payload, err := events.ParsePayload(ctx.Body())
	if err != nil {
		ctx.Logger.Debug("Failed to parse event payload", slog.Any("error", err))
		return events.Result{}, errors.Join(errMalformedBody, err)
	}

	userAgent := ctx.Get("User-Agent")
	if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgent = forwardedUA
	}

	ev, err := events.Normalize(payload, events.RequestMeta{
		ClientIP:  clientIP(ctx.Ctx),
		UserAgent: userAgent,
		Now:       h.now(),
	})
	if err != nil {
		ctx.Logger.Debug("Ignoring event", slog.Any("error", err))
		return events.Result{}, err
	}
	h.enricher.Enrich(ev, userAgent)

	return h.collector.Collect(ev)
}
