package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventLookup and TicketTypeLister are implemented by the repositories.
type (
	EventLookup interface {
		GetByID(ctx context.Context, id uint64) (*model.Event, error)
	}
	TicketTypeLister interface {
		ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error)
	}
)

type AvailabilityHandler struct {
	Events EventLookup
	Types  TicketTypeLister
}

func NewAvailabilityHandler(events EventLookup, types TicketTypeLister) *AvailabilityHandler {
	return &AvailabilityHandler{Events: events, Types: types}
}

type availabilityItem struct {
	TicketTypeID uint64 `json:"ticket_type_id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	// Remaining is null for unlimited types.
	Remaining *int64 `json:"remaining"`
	SoldOut   bool   `json:"sold_out"`
}

// Get handles GET /v1/events/:id/availability.  Only public ticket types
// are listed.  Counts are floored at zero even when the ledger oversold.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	ev, err := h.Events.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		return writeError(c, err, "failed to load event")
	}
	types, err := h.Types.ListByEvent(ctx, eventID)
	if err != nil {
		return writeError(c, err, "failed to load ticket types")
	}
	items := make([]availabilityItem, 0, len(types))
	for i := range types {
		tt := &types[i]
		if tt.Status != model.TicketTypePublic {
			continue
		}
		it := availabilityItem{TicketTypeID: tt.ID, Name: tt.Name, Price: tt.Price}
		if left, bounded := tt.Remaining(); bounded {
			it.Remaining = &left
			it.SoldOut = left == 0
		}
		items = append(items, it)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event_id": ev.ID,
		"title":    ev.Title,
		"on_sale":  ev.SaleOpen(time.Now()),
		"items":    items,
		"count":    len(items),
	})
}
