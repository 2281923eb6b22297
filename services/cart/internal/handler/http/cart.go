package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zenleaftraders/zenleaftraders/pkg/httputil"
	"github.com/zenleaftraders/zenleaftraders/pkg/validator"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/service"
)

// EventCartUpdated is the SSE event name sent on every cart change.
const EventCartUpdated = "cart:updated"

// keepAliveInterval is how often an idle event stream sends a comment line.
const keepAliveInterval = 15 * time.Second

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service   *service.CartService
	logger    *slog.Logger
	keepAlive time.Duration
	done      <-chan struct{}
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service:   svc,
		logger:    logger,
		keepAlive: keepAliveInterval,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
// Price may be a number or a string like "$110"; quantity a number or a
// numeric string.
type AddItemRequest struct {
	Name     string `json:"name" validate:"max=500"`
	Size     string `json:"size" validate:"max=100"`
	Price    any    `json:"price"`
	Quantity any    `json:"quantity"`
}

// UpdateQuantityRequest is the JSON request body for updating an item's
// quantity. Values below 1 are raised to 1.
type UpdateQuantityRequest struct {
	Quantity any `json:"quantity"`
}

// CountResponse is the badge payload.
type CountResponse struct {
	Count int `json:"count"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// GetCount handles GET /api/v1/cart/count
func (h *CartHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Count(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, CountResponse{Count: count})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.AddItem(r.Context(), sessionFromContext(r.Context()), service.AddItemInput{
		Name:     req.Name,
		Size:     req.Size,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// AddRawItem handles POST /api/v1/cart/items/raw
func (h *CartHandler) AddRawItem(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawEntry
	if err := validator.DecodeAndValidate(w, r, &raw); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.AddRaw(r.Context(), sessionFromContext(r.Context()), &raw)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{key}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.SetQuantity(r.Context(), sessionFromContext(r.Context()), chi.URLParam(r, "key"), req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/cart/items/{key}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveItem(r.Context(), sessionFromContext(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), sessionFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /api/v1/cart/events. It streams the cart view as
// Server-Sent Events: once on connect and again after every change to the
// session, until the client goes away.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionFromContext(ctx)

	// Only the latest change matters; a slow client skips intermediate ones.
	changes := make(chan domain.Change, 1)
	unsubscribe, err := h.service.Subscribe(session, func(c domain.Change) {
		for {
			select {
			case changes <- c:
				return
			default:
			}
			select {
			case <-changes:
			default:
			}
		}
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer unsubscribe()

	initial, err := h.service.View(ctx, session)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var id int
	send := func(view domain.View) error {
		id++
		data, err := json.Marshal(view)
		if err != nil {
			return fmt.Errorf("marshal cart view: %w", err)
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, EventCartUpdated, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(initial); err != nil {
		h.logger.DebugContext(ctx, "cart event stream closed", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case change := <-changes:
			if err := send(domain.BuildView(change.Items)); err != nil {
				h.logger.DebugContext(ctx, "cart event stream closed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
