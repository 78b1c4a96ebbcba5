package tablet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcdev12/roulette-tablet/go/clients"
	"github.com/mcdev12/roulette-tablet/go/internal/models"
	"github.com/mcdev12/roulette-tablet/go/internal/serialdev"
	"github.com/mcdev12/roulette-tablet/go/internal/session"
	"github.com/rs/zerolog/log"
)

const msgMissingGameID = "Please provide a game_id"

// maxBodyBytes bounds control request bodies.
const maxBodyBytes = 1 << 16

// Handler serves the tablet view, the operator controls and the event feed.
type Handler struct {
	registry          *session.Registry
	connectionManager *ConnectionManager
}

// NewHandler creates a handler over registry.
func NewHandler(registry *session.Registry, cm *ConnectionManager) *Handler {
	return &Handler{
		registry:          registry,
		connectionManager: cm,
	}
}

// RegisterRoutes registers the tablet routes with mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /tablet/view", h.HandleView)
	mux.HandleFunc("POST /tablet/actions/shoot", h.HandleShoot)
	mux.HandleFunc("POST /tablet/actions/use-item", h.HandleUseItem)
	mux.HandleFunc("POST /tablet/actions/select-target", h.HandleSelectTarget)
	mux.HandleFunc("POST /tablet/actions/cancel", h.HandleCancel)
	mux.HandleFunc("POST /tablet/message/dismiss", h.HandleDismissMessage)
	mux.HandleFunc("POST /tablet/serial/connect", h.HandleSerialConnect)
	mux.HandleFunc("POST /tablet/serial/disconnect", h.HandleSerialDisconnect)
	mux.HandleFunc("DELETE /tablet/session", h.HandleEndSession)
	mux.HandleFunc("GET /tablet/stats", h.HandleStats)
	mux.HandleFunc("GET /ws/tablet", h.HandleWebSocket)
}

type shootRequest struct {
	TargetID *int `json:"target_id"`
}

type useItemRequest struct {
	ItemName string `json:"item_name"`
	TargetID *int   `json:"target_id"`
}

type serialConnectRequest struct {
	Port string `json:"port"`
}

type actionResponse struct {
	Ack  *models.Ack  `json:"ack,omitempty"`
	View session.View `json:"view"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleView handles GET /tablet/view
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// HandleShoot handles POST /tablet/actions/shoot
func (h *Handler) HandleShoot(w http.ResponseWriter, r *http.Request) {
	var req shootRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TargetID == nil {
		writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}
	h.dispatch(w, r, session.Shoot{TargetID: *req.TargetID})
}

// HandleUseItem handles POST /tablet/actions/use-item
func (h *Handler) HandleUseItem(w http.ResponseWriter, r *http.Request) {
	var req useItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ItemName == "" {
		writeError(w, http.StatusBadRequest, "item_name is required")
		return
	}
	h.dispatch(w, r, session.UseItem{Item: req.ItemName, TargetID: req.TargetID})
}

// HandleSelectTarget handles POST /tablet/actions/select-target
func (h *Handler) HandleSelectTarget(w http.ResponseWriter, r *http.Request) {
	var req shootRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TargetID == nil {
		writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}
	h.dispatch(w, r, session.SelectTarget{TargetID: *req.TargetID})
}

// HandleCancel handles POST /tablet/actions/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, session.CancelInteraction{})
}

// HandleDismissMessage handles POST /tablet/message/dismiss
func (h *Handler) HandleDismissMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.DismissMessage()
	writeJSON(w, http.StatusOK, s.View())
}

// HandleSerialConnect handles POST /tablet/serial/connect
func (h *Handler) HandleSerialConnect(w http.ResponseWriter, r *http.Request) {
	var req serialConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	// The device outlives the request.
	if err := s.ConnectSerial(context.WithoutCancel(r.Context()), req.Port); err != nil {
		log.Error().Err(err).Str("game_id", s.GameID()).Str("port", req.Port).Msg("failed to connect serial device")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// HandleSerialDisconnect handles POST /tablet/serial/disconnect
func (h *Handler) HandleSerialDisconnect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DisconnectSerial(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// HandleEndSession handles DELETE /tablet/session
func (h *Handler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	if _, err := h.registry.Resolve(gameID); err != nil {
		writeError(w, http.StatusBadRequest, msgMissingGameID)
		return
	}
	s, ok := h.registry.Lookup(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	h.registry.Remove(gameID)
	h.connectionManager.CloseGame(s.GameID())
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /tablet/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()
	stats.Sessions = h.registry.GameIDs()
	writeJSON(w, http.StatusOK, stats)
}

// HandleWebSocket handles GET /ws/tablet. The first frame is the current view,
// every later frame is a session event.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := h.connectionManager.UpgradeConnection(w, r, s.GameID(), s.View()); err != nil {
		// The upgrader has already written the HTTP error.
		log.Error().
			Err(err).
			Str("game_id", s.GameID()).
			Msg("failed to upgrade WebSocket connection")
	}
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, intent session.Intent) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ack, err := s.Dispatch(r.Context(), intent)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Ack: ack, View: s.View()})
}

// session resolves the game_id query parameter, writing the error response when it cannot.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.registry.Get(r.URL.Query().Get("game_id"))
	if err != nil {
		if errors.Is(err, session.ErrMissingGameID) {
			writeError(w, http.StatusBadRequest, msgMissingGameID)
		} else {
			writeError(w, statusFor(err), err.Error())
		}
		return nil, false
	}
	return s, true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, clients.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, clients.ErrInvalidAction),
		errors.Is(err, session.ErrNoPendingInteraction),
		errors.Is(err, serialdev.ErrAlreadyConnected),
		errors.Is(err, serialdev.ErrPortBusy):
		return http.StatusConflict
	case errors.Is(err, clients.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrSerialDisabled),
		errors.Is(err, serialdev.ErrUnsupportedDevice):
		return http.StatusNotImplemented
	case errors.Is(err, session.ErrStopped),
		errors.Is(err, serialdev.ErrDeviceClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
