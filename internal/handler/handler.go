package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/codec"
	"lanwatch/internal/domain"
	"lanwatch/internal/presence"
	"lanwatch/internal/service"
)

// Presence is the read and trigger surface of the monitor
type Presence interface {
	Devices() []presence.Snapshot
	Device(mac domain.MACAddress) (presence.Snapshot, bool)
	Names() map[domain.MACAddress]string
	Status() service.Status
	TriggerScan() bool
}

// PresenceHandler handles the status API
type PresenceHandler struct {
	monitor Presence
	now     func() time.Time
	log     zerolog.Logger
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(monitor Presence, log zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{
		monitor: monitor,
		now:     time.Now,
		log:     log.With().Str("component", "http").Logger(),
	}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DeviceView is one device in API responses
type DeviceView struct {
	presence.Snapshot
	Name string `json:"name,omitempty"`
}

// RegisterRoutes mounts the API and the SSE stream on mux
func (h *PresenceHandler) RegisterRoutes(mux *http.ServeMux, events http.Handler) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /api/status", h.GetStatus)
	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("GET /api/devices/{mac}", h.GetDevice)
	mux.HandleFunc("POST /api/scan", h.TriggerScan)
	mux.HandleFunc("GET /api/export/{format}", h.Export)
	if events != nil {
		mux.Handle("GET /events", events)
	}
}

// Health reports liveness
func (h *PresenceHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// GetStatus returns monitor counters
func (h *PresenceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.monitor.Status(), http.StatusOK)
}

// ListDevices returns every device, optionally filtered with ?online=true|false
func (h *PresenceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("online")
	if filter != "" && filter != "true" && filter != "false" {
		h.writeError(w, "Invalid filter", "online must be true or false", http.StatusBadRequest)
		return
	}

	names := h.monitor.Names()
	views := make([]DeviceView, 0)
	for _, s := range h.monitor.Devices() {
		if filter != "" && (filter == "true") != s.Online {
			continue
		}
		views = append(views, DeviceView{Snapshot: s, Name: names[s.Device.MAC]})
	}

	h.writeJSON(w, views, http.StatusOK)
}

// GetDevice returns a single device
func (h *PresenceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	mac, err := domain.ParseMACAddress(r.PathValue("mac"))
	if err != nil {
		h.writeError(w, "Invalid MAC address", err.Error(), http.StatusBadRequest)
		return
	}

	snap, ok := h.monitor.Device(mac)
	if !ok {
		h.writeError(w, "Not found", fmt.Sprintf("device %s not found", mac), http.StatusNotFound)
		return
	}

	h.writeJSON(w, DeviceView{Snapshot: snap, Name: h.monitor.Names()[mac]}, http.StatusOK)
}

// TriggerScan requests an immediate scan cycle
func (h *PresenceHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	queued := h.monitor.TriggerScan()
	h.log.Info().Bool("queued", queued).Msg("scan requested")
	h.writeJSON(w, map[string]bool{"queued": queued}, http.StatusAccepted)
}

// Export writes the inventory as JSON or YAML
func (h *PresenceHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	exporter := codec.ForFormat(format)
	if exporter == nil {
		h.writeError(w, "Unsupported format", fmt.Sprintf("format %q is not supported, use json or yaml", format), http.StatusBadRequest)
		return
	}

	inv := codec.NewInventory(h.monitor.Devices(), h.monitor.Names(), h.now())

	contentType := "application/json"
	if exporter.Format() == "yaml" {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=lanwatch-devices.%s", exporter.Format()))

	if err := exporter.Export(inv, w); err != nil {
		h.log.Error().Err(err).Str("format", format).Msg("failed to export inventory")
	}
}

func (h *PresenceHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode JSON")
	}
}

func (h *PresenceHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.log.Error().Err(err).Msg("failed to encode error response")
	}
}
