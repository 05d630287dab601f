package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// DeviceResponse wraps a snapshot. Raw is only included on request.
type DeviceResponse struct {
	*device.Snapshot
	Raw map[string]any `json:"raw,omitempty"`
}

// DeviceListResponse is the body of GET /api/v1/devices.
type DeviceListResponse struct {
	Devices           []*device.Snapshot `json:"devices"`
	Count             int                `json:"count"`
	LastUpdateSuccess bool               `json:"last_update_success"`
}

// handleListDevices returns the device table sorted by ID.
//
// Query parameters:
//   - type: only devices of this type (vendor spellings are accepted)
//   - online: "true" or "false"
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var typeFilter device.Type
	if v := q.Get("type"); v != "" {
		typeFilter = device.ParseType(v)
	}

	var onlineFilter *bool
	if v := q.Get("online"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "online must be true or false")
			return
		}
		onlineFilter = &b
	}

	table := s.source.Table()
	devices := make([]*device.Snapshot, 0, len(table))
	for _, id := range table.IDs() {
		snap := table[id]
		if typeFilter != "" && snap.Type != typeFilter {
			continue
		}
		if onlineFilter != nil && snap.Online != *onlineFilter {
			continue
		}
		devices = append(devices, snap)
	}

	writeJSON(w, http.StatusOK, DeviceListResponse{
		Devices:           devices,
		Count:             len(devices),
		LastUpdateSuccess: s.source.LastUpdateSuccess(),
	})
}

// handleGetDevice returns a single device. ?raw=true adds the last raw
// payload merged from the cloud.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, ok := s.source.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	resp := DeviceResponse{Snapshot: snap}
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		resp.Raw = snap.Raw
	}
	writeJSON(w, http.StatusOK, resp)
}
