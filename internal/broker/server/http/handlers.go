package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/hmibroker/internal/broker/command"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

const maxBodyBytes = 1 << 20

// statusCodes maps result codes onto HTTP statuses. The body always carries the full response.
var statusCodes = map[command.ResultCode]int{
	command.Success:                 http.StatusOK,
	command.InvalidData:             http.StatusBadRequest,
	command.UnsupportedRequest:      http.StatusNotFound,
	command.Disallowed:              http.StatusForbidden,
	command.CapabilityUnavailable:   http.StatusServiceUnavailable,
	command.ResourceConflict:        http.StatusConflict,
	command.Timeout:                 http.StatusGatewayTimeout,
	command.ApplicationDisconnected: http.StatusGone,
	command.Aborted:                 http.StatusServiceUnavailable,
	command.GenericError:            http.StatusBadGateway,
}

func (s *Server) postRPC(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appID, fn := vars["appID"], core.FunctionID(vars["function"])

	params := core.Payload{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object: "+err.Error())
		return
	}
	if params == nil {
		params = core.Payload{}
	}

	// The request context ends when the client goes away, which aborts the command.
	resp := s.svc.HandleRequest(r.Context(), appID, fn, params)

	status, ok := statusCodes[resp.ResultCode]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func (s *Server) deleteApplication(w http.ResponseWriter, r *http.Request) {
	s.svc.DisconnectApplication(r.Context(), mux.Vars(r)["appID"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLeases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Leases())
}

func (s *Server) getCapabilities(w http.ResponseWriter, _ *http.Request) {
	snap := s.svc.Capabilities()
	writeJSON(w, http.StatusOK, CapabilitiesView{
		Usable:     s.svc.Ready(),
		Missing:    snap.Missing(),
		Components: snap.Status(),
	})
}
