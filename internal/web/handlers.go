package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// restoreBody is the optional JSON body of the restore endpoints. Config
// fields left out keep restore.DefaultConfig values.
type restoreBody struct {
	Config   restore.DeployConfig `json:"config"`
	Archived *asset.ExportData    `json:"archived,omitempty"`
}

// ValidateResponse is returned by the validate endpoint.
type ValidateResponse struct {
	Valid   bool                       `json:"valid"`
	Results []restore.ValidationResult `json:"results"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string               `json:"status"`
	Restores deploy.LimiterStatus `json:"restores"`
	Kinds    []asset.Kind         `json:"kinds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Restores: s.coord.Limiter().Status(),
		Kinds:    s.coord.Kinds(),
	})
}

func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	type kindInfo struct {
		Kind         asset.Kind         `json:"kind"`
		Restorable   bool               `json:"restorable"`
		Capabilities asset.Capabilities `json:"capabilities"`
	}
	restorable := make(map[asset.Kind]bool)
	for _, k := range s.coord.Kinds() {
		restorable[k] = true
	}
	var out []kindInfo
	for _, k := range asset.AllKinds() {
		out = append(out, kindInfo{Kind: k, Restorable: restorable[k], Capabilities: asset.CapabilitiesFor(k)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, err := s.restoreRequest(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	results, err := s.coord.Validate(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: !restore.HasErrors(results), Results: results})
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	req, err := s.restoreRequest(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.coord.Deploy(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Status == restore.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handleDeployBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Restore.MaxManifestSize))
	if err != nil {
		respondError(w, r, err)
		return
	}
	manifest, err := deploy.LoadManifest(bytes.NewReader(raw))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.coord.DeployBatch(r.Context(), manifest))
}

func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, r, fmt.Errorf("%w: limit must be a positive integer", deploy.ErrInvalidRequest))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	results, err := s.coord.ListHistory(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if results == nil {
		results = []restore.DeploymentResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	result, err := s.coord.History(r.Context(), chi.URLParam(r, "deploymentID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleParsedAsset(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	info, err := s.coord.Inspect(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// restoreRequest builds a deploy.Request from the path and the optional body.
func (s *Server) restoreRequest(w http.ResponseWriter, r *http.Request) (deploy.Request, error) {
	kind, err := kindParam(r)
	if err != nil {
		return deploy.Request{}, err
	}

	body := restoreBody{Config: restore.DefaultConfig()}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.Restore.MaxArchiveSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return deploy.Request{}, maxBytes
		}
		return deploy.Request{}, fmt.Errorf("%w: decode body: %v", deploy.ErrInvalidRequest, err)
	}

	return deploy.Request{
		Kind:     kind,
		ID:       chi.URLParam(r, "id"),
		Config:   body.Config,
		Archived: body.Archived,
	}, nil
}

func kindParam(r *http.Request) (asset.Kind, error) {
	kind, err := asset.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", deploy.ErrInvalidRequest, err)
	}
	return kind, nil
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
