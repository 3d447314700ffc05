package handler

import (
	"bytes"
	"net/http"

	"nodeclass/internal/codec"
	"nodeclass/internal/resolver"
)

// contentTypes maps export formats to response media types
var contentTypes = map[string]string{
	codec.FormatYAML: "application/x-yaml",
	codec.FormatJSON: "application/json",
}

// GetClassification serves a node's ENC document. The format query
// parameter selects yaml (default) or json.
func (h *Handler) GetClassification(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = codec.FormatYAML
	}
	exporter, err := codec.ExporterFor(format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.svc.Classification.Resolve(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Render fully before writing so a failure can still set the status
	var buf bytes.Buffer
	if err := exporter.Export(c, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[exporter.Format()])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ExplainResponse shows how a classification was derived
type ExplainResponse struct {
	Node       string                     `json:"node"`
	Classes    []string                   `json:"classes"`
	Parameters map[string]string          `json:"parameters"`
	Groups     []resolver.ScopedGroup     `json:"groups"`
	Sources    []resolver.ParameterSource `json:"sources"`
	Cycles     int                        `json:"cycles,omitempty"`
}

// ExplainClassification reports the groups in scope for a node and the
// source of every winning parameter
func (h *Handler) ExplainClassification(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Classification.Explain(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, ExplainResponse{
		Node:       res.Classification.Node,
		Classes:    res.Classification.Classes,
		Parameters: res.Classification.Parameters,
		Groups:     res.Groups,
		Sources:    res.Sources,
		Cycles:     res.Cycles,
	}, http.StatusOK)
}

// ListClassifications resolves every node
func (h *Handler) ListClassifications(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.Classification.ClassifyAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, all, http.StatusOK)
}

// ExportAnsibleInventory renders the whole graph as an Ansible inventory
func (h *Handler) ExportAnsibleInventory(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.Classification.ExportInventory(r.Context(), &buf); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", "attachment; filename=inventory.yml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ListCycles audits the stored inclusion graph
func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.svc.Classification.FindCycles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"cycles": cycles}, http.StatusOK)
}
