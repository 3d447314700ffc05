package handler

import (
	"net/http"

	"nodeclass/internal/codec"
)

// maxImportBytes bounds an uploaded seed or inventory document
const maxImportBytes = 10 << 20

// ImportSeed applies a YAML seed document from the request body
func (h *Handler) ImportSeed(w http.ResponseWriter, r *http.Request) {
	h.importWith(w, r, codec.FormatSeed)
}

// ImportAnsibleInventory applies an Ansible YAML inventory from the
// request body
func (h *Handler) ImportAnsibleInventory(w http.ResponseWriter, r *http.Request) {
	h.importWith(w, r, codec.FormatAnsible)
}

func (h *Handler) importWith(w http.ResponseWriter, r *http.Request, format string) {
	importer, err := codec.ImporterFor(format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	fragment, err := importer.Parse(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.svc.Import.Apply(r.Context(), fragment, r.URL.Query().Get("strategy"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, result, http.StatusOK)
}
