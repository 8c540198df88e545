package api

import (
	"net/http"

	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/catalog"
)

const maxUpload = 10 << 20

// ImportCatalog replaces the live catalog with an uploaded spreadsheet. Name
// and version are required, and a name@version already served with other
// members is refused. Calls already running finish on the catalog they
// started with.
func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	const op = "catalog.import"
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	v := calcerr.NewValidator(op)
	file, _, err := r.FormFile("file")
	if err != nil {
		v.Add("file", "spreadsheet required: %v", err)
	} else {
		defer file.Close()
	}
	name, version := r.FormValue("name"), r.FormValue("version")
	if name == "" {
		v.Add("name", "is required")
	}
	if version == "" {
		v.Add("version", "is required")
	}
	if err := v.Err(); err != nil {
		h.fail(w, r, op, err)
		return
	}

	c, err := catalog.LoadXLSX(file, name, version)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if err := h.Engine.InstallCatalog(c); err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.logger().Info("api.catalog_imported", "catalog", c.Ref(), "hash", c.ContentHash(), "members", c.Len())
	writeJSON(w, http.StatusOK, h.Engine.Versions())
}
