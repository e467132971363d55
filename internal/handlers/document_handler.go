package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger parts spill to temp files.
const maxUploadMemory = 32 << 20

// DocumentHandler handles file upload and document management requests
type DocumentHandler struct {
	ingestService  interfaces.IngestService
	contextService interfaces.ContextService
	files          interfaces.FileStorage
	sites          interfaces.SiteStorage
	logger         arbor.ILogger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(
	ingestService interfaces.IngestService,
	contextService interfaces.ContextService,
	storage interfaces.StorageManager,
	logger arbor.ILogger,
) *DocumentHandler {
	return &DocumentHandler{
		ingestService:  ingestService,
		contextService: contextService,
		files:          storage.FileStorage(),
		sites:          storage.SiteStorage(),
		logger:         logger,
	}
}

// UploadHandler handles POST /api/contexts/{id}/files multipart uploads.
// Each file is validated and accepted independently; the response reports
// per-file outcomes.
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request, contextID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "user_id form field is required")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		WriteError(w, http.StatusBadRequest, "No files in upload")
		return
	}

	uploads := make([]interfaces.FileUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Failed to read uploaded file: "+err.Error())
			return
		}
		defer f.Close()

		uploads = append(uploads, interfaces.FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Reader:      f,
		})
	}

	files, errs := h.ingestService.IngestFiles(r.Context(), contextID, userID, uploads)

	results := make([]map[string]interface{}, len(uploads))
	accepted := 0
	for i := range uploads {
		result := map[string]interface{}{
			"filename": uploads[i].Filename,
		}
		if errs[i] != nil {
			result["accepted"] = false
			result["error"] = errs[i].Error()
		} else {
			result["accepted"] = true
			result["file"] = files[i]
			accepted++
		}
		results[i] = result
	}

	h.logger.Info().
		Str("context_id", contextID).
		Int("accepted", accepted).
		Int("rejected", len(uploads)-accepted).
		Msg("Upload processed")

	status := http.StatusOK
	if accepted == 0 {
		status = http.StatusBadRequest
	}
	WriteJSON(w, status, map[string]interface{}{
		"results": results,
	})
}

// ListHandler handles GET /api/contexts/{id}/documents, returning both
// uploaded files and captured pages with their processing status.
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request, contextID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	files, err := h.files.ListFilesByContext(r.Context(), contextID)
	if err != nil {
		h.logger.Error().Err(err).Str("context_id", contextID).Msg("Failed to list files")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	sites, err := h.sites.ListSitesByContext(r.Context(), contextID)
	if err != nil {
		h.logger.Error().Err(err).Str("context_id", contextID).Msg("Failed to list sites")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"sites": sites,
	})
}

// FileHandler handles /api/files/{id} and /api/files/{id}/reprocess
func (h *DocumentHandler) FileHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/files/")

	if r.Method == http.MethodPost && strings.HasSuffix(path, "/reprocess") {
		fileID := strings.TrimSuffix(path, "/reprocess")
		if err := h.ingestService.ReprocessFile(r.Context(), fileID); err != nil {
			WriteError(w, http.StatusNotFound, "Failed to reprocess file: "+err.Error())
			return
		}
		WriteSuccess(w, "File reprocessing started")
		return
	}

	if strings.Contains(path, "/") || path == "" {
		WriteError(w, http.StatusNotFound, "File not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		file, err := h.files.GetFile(r.Context(), path)
		if err != nil {
			WriteError(w, http.StatusNotFound, "File not found")
			return
		}
		WriteJSON(w, http.StatusOK, file)

	case http.MethodDelete:
		if err := h.contextService.DeleteFile(r.Context(), path); err != nil {
			WriteError(w, http.StatusNotFound, "Failed to delete file: "+err.Error())
			return
		}
		WriteSuccess(w, "File deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// SiteHandler handles /api/sites/{id} and /api/sites/{id}/reprocess
func (h *DocumentHandler) SiteHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sites/")

	if r.Method == http.MethodPost && strings.HasSuffix(path, "/reprocess") {
		siteID := strings.TrimSuffix(path, "/reprocess")
		if err := h.ingestService.ReprocessSite(r.Context(), siteID); err != nil {
			WriteError(w, http.StatusNotFound, "Failed to reprocess site: "+err.Error())
			return
		}
		WriteSuccess(w, "Site reprocessing started")
		return
	}

	if strings.Contains(path, "/") || path == "" {
		WriteError(w, http.StatusNotFound, "Site not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		site, err := h.sites.GetSite(r.Context(), path)
		if err != nil {
			WriteError(w, http.StatusNotFound, "Site not found")
			return
		}
		WriteJSON(w, http.StatusOK, site)

	case http.MethodDelete:
		if err := h.contextService.DeleteSite(r.Context(), path); err != nil {
			WriteError(w, http.StatusNotFound, "Failed to delete site: "+err.Error())
			return
		}
		WriteSuccess(w, "Site deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
