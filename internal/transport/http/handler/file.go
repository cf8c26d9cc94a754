package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docspace/internal/app"
	"docspace/internal/extract"
	"docspace/internal/model"
	"docspace/internal/transport/http/response"
)

type FileHandler struct {
	ingestService *app.IngestService
}

func NewFileHandler(ingestService *app.IngestService) *FileHandler {
	return &FileHandler{ingestService: ingestService}
}

type fileStatusResponse struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Upload accepts a multipart form with "file" and starts the ingestion
// pipeline. It returns immediately with status uploaded; duplicate,
// format and size violations fail synchronously.
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	workspaceID, err := parseUintParam(c, "id")
	if err != nil || workspaceID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid workspace id")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	file, err := h.ingestService.Ingest(c.Request.Context(), app.IngestInput{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Filename:    fileHeader.Filename,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeIngestError(c, err)
		return
	}

	response.OK(c, filePayload(file))
}

func (h *FileHandler) writeIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, extract.ErrUnsupportedFormat):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFormat, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrDuplicateFile):
		response.Error(c, http.StatusConflict, response.CodeDuplicateFile, err.Error())
	case errors.Is(err, app.ErrWorkspaceAccess):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
	}
}

func (h *FileHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	workspaceID, err := parseUintParam(c, "id")
	if err != nil || workspaceID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid workspace id")
		return
	}
	files, err := h.ingestService.ListFiles(workspaceID, userID)
	if err != nil {
		if errors.Is(err, app.ErrWorkspaceAccess) {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list files failed")
		}
		return
	}
	payloads := make([]gin.H, len(files))
	for i := range files {
		payloads[i] = filePayload(&files[i])
	}
	response.OK(c, payloads)
}

func (h *FileHandler) GetStatus(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	fileID, err := parseUintParam(c, "id")
	if err != nil || fileID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file id")
		return
	}
	file, err := h.ingestService.GetStatus(fileID, userID)
	if err != nil {
		h.writeFileError(c, err, "get file status failed")
		return
	}
	response.OK(c, fileStatusResponse{ID: file.ID, Status: file.Status, Error: file.Error})
}

func (h *FileHandler) Resubmit(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	fileID, err := parseUintParam(c, "id")
	if err != nil || fileID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file id")
		return
	}
	file, err := h.ingestService.Resubmit(c.Request.Context(), fileID, userID)
	if err != nil {
		if errors.Is(err, app.ErrFileNotResubmittable) {
			response.Error(c, http.StatusConflict, response.CodeConflict, err.Error())
			return
		}
		h.writeFileError(c, err, "resubmit file failed")
		return
	}
	response.OK(c, filePayload(file))
}

func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	fileID, err := parseUintParam(c, "id")
	if err != nil || fileID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file id")
		return
	}
	if err := h.ingestService.DeleteFile(c.Request.Context(), fileID, userID); err != nil {
		h.writeFileError(c, err, "delete file failed")
		return
	}
	response.OK(c, gin.H{"deleted_file_id": fileID})
}

func (h *FileHandler) writeFileError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrFileNotFound):
		response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
	case errors.Is(err, app.ErrWorkspaceAccess):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func filePayload(file *model.File) gin.H {
	return gin.H{
		"id":           file.ID,
		"workspace_id": file.WorkspaceID,
		"filename":     file.Filename,
		"extension":    file.Extension,
		"mime_type":    file.MimeType,
		"size":         file.Size,
		"content_hash": file.ContentHash,
		"status":       file.Status,
		"error":        file.Error,
		"created_at":   file.CreatedAt,
		"updated_at":   file.UpdatedAt,
	}
}
