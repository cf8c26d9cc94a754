package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docspace/internal/app"
	"docspace/internal/transport/http/response"
)

type SearchHandler struct {
	searchService *app.SearchService
	askService    *app.AskService
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  *int   `json:"top_k"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
}

func NewSearchHandler(searchService *app.SearchService, askService *app.AskService) *SearchHandler {
	return &SearchHandler{searchService: searchService, askService: askService}
}

func (h *SearchHandler) Search(c *gin.Context) {
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
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	// Absent top_k means the default; an explicit non-positive value is
	// the caller's error.
	topK := h.searchService.DefaultTopK()
	if req.TopK != nil {
		topK = *req.TopK
	}

	results, err := h.searchService.Search(c.Request.Context(), userID, workspaceID, req.Query, topK)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidQuery):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidQuery, err.Error())
		case errors.Is(err, app.ErrWorkspaceAccess):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search failed")
		}
		return
	}
	response.OK(c, gin.H{"results": results})
}

func (h *SearchHandler) Ask(c *gin.Context) {
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
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.askService.Ask(c.Request.Context(), userID, workspaceID, req.Question, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidQuery):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidQuery, err.Error())
		case errors.Is(err, app.ErrNoContent):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrWorkspaceAccess):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ask failed")
		}
		return
	}
	response.OK(c, result)
}
