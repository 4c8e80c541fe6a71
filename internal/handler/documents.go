package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/service"
)

func (h *Handler) listDocuments(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	docs, err := h.documents.List(c.Request.Context(), p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]documentJSON, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentJSON(&docs[i]))
	}
	c.JSON(http.StatusOK, out)
}

// uploadDocument accepts multipart form fields "file", "collection" and
// comma separated "tags".
func (h *Handler) uploadDocument(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	doc, err := h.documents.Upload(c.Request.Context(), service.UploadInput{
		UserID:     p.UserID,
		Name:       fh.Filename,
		Size:       fh.Size,
		Tags:       splitTags(c.PostForm("tags")),
		Collection: c.PostForm("collection"),
		Body:       f,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDocumentJSON(doc))
}

type urlUploadRequest struct {
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
	Collection string   `json:"collection"`
}

func (h *Handler) uploadDocumentURL(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req urlUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		badRequest(c, "url must be an absolute http(s) URL")
		return
	}

	doc, err := h.documents.UploadURL(c.Request.Context(), p.UserID, u.String(), req.Tags, req.Collection)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDocumentJSON(doc))
}

func (h *Handler) deleteDocument(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), p.UserID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
