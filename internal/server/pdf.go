package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"organized-data/internal/parser"
)

// multipart framing allowance on top of the PDF size cap
const uploadOverhead = 1 << 20

type PDFURLRequest struct {
	URL string `json:"url"`
}

type PDFUploadResponse struct {
	OriginalFileName string `json:"originalFileName"`
	Content          string `json:"content"`
}

type PDFURLResponse struct {
	OriginalURL string `json:"originalUrl"`
	Content     string `json:"content"`
}

func (h *handler) parsePDFUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := h.fetcher.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+uploadOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writePDFError(w, r, parser.ErrPDFSize)
			return
		}
		writeError(w, http.StatusBadRequest, "a pdf file is required in the \"file\" form field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	if err := parser.ValidatePDF(header.Filename, data, maxSize); err != nil {
		h.writePDFError(w, r, err)
		return
	}

	text, err := parser.ExtractPDFText(data)
	if err != nil {
		h.writePDFError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PDFUploadResponse{OriginalFileName: header.Filename, Content: text})
}

func (h *handler) parsePDFURL(w http.ResponseWriter, r *http.Request) {
	var req PDFURLRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	data, err := h.fetcher.FetchPDF(r.Context(), req.URL)
	if err != nil {
		h.writePDFError(w, r, err)
		return
	}
	text, err := parser.ExtractPDFText(data)
	if err != nil {
		h.writePDFError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PDFURLResponse{OriginalURL: req.URL, Content: text})
}

func (h *handler) writePDFError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	h.logger.Warn().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Int("status", status).Msg("Could not parse pdf")
	switch status {
	case http.StatusUnprocessableEntity:
		writeError(w, status, "Could not parse given PDF file")
		return
	case http.StatusInternalServerError:
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}
