package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/serisow/smartdoc/archive"
	"github.com/serisow/smartdoc/db"
	"github.com/serisow/smartdoc/rag_type"
	"github.com/serisow/smartdoc/services/rag_service"
	"github.com/serisow/smartdoc/worker"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	// multipart framing on top of the file itself
	multipartOverhead = 1 << 20
)

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *rag_type.Document) error
	GetDocument(ctx context.Context, id string) (*rag_type.Document, error)
	ListDocuments(ctx context.Context, userID string, limit int) ([]rag_type.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	SetDocumentStatus(ctx context.Context, id string, status rag_type.DocumentStatus) error
}

type PageCounter interface {
	CountPages(filename string, data []byte) (int, error)
}

type IngestQueue interface {
	Enqueue(job rag_service.IngestJob) error
}

type DocumentHandler struct {
	store          DocumentStore
	pages          PageCounter
	queue          IngestQueue
	archiver       archive.Archiver
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewDocumentHandler wires the document endpoints. archiver may be nil.
func NewDocumentHandler(store DocumentStore, pages PageCounter, queue IngestQueue, archiver archive.Archiver, maxUploadBytes int64, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:          store,
		pages:          pages,
		queue:          queue,
		archiver:       archiver,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type uploadResponse struct {
	DocumentID string                  `json:"document_id"`
	Title      string                  `json:"title"`
	PageCount  int                     `json:"page_count"`
	ChunkCount int                     `json:"chunk_count"`
	Status     rag_type.DocumentStatus `json:"status"`
	Message    string                  `json:"message"`
}

// Upload accepts a file, registers it as processing and queues ingestion.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received file upload request")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, h.tooLargeMessage(), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !rag_service.IsSupportedFile(header.Filename) {
		h.logger.Warn("Unsupported file type",
			slog.String("filename", header.Filename),
			slog.String("extension", filepath.Ext(header.Filename)))
		writeJSONError(w, fmt.Sprintf("Unsupported file type. Allowed: %s",
			strings.Join(rag_service.SupportedExtensions, ", ")), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		writeJSONError(w, h.tooLargeMessage(), http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		writeJSONError(w, "Empty file", http.StatusBadRequest)
		return
	}

	pageCount, err := h.pages.CountPages(header.Filename, data)
	if err != nil {
		h.logger.Warn("Could not read uploaded file",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeJSONError(w, "Invalid or corrupted file", http.StatusBadRequest)
		return
	}

	doc := &rag_type.Document{
		Title:     strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)),
		Filename:  header.Filename,
		FileSize:  int64(len(data)),
		PageCount: pageCount,
		UserID:    r.FormValue("user_id"),
	}
	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		h.logger.Error("Failed to store document",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to store document", http.StatusInternalServerError)
		return
	}

	if h.archiver != nil {
		location, err := h.archiver.Save(r.Context(), archive.ObjectKey(doc.ID, doc.Filename), data, header.Header.Get("Content-Type"))
		if err != nil {
			h.logger.Warn("Failed to archive upload",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
		} else {
			h.logger.Debug("Archived upload",
				slog.String("document_id", doc.ID),
				slog.String("location", location))
		}
	}

	err = h.queue.Enqueue(rag_service.IngestJob{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Content:    data,
	})
	if err != nil {
		h.logger.Error("Failed to queue document for processing",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()))
		if serr := h.store.SetDocumentStatus(context.WithoutCancel(r.Context()), doc.ID, rag_type.StatusFailed); serr != nil {
			h.logger.Error("Failed to mark document as failed",
				slog.String("document_id", doc.ID),
				slog.String("error", serr.Error()))
		}
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrQueueClosed) {
			writeJSONError(w, "Processing queue is full, try again later", http.StatusServiceUnavailable)
			return
		}
		writeJSONError(w, "Failed to queue document", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Document accepted",
		slog.String("document_id", doc.ID),
		slog.String("filename", doc.Filename),
		slog.Int("pages", doc.PageCount))

	writeJSON(w, http.StatusAccepted, uploadResponse{
		DocumentID: doc.ID,
		Title:      doc.Title,
		PageCount:  doc.PageCount,
		ChunkCount: 0,
		Status:     rag_type.StatusProcessing,
		Message:    "Document uploaded successfully. Processing in background.",
	})
}

func (h *DocumentHandler) tooLargeMessage() string {
	return fmt.Sprintf("File too large. Maximum size: %dMB", h.maxUploadBytes/(1024*1024))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, err := h.store.GetDocument(r.Context(), id)
	if errors.Is(err, db.ErrDocumentNotFound) {
		writeJSONError(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load document",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeJSONError(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	docs, err := h.store.ListDocuments(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		h.logger.Error("Failed to list documents", slog.String("error", err.Error()))
		writeJSONError(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     len(docs),
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.store.DeleteDocument(r.Context(), id)
	if errors.Is(err, db.ErrDocumentNotFound) {
		writeJSONError(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete document",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Document deleted", slog.String("document_id", id))
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Document deleted successfully",
		"document_id": id,
	})
}
