// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package remotestore is the receiving end of the upload wire contract: it accepts
// one multipart file per request, stores it and answers with its URL.
package remotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	xlog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/health"
	"github.com/ManuGH/pixup/internal/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
)

// Config configures the server.
type Config struct {
	Listen         string
	DataDir        string
	PublicURL      string // base for returned URLs; defaults to http://<listen>
	FieldName      string // multipart file field, default "file"
	MaxUploadBytes int64
	RateLimit      int // requests per minute per IP; 0 disables
	MaxConnections int // 0 = unlimited
	Version        string
	Logger         zerolog.Logger
}

// Server stores uploads in a BlobDir and indexes them in SQLite.
type Server struct {
	cfg    Config
	index  *Index
	blobs  *BlobDir
	health *health.Manager
	logger zerolog.Logger
	now    func() time.Time
}

// New opens the index and blob directory under cfg.DataDir.
func New(cfg Config) (*Server, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("remotestore: data dir is required")
	}
	if cfg.FieldName == "" {
		cfg.FieldName = "file"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://" + cfg.Listen
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	blobRoot := filepath.Join(cfg.DataDir, "blobs")
	blobs, err := NewBlobDir(blobRoot)
	if err != nil {
		return nil, err
	}
	index, err := OpenIndex(filepath.Join(cfg.DataDir, "index.db"))
	if err != nil {
		return nil, err
	}

	hm := health.NewManager(cfg.Version)
	hm.Register(
		health.NewCheckFunc("index", index.Ping),
		health.NewDirChecker("blobs", blobRoot),
	)

	return &Server{cfg: cfg, index: index, blobs: blobs, health: hm, logger: cfg.Logger, now: time.Now}, nil
}

func (s *Server) Close() error {
	return s.index.Close()
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(traced("pixup-remotestore"))

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit, time.Minute))
		}
		r.Post("/uploads", s.handleUpload)
		r.Get("/uploads", s.handleList)
		r.Get("/uploads/{name}", s.handleGet)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("remote store listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := xlog.WithContext(r.Context(), s.logger).With().
		Str("request_id", middleware.GetReqID(r.Context())).Logger()

	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+64<<10)

	part, err := s.filePart(r)
	if err != nil {
		metrics.IncRemoteStoreUpload("rejected")
		logger.Info().Err(err).Msg("upload rejected")
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	defer func() { _ = part.Close() }()

	original := part.FileName()
	name := uuid.NewString() + safeExt(original)

	size, sum, err := s.blobs.Write(name, part, s.cfg.MaxUploadBytes)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.Is(err, ErrTooLarge) || errors.As(err, &maxErr) {
			metrics.IncRemoteStoreUpload("rejected")
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
			return
		}
		metrics.IncRemoteStoreUpload("failed")
		logger.Error().Err(err).Msg("store blob")
		writeError(w, http.StatusInternalServerError, "store_failed", "could not store upload")
		return
	}

	mediaType := part.Header.Get("Content-Type")
	if f, err := s.blobs.Open(name); err == nil {
		if m, err := mimetype.DetectReader(f); err == nil {
			mediaType = m.String()
		}
		_ = f.Close()
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}

	entry := Entry{
		Name:         name,
		OriginalName: original,
		MediaType:    mediaType,
		SizeBytes:    size,
		SHA256:       sum,
		StoredAt:     s.now(),
	}
	if err := s.index.Insert(r.Context(), entry); err != nil {
		_ = s.blobs.Remove(name)
		metrics.IncRemoteStoreUpload("failed")
		logger.Error().Err(err).Msg("index upload")
		writeError(w, http.StatusInternalServerError, "store_failed", "could not index upload")
		return
	}

	metrics.IncRemoteStoreUpload("stored")
	metrics.RemoteStoreBytes.Add(float64(size))

	url := s.cfg.PublicURL + "/uploads/" + name
	logger.Info().
		Str(xlog.FieldFileName, original).
		Str("name", name).
		Str(xlog.FieldMediaType, mediaType).
		Int64(xlog.FieldSizeBytes, size).
		Msg("upload stored")

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// filePart returns the first part carrying the configured field.
func (s *Server) filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("missing %q file field", s.cfg.FieldName)
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == s.cfg.FieldName && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be in 1..1000")
			return
		}
		limit = n
	}
	entries, err := s.index.List(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list uploads")
		writeError(w, http.StatusInternalServerError, "internal", "could not list uploads")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": entries})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entry, err := s.index.Get(r.Context(), name)
	if err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("get upload")
		writeError(w, http.StatusInternalServerError, "internal", "could not read upload")
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "not_found", "no such upload")
		return
	}

	f, err := s.blobs.Open(entry.Name)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "no such upload")
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", entry.MediaType)
	w.Header().Set("ETag", `"`+entry.SHA256+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, entry.Name, entry.StoredAt, f)
}

// safeExt keeps a short alphanumeric extension of the client's file name.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"error": code, "detail": detail})
}
