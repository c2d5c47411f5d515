package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/slidegen/internal/completion"
	"github.com/dgallion1/slidegen/internal/generation"
	"github.com/dgallion1/slidegen/internal/material"
	"github.com/dgallion1/slidegen/internal/prompt"
	"github.com/dgallion1/slidegen/internal/slidestream"
)

type generateRequest struct {
	Topic        string `json:"topic"`
	SlideCount   int    `json:"slide_count"`
	Instructions string `json:"instructions"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	// Limit total request size; extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	var (
		req generateRequest
		mat material.Material
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		req.Topic = r.FormValue("topic")
		req.Instructions = r.FormValue("instructions")
		if v := r.FormValue("slide_count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				jsonError(w, "slide_count must be an integer", http.StatusBadRequest)
				return
			}
			req.SlideCount = n
		}

		m, status, err := s.readMaterial(r)
		if err != nil {
			jsonError(w, err.Error(), status)
			return
		}
		mat = m
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		jsonError(w, "topic is required", http.StatusBadRequest)
		return
	}
	if req.SlideCount < 0 || req.SlideCount > s.cfg.MaxSlides {
		jsonError(w, fmt.Sprintf("slide_count must be between 0 and %d", s.cfg.MaxSlides), http.StatusBadRequest)
		return
	}

	system, user, err := prompt.Build(prompt.Params{
		Topic:         req.Topic,
		SlideCount:    req.SlideCount,
		Instructions:  req.Instructions,
		MaterialTitle: mat.Title,
		Material:      mat.Text,
	})
	if err != nil {
		jsonError(w, "failed to build prompt", http.StatusInternalServerError)
		return
	}

	g, ctx, err := s.generations.Begin(r.Context(), req.Topic, "completion")
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	log := s.log.With("generation_id", g.ID)

	src, err := s.completion.Stream(ctx, completion.Request{System: system, Prompt: user})
	if err != nil {
		s.generations.Finish(g, err)
		log.Error("completion request failed", "error", err)
		jsonError(w, err.Error(), completionStatus(err))
		return
	}

	log.Info("generation started",
		"topic", req.Topic,
		"slide_count", req.SlideCount,
		"material_tokens", mat.Tokens,
		"material_truncated", mat.Truncated,
	)
	s.stream(ctx, w, g, src, slidestream.SleepPacer{
		CharacterDelay: s.cfg.CharacterDelay,
		SlideDelay:     s.cfg.SlideDelay,
	})
}

// readMaterial loads the optional "file" form field. It returns the HTTP
// status to use when the upload is rejected.
func (s *Server) readMaterial(r *http.Request) (material.Material, int, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return material.Material{}, 0, nil
	}
	if err != nil {
		return material.Material{}, http.StatusBadRequest, fmt.Errorf("invalid file: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !material.IsSupported(filename) {
		return material.Material{}, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return material.Material{}, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return material.Material{}, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}

	m, err := material.Load(bytes.NewReader(data), filename, s.cfg.MaxMaterialTokens)
	if err != nil {
		return material.Material{}, http.StatusUnprocessableEntity, err
	}
	return m, 0, nil
}

// completionStatus maps a failure to open the completion stream to an HTTP
// status: 503 for transient upstream failures, 502 otherwise.
func completionStatus(err error) int {
	var se *completion.StatusError
	if errors.As(err, &se) && se.Retryable() {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// stream runs one generation to completion over SSE and records the result.
func (s *Server) stream(ctx context.Context, w http.ResponseWriter, g *generation.Generation, src slidestream.Source, pacer slidestream.Pacer) {
	log := s.log.With("generation_id", g.ID)

	sink, err := startSSE(w, g.ID)
	if err != nil {
		if c, ok := src.(io.Closer); ok {
			c.Close()
		}
		s.generations.Finish(g, err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := slidestream.Run(ctx, src, sink, slidestream.Options{
		Pacer:    pacer,
		Observer: slidestream.Observers{g, s.metrics},
		Logger:   log,
	})
	s.generations.Finish(g, err)

	if err != nil {
		log.Warn("generation ended", "outcome", res.Outcome, "slides", len(res.Slides), "error", err)
		return
	}
	log.Info("generation ended", "outcome", res.Outcome, "slides", len(res.Slides))
}
