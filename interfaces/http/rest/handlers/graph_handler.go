package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/kenoir/weco-concept-explorer/application/explorer"
	"github.com/kenoir/weco-concept-explorer/application/interaction"
	"github.com/kenoir/weco-concept-explorer/interfaces/render"
	"github.com/kenoir/weco-concept-explorer/pkg/errors"
	"github.com/kenoir/weco-concept-explorer/pkg/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GraphHandler serves exploration graphs as JSON and as rendered SVG.
type GraphHandler struct {
	snapshots    *explorer.Snapshotter
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(snapshots *explorer.Snapshotter, logger *zap.Logger, errorHandler *errors.ErrorHandler) *GraphHandler {
	return &GraphHandler{snapshots: snapshots, logger: logger, errorHandler: errorHandler}
}

// GetGraph handles GET /api/v1/graphs/{conceptID}
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	conceptID := chi.URLParam(r, "conceptID")
	depth, err := intParam(r, "depth", "gte=1,lte=5")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	data, err := h.snapshots.Graph(r.Context(), conceptID, depth)
	if err != nil {
		h.errorHandler.Handle(w, r, buildError(conceptID, err))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, data)
}

// GetGraphSVG handles GET /api/v1/graphs/{conceptID}/svg
func (h *GraphHandler) GetGraphSVG(w http.ResponseWriter, r *http.Request) {
	conceptID := chi.URLParam(r, "conceptID")
	depth, err := intParam(r, "depth", "gte=1,lte=5")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	width, err := intParam(r, "width", "gte=100,lte=8000")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	height, err := intParam(r, "height", "gte=100,lte=8000")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	surface := interaction.Surface{Width: float64(width), Height: float64(height)}
	scene, _, err := h.snapshots.Scene(r.Context(), conceptID, depth, surface)
	if err != nil {
		h.errorHandler.Handle(w, r, buildError(conceptID, err))
		return
	}

	body, err := render.SVG(scene)
	if err != nil {
		h.errorHandler.Handle(w, r, errors.NewInternalError("failed to render graph").WithCause(err))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func buildError(conceptID string, err error) error {
	switch {
	case stderrors.Is(err, explorer.ErrRootNotFound):
		return errors.NewNotFoundError("concept '"+conceptID+"'").
			WithCode("ROOT_NOT_FOUND").
			WithCause(err)
	case stderrors.Is(err, explorer.ErrRootUnavailable):
		return errors.NewExternalError("catalogue", err).
			WithCode("ROOT_UNAVAILABLE")
	}
	if appErr := errors.FromContext(err, "graph build"); appErr != nil {
		return appErr
	}
	return errors.NewInternalError("failed to build graph").WithCause(err)
}

// intParam reads an optional integer query parameter. Zero means absent.
func intParam(r *http.Request, name, tag string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(name + " must be an integer")
	}
	if err := validation.Var(name, v, tag); err != nil {
		return 0, errors.NewValidationError(err.Error())
	}
	return v, nil
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
