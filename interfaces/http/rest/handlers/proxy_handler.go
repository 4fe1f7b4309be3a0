package handlers

import (
	"net/http"
	"strings"

	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProxyHandler forwards catalogue requests unchanged.
type ProxyHandler struct {
	proxy        ports.CatalogueProxy
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(proxy ports.CatalogueProxy, logger *zap.Logger, errorHandler *errors.ErrorHandler) *ProxyHandler {
	return &ProxyHandler{proxy: proxy, logger: logger, errorHandler: errorHandler}
}

// GetConcept handles GET /api/wellcome/concepts/{id}
func (h *ProxyHandler) GetConcept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		h.errorHandler.Handle(w, r, errors.NewValidationError("concept id is required"))
		return
	}

	resp, err := h.proxy.FetchConcept(r.Context(), id)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}
	forward(w, resp)
}

// GetWorks handles GET /api/wellcome/works?subjects=
func (h *ProxyHandler) GetWorks(w http.ResponseWriter, r *http.Request) {
	subjects := r.URL.Query().Get("subjects")
	if subjects == "" {
		h.errorHandler.Handle(w, r, errors.NewValidationError("subjects query parameter is required").
			WithCode("MISSING_SUBJECTS"))
		return
	}

	resp, err := h.proxy.FetchWorks(r.Context(), subjects)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}
	forward(w, resp)
}

// upstreamFailed answers a transport failure with a 500.
func (h *ProxyHandler) upstreamFailed(w http.ResponseWriter, r *http.Request, err error) {
	if appErr := errors.FromContext(r.Context().Err(), "catalogue request"); appErr != nil {
		h.errorHandler.Handle(w, r, appErr)
		return
	}
	appErr := errors.NewExternalError("catalogue", err).WithCode("UPSTREAM_FAILED")
	appErr.HTTPStatus = http.StatusInternalServerError
	h.errorHandler.Handle(w, r, appErr)
}

func forward(w http.ResponseWriter, resp *ports.UpstreamResponse) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
