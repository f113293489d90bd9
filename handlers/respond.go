package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ferreirogomes/nftmarket/models"
)

// errorBody é o formato JSON de toda requisição que falha.
type errorBody struct {
	Error   string `json:"error"`
	Tip     string `json:"tip,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("falha ao codificar resposta", "error", err)
	}
}

// writeError converte os tipos de erro do marketplace em status HTTP.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var me *models.Error
	if !errors.As(err, &me) {
		slog.Error("erro não tratado", "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: "Internal server error"})
		return
	}

	body := errorBody{Error: me.Message, Tip: me.Tip}
	if errors.Is(err, models.ErrTransaction) && me.Cause != nil {
		body.Details = me.Cause.Error()
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrCapacity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodifica um corpo JSON opcional em v. Corpo vazio é aceito.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return models.Validation("invalid JSON body: %v", err)
	}
	return nil
}
