package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ahmethakanbesel/riksbank-cache/internal/apperror"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/scraper/riksbank"
	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

// writeAppError maps err onto a status code and writes it.
func writeAppError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)
	if appErr.Code() == apperror.Internal {
		slog.Error("request failed", "error", err)
	}
	writeError(w, appErr.HTTPStatus(), appErr.Error())
}

var rejectedExport = []error{
	rate.ErrMalformedSource,
	rate.ErrStaleSentinel,
	rate.ErrPublicationOverdue,
	rate.ErrFutureDate,
	rate.ErrEmptyRange,
	series.ErrUnreasonableRange,
}

func toAppError(err error) *apperror.AppError {
	if appErr, ok := apperror.As(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, rate.ErrNotFoundOrWrongType):
		return apperror.Wrap(apperror.NotFound, "rate not cached", err)
	case errors.Is(err, riksbank.ErrUpstream):
		return apperror.Wrap(apperror.BadGateway, "upstream fetch failed", err)
	}
	for _, target := range rejectedExport {
		if errors.Is(err, target) {
			return apperror.Wrap(apperror.Unprocessable, "export rejected", err)
		}
	}
	return apperror.New(apperror.Internal, "internal server error")
}
