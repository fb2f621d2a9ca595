package httpadapter

import (
	"net/http"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrTraceNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrMalformedOracleOutput):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrOracleUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mapErrorToMessage hides error chains from clients. The full error stays
// in the access log; the client sees a fixed message in the product's
// language.
func mapErrorToMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "La solicitud no es válida."
	case http.StatusUnauthorized:
		return "No autorizado."
	case http.StatusNotFound:
		return "No se encontró el documento de trazabilidad solicitado."
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "No se pudo procesar la pregunta en este momento. Intente nuevamente más tarde."
	default:
		return "No se pudo procesar la solicitud."
	}
}
