package httptransport

import (
	"net/http"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
)

// kindToStatus maps error classification kinds to HTTP status codes.
var kindToStatus = map[string]int{
	apperr.KindBadRequest:     http.StatusBadRequest,
	apperr.KindPaymentService: http.StatusBadGateway,
	apperr.KindMailSend:       http.StatusBadGateway,
	apperr.KindTransport:      http.StatusBadGateway,
	apperr.KindPoolExhausted:  http.StatusServiceUnavailable,
	apperr.KindTimeout:        http.StatusGatewayTimeout,
	apperr.KindCanceled:       http.StatusRequestTimeout,
}

func httpStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[apperr.Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
