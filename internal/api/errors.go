package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
)

// errorResponse is the JSON body for every error status.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeError maps a domain error onto a stable status code and message.
// Anything unrecognized is treated as a storage fault: logged and reported
// as 503 so callers know a retry with backoff is reasonable.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidRef     *order.InvalidReferenceError
		invalidQty     *order.InvalidQuantityError
		invalidPayment *order.InvalidPaymentMethodError
		notFound       *order.ProductNotFoundError
		insufficient   *order.InsufficientStockError
		illegal        *order.IllegalTransitionError
		totalMismatch  *order.TotalMismatchError
	)

	status := 0
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrIncompleteAddress),
		errors.As(err, &invalidRef),
		errors.As(err, &invalidQty),
		errors.As(err, &invalidPayment),
		errors.As(err, &totalMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, order.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &insufficient),
		errors.As(err, &illegal),
		errors.Is(err, order.ErrConcurrentModification):
		status = http.StatusConflict
	}

	if status == 0 {
		zctx.From(r.Context()).Error("storage fault", zap.Error(err))
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "temporarily unavailable",
		})
		return
	}

	writeJSON(w, r, status, errorResponse{Code: status, Message: err.Error()})
}
