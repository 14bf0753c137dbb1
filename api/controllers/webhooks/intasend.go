package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gasflowhq/gasflow-backend/api/responses"
	"github.com/gasflowhq/gasflow-backend/internal/webhooks"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// IntaSendWebhook receives invoice state callbacks from the processor.
// Mismatched or unknown references return 200 so the processor stops
// redelivering; transient failures return their mapped error status so it
// retries.
func IntaSendWebhook(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Lenient decode: the processor adds fields without notice.
		var payload webhooks.IntaSendPayload
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body"))
			return
		}

		if err := svc.HandleIntaSend(r.Context(), payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
