package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasflowhq/gasflow-backend/api/middleware"
	"github.com/gasflowhq/gasflow-backend/api/responses"
	"github.com/gasflowhq/gasflow-backend/api/validators"
	"github.com/gasflowhq/gasflow-backend/internal/payments"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
)

type cashPaymentRequest struct {
	CustomerID string  `json:"customer_id" validate:"required,uuid"`
	DeliveryID *string `json:"delivery_id,omitempty" validate:"omitempty,uuid"`
	Amount     string  `json:"amount" validate:"required"`
}

type checkoutRequest struct {
	Amount      string `json:"amount" validate:"required"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

func paymentActor(r *http.Request) payments.ActorRef {
	actor := payments.ActorRef{}
	if id, err := uuid.Parse(middleware.UserIDFromContext(r.Context())); err == nil {
		actor.UserID = id
	}
	actor.Role = enums.ActorRole(middleware.RoleFromContext(r.Context()))
	return actor
}

// PaymentRecordCash books money physically handed to the logged-in staffer.
func PaymentRecordCash(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cashPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := uuid.Parse(req.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer_id"))
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount must be a decimal number"))
			return
		}

		actor := paymentActor(r)
		input := payments.CashPaymentInput{
			CustomerID: customerID,
			Amount:     amount,
			HandledBy:  actor.UserID,
			Actor:      actor,
		}
		if req.DeliveryID != nil {
			deliveryID, err := uuid.Parse(*req.DeliveryID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery_id"))
				return
			}
			input.DeliveryID = &deliveryID
		}

		payment, err := svc.RecordCashPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

// PaymentInitiateCheckout hands back a hosted checkout URL for a delivery.
func PaymentInitiateCheckout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := pathUUID(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount must be a decimal number"))
			return
		}

		checkout, err := svc.InitiateCheckout(r.Context(), payments.InitiateCheckoutInput{
			DeliveryID:  deliveryID,
			Amount:      amount,
			PhoneNumber: req.PhoneNumber,
			Email:       req.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkout)
	}
}

func PaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentListByCustomer(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := pathUUID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.ListByCustomer(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"payments":    rows,
			"next_cursor": next,
		})
	}
}
