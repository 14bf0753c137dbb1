package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gasflowhq/gasflow-backend/api/middleware"
	"github.com/gasflowhq/gasflow-backend/api/responses"
	"github.com/gasflowhq/gasflow-backend/api/validators"
	"github.com/gasflowhq/gasflow-backend/internal/deliveries"
	"github.com/gasflowhq/gasflow-backend/internal/ledger"
	"github.com/gasflowhq/gasflow-backend/internal/payments"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
)

// portalDeliveryRequest is the self-service variant of delivery creation.
// Customers order for their own account, so there is no customer_id and no
// manual adjustment.
type portalDeliveryRequest struct {
	Items        []deliveryItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryDate *time.Time            `json:"delivery_date,omitempty"`
}

func scopedCustomerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.CustomerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "token carries no customer scope")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid customer scope")
	}
	return id, nil
}

// PortalDeliveryCreate lets a scoped customer token order cylinders for its
// own account.
func PortalDeliveryCreate(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := scopedCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req portalDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := deliveries.CreateDeliveryInput{
			CustomerID: customerID,
			Actor:      actorFromContext(r),
		}
		for _, item := range req.Items {
			capacityID, err := uuid.Parse(item.CylinderCapacityID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cylinder_capacity_id"))
				return
			}
			input.Items = append(input.Items, deliveries.DeliveryItemInput{
				CylinderCapacityID: capacityID,
				Quantity:           item.Quantity,
			})
		}
		if req.DeliveryDate != nil {
			input.DeliveryDate = *req.DeliveryDate
		}

		delivery, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, delivery)
	}
}

func PortalBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := scopedCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"customer_id": customerID,
			"balance":     balance,
		})
	}
}

func PortalDeliveryList(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := scopedCustomerID(r)
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
			"deliveries":  rows,
			"next_cursor": next,
		})
	}
}

func PortalPaymentList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := scopedCustomerID(r)
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
