package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasflowhq/gasflow-backend/api/middleware"
	"github.com/gasflowhq/gasflow-backend/api/responses"
	"github.com/gasflowhq/gasflow-backend/api/validators"
	"github.com/gasflowhq/gasflow-backend/internal/deliveries"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
)

type deliveryItemRequest struct {
	CylinderCapacityID string `json:"cylinder_capacity_id" validate:"required,uuid"`
	Quantity           int    `json:"quantity" validate:"required,gt=0"`
}

type createDeliveryRequest struct {
	CustomerID       string                `json:"customer_id" validate:"required,uuid"`
	Items            []deliveryItemRequest `json:"items" validate:"required,min=1,dive"`
	ManualAdjustment *string               `json:"manual_adjustment,omitempty"`
	DeliveryDate     *time.Time            `json:"delivery_date,omitempty"`
}

type updateDeliveryStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type updateDeliveryPriceRequest struct {
	PricePerKg string `json:"price_per_kg" validate:"required"`
}

func actorFromContext(r *http.Request) deliveries.ActorRef {
	actor := deliveries.ActorRef{}
	if id, err := uuid.Parse(middleware.UserIDFromContext(r.Context())); err == nil {
		actor.UserID = id
	}
	actor.Role = enums.ActorRole(middleware.RoleFromContext(r.Context()))
	return actor
}

func DeliveryCreate(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := uuid.Parse(req.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer_id"))
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
		if req.ManualAdjustment != nil {
			adjustment, err := decimal.NewFromString(*req.ManualAdjustment)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "manual_adjustment must be a decimal number"))
				return
			}
			input.ManualAdjustment = adjustment
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

func DeliveryGet(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

func DeliveryListByCustomer(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
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
			"deliveries":  rows,
			"next_cursor": next,
		})
	}
}

func DeliveryUpdateStatus(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateDeliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDeliveryStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		delivery, err := svc.UpdateStatus(r.Context(), deliveries.UpdateStatusInput{
			DeliveryID: id,
			NewStatus:  status,
			Actor:      actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

func DeliveryDelete(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id, actorFromContext(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// DeliveryCheckLock answers whether the price can still be edited. The edit
// endpoint re-checks inside its transaction, so this is advisory for the UI.
func DeliveryCheckLock(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lock, err := svc.CheckLock(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lock)
	}
}

func DeliveryUpdatePrice(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateDeliveryPriceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parsePrice(req.PricePerKg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.UpdatePrice(r.Context(), deliveries.UpdatePriceInput{
			DeliveryID:    id,
			NewPricePerKg: price,
			Actor:         actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}
