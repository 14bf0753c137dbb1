package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasflowhq/gasflow-backend/api/responses"
	"github.com/gasflowhq/gasflow-backend/api/validators"
	"github.com/gasflowhq/gasflow-backend/internal/customers"
	"github.com/gasflowhq/gasflow-backend/internal/ledger"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
)

type createCustomerRequest struct {
	Name       string   `json:"name" validate:"required,min=1"`
	Phone      *string  `json:"phone,omitempty"`
	Email      *string  `json:"email,omitempty" validate:"omitempty,email"`
	Location   *string  `json:"location,omitempty"`
	PricePerKg string   `json:"price_per_kg" validate:"required"`
	Tags       []string `json:"tags,omitempty"`
}

type updateCustomerRequest struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Phone      *string  `json:"phone,omitempty"`
	Email      *string  `json:"email,omitempty" validate:"omitempty,email"`
	Location   *string  `json:"location,omitempty"`
	PricePerKg *string  `json:"price_per_kg,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price_per_kg must be a decimal number")
	}
	return price, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}

func CustomerCreate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCustomerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parsePrice(req.PricePerKg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.Create(r.Context(), customers.CreateCustomerInput{
			Name:       req.Name,
			Phone:      req.Phone,
			Email:      req.Email,
			Location:   req.Location,
			PricePerKg: price,
			Tags:       req.Tags,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, customer)
	}
}

func CustomerGet(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customer, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func CustomerList(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeRetired := r.URL.Query().Get("include_retired") == "true"

		rows, next, err := svc.List(r.Context(), params, includeRetired)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"customers":   rows,
			"next_cursor": next,
		})
	}
}

func CustomerUpdate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateCustomerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := customers.UpdateCustomerInput{
			Name:     req.Name,
			Phone:    req.Phone,
			Email:    req.Email,
			Location: req.Location,
			Tags:     req.Tags,
		}
		if req.PricePerKg != nil {
			price, err := parsePrice(*req.PricePerKg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.PricePerKg = &price
		}

		customer, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func CustomerRetire(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Retire(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "retired"})
	}
}

// CustomerBalance reads the live signed balance. Positive means the customer
// owes, negative means they hold credit.
func CustomerBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"customer_id": id,
			"balance":     balance,
		})
	}
}
