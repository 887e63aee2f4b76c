package escrows

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/influencehub-backend/api/middleware"
	"github.com/angelmondragon/influencehub-backend/api/responses"
	"github.com/angelmondragon/influencehub-backend/api/validators"
	"github.com/angelmondragon/influencehub-backend/internal/escrow"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
	"github.com/angelmondragon/influencehub-backend/pkg/logger"
)

// Create opens a pending hold for a campaign.
func Create(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r, svc, logg)
		if !ok {
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			writeResult(w, escrow.Invalid(bodyMessage(err)), http.StatusCreated)
			return
		}
		campaignID, err := uuid.Parse(req.CampaignID)
		if err != nil {
			writeResult(w, escrow.Invalid("invalid campaign id"), http.StatusCreated)
			return
		}

		res, err := svc.CreateEscrowAccount(r.Context(), actor, escrow.CreateInput{
			CampaignID: campaignID,
			Amount:     req.Amount,
			Currency:   req.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, http.StatusCreated)
	}
}

// Fund confirms the brand's payment method against the provider hold.
func Fund(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r, svc, logg)
		if !ok {
			return
		}
		escrowID, ok := escrowIDFromRequest(w, r)
		if !ok {
			return
		}

		var req fundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			writeResult(w, escrow.Invalid(bodyMessage(err)), http.StatusOK)
			return
		}

		res, err := svc.FundEscrow(r.Context(), actor, escrow.FundInput{
			EscrowID:         escrowID,
			PaymentMethodRef: strings.TrimSpace(req.PaymentMethodID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, http.StatusOK)
	}
}

// Release pays an influencer from a funded hold.
func Release(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r, svc, logg)
		if !ok {
			return
		}
		escrowID, ok := escrowIDFromRequest(w, r)
		if !ok {
			return
		}

		var req releaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			writeResult(w, escrow.Invalid(bodyMessage(err)), http.StatusOK)
			return
		}
		influencerID, err := uuid.Parse(req.InfluencerID)
		if err != nil {
			writeResult(w, escrow.Invalid("invalid influencer id"), http.StatusOK)
			return
		}

		res, err := svc.ReleaseFunds(r.Context(), actor, escrow.ReleaseInput{
			EscrowID:     escrowID,
			InfluencerID: influencerID,
			Amount:       optionalAmount(req.Amount),
			Reason:       validators.SanitizeString(req.Reason, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, http.StatusOK)
	}
}

// Refund returns funds to the brand, cancelling the hold when it was never funded.
func Refund(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r, svc, logg)
		if !ok {
			return
		}
		escrowID, ok := escrowIDFromRequest(w, r)
		if !ok {
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			writeResult(w, escrow.Invalid(bodyMessage(err)), http.StatusOK)
			return
		}

		res, err := svc.RefundToBrand(r.Context(), actor, escrow.RefundInput{
			EscrowID: escrowID,
			Amount:   optionalAmount(req.Amount),
			Reason:   validators.SanitizeString(req.Reason, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, http.StatusOK)
	}
}

// OpenDispute freezes a funded hold pending manual review.
func OpenDispute(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r, svc, logg)
		if !ok {
			return
		}
		escrowID, ok := escrowIDFromRequest(w, r)
		if !ok {
			return
		}

		var req disputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			writeResult(w, escrow.Invalid(bodyMessage(err)), http.StatusCreated)
			return
		}

		res, err := svc.HandleDispute(r.Context(), actor, escrow.DisputeInput{
			EscrowID:    escrowID,
			DisputeType: strings.TrimSpace(req.DisputeType),
			Description: strings.TrimSpace(req.Description),
			Evidence:    req.Evidence,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, http.StatusCreated)
	}
}

// Status returns the persisted hold alongside a live provider reconciliation.
func Status(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r, svc, logg)
		if !ok {
			return
		}
		escrowID, ok := escrowIDFromRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.GetEscrowStatus(r.Context(), actor, escrowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, http.StatusOK)
	}
}

// Disputes lists the dispute records filed against a hold.
func Disputes(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r, svc, logg)
		if !ok {
			return
		}
		escrowID, ok := escrowIDFromRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.ListDisputes(r.Context(), actor, escrowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, http.StatusOK)
	}
}

func actorFromRequest(w http.ResponseWriter, r *http.Request, svc escrow.Service, logg *logger.Logger) (escrow.Actor, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
		return escrow.Actor{}, false
	}
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return escrow.Actor{}, false
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "role context missing"))
		return escrow.Actor{}, false
	}
	return escrow.Actor{UserID: userID, Role: role}, true
}

func escrowIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "escrowId"))
	if raw == "" {
		writeResult(w, escrow.Invalid("escrow id required"), http.StatusOK)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeResult(w, escrow.Invalid("invalid escrow id"), http.StatusOK)
		return uuid.Nil, false
	}
	return id, true
}

// writeResult picks the HTTP status from the result's failure kind.
func writeResult(w http.ResponseWriter, res *escrow.Result, successStatus int) {
	if res == nil {
		res = escrow.Invalid("empty result")
	}
	status := successStatus
	if !res.Success && res.Error != nil {
		status = pkgerrors.MetadataFor(responses.CodeForKind(res.Error.Kind, res.Error.PendingConfirmation)).HTTPStatus
	}
	responses.WriteResult(w, status, res)
}
