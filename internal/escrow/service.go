package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/internal/disputes"
	"github.com/angelmondragon/influencehub-backend/internal/entitysync"
	"github.com/angelmondragon/influencehub-backend/internal/fees"
	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/db"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
	"github.com/angelmondragon/influencehub-backend/pkg/logger"
	"github.com/angelmondragon/influencehub-backend/pkg/metrics"
	"github.com/angelmondragon/influencehub-backend/pkg/outbox"
	"github.com/angelmondragon/influencehub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/influencehub-backend/pkg/tracing"
)

const defaultGatewayTimeout = 20 * time.Second

const (
	opCreate   = "create_escrow"
	opFund     = "fund_escrow"
	opRelease  = "release_funds"
	opRefund   = "refund_to_brand"
	opDispute  = "handle_dispute"
	opStatus   = "get_escrow_status"
	opDisputes = "list_disputes"
)

var errCreateConflict = errors.New("campaign already has a live escrow")

// Service drives the escrow lifecycle of a campaign.
type Service interface {
	CreateEscrowAccount(ctx context.Context, actor Actor, input CreateInput) (*Result, error)
	FundEscrow(ctx context.Context, actor Actor, input FundInput) (*Result, error)
	ReleaseFunds(ctx context.Context, actor Actor, input ReleaseInput) (*Result, error)
	RefundToBrand(ctx context.Context, actor Actor, input RefundInput) (*Result, error)
	HandleDispute(ctx context.Context, actor Actor, input DisputeInput) (*Result, error)
	GetEscrowStatus(ctx context.Context, actor Actor, escrowID uuid.UUID) (*Result, error)
	ListDisputes(ctx context.Context, actor Actor, escrowID uuid.UUID) (*Result, error)
}

// ServiceParams collects the escrow service dependencies.
type ServiceParams struct {
	Repo     Repository
	Entities *entitysync.Repository
	Sync     *entitysync.Syncer
	Disputes *disputes.Handler
	Gateway  gateway.Gateway
	Fees     *fees.Calculator
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Metrics  *metrics.EscrowMetrics

	GatewayTimeout time.Duration
	Now            func() time.Time
}

type service struct {
	repo     Repository
	entities *entitysync.Repository
	sync     *entitysync.Syncer
	disputes *disputes.Handler
	gateway  gateway.Gateway
	fees     *fees.Calculator
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	metrics  *metrics.EscrowMetrics
	timeout  time.Duration
	clock    func() time.Time
}

// NewService wires the escrow service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if params.Entities == nil {
		return nil, fmt.Errorf("entity repository required")
	}
	if params.Sync == nil {
		params.Sync = entitysync.NewSyncer()
	}
	if params.Disputes == nil {
		return nil, fmt.Errorf("dispute handler required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee calculator required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.GatewayTimeout <= 0 {
		params.GatewayTimeout = defaultGatewayTimeout
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:     params.Repo,
		entities: params.Entities,
		sync:     params.Sync,
		disputes: params.Disputes,
		gateway:  params.Gateway,
		fees:     params.Fees,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
		timeout:  params.GatewayTimeout,
		clock:    params.Now,
	}, nil
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

// gatewayContext detaches provider calls from client cancellation so a capture or refund is
// never abandoned halfway, while still bounding it by the gateway timeout.
func (s *service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *service) begin(ctx context.Context, op string, escrowID, campaignID uuid.UUID) context.Context {
	var escrow, campaign string
	if escrowID != uuid.Nil {
		escrow = escrowID.String()
	}
	if campaignID != uuid.Nil {
		campaign = campaignID.String()
	}
	return s.logg.WithEscrow(ctx, escrow, campaign, op)
}

// finish counts the operation by outcome: ok, the failure kind, or error.
func (s *service) finish(op string, res *Result, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res != nil && res.Error != nil:
		outcome = string(res.Error.Kind)
	}
	s.metrics.IncOperation(op, outcome)
}

func requireActor(actor Actor) error {
	if actor.UserID == uuid.Nil || !actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	return nil
}

func canManage(actor Actor, hold *models.EscrowHold) bool {
	if actor.Role == enums.UserRoleAdmin {
		return true
	}
	return actor.Role == enums.UserRoleBrand && actor.UserID == hold.BrandID
}

func (s *service) canView(ctx context.Context, actor Actor, hold *models.EscrowHold) (bool, error) {
	if canManage(actor, hold) {
		return true, nil
	}
	if actor.Role != enums.UserRoleInfluencer {
		return false, nil
	}
	application, err := s.entities.FindApplication(ctx, hold.CampaignID, actor.UserID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	return application != nil, nil
}

// loadHold returns either the hold or a validation result when it does not exist.
func (s *service) loadHold(ctx context.Context, id uuid.UUID) (*models.EscrowHold, *Result, error) {
	if id == uuid.Nil {
		return nil, failure(enums.ErrorKindValidation, "escrow id required"), nil
	}
	hold, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, failure(enums.ErrorKindValidation, "escrow not found"), nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow")
	}
	return hold, nil, nil
}

func stateFailure(hold *models.EscrowHold, err error) *Result {
	return failureFor(hold, enums.ErrorKindInvalidState, err.Error())
}

func gatewayFailure(hold *models.EscrowHold, err error) *Result {
	kind, ok := gateway.KindOf(err)
	if !ok {
		kind = enums.ErrorKindGatewayError
	}
	res := failureFor(hold, kind, gatewayMessage(kind))
	res.Error.PendingConfirmation = gateway.IsAmbiguous(err) || !ok
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		res.Error.ProviderCode = gwErr.ProviderCode
	}
	return res
}

func gatewayMessage(kind enums.EscrowErrorKind) string {
	switch kind {
	case enums.ErrorKindPaymentDeclined:
		return "payment was declined; try another payment method"
	case enums.ErrorKindGatewayTimeout:
		return "payment provider timed out; outcome pending confirmation"
	case enums.ErrorKindGatewayError:
		return "payment provider failed; outcome pending confirmation"
	case enums.ErrorKindRefundExceedsCaptured:
		return "refund exceeds the captured amount"
	case enums.ErrorKindInvalidState:
		return "payment provider rejected the operation for the hold's current state"
	default:
		return "payment provider rejected the request"
	}
}

func checkPrecision(amount decimal.Decimal, currency enums.Currency) error {
	places := currency.MinorUnits()
	if !amount.Equal(amount.Round(places)) {
		return fmt.Errorf("amount has more than %d decimal places for %s", places, currency)
	}
	return nil
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
}

func (s *service) event(t Transition, actor Actor, at time.Time, data any) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     t.Event,
		AggregateType: enums.AggregateEscrowHold,
		AggregateID:   t.Hold.ID,
		Actor:         actorRef(actor),
		Data:          data,
		OccurredAt:    at,
	}
}

// commit applies a planned transition inside tx: compare-and-set on the hold row, then the
// entity effects. A lost race surfaces as a StateError.
func (s *service) commit(ctx context.Context, tx *gorm.DB, current *models.EscrowHold, t Transition) error {
	ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, t.Hold, *current)
	if err != nil {
		return err
	}
	if !ok {
		return &StateError{From: current.Status, Reason: "escrow changed concurrently"}
	}
	return s.sync.Apply(ctx, tx, t.Effects)
}

// claimSettlement reserves the hold for one money-moving call and returns the reloaded row.
// A non-nil result means another writer owns the hold.
func (s *service) claimSettlement(ctx context.Context, hold *models.EscrowHold, kind enums.SettlementKind) (*models.EscrowHold, *Result, error) {
	ok, err := s.repo.ClaimSettlement(ctx, hold.ID, kind, s.now())
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim escrow")
	}
	current, err := s.repo.FindByID(ctx, hold.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload escrow")
	}
	if ok {
		return current, nil, nil
	}
	if claimed := current.SettlementKind(); claimed != "" && claimed != kind && !current.Status.IsTerminal() {
		return current, failureFor(current, enums.ErrorKindInvalidState, "escrow is locked by an in-flight "+claimed.String()), nil
	}
	return current, failureFor(current, enums.ErrorKindInvalidState, fmt.Sprintf("escrow is %s", current.Status)), nil
}

// releaseSettlement drops a claim after the provider confirmed nothing moved.
func (s *service) releaseSettlement(ctx context.Context, hold *models.EscrowHold, kind enums.SettlementKind) {
	if err := s.repo.ReleaseSettlement(ctx, hold.ID, kind); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "settlement", kind.String()), "release settlement claim", err)
	}
}

// unrecorded handles a provider call that moved money but whose local transition lost to a
// concurrent writer. The outcome is left for reconciliation.
func (s *service) unrecorded(ctx context.Context, hold *models.EscrowHold, fields map[string]any, msg string, err error) *Result {
	fields["provider_hold_id"] = hold.ProviderHoldID
	fields["money_ambiguous"] = true
	s.logg.Error(s.logg.WithFields(ctx, fields), msg, err)
	res := failureFor(hold, enums.ErrorKindInvalidState, "escrow changed while the provider call was in flight; outcome pending reconciliation")
	res.Error.PendingConfirmation = true
	res.Error.Retryable = true
	res.Error.RetryAdvice = gateway.RetryAfterReconcile
	return res
}

func (s *service) CreateEscrowAccount(ctx context.Context, actor Actor, input CreateInput) (res *Result, err error) {
	ctx = s.begin(ctx, opCreate, uuid.Nil, input.CampaignID)
	ctx, span := tracing.StartSpan(ctx, "escrow."+opCreate, tracing.CampaignID(input.CampaignID.String()), tracing.Operation(opCreate))
	defer func() {
		tracing.End(span, err)
		s.finish(opCreate, res, err)
	}()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if input.CampaignID == uuid.Nil {
		return failure(enums.ErrorKindValidation, "campaign id required"), nil
	}
	if actor.Role != enums.UserRoleBrand && actor.Role != enums.UserRoleAdmin {
		return failure(enums.ErrorKindValidation, "only the campaign's brand can open an escrow"), nil
	}
	currency, parseErr := enums.ParseCurrency(input.Currency)
	if parseErr != nil {
		return failure(enums.ErrorKindValidation, "unsupported currency"), nil
	}
	if !input.Amount.IsPositive() {
		return failure(enums.ErrorKindValidation, "amount must be greater than zero"), nil
	}
	if precisionErr := checkPrecision(input.Amount, currency); precisionErr != nil {
		return failure(enums.ErrorKindValidation, precisionErr.Error()), nil
	}

	campaign, err := s.entities.FindCampaign(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(enums.ErrorKindValidation, "campaign not found"), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	if actor.Role != enums.UserRoleAdmin && campaign.BrandID != actor.UserID {
		return failure(enums.ErrorKindValidation, "campaign is not owned by the caller"), nil
	}
	if campaign.Currency != currency {
		return failure(enums.ErrorKindValidation, fmt.Sprintf("campaign is priced in %s", campaign.Currency)), nil
	}
	if campaign.Status == enums.CampaignStatusCancelled || campaign.Status == enums.CampaignStatusCompleted {
		return failure(enums.ErrorKindInvalidState, "campaign is "+campaign.Status.String()), nil
	}
	live, err := s.repo.FindLiveByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check live escrow")
	}
	if live != nil {
		return failureFor(live, enums.ErrorKindInvalidState, errCreateConflict.Error()), nil
	}

	escrowID := uuid.New()
	ctx = s.begin(ctx, opCreate, escrowID, campaign.ID)
	metadata := map[string]string{
		"escrow_id":   escrowID.String(),
		"campaign_id": campaign.ID.String(),
		"brand_id":    campaign.BrandID.String(),
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode metadata")
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	providerHold, gwErr := s.gateway.CreateHold(gwCtx, input.Amount, currency, metadata)
	cancel()
	if gwErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "create hold failed")
		return gatewayFailure(nil, gwErr), nil
	}
	span.SetAttributes(tracing.HoldID(providerHold.HoldID))

	now := s.now()
	t := PlanCreate(models.EscrowHold{
		ID:             escrowID,
		ProviderHoldID: providerHold.HoldID,
		CampaignID:     campaign.ID,
		BrandID:        campaign.BrandID,
		GrossAmount:    input.Amount,
		Currency:       currency,
		Metadata:       metadataJSON,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, campaign.EscrowID)

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindLiveByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errCreateConflict
		}
		record := t.Hold
		if err := repo.Create(ctx, &record); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errCreateConflict
			}
			return err
		}
		if err := s.sync.Apply(ctx, tx, t.Effects); err != nil {
			if errors.Is(err, entitysync.ErrEscrowLinkConflict) {
				return errCreateConflict
			}
			return err
		}
		return s.outbox.Emit(ctx, tx, s.event(t, actor, now, payloads.EscrowCreatedEvent{
			EscrowID:       escrowID,
			CampaignID:     campaign.ID,
			BrandID:        campaign.BrandID,
			ProviderHoldID: providerHold.HoldID,
			Amount:         input.Amount.StringFixed(currency.MinorUnits()),
			Currency:       currency,
		}))
	})
	if txErr != nil {
		s.cancelOrphan(ctx, providerHold.HoldID)
		if errors.Is(txErr, errCreateConflict) {
			s.logg.Warn(ctx, "lost escrow create race")
			return failure(enums.ErrorKindInvalidState, errCreateConflict.Error()), nil
		}
		s.logg.Error(ctx, "persist escrow failed", txErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist escrow")
	}

	s.logg.Info(ctx, "escrow created")
	res = holdResult(t.Hold)
	res.ClientToken = providerHold.ClientToken
	return res, nil
}

// cancelOrphan releases a provider hold that never made it into storage.
func (s *service) cancelOrphan(ctx context.Context, holdID string) {
	gwCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	if err := s.gateway.CancelHold(gwCtx, holdID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "provider_hold_id", holdID), "cancel orphaned hold failed", err)
	}
}

func (s *service) FundEscrow(ctx context.Context, actor Actor, input FundInput) (res *Result, err error) {
	ctx = s.begin(ctx, opFund, input.EscrowID, uuid.Nil)
	ctx, span := tracing.StartSpan(ctx, "escrow."+opFund, tracing.EscrowID(input.EscrowID.String()), tracing.Operation(opFund))
	defer func() {
		tracing.End(span, err)
		s.finish(opFund, res, err)
	}()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	paymentMethodRef := strings.TrimSpace(input.PaymentMethodRef)
	if paymentMethodRef == "" {
		return failure(enums.ErrorKindValidation, "payment method required"), nil
	}
	hold, res, err := s.loadHold(ctx, input.EscrowID)
	if hold == nil {
		return res, err
	}
	ctx = s.begin(ctx, opFund, hold.ID, hold.CampaignID)
	if actor.Role != enums.UserRoleBrand || actor.UserID != hold.BrandID {
		return failureFor(hold, enums.ErrorKindValidation, "escrow is not owned by the caller"), nil
	}
	if stateErr := Allowed(hold.Status, EventFund, actor.Role); stateErr != nil {
		return stateFailure(hold, stateErr), nil
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	confirmation, gwErr := s.gateway.ConfirmHold(gwCtx, hold.ProviderHoldID, paymentMethodRef)
	if gwErr != nil {
		if kind, _ := gateway.KindOf(gwErr); kind == enums.ErrorKindInvalidState {
			// a previous confirm may have landed without being recorded
			if status, statusErr := s.gateway.GetStatus(gwCtx, hold.ProviderHoldID); statusErr == nil && status.Status == enums.ProviderHoldFunded {
				confirmation, gwErr = gateway.Confirmation{Status: status.Status, Amount: status.Amount}, nil
			}
		}
	}
	if gwErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "confirm hold failed")
		return gatewayFailure(hold, gwErr), nil
	}
	switch confirmation.Status {
	case enums.ProviderHoldFunded:
	case enums.ProviderHoldProcessing:
		pending := failureFor(hold, enums.ErrorKindGatewayError, "payment is processing; outcome pending confirmation")
		pending.Error.PendingConfirmation = true
		return pending, nil
	default:
		return failureFor(hold, enums.ErrorKindPaymentDeclined, "payment method requires further action"), nil
	}

	now := s.now()
	var funded Transition
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindByID(ctx, hold.ID)
		if err != nil {
			return err
		}
		t, err := Plan(*current, Event{Kind: EventFund, Role: actor.Role, At: now})
		if err != nil {
			return err
		}
		if err := s.commit(ctx, tx, current, t); err != nil {
			return err
		}
		funded = t
		return s.outbox.Emit(ctx, tx, s.event(t, actor, now, payloads.EscrowFundedEvent{
			EscrowID:   t.Hold.ID,
			CampaignID: t.Hold.CampaignID,
			BrandID:    t.Hold.BrandID,
			Amount:     t.Hold.GrossAmount.StringFixed(t.Hold.Currency.MinorUnits()),
			Currency:   t.Hold.Currency,
			FundedAt:   now,
		}))
	})
	if txErr != nil {
		if IsStateError(txErr) {
			return s.unrecorded(ctx, hold, map[string]any{}, "hold confirmed at provider but the escrow changed before funding was recorded", txErr), nil
		}
		s.logg.Error(ctx, "hold confirmed at provider but funding was not recorded", txErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist funding")
	}

	s.logg.Info(ctx, "escrow funded")
	return holdResult(funded.Hold), nil
}

func (s *service) HandleDispute(ctx context.Context, actor Actor, input DisputeInput) (res *Result, err error) {
	ctx = s.begin(ctx, opDispute, input.EscrowID, uuid.Nil)
	ctx, span := tracing.StartSpan(ctx, "escrow."+opDispute, tracing.EscrowID(input.EscrowID.String()), tracing.Operation(opDispute))
	defer func() {
		tracing.End(span, err)
		s.finish(opDispute, res, err)
	}()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	open := disputes.OpenInput{
		EscrowID:     input.EscrowID,
		DisputeType:  input.DisputeType,
		Description:  input.Description,
		Evidence:     input.Evidence,
		ReporterID:   actor.UserID,
		ReporterRole: actor.Role,
	}
	if _, validateErr := s.disputes.Validate(open); validateErr != nil {
		if pkgerrors.IsCode(validateErr, pkgerrors.CodeValidation) {
			return failure(enums.ErrorKindValidation, pkgerrors.As(validateErr).Message()), nil
		}
		return nil, validateErr
	}

	hold, res, err := s.loadHold(ctx, input.EscrowID)
	if hold == nil {
		return res, err
	}
	ctx = s.begin(ctx, opDispute, hold.ID, hold.CampaignID)
	allowed, err := s.canView(ctx, actor, hold)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return failureFor(hold, enums.ErrorKindValidation, "caller is not a party to this escrow"), nil
	}
	if stateErr := Allowed(hold.Status, EventDispute, actor.Role); stateErr != nil {
		return stateFailure(hold, stateErr), nil
	}

	now := s.now()
	var (
		disputed Transition
		record   *models.DisputeRecord
	)
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindByID(ctx, hold.ID)
		if err != nil {
			return err
		}
		t, err := Plan(*current, Event{Kind: EventDispute, Role: actor.Role, At: now})
		if err != nil {
			return err
		}
		if err := s.commit(ctx, tx, current, t); err != nil {
			return err
		}
		record, err = s.disputes.Open(ctx, tx, open)
		if err != nil {
			return err
		}
		disputed = t
		return s.outbox.Emit(ctx, tx, s.event(t, actor, now, payloads.EscrowDisputedEvent{
			EscrowID:     t.Hold.ID,
			CampaignID:   t.Hold.CampaignID,
			DisputeID:    record.ID,
			DisputeType:  record.DisputeType,
			ReportedBy:   record.ReportedBy,
			ReporterRole: record.ReporterRole,
			ReportedAt:   record.ReportedAt,
		}))
	})
	if txErr != nil {
		if IsStateError(txErr) {
			return stateFailure(hold, txErr), nil
		}
		s.logg.Error(ctx, "persist dispute failed", txErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist dispute")
	}

	s.logg.Info(ctx, "escrow disputed")
	res = holdResult(disputed.Hold)
	view := disputeView(*record)
	res.Dispute = &view
	return res, nil
}

func (s *service) GetEscrowStatus(ctx context.Context, actor Actor, escrowID uuid.UUID) (res *Result, err error) {
	ctx = s.begin(ctx, opStatus, escrowID, uuid.Nil)
	ctx, span := tracing.StartSpan(ctx, "escrow."+opStatus, tracing.EscrowID(escrowID.String()), tracing.Operation(opStatus))
	defer func() {
		tracing.End(span, err)
		s.finish(opStatus, res, err)
	}()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	hold, res, err := s.loadHold(ctx, escrowID)
	if hold == nil {
		return res, err
	}
	ctx = s.begin(ctx, opStatus, hold.ID, hold.CampaignID)
	allowed, err := s.canView(ctx, actor, hold)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return failure(enums.ErrorKindValidation, "caller is not a party to this escrow"), nil
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	provider, statusErr := s.gateway.GetStatus(gwCtx, hold.ProviderHoldID)
	cancel()
	rec := Reconcile(*hold, provider, statusErr, s.now())
	if !rec.InSync {
		s.metrics.IncDiscrepancy(rec.PersistedStatus.String(), rec.ProviderStatus.String())
		s.logg.Warn(s.logg.WithField(ctx, "discrepancy", rec.Discrepancy), "escrow out of sync with provider")
	}

	res = holdResult(*hold)
	res.Reconciliation = &rec
	if hold.Status == enums.EscrowStatusReleased {
		transfer, err := s.entities.FindTransfer(ctx, hold.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer")
		}
		if transfer != nil {
			breakdown := transferBreakdown(*transfer)
			res.Fees = &breakdown
			res.Transfer = transferView(*transfer)
		}
	}
	return res, nil
}

func (s *service) ListDisputes(ctx context.Context, actor Actor, escrowID uuid.UUID) (res *Result, err error) {
	ctx = s.begin(ctx, opDisputes, escrowID, uuid.Nil)
	defer func() { s.finish(opDisputes, res, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	hold, res, err := s.loadHold(ctx, escrowID)
	if hold == nil {
		return res, err
	}
	allowed, err := s.canView(ctx, actor, hold)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return failure(enums.ErrorKindValidation, "caller is not a party to this escrow"), nil
	}
	records, err := s.disputes.ListByEscrow(ctx, hold.ID)
	if err != nil {
		return nil, err
	}
	res = holdResult(*hold)
	res.Disputes = make([]DisputeView, 0, len(records))
	for _, record := range records {
		res.Disputes = append(res.Disputes, disputeView(record))
	}
	return res, nil
}
