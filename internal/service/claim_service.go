package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-service/internal/domain"
	"github.com/spec-kit/claim-service/internal/events"
	"github.com/spec-kit/claim-service/internal/repository"
	"github.com/spec-kit/claim-service/internal/storage"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// ClaimService coordinates the claim workflow: it combines the state
// machine, the authorization policy, the limit resolver and the usage
// ledger into the create/submit/approve/reject/reimburse use cases.
// Every transition with a ledger side effect runs inside one store
// transaction so the two can never diverge.
type ClaimService struct {
	store      repository.Store
	usage      *UsageService
	limits     *LimitService
	receipts   storage.ReceiptStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ClaimDependencies bundles collaborators for the claim service.
type ClaimDependencies struct {
	Store      repository.Store
	Usage      *UsageService
	Limits     *LimitService
	Receipts   storage.ReceiptStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewClaimService constructs the service.
func NewClaimService(deps ClaimDependencies) *ClaimService {
	return &ClaimService{
		store:      deps.Store,
		usage:      deps.Usage,
		limits:     deps.Limits,
		receipts:   deps.Receipts,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// ClaimCreateInput describes claim creation payload.
type ClaimCreateInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	Receipt     string
	Attachment  *domain.Attachment
	// ReviewerID optionally names a reviewing manager; only managers
	// may use it, and never for themselves.
	ReviewerID *string
	// SubmitNow submits in the same operation. The limit check runs
	// before the row is created; an over-limit create-and-submit fails
	// with no claim persisted.
	SubmitNow bool
}

// ClaimUpdateInput describes draft edit payload; nil fields are kept.
type ClaimUpdateInput struct {
	Title       *string
	Description *string
	Amount      *decimal.Decimal
	Receipt     *string
	Attachment  *domain.Attachment
	ReviewerID  *string
}

// ClaimBalance reports the owner's ceiling and headroom after an
// operation. Remaining is always derived, never stored.
type ClaimBalance struct {
	EffectiveLimit decimal.Decimal
	Remaining      decimal.Decimal
}

// CreateClaim validates input, snapshots the reviewing manager and
// persists the claim as draft, or as submitted when SubmitNow is set.
func (s *ClaimService) CreateClaim(ctx context.Context, owner *domain.User, input ClaimCreateInput) (*domain.Claim, *ClaimBalance, error) {
	if !owner.Role.CanOwnClaims() {
		return nil, nil, apperrors.NewForbidden("finance users cannot create claims")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if !input.Amount.IsPositive() {
		return nil, nil, apperrors.NewValidationError("amount must be greater than 0", map[string]any{"field": "amount"})
	}
	if strings.TrimSpace(input.Receipt) == "" {
		return nil, nil, apperrors.NewValidationError("receipt file is required", map[string]any{"field": "receipt"})
	}

	reviewer, err := s.resolveReviewer(ctx, owner, input.ReviewerID)
	if err != nil {
		return nil, nil, err
	}

	limit, err := s.limits.EffectiveLimit(ctx, owner)
	if err != nil {
		return nil, nil, err
	}

	claim := &domain.Claim{
		OwnerID:     owner.ID,
		OwnerRole:   owner.Role,
		ManagerID:   reviewer,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		Receipt:     input.Receipt,
		Attachment:  input.Attachment,
		Status:      domain.ClaimStatusDraft,
	}

	if input.SubmitNow {
		now := time.Now()
		err = s.store.InTx(ctx, func(st repository.Store) error {
			ok, err := s.usage.WithStore(st).IncrementWithinLimit(ctx, owner.ID, claim.Amount, limit)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.NewLimitExceeded(owner.Remaining(limit))
			}
			claim.Status = domain.ClaimStatusSubmitted
			claim.CountedInUsage = true
			claim.SubmittedAt = &now
			return st.Claims().Create(ctx, claim)
		})
	} else {
		err = s.store.Claims().Create(ctx, claim)
	}
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	balance, err := s.balanceFor(ctx, owner.ID, limit)
	if err != nil {
		return nil, nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventClaimCreated,
		ClaimID: claim.ID,
		ActorID: owner.ID,
		Payload: events.ClaimCreatedPayload{
			OwnerID:   claim.OwnerID,
			OwnerRole: claim.OwnerRole,
			ManagerID: claim.ManagerID,
			Amount:    claim.Amount.String(),
			Status:    claim.Status,
			Title:     claim.Title,
		},
	})
	return claim, balance, nil
}

// SubmitClaim moves an owned draft into review, charging the usage
// ledger. The limit check and the increment are one conditional update
// so concurrent submits cannot both squeeze past the ceiling, and the
// countedInUsage guard keeps retries from double charging.
func (s *ClaimService) SubmitClaim(ctx context.Context, actor *domain.User, claimID string) (*domain.Claim, *ClaimBalance, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}
	if ok, _ := CanSubmit(actor, claim); !ok {
		return nil, nil, apperrors.NewForbidden("not your claim")
	}
	if claim.Status != domain.ClaimStatusDraft {
		return nil, nil, apperrors.NewInvalidTransition(claim.Status, domain.ClaimStatusSubmitted)
	}

	limit, err := s.limits.EffectiveLimit(ctx, actor)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	updated := *claim
	err = s.store.InTx(ctx, func(st repository.Store) error {
		if !updated.CountedInUsage {
			ok, err := s.usage.WithStore(st).IncrementWithinLimit(ctx, actor.ID, updated.Amount, limit)
			if err != nil {
				return err
			}
			if !ok {
				fresh, err := st.Users().GetByID(ctx, actor.ID)
				if err != nil {
					return err
				}
				return apperrors.NewLimitExceeded(fresh.Remaining(limit))
			}
			updated.CountedInUsage = true
		}
		if err := updated.TransitionTo(domain.ClaimStatusSubmitted, now); err != nil {
			return err
		}
		applied, err := st.Claims().UpdateStatus(ctx, &updated, domain.ClaimStatusDraft)
		if err != nil {
			return err
		}
		if !applied {
			return errClaimChanged(claim.ID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	balance, err := s.balanceFor(ctx, actor.ID, limit)
	if err != nil {
		return nil, nil, err
	}
	s.publishStatusChange(ctx, actor.ID, &updated, claim.Status, "")
	return &updated, balance, nil
}

// ApproveClaim lets an authorized reviewer approve a submitted claim.
// The ledger is untouched: the charge has been counted since submit.
func (s *ClaimService) ApproveClaim(ctx context.Context, actor *domain.User, claimID string) (*domain.Claim, error) {
	claim, owner, err := s.getClaimWithOwner(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if ok, reason := CanReview(actor, claim, owner); !ok {
		return nil, apperrors.NewForbidden("cannot review this claim: " + string(reason))
	}

	updated := *claim
	if err := updated.TransitionTo(domain.ClaimStatusApproved, time.Now()); err != nil {
		return nil, apperrors.MapError(err)
	}
	updated.ManagerReviewer = &actor.ID

	applied, err := s.store.Claims().UpdateStatus(ctx, &updated, domain.ClaimStatusSubmitted)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !applied {
		return nil, errClaimChanged(claim.ID)
	}

	s.publishStatusChange(ctx, actor.ID, &updated, claim.Status, "")
	return &updated, nil
}

// RejectClaim lets an authorized reviewer reject a submitted claim and
// reverses the submit-time ledger charge.
func (s *ClaimService) RejectClaim(ctx context.Context, actor *domain.User, claimID, reason string) (*domain.Claim, error) {
	claim, owner, err := s.getClaimWithOwner(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if ok, denyReason := CanReview(actor, claim, owner); !ok {
		return nil, apperrors.NewForbidden("cannot review this claim: " + string(denyReason))
	}
	// Rejected is reachable from approved too, so the transition table
	// alone cannot pin this stage.
	if claim.Status != domain.ClaimStatusSubmitted {
		return nil, apperrors.NewInvalidTransition(claim.Status, domain.ClaimStatusRejected)
	}

	updated := *claim
	if err := updated.TransitionTo(domain.ClaimStatusRejected, time.Now()); err != nil {
		return nil, apperrors.MapError(err)
	}
	updated.ManagerReviewer = &actor.ID
	updated.RejectionReason = reason

	if err := s.settleRejection(ctx, &updated, domain.ClaimStatusSubmitted); err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, actor.ID, &updated, claim.Status, reason)
	return &updated, nil
}

// ReimburseClaim moves an approved claim to reimbursed. No ledger
// mutation: the amount stays counted against the limit.
func (s *ClaimService) ReimburseClaim(ctx context.Context, actor *domain.User, claimID string) (*domain.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanSettle(actor); !ok {
		return nil, apperrors.NewForbidden("finance role required")
	}

	updated := *claim
	if err := updated.TransitionTo(domain.ClaimStatusReimbursed, time.Now()); err != nil {
		return nil, apperrors.MapError(err)
	}
	updated.FinanceReviewer = &actor.ID

	applied, err := s.store.Claims().UpdateStatus(ctx, &updated, domain.ClaimStatusApproved)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !applied {
		return nil, errClaimChanged(claim.ID)
	}

	s.publishStatusChange(ctx, actor.ID, &updated, claim.Status, "")
	return &updated, nil
}

// FinanceRejectClaim rejects an approved claim at the finance stage,
// reversing the ledger charge.
func (s *ClaimService) FinanceRejectClaim(ctx context.Context, actor *domain.User, claimID, reason string) (*domain.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanSettle(actor); !ok {
		return nil, apperrors.NewForbidden("finance role required")
	}
	if claim.Status != domain.ClaimStatusApproved {
		return nil, apperrors.NewInvalidTransition(claim.Status, domain.ClaimStatusRejected)
	}

	updated := *claim
	if err := updated.TransitionTo(domain.ClaimStatusRejected, time.Now()); err != nil {
		return nil, apperrors.MapError(err)
	}
	updated.FinanceReviewer = &actor.ID
	updated.RejectionReason = reason

	if err := s.settleRejection(ctx, &updated, domain.ClaimStatusApproved); err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, actor.ID, &updated, claim.Status, reason)
	return &updated, nil
}

// UpdateDraftClaim edits an owned draft. A replaced receipt file is
// removed from storage best effort.
func (s *ClaimService) UpdateDraftClaim(ctx context.Context, actor *domain.User, claimID string, input ClaimUpdateInput) (*domain.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.OwnerID != actor.ID {
		return nil, apperrors.NewForbidden("not your claim")
	}
	if claim.Status != domain.ClaimStatusDraft {
		return nil, apperrors.NewValidationError("only draft claims can be updated", map[string]any{
			"status": string(claim.Status),
		})
	}

	oldReceipt := ""
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
		}
		claim.Title = title
	}
	if input.Description != nil {
		claim.Description = strings.TrimSpace(*input.Description)
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, apperrors.NewValidationError("amount must be greater than 0", map[string]any{"field": "amount"})
		}
		claim.Amount = *input.Amount
	}
	if input.Receipt != nil {
		oldReceipt = claim.Receipt
		claim.Receipt = *input.Receipt
		claim.Attachment = input.Attachment
	}
	if input.ReviewerID != nil {
		reviewer, err := s.resolveReviewer(ctx, actor, input.ReviewerID)
		if err != nil {
			return nil, err
		}
		claim.ManagerID = reviewer
	}

	if err := s.store.Claims().UpdateDraft(ctx, claim); err != nil {
		return nil, apperrors.MapError(err)
	}
	if oldReceipt != "" {
		s.removeReceipt(oldReceipt)
	}
	return claim, nil
}

// DeleteDraftClaim removes an owned draft and its stored receipt.
func (s *ClaimService) DeleteDraftClaim(ctx context.Context, actor *domain.User, claimID string) error {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.OwnerID != actor.ID {
		return apperrors.NewForbidden("not your claim")
	}
	if claim.Status != domain.ClaimStatusDraft {
		return apperrors.NewValidationError("only draft claims can be deleted", map[string]any{
			"status": string(claim.Status),
		})
	}
	if err := s.store.Claims().Delete(ctx, claim.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.removeReceipt(claim.Receipt)
	return nil
}

// GetClaim fetches a claim the actor is allowed to see.
func (s *ClaimService) GetClaim(ctx context.Context, actor *domain.User, claimID string) (*domain.Claim, error) {
	claim, owner, err := s.getClaimWithOwner(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanView(actor, claim, owner); !ok {
		return nil, apperrors.NewForbidden("access denied")
	}
	return claim, nil
}

// GetClaimManager returns the reviewer snapshotted on the claim.
func (s *ClaimService) GetClaimManager(ctx context.Context, actor *domain.User, claimID string) (*domain.User, error) {
	claim, owner, err := s.getClaimWithOwner(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanView(actor, claim, owner); !ok {
		return nil, apperrors.NewForbidden("access denied")
	}
	if claim.ManagerID == nil {
		return nil, apperrors.NewNotFound("claim manager", map[string]any{"claim_id": claimID})
	}
	manager, err := s.store.Users().GetByID(ctx, *claim.ManagerID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return manager, nil
}

// ListMine returns the actor's claims, newest first.
func (s *ClaimService) ListMine(ctx context.Context, actor *domain.User, statuses []domain.ClaimStatus, page, pageSize int) ([]domain.Claim, int64, error) {
	page, pageSize = clampPage(page, pageSize)
	filter := repository.ClaimFilter{
		OwnerID:  &actor.ID,
		Statuses: statuses,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	return s.list(ctx, filter)
}

// reviewQueueStatuses is the workflow subset a manager queue may filter on.
var reviewQueueStatuses = []domain.ClaimStatus{
	domain.ClaimStatusSubmitted,
	domain.ClaimStatusApproved,
	domain.ClaimStatusRejected,
}

// financeQueueStatuses is the subset relevant to finance.
var financeQueueStatuses = []domain.ClaimStatus{
	domain.ClaimStatusApproved,
	domain.ClaimStatusReimbursed,
}

// ListForReview returns the manager queue: submitted claims by
// default, scoped to claims the acting manager may review. Admins see
// the whole queue.
func (s *ClaimService) ListForReview(ctx context.Context, actor *domain.User, status string, page, pageSize int) ([]domain.Claim, int64, error) {
	chosen, err := pickStatus(status, reviewQueueStatuses, domain.ClaimStatusSubmitted)
	if err != nil {
		return nil, 0, err
	}
	page, pageSize = clampPage(page, pageSize)
	filter := repository.ClaimFilter{
		Statuses: []domain.ClaimStatus{chosen},
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	if actor.Role != domain.RoleAdmin {
		filter.ReviewableBy = &actor.ID
	}
	return s.list(ctx, filter)
}

// ListForFinance returns approved claims by default, or reimbursed.
func (s *ClaimService) ListForFinance(ctx context.Context, actor *domain.User, status string, page, pageSize int) ([]domain.Claim, int64, error) {
	chosen, err := pickStatus(status, financeQueueStatuses, domain.ClaimStatusApproved)
	if err != nil {
		return nil, 0, err
	}
	page, pageSize = clampPage(page, pageSize)
	filter := repository.ClaimFilter{
		Statuses: []domain.ClaimStatus{chosen},
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	return s.list(ctx, filter)
}

// resolveReviewer determines the manager snapshot for a new claim.
func (s *ClaimService) resolveReviewer(ctx context.Context, owner *domain.User, reviewerID *string) (*string, error) {
	switch owner.Role {
	case domain.RoleEmployee:
		if owner.ManagerID == nil {
			return nil, apperrors.NewValidationError("employee has no supervising manager", nil)
		}
		return owner.ManagerID, nil
	case domain.RoleManager:
		if reviewerID == nil || *reviewerID == "" {
			return owner.ManagerID, nil
		}
		if *reviewerID == owner.ID {
			return nil, apperrors.NewValidationError("cannot assign yourself as reviewing manager", nil)
		}
		reviewer, err := s.store.Users().GetByID(ctx, *reviewerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("reviewing manager not found", map[string]any{"manager_id": *reviewerID})
			}
			return nil, apperrors.MapError(err)
		}
		if !reviewer.Active || reviewer.Role != domain.RoleManager {
			return nil, apperrors.NewValidationError("reviewer must be an active manager", map[string]any{"manager_id": *reviewerID})
		}
		return &reviewer.ID, nil
	default:
		// Admin claims carry no reviewer snapshot; any admin reviews them.
		return nil, nil
	}
}

// settleRejection persists a rejection and, in the same transaction,
// reverses the ledger charge when the claim is still counted. Claims
// submitted before the latest bulk reset were already forgotten by the
// ledger and only have their flag cleared.
func (s *ClaimService) settleRejection(ctx context.Context, claim *domain.Claim, expected domain.ClaimStatus) error {
	release := claim.CountedInUsage
	if release {
		cutoff, err := s.usage.LatestResetAt(ctx)
		if err != nil {
			return err
		}
		if cutoff != nil && (claim.SubmittedAt == nil || !claim.SubmittedAt.After(*cutoff)) {
			release = false
		}
	}

	err := s.store.InTx(ctx, func(st repository.Store) error {
		claim.CountedInUsage = false
		applied, err := st.Claims().UpdateStatus(ctx, claim, expected)
		if err != nil {
			return err
		}
		if !applied {
			return errClaimChanged(claim.ID)
		}
		if release {
			return s.usage.WithStore(st).Decrement(ctx, claim.OwnerID, claim.Amount)
		}
		return nil
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *ClaimService) list(ctx context.Context, filter repository.ClaimFilter) ([]domain.Claim, int64, error) {
	claims, err := s.store.Claims().ListWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.store.Claims().CountWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return claims, total, nil
}

func (s *ClaimService) getClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	claim, err := s.store.Claims().GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("claim", map[string]any{"claim_id": claimID})
		}
		return nil, apperrors.MapError(err)
	}
	return claim, nil
}

func (s *ClaimService) getClaimWithOwner(ctx context.Context, claimID string) (*domain.Claim, *domain.User, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.store.Users().GetByID(ctx, claim.OwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("claim owner", map[string]any{"claim_id": claimID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	return claim, owner, nil
}

func (s *ClaimService) balanceFor(ctx context.Context, userID string, limit decimal.Decimal) (*ClaimBalance, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &ClaimBalance{EffectiveLimit: limit, Remaining: user.Remaining(limit)}, nil
}

func (s *ClaimService) removeReceipt(ref string) {
	if s.receipts == nil || ref == "" {
		return
	}
	if err := s.receipts.Remove(ref); err != nil && s.logger != nil {
		s.logger.Warn("receipt removal failed", zap.String("receipt", ref), zap.Error(err))
	}
}

func (s *ClaimService) publishStatusChange(ctx context.Context, actorID string, claim *domain.Claim, oldStatus domain.ClaimStatus, reason string) {
	s.publishEvent(ctx, events.Event{
		Type:    events.EventClaimStatusChanged,
		ClaimID: claim.ID,
		ActorID: actorID,
		Payload: events.ClaimStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: claim.Status,
			Reason:    reason,
		},
	})
}

func (s *ClaimService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func errClaimChanged(claimID string) error {
	return apperrors.NewConflict("claim status changed concurrently", map[string]any{"claim_id": claimID})
}

func pickStatus(raw string, allowed []domain.ClaimStatus, def domain.ClaimStatus) (domain.ClaimStatus, error) {
	if raw == "" {
		return def, nil
	}
	status := domain.ClaimStatus(raw)
	for _, candidate := range allowed {
		if candidate == status {
			return status, nil
		}
	}
	return "", apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
