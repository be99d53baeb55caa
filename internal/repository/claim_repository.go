package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/claim-service/internal/domain"
)

// ClaimFilter captures listing parameters.
type ClaimFilter struct {
	OwnerID *string
	// ReviewableBy scopes the list to claims a manager may act on:
	// claims naming them as the reviewer snapshot, plus employee claims
	// whose owner reports to them.
	ReviewableBy *string
	Statuses     []domain.ClaimStatus
	Limit        int
	Offset       int
}

// ClaimRepository encapsulates claim persistence.
type ClaimRepository interface {
	Create(ctx context.Context, claim *domain.Claim) error
	// UpdateDraft rewrites the editable fields of a draft claim.
	UpdateDraft(ctx context.Context, claim *domain.Claim) error
	// UpdateStatus conditionally writes the workflow fields, guarded by
	// the expected prior status. A false result means a concurrent
	// writer moved the claim first.
	UpdateStatus(ctx context.Context, claim *domain.Claim, expected domain.ClaimStatus) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Claim, error)
	Delete(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter ClaimFilter) ([]domain.Claim, error)
	CountWithFilter(ctx context.Context, filter ClaimFilter) (int64, error)
	// SumCountedSince totals amounts of the owner's claims with a
	// status that counts against usage, optionally only those submitted
	// after the cutoff.
	SumCountedSince(ctx context.Context, ownerID string, cutoff *time.Time) (decimal.Decimal, error)
}

type claimRepository struct {
	q Querier
}

// NewClaimRepository instantiates repository.
func NewClaimRepository(q Querier) ClaimRepository {
	return &claimRepository{q: q}
}

const claimColumns = `id, owner_user_id, owner_role, manager_user_id, title, description, amount,
               receipt, attachment_name, attachment_file, attachment_mime, attachment_size,
               status, counted_in_usage, manager_reviewer_id, finance_reviewer_id, rejection_reason,
               created_at, updated_at, submitted_at, approved_at, rejected_at, reimbursed_at`

func (r *claimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	const query = `
        INSERT INTO claims (owner_user_id, owner_role, manager_user_id, title, description, amount,
            receipt, attachment_name, attachment_file, attachment_mime, attachment_size,
            status, counted_in_usage, submitted_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	name, file, mime, size := attachmentFields(claim.Attachment)
	return r.q.QueryRow(ctx, query,
		claim.OwnerID,
		claim.OwnerRole,
		claim.ManagerID,
		claim.Title,
		claim.Description,
		claim.Amount,
		claim.Receipt,
		name,
		file,
		mime,
		size,
		claim.Status,
		claim.CountedInUsage,
		claim.SubmittedAt,
	).Scan(&claim.ID, &claim.CreatedAt, &claim.UpdatedAt)
}

func (r *claimRepository) UpdateDraft(ctx context.Context, claim *domain.Claim) error {
	const query = `
        UPDATE claims SET title=$1, description=$2, amount=$3, receipt=$4,
            attachment_name=$5, attachment_file=$6, attachment_mime=$7, attachment_size=$8,
            manager_user_id=$9, updated_at=NOW()
        WHERE id=$10 AND status='draft'`
	name, file, mime, size := attachmentFields(claim.Attachment)
	cmd, err := r.q.Exec(ctx, query,
		claim.Title,
		claim.Description,
		claim.Amount,
		claim.Receipt,
		name,
		file,
		mime,
		size,
		claim.ManagerID,
		claim.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *claimRepository) UpdateStatus(ctx context.Context, claim *domain.Claim, expected domain.ClaimStatus) (bool, error) {
	const query = `
        UPDATE claims SET status=$1, counted_in_usage=$2, manager_reviewer_id=$3,
            finance_reviewer_id=$4, rejection_reason=$5, submitted_at=$6, approved_at=$7,
            rejected_at=$8, reimbursed_at=$9, updated_at=NOW()
        WHERE id=$10 AND status=$11`
	cmd, err := r.q.Exec(ctx, query,
		claim.Status,
		claim.CountedInUsage,
		claim.ManagerReviewer,
		claim.FinanceReviewer,
		claim.RejectionReason,
		claim.SubmittedAt,
		claim.ApprovedAt,
		claim.RejectedAt,
		claim.ReimbursedAt,
		claim.ID,
		expected,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *claimRepository) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id=$1`
	var claim domain.Claim
	var name, file, mime *string
	var size *int64
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&claim.ID,
		&claim.OwnerID,
		&claim.OwnerRole,
		&claim.ManagerID,
		&claim.Title,
		&claim.Description,
		&claim.Amount,
		&claim.Receipt,
		&name,
		&file,
		&mime,
		&size,
		&claim.Status,
		&claim.CountedInUsage,
		&claim.ManagerReviewer,
		&claim.FinanceReviewer,
		&claim.RejectionReason,
		&claim.CreatedAt,
		&claim.UpdatedAt,
		&claim.SubmittedAt,
		&claim.ApprovedAt,
		&claim.RejectedAt,
		&claim.ReimbursedAt,
	); err != nil {
		return nil, err
	}
	claim.Attachment = attachmentFromFields(name, file, mime, size)
	return &claim, nil
}

func (r *claimRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM claims WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *claimRepository) ListWithFilter(ctx context.Context, filter ClaimFilter) ([]domain.Claim, error) {
	clauses, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM claims WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		claimColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClaims(rows)
}

func (r *claimRepository) CountWithFilter(ctx context.Context, filter ClaimFilter) (int64, error) {
	clauses, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM claims WHERE %s`, strings.Join(clauses, " AND "))
	var total int64
	if err := r.q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *claimRepository) SumCountedSince(ctx context.Context, ownerID string, cutoff *time.Time) (decimal.Decimal, error) {
	query := `
        SELECT COALESCE(SUM(amount), 0) FROM claims
        WHERE owner_user_id=$1 AND status IN ('submitted','approved','reimbursed')`
	args := []any{ownerID}
	if cutoff != nil {
		args = append(args, *cutoff)
		query += ` AND submitted_at > $2`
	}
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func filterClauses(filter ClaimFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_user_id=$%d", len(args)))
	}
	if filter.ReviewableBy != nil {
		args = append(args, *filter.ReviewableBy)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			`(manager_user_id=%s OR (owner_role='employee' AND EXISTS (
                 SELECT 1 FROM users o WHERE o.id=claims.owner_user_id AND o.manager_user_id=%s)))`,
			placeholder, placeholder))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	return clauses, args
}

func scanClaims(rows pgx.Rows) ([]domain.Claim, error) {
	var result []domain.Claim
	for rows.Next() {
		var claim domain.Claim
		var name, file, mime *string
		var size *int64
		if err := rows.Scan(
			&claim.ID,
			&claim.OwnerID,
			&claim.OwnerRole,
			&claim.ManagerID,
			&claim.Title,
			&claim.Description,
			&claim.Amount,
			&claim.Receipt,
			&name,
			&file,
			&mime,
			&size,
			&claim.Status,
			&claim.CountedInUsage,
			&claim.ManagerReviewer,
			&claim.FinanceReviewer,
			&claim.RejectionReason,
			&claim.CreatedAt,
			&claim.UpdatedAt,
			&claim.SubmittedAt,
			&claim.ApprovedAt,
			&claim.RejectedAt,
			&claim.ReimbursedAt,
		); err != nil {
			return nil, err
		}
		claim.Attachment = attachmentFromFields(name, file, mime, size)
		result = append(result, claim)
	}
	return result, rows.Err()
}

func attachmentFields(att *domain.Attachment) (name, file, mime *string, size *int64) {
	if att == nil {
		return nil, nil, nil, nil
	}
	return &att.OriginalName, &att.FileName, &att.MimeType, &att.SizeBytes
}

func attachmentFromFields(name, file, mime *string, size *int64) *domain.Attachment {
	if file == nil {
		return nil
	}
	att := &domain.Attachment{FileName: *file}
	if name != nil {
		att.OriginalName = *name
	}
	if mime != nil {
		att.MimeType = *mime
	}
	if size != nil {
		att.SizeBytes = *size
	}
	return att
}
