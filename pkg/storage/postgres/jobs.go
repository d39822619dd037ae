// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateJob(ctx context.Context, j *storage.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, job_hash, buyer, seller, service_id, description, amount, currency,
			deadline, payment_terms, signatures_request, status, requested_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, j.ID, j.JobHash, j.Buyer, j.Seller, j.ServiceID, j.Description, j.Amount, j.Currency,
		j.Deadline, j.PaymentTerms, j.Signatures.Request, j.Status, j.RequestedAt)
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	return s.scanJob(ctx, s.pool.QueryRow(ctx, jobSelectByID, id))
}

func (s *Store) GetJobByHash(ctx context.Context, jobHash string) (*storage.Job, error) {
	return s.scanJob(ctx, s.pool.QueryRow(ctx, jobSelectByHash, jobHash))
}

func (s *Store) ListJobsForParticipant(ctx context.Context, identity string, limit, offset int) ([]*storage.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE buyer = $1 OR seller = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`, identity, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Job
	for rows.Next() {
		j, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CASJobStatus wraps the status check, caller-supplied mutation and status
// write in a single transaction with SELECT ... FOR UPDATE, so concurrent
// transitions on the same job serialize instead of racing.
func (s *Store) CASJobStatus(ctx context.Context, id string, expectedStatus, newStatus storage.JobStatus, mutate func(j *storage.Job) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
	j, err := scanJobRow(row)
	if err != nil {
		return err
	}
	if j.Status != expectedStatus {
		return storage.ErrCASConflict
	}
	if mutate != nil {
		if err := mutate(j); err != nil {
			return err
		}
	}
	// When newStatus == expectedStatus, the caller isn't asserting a
	// transition — trust whatever status mutate already left on j (e.g.
	// maybeEnterInProgress flipping accepted -> in_progress inside the same
	// transaction that records the second payment txid).
	if newStatus != expectedStatus {
		j.Status = newStatus
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs SET
			status = $2, payment_txid = $3, payment_verified = $4,
			platform_fee_txid = $5, platform_fee_verified = $6,
			signatures_request = $7, signatures_acceptance = $8,
			signatures_delivery = $9, signatures_completion = $10,
			delivery_hash = $11, delivery_message = $12,
			accepted_at = $13, in_progress_at = $14, delivered_at = $15,
			completed_at = $16, disputed_at = $17, cancelled_at = $18
		WHERE id = $1
	`, j.ID, j.Status, j.PaymentTxid, j.PaymentVerified, j.PlatformFeeTxid, j.PlatformFeeVerified,
		j.Signatures.Request, j.Signatures.Acceptance, j.Signatures.Delivery, j.Signatures.Completion,
		j.DeliveryHash, j.DeliveryMessage,
		j.AcceptedAt, j.InProgressAt, j.DeliveredAt, j.CompletedAt, j.DisputedAt, j.CancelledAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateDataTerms(ctx context.Context, t *storage.JobDataTerms) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_data_terms (job_id, retention, allow_training, allow_third_party, require_deletion_attestation, accepted_by_seller)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, t.JobID, t.Retention, t.AllowTraining, t.AllowThirdParty, t.RequireDeletionAttestation, t.AcceptedBySeller)
	return err
}

func (s *Store) GetDataTerms(ctx context.Context, jobID string) (*storage.JobDataTerms, error) {
	t := &storage.JobDataTerms{}
	err := s.pool.QueryRow(ctx, `
		SELECT job_id, retention, allow_training, allow_third_party, require_deletion_attestation, accepted_by_seller
		FROM job_data_terms WHERE job_id = $1
	`, jobID).Scan(&t.JobID, &t.Retention, &t.AllowTraining, &t.AllowThirdParty, &t.RequireDeletionAttestation, &t.AcceptedBySeller)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) AcceptDataTerms(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE job_data_terms SET accepted_by_seller = true WHERE job_id = $1`, jobID)
	return err
}

func (s *Store) CreateAttestation(ctx context.Context, a *storage.DeletionAttestation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deletion_attestations (job_id, seller_signature, signature_verified, created_at)
		VALUES ($1,$2,$3,$4)
	`, a.JobID, a.SellerSignature, a.SignatureVerified, a.CreatedAt)
	return err
}

func (s *Store) GetAttestation(ctx context.Context, jobID string) (*storage.DeletionAttestation, error) {
	a := &storage.DeletionAttestation{}
	err := s.pool.QueryRow(ctx, `
		SELECT job_id, seller_signature, signature_verified, created_at
		FROM deletion_attestations WHERE job_id = $1
	`, jobID).Scan(&a.JobID, &a.SellerSignature, &a.SignatureVerified, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) AppendMessage(ctx context.Context, m *storage.JobMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_messages (id, job_id, sender, content, signed, signature, safety_score, released_from_hold, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.JobID, m.Sender, m.Content, m.Signed, m.Signature, m.SafetyScore, m.ReleasedFromHold, m.CreatedAt)
	return err
}

func (s *Store) ListMessages(ctx context.Context, jobID string, limit, offset int) ([]*storage.JobMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, sender, content, signed, signature, safety_score, released_from_hold, created_at
		FROM job_messages WHERE job_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, jobID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.JobMessage
	for rows.Next() {
		m := &storage.JobMessage{}
		if err := rows.Scan(&m.ID, &m.JobID, &m.Sender, &m.Content, &m.Signed, &m.Signature, &m.SafetyScore, &m.ReleasedFromHold, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreateFile(ctx context.Context, f *storage.JobFile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_files (id, job_id, message_id, uploader, filename, mime, size, checksum, handle, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, f.ID, f.JobID, f.MessageID, f.Uploader, f.Filename, f.MIME, f.Size, f.Checksum, f.Handle, f.CreatedAt)
	return err
}

func (s *Store) GetFile(ctx context.Context, id string) (*storage.JobFile, error) {
	f := &storage.JobFile{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, job_id, message_id, uploader, filename, mime, size, checksum, handle, created_at
		FROM job_files WHERE id = $1
	`, id).Scan(&f.ID, &f.JobID, &f.MessageID, &f.Uploader, &f.Filename, &f.MIME, &f.Size, &f.Checksum, &f.Handle, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM job_files WHERE id = $1`, id)
	return err
}

func (s *Store) ListFiles(ctx context.Context, jobID string) ([]*storage.JobFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, message_id, uploader, filename, mime, size, checksum, handle, created_at
		FROM job_files WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.JobFile
	for rows.Next() {
		f := &storage.JobFile{}
		if err := rows.Scan(&f.ID, &f.JobID, &f.MessageID, &f.Uploader, &f.Filename, &f.MIME, &f.Size, &f.Checksum, &f.Handle, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) ListFilesForCleanup(ctx context.Context, completedBefore time.Time) ([]*storage.JobFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.job_id, f.message_id, f.uploader, f.filename, f.mime, f.size, f.checksum, f.handle, f.created_at
		FROM job_files f JOIN jobs j ON j.id = f.job_id
		WHERE j.completed_at IS NOT NULL AND j.completed_at < $1
	`, completedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.JobFile
	for rows.Next() {
		f := &storage.JobFile{}
		if err := rows.Scan(&f.ID, &f.JobID, &f.MessageID, &f.Uploader, &f.Filename, &f.MIME, &f.Size, &f.Checksum, &f.Handle, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const jobColumns = `
	id, job_hash, buyer, seller, service_id, description, amount, currency, deadline,
	payment_terms, payment_txid, payment_verified, platform_fee_txid, platform_fee_verified,
	signatures_request, signatures_acceptance, signatures_delivery, signatures_completion,
	status, delivery_hash, delivery_message, safechat_enabled, requested_at, accepted_at,
	in_progress_at, delivered_at, completed_at, disputed_at, cancelled_at
`

const jobSelectByID = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
const jobSelectByHash = `SELECT ` + jobColumns + ` FROM jobs WHERE job_hash = $1`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanJob(ctx context.Context, row pgx.Row) (*storage.Job, error) {
	return scanJobRow(row)
}

func scanJobRow(row rowScanner) (*storage.Job, error) {
	j := &storage.Job{}
	err := row.Scan(
		&j.ID, &j.JobHash, &j.Buyer, &j.Seller, &j.ServiceID, &j.Description, &j.Amount, &j.Currency, &j.Deadline,
		&j.PaymentTerms, &j.PaymentTxid, &j.PaymentVerified, &j.PlatformFeeTxid, &j.PlatformFeeVerified,
		&j.Signatures.Request, &j.Signatures.Acceptance, &j.Signatures.Delivery, &j.Signatures.Completion,
		&j.Status, &j.DeliveryHash, &j.DeliveryMessage, &j.SafechatEnabled, &j.RequestedAt, &j.AcceptedAt,
		&j.InProgressAt, &j.DeliveredAt, &j.CompletedAt, &j.DisputedAt, &j.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}
