package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD CERTIFICATE COMMAND
// The check-and-award gate: evaluate eligibility, then issue at most one
// certificate per user. Idempotent under concurrency; the storage layer's
// insert-or-fetch settles races. A force award bypasses a failing gate and
// is recorded as forced.
// ══════════════════════════════════════════════════════════════════════════════

// AwardOutcome classifies the result of an award attempt.
type AwardOutcome string

const (
	// OutcomeIssued - a new certificate was minted.
	OutcomeIssued AwardOutcome = "issued"

	// OutcomeAlreadyIssued - the user already held a certificate.
	OutcomeAlreadyIssued AwardOutcome = "already_issued"

	// OutcomeNotEligible - the gate failed and force was not set.
	OutcomeNotEligible AwardOutcome = "not_eligible"
)

// SnapshotProvider produces an eligibility snapshot for a profile.
// Implemented by the eligibility query handler.
type SnapshotProvider interface {
	SnapshotFor(ctx context.Context, profile *membership.Profile) (*membership.Snapshot, error)
}

// AwardCertificateCommand contains the data for an award attempt.
type AwardCertificateCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// Force bypasses a failing eligibility gate.
	Force bool

	// CorrelationID for tracing.
	CorrelationID string
}

// AwardCertificateResult contains the result of an award attempt.
// The snapshot is always present so callers can show the full criteria
// table regardless of outcome; failures past the evaluation step also
// return a partial result carrying the snapshot alongside the error.
type AwardCertificateResult struct {
	Outcome     AwardOutcome
	Certificate *membership.Certificate // nil for OutcomeNotEligible
	Snapshot    *membership.Snapshot
}

// AwardCertificateHandler handles the AwardCertificateCommand.
type AwardCertificateHandler struct {
	profiles       membership.ProfileReader
	certRepo       membership.CertificateRepository
	snapshots      SnapshotProvider
	allocator      *AllocateNumberHandler
	eventPublisher shared.EventPublisher
}

// NewAwardCertificateHandler creates a new AwardCertificateHandler.
func NewAwardCertificateHandler(
	profiles membership.ProfileReader,
	certRepo membership.CertificateRepository,
	snapshots SnapshotProvider,
	allocator *AllocateNumberHandler,
	eventPublisher shared.EventPublisher,
) *AwardCertificateHandler {
	return &AwardCertificateHandler{
		profiles:       profiles,
		certRepo:       certRepo,
		snapshots:      snapshots,
		allocator:      allocator,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the award certificate command.
func (h *AwardCertificateHandler) Handle(ctx context.Context, cmd AwardCertificateCommand) (*AwardCertificateResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("award_certificate: %w", err)
	}

	profile, err := h.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("award_certificate: %w", err)
	}

	// The snapshot is produced up front so every outcome carries it.
	snapshot, err := h.snapshots.SnapshotFor(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("award_certificate: eligibility evaluation failed: %w", err)
	}

	// Already certified: return the existing certificate, no re-issue.
	if existing, err := h.certRepo.GetByUser(ctx, userID); err == nil {
		return &AwardCertificateResult{
			Outcome:     OutcomeAlreadyIssued,
			Certificate: existing,
			Snapshot:    snapshot,
		}, nil
	} else if !shared.IsNotFound(err) {
		return &AwardCertificateResult{Snapshot: snapshot},
			fmt.Errorf("award_certificate: certificate lookup failed: %w", err)
	}

	if !snapshot.Eligible && !cmd.Force {
		return &AwardCertificateResult{
			Outcome:  OutcomeNotEligible,
			Snapshot: snapshot,
		}, nil
	}

	// Forced records that the gate was actually bypassed, not that the
	// caller asked for a bypass. A force award of an eligible user is an
	// ordinary issue.
	forced := cmd.Force && !snapshot.Eligible

	// The certificate carries the user's membership number. Allocate one
	// if the user has none yet.
	allocated, err := h.allocator.Handle(ctx, AllocateNumberCommand{
		UserID:        cmd.UserID,
		Role:          profile.Role.String(),
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return &AwardCertificateResult{Snapshot: snapshot},
			fmt.Errorf("award_certificate: number allocation failed: %w", err)
	}

	cert, err := membership.NewCertificate(
		uuid.NewString(),
		userID,
		allocated.Number,
		profile.Role,
		time.Now().UTC(),
		forced,
		snapshot,
	)
	if err != nil {
		return &AwardCertificateResult{Snapshot: snapshot},
			fmt.Errorf("award_certificate: %w", err)
	}

	stored, inserted, err := h.certRepo.InsertOrFetch(ctx, cert)
	if err != nil {
		return &AwardCertificateResult{Snapshot: snapshot},
			fmt.Errorf("award_certificate: insert failed: %w", err)
	}

	if !inserted {
		// A concurrent award won the race; theirs is the certificate.
		return &AwardCertificateResult{
			Outcome:     OutcomeAlreadyIssued,
			Certificate: stored,
			Snapshot:    snapshot,
		}, nil
	}

	event := shared.NewCertificateIssuedEvent(
		userID.String(),
		stored.ID,
		stored.CertificateNumber.String(),
		stored.Role.String(),
		stored.Forced,
		stored.IssueDate,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &AwardCertificateResult{
		Outcome:     OutcomeIssued,
		Certificate: stored,
		Snapshot:    snapshot,
	}, nil
}
