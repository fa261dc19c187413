package validation

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/retrouvio/retrouvio/internal/perm"
)

type memoryLedgerRepo struct {
	records map[uuid.UUID]Record
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{records: make(map[uuid.UUID]Record)}
}

func (r *memoryLedgerRepo) Insert(_ context.Context, record Record) error {
	r.records[record.ID] = record
	return nil
}

func (r *memoryLedgerRepo) Get(_ context.Context, id uuid.UUID) (Record, error) {
	record, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (r *memoryLedgerRepo) Resolve(_ context.Context, id uuid.UUID, to Status, resolver uuid.UUID, comment string, at time.Time) (Record, error) {
	record, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if record.Status != StatusPending {
		return Record{}, ErrAlreadyResolved
	}
	record.Status = to
	record.Comment = comment
	record.ResolvedAt = &at
	if to == StatusApproved {
		record.ApprovedBy = &resolver
	} else {
		record.RejectedBy = &resolver
	}
	r.records[id] = record
	return record, nil
}

func (r *memoryLedgerRepo) ListByActor(_ context.Context, actorID uuid.UUID, limit, offset int) ([]Record, int, error) {
	var matched []Record
	for _, record := range r.records {
		if record.RequestedBy == actorID {
			matched = append(matched, record)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), len(matched), nil
}

func (r *memoryLedgerRepo) ListByStatus(_ context.Context, status Status, limit, offset int) ([]Record, int, error) {
	var matched []Record
	for _, record := range r.records {
		if record.Status == status {
			matched = append(matched, record)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return paginate(matched, limit, offset), len(matched), nil
}

func paginate(records []Record, limit, offset int) []Record {
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

func adminIdentity() perm.Identity {
	return perm.Identity{
		ID:          uuid.New(),
		Role:        perm.RoleAdmin,
		Status:      perm.StatusActive,
		Permissions: perm.DefaultPermissions(perm.RoleAdmin),
	}
}

func superAdminIdentity() perm.Identity {
	return perm.Identity{
		ID:          uuid.New(),
		Role:        perm.RoleSuperAdmin,
		Status:      perm.StatusActive,
		Permissions: perm.DefaultPermissions(perm.RoleSuperAdmin),
	}
}

func TestLogActionCriticalStartsPending(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	record, err := svc.LogAction(context.Background(), adminIdentity(), perm.ActionAnnonceDeletion, "annonce 42")
	require.NoError(t, err)
	require.Equal(t, StatusPending, record.Status)
	require.Nil(t, record.ResolvedAt)
	require.False(t, record.Resolved())

	stored, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestLogActionSuperAdminAutoApproves(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	record, err := svc.LogAction(context.Background(), superAdminIdentity(), perm.ActionAlertBroadcast, "storm warning")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, record.Status)
	require.NotNil(t, record.ResolvedAt)
	require.Nil(t, record.ApprovedBy)
}

func TestLogActionNonCriticalAutoApproves(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	record, err := svc.LogAction(context.Background(), adminIdentity(), perm.ActionType("annonce-view"), "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, record.Status)
}

func TestApproveIsExactlyOnce(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	super := superAdminIdentity()

	record, err := svc.LogAction(context.Background(), adminIdentity(), perm.ActionAdminCreation, "new moderator")
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), record.ID, super)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, super.ID, *approved.ApprovedBy)
	require.NotNil(t, approved.ResolvedAt)

	_, err = svc.Approve(context.Background(), record.ID, super)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	_, err = svc.Reject(context.Background(), record.ID, super, "changed my mind")
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestRejectKeepsComment(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	super := superAdminIdentity()

	record, err := svc.LogAction(context.Background(), adminIdentity(), perm.ActionPermissionChange, "grant export")
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), record.ID, super, "needs a second opinion")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "needs a second opinion", rejected.Comment)
	require.NotNil(t, rejected.RejectedBy)
	require.Equal(t, super.ID, *rejected.RejectedBy)
	require.Nil(t, rejected.ApprovedBy)
}

func TestResolveRequiresApproverRights(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	record, err := svc.LogAction(context.Background(), adminIdentity(), perm.ActionAnnonceDeletion, "")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), record.ID, adminIdentity())
	require.ErrorIs(t, err, ErrPermissionDenied)

	// The record must remain pending after the denied attempt.
	stored, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)

	delegated := adminIdentity()
	delegated.Permissions[perm.ResourceAdmins] = map[string]bool{perm.ActionManage: true}
	approved, err := svc.Approve(context.Background(), record.ID, delegated)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
}

func TestResolveUnknownRecord(t *testing.T) {
	svc := NewService(newMemoryLedgerRepo(), nil)
	_, err := svc.Approve(context.Background(), uuid.New(), superAdminIdentity())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTrailAndPendingOrdering(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	moderator := adminIdentity()
	first, err := svc.LogAction(context.Background(), moderator, perm.ActionAnnonceDeletion, "first")
	require.NoError(t, err)
	second, err := svc.LogAction(context.Background(), moderator, perm.ActionAlertBroadcast, "second")
	require.NoError(t, err)

	trail, page, err := svc.Trail(context.Background(), moderator.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, second.ID, trail[0].ID, "trail is newest first")
	require.Equal(t, first.ID, trail[1].ID)

	pending, page, err := svc.Pending(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, first.ID, pending[0].ID, "pending queue is oldest first")
}

// Full round trip: a moderator attempts a critical deletion, the record stays
// pending and blocks, a super-admin approves it, and the trail reflects the
// terminal decision.
func TestDeferredValidationRoundTrip(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	moderator := adminIdentity()
	super := superAdminIdentity()

	record, err := svc.LogAction(context.Background(), moderator, perm.ActionAnnonceDeletion, "annonce 77: fraud report")
	require.NoError(t, err)
	require.False(t, record.Resolved())

	pending, _, err := svc.Pending(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	resolved, err := svc.Approve(context.Background(), record.ID, super)
	require.NoError(t, err)
	require.True(t, resolved.Resolved())

	pending, page, err := svc.Pending(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
	require.Equal(t, 0, page.Total)

	trail, _, err := svc.Trail(context.Background(), moderator.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, StatusApproved, trail[0].Status)
}
