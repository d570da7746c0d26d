package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/activation"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/signingkey"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var sweepNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// sweepStore backs the scheduler tests. Only the license and audit
// repositories are live; the handlers never touch the others.
type sweepStore struct {
	mu       sync.Mutex
	clk      clock.Clock
	licenses map[uuid.UUID]*license.License
	entries  []*audit.Entry
}

func newSweepStore(clk clock.Clock) *sweepStore {
	return &sweepStore{
		clk:      clk,
		licenses: make(map[uuid.UUID]*license.License),
	}
}

func (s *sweepStore) Licenses() license.Repository       { return (*sweepLicenseRepo)(s) }
func (s *sweepStore) AuditEntries() audit.Repository     { return (*sweepAuditRepo)(s) }
func (s *sweepStore) Products() product.Repository       { return nil }
func (s *sweepStore) Consumers() consumer.Repository     { return nil }
func (s *sweepStore) Activations() activation.Repository { return nil }
func (s *sweepStore) SigningKeys() signingkey.Repository { return nil }

func (s *sweepStore) WithinTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s *sweepStore) add(lic *license.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses[lic.ID] = lic
}

type sweepLicenseRepo sweepStore

func (r *sweepLicenseRepo) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	(*sweepStore)(r).add(lic)
	return lic.ID, nil
}

func (r *sweepLicenseRepo) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.licenses[id]
	if !ok {
		return nil, license.ErrNotFound
	}
	cp := *lic
	return &cp, nil
}

func (r *sweepLicenseRepo) FindByKey(ctx context.Context, key string) (*license.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lic := range r.licenses {
		if lic.LicenseKey == key {
			cp := *lic
			return &cp, nil
		}
	}
	return nil, license.ErrNotFound
}

func (r *sweepLicenseRepo) FindByCode(ctx context.Context, code string) (*license.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lic := range r.licenses {
		if lic.Code == code {
			cp := *lic
			return &cp, nil
		}
	}
	return nil, license.ErrNotFound
}

func (r *sweepLicenseRepo) List(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*license.License
	for _, lic := range r.licenses {
		if params.Status != nil && lic.Status != *params.Status {
			continue
		}
		cp := *lic
		out = append(out, &cp)
	}
	total := int64(len(out))
	if params.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[params.Offset:]
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, total, nil
}

func (r *sweepLicenseRepo) Update(ctx context.Context, lic *license.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.licenses[lic.ID]; !ok {
		return license.ErrNotFound
	}
	cp := *lic
	r.licenses[lic.ID] = &cp
	return nil
}

func (r *sweepLicenseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status license.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	lic.Status = status
	return nil
}

func (r *sweepLicenseRepo) CountActiveForConsumerProduct(ctx context.Context, consumerID, productID uuid.UUID, excludeID uuid.UUID) (int64, error) {
	return 0, nil
}

func (r *sweepLicenseRepo) Summary(ctx context.Context) (*license.Summary, error) {
	return &license.Summary{}, nil
}

type sweepAuditRepo sweepStore

func (r *sweepAuditRepo) Create(ctx context.Context, e *audit.Entry) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	cp.ID = uuid.New()
	cp.CreatedAt = r.clk.Now()
	r.entries = append(r.entries, &cp)
	return cp.ID, nil
}

func (r *sweepAuditRepo) List(ctx context.Context, params audit.ListParams) ([]*audit.Entry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Entry
	for _, e := range r.entries {
		if params.EntityType != nil && e.EntityType != *params.EntityType {
			continue
		}
		if params.EntityID != nil && e.EntityID != *params.EntityID {
			continue
		}
		if params.Action != nil && e.Action != *params.Action {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	total := int64(len(out))
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, total, nil
}

var _ store.Store = (*sweepStore)(nil)

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) InvalidateLicenseKey(ctx context.Context, licenseKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, licenseKey)
}

func sweepLicense(status license.Status, validTo time.Time) *license.License {
	return &license.License{
		ID:         uuid.New(),
		Code:       "LIC-" + uuid.NewString()[:8],
		ProductID:  uuid.New(),
		ConsumerID: uuid.New(),
		LicenseKey: "KEY-" + uuid.NewString()[:8],
		Model:      license.ModelProductKey,
		Status:     status,
		ValidFrom:  validTo.AddDate(-1, 0, 0),
		ValidTo:    validTo,
	}
}

func TestExpireSweepFlipsLapsedLicenses(t *testing.T) {
	fakeClock := clock.NewFake(sweepNow)
	st := newSweepStore(fakeClock)
	cache := &recordingInvalidator{}

	lapsed := sweepLicense(license.StatusActive, sweepNow.Add(-time.Hour))
	lapsedSuspended := sweepLicense(license.StatusSuspended, sweepNow.AddDate(0, 0, -3))
	current := sweepLicense(license.StatusActive, sweepNow.AddDate(0, 1, 0))
	st.add(lapsed)
	st.add(lapsedSuspended)
	st.add(current)

	h := NewLicenseExpireHandler(st, cache, fakeClock, zap.NewNop())
	task, err := NewLicenseExpireTask()
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	got, err := st.Licenses().FindByID(context.Background(), lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusExpired, got.Status)

	got, err = st.Licenses().FindByID(context.Background(), lapsedSuspended.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusExpired, got.Status)

	got, err = st.Licenses().FindByID(context.Background(), current.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, got.Status)

	assert.ElementsMatch(t, []string{lapsed.LicenseKey, lapsedSuspended.LicenseKey}, cache.keys)
}

func TestExpireSweepRejectsForeignTaskType(t *testing.T) {
	fakeClock := clock.NewFake(sweepNow)
	h := NewLicenseExpireHandler(newSweepStore(fakeClock), nil, fakeClock, zap.NewNop())

	task, err := NewExpiryNotifyTask()
	require.NoError(t, err)
	assert.Error(t, h.ProcessTask(context.Background(), task))
}

func TestNotifyRecordsTieredNoticesOnce(t *testing.T) {
	fakeClock := clock.NewFake(sweepNow)
	st := newSweepStore(fakeClock)

	recommended := sweepLicense(license.StatusActive, sweepNow.AddDate(0, 0, 20))
	urgent := sweepLicense(license.StatusActive, sweepNow.AddDate(0, 0, 5))
	distant := sweepLicense(license.StatusActive, sweepNow.AddDate(1, 0, 0))
	st.add(recommended)
	st.add(urgent)
	st.add(distant)

	h := NewExpiryNotifyHandler(st, fakeClock, zap.NewNop())
	task, err := NewExpiryNotifyTask()
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	entries, _, err := st.AuditEntries().List(context.Background(), audit.ListParams{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byLicense := make(map[uuid.UUID]*audit.Entry)
	for _, e := range entries {
		assert.Equal(t, audit.ActionExpiryNotice, e.Action)
		assert.Equal(t, "scheduler", e.Actor)
		byLicense[e.EntityID] = e
	}
	require.Contains(t, byLicense, recommended.ID)
	require.Contains(t, byLicense, urgent.ID)
	assert.Contains(t, byLicense[recommended.ID].Reason.String, "renewal_recommended:")
	assert.Contains(t, byLicense[urgent.ID].Reason.String, "renewal_urgent:")

	// A second run inside the same expiry window must not duplicate notices.
	fakeClock.Advance(24 * time.Hour)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	entries, _, err = st.AuditEntries().List(context.Background(), audit.ListParams{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestNotifyCoversGracePeriodLicenses(t *testing.T) {
	fakeClock := clock.NewFake(sweepNow)
	st := newSweepStore(fakeClock)

	graced := sweepLicense(license.StatusGracePeriod, sweepNow.AddDate(0, 0, 5))
	stale := sweepLicense(license.StatusExpired, sweepNow.AddDate(0, 0, 5))
	st.add(graced)
	st.add(stale)

	h := NewExpiryNotifyHandler(st, fakeClock, zap.NewNop())
	task, err := NewExpiryNotifyTask()
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	entries, _, err := st.AuditEntries().List(context.Background(), audit.ListParams{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, graced.ID, entries[0].EntityID)
	assert.Contains(t, entries[0].Reason.String, "renewal_urgent:")
}

func TestNotifyEscalatesToUrgentTier(t *testing.T) {
	fakeClock := clock.NewFake(sweepNow)
	st := newSweepStore(fakeClock)

	lic := sweepLicense(license.StatusActive, sweepNow.AddDate(0, 0, 10))
	st.add(lic)

	h := NewExpiryNotifyHandler(st, fakeClock, zap.NewNop())
	task, err := NewExpiryNotifyTask()
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	// Crossing the urgent mark is a new tier, so a second notice goes out.
	fakeClock.Advance(5 * 24 * time.Hour)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	entries, _, err := st.AuditEntries().List(context.Background(), audit.ListParams{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Reason.String, "renewal_recommended:")
	assert.Contains(t, entries[1].Reason.String, "renewal_urgent:")
}

func TestNotifyRenewalOpensNewWindow(t *testing.T) {
	fakeClock := clock.NewFake(sweepNow)
	st := newSweepStore(fakeClock)

	lic := sweepLicense(license.StatusActive, sweepNow.AddDate(0, 0, 20))
	st.add(lic)

	h := NewExpiryNotifyHandler(st, fakeClock, zap.NewNop())
	task, err := NewExpiryNotifyTask()
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	// Renew for a year, then fast-forward back into notice range. The old
	// notice predates the new window and must not suppress a fresh one.
	lic.ValidTo = lic.ValidTo.AddDate(1, 0, 0)
	require.NoError(t, st.Licenses().Update(context.Background(), lic))
	fakeClock.Set(lic.ValidTo.AddDate(0, 0, -20))

	require.NoError(t, h.ProcessTask(context.Background(), task))

	entries, _, err := st.AuditEntries().List(context.Background(), audit.ListParams{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
