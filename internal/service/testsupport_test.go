package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/activation"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/signingkey"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"go.uber.org/zap"
)

// memStore is an in-memory store.Store for service tests. WithinTx hands the
// same store back; rollback granularity is not under test here.
type memStore struct {
	mu          sync.Mutex
	licenses    map[uuid.UUID]*license.License
	products    map[uuid.UUID]*product.Product
	consumers   map[uuid.UUID]*consumer.Consumer
	activations map[uuid.UUID]*activation.Activation
	signingKeys map[uuid.UUID]*signingkey.SigningKey
	auditLog    []*audit.Entry
	now         func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	if now == nil {
		now = time.Now
	}
	return &memStore{
		licenses:    make(map[uuid.UUID]*license.License),
		products:    make(map[uuid.UUID]*product.Product),
		consumers:   make(map[uuid.UUID]*consumer.Consumer),
		activations: make(map[uuid.UUID]*activation.Activation),
		signingKeys: make(map[uuid.UUID]*signingkey.SigningKey),
		now:         now,
	}
}

func (m *memStore) Licenses() license.Repository       { return (*memLicenseRepo)(m) }
func (m *memStore) Products() product.Repository       { return (*memProductRepo)(m) }
func (m *memStore) Consumers() consumer.Repository     { return (*memConsumerRepo)(m) }
func (m *memStore) Activations() activation.Repository { return (*memActivationRepo)(m) }
func (m *memStore) SigningKeys() signingkey.Repository { return (*memSigningKeyRepo)(m) }
func (m *memStore) AuditEntries() audit.Repository     { return (*memAuditRepo)(m) }

func (m *memStore) WithinTx(ctx context.Context, fn func(s store.Store) error) error {
	return fn(m)
}

func (m *memStore) addProduct(name string) *product.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &product.Product{
		ID:        uuid.New(),
		Name:      name,
		Slug:      strings.ToLower(name),
		IsActive:  true,
		CreatedAt: m.now(),
		UpdatedAt: m.now(),
	}
	m.products[p.ID] = p
	return p
}

func (m *memStore) addConsumer(name, email string) *consumer.Consumer {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &consumer.Consumer{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: m.now(),
		UpdatedAt: m.now(),
	}
	m.consumers[c.ID] = c
	return c
}

func (m *memStore) auditActions() []audit.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]audit.Action, len(m.auditLog))
	for i, e := range m.auditLog {
		actions[i] = e.Action
	}
	return actions
}

type memLicenseRepo memStore

func (r *memLicenseRepo) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *lic
	cp.ID = uuid.New()
	cp.CreatedAt = r.now()
	cp.UpdatedAt = cp.CreatedAt
	r.licenses[cp.ID] = &cp
	return cp.ID, nil
}

func (r *memLicenseRepo) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.licenses[id]
	if !ok {
		return nil, license.ErrNotFound
	}
	cp := *lic
	return &cp, nil
}

func (r *memLicenseRepo) FindByKey(ctx context.Context, key string) (*license.License, error) {
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

func (r *memLicenseRepo) FindByCode(ctx context.Context, code string) (*license.License, error) {
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

func (r *memLicenseRepo) List(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*license.License, 0)
	for _, lic := range r.licenses {
		if params.Status != nil && lic.Status != *params.Status {
			continue
		}
		if params.Model != nil && lic.Model != *params.Model {
			continue
		}
		if params.ProductID != nil && lic.ProductID != *params.ProductID {
			continue
		}
		if params.ConsumerID != nil && lic.ConsumerID != *params.ConsumerID {
			continue
		}
		cp := *lic
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ValidTo.Before(matched[j].ValidTo) })

	total := int64(len(matched))
	if params.Offset > 0 {
		if params.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}
	return matched, total, nil
}

func (r *memLicenseRepo) Update(ctx context.Context, lic *license.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.licenses[lic.ID]; !ok {
		return license.ErrNotFound
	}
	cp := *lic
	cp.UpdatedAt = r.now()
	r.licenses[lic.ID] = &cp
	return nil
}

func (r *memLicenseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status license.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	lic.Status = status
	lic.UpdatedAt = r.now()
	return nil
}

func (r *memLicenseRepo) CountActiveForConsumerProduct(ctx context.Context, consumerID, productID uuid.UUID, excludeID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, lic := range r.licenses {
		if lic.ID == excludeID {
			continue
		}
		if lic.Status == license.StatusActive && lic.ConsumerID == consumerID && lic.ProductID == productID {
			count++
		}
	}
	return count, nil
}

func (r *memLicenseRepo) Summary(ctx context.Context) (*license.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &license.Summary{
		StatusCounts:  make(map[license.Status]int64),
		ModelCounts:   make(map[license.Model]int64),
		ProductCounts: make(map[string]int64),
	}
	for _, lic := range r.licenses {
		s.Total++
		s.StatusCounts[lic.Status]++
		s.ModelCounts[lic.Model]++
		if p, ok := r.products[lic.ProductID]; ok {
			s.ProductCounts[p.Name]++
		}
	}
	return s, nil
}

type memProductRepo memStore

func (r *memProductRepo) Create(ctx context.Context, p *product.Product) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.ID = uuid.New()
	cp.CreatedAt = r.now()
	cp.UpdatedAt = cp.CreatedAt
	r.products[cp.ID] = &cp
	return cp.ID, nil
}

func (r *memProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) FindBySlug(ctx context.Context, slug string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, product.ErrNotFound
}

func (r *memProductRepo) List(ctx context.Context) ([]*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*product.Product, 0, len(r.products))
	for _, p := range r.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memProductRepo) Update(ctx context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	cp := *p
	cp.UpdatedAt = r.now()
	r.products[p.ID] = &cp
	return nil
}

type memConsumerRepo memStore

func (r *memConsumerRepo) Create(ctx context.Context, c *consumer.Consumer) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.ID = uuid.New()
	cp.CreatedAt = r.now()
	cp.UpdatedAt = cp.CreatedAt
	r.consumers[cp.ID] = &cp
	return cp.ID, nil
}

func (r *memConsumerRepo) FindByID(ctx context.Context, id uuid.UUID) (*consumer.Consumer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consumers[id]
	if !ok {
		return nil, consumer.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memConsumerRepo) FindByEmail(ctx context.Context, email string) (*consumer.Consumer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.consumers {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, consumer.ErrNotFound
}

func (r *memConsumerRepo) List(ctx context.Context) ([]*consumer.Consumer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*consumer.Consumer, 0, len(r.consumers))
	for _, c := range r.consumers {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memConsumerRepo) Update(ctx context.Context, c *consumer.Consumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.consumers[c.ID]; !ok {
		return consumer.ErrNotFound
	}
	cp := *c
	cp.UpdatedAt = r.now()
	r.consumers[c.ID] = &cp
	return nil
}

type memActivationRepo memStore

func (r *memActivationRepo) Create(ctx context.Context, a *activation.Activation) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	cp.ID = uuid.New()
	r.activations[cp.ID] = &cp
	return cp.ID, nil
}

func (r *memActivationRepo) FindBySignature(ctx context.Context, signature string) (*activation.Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.activations {
		if a.Signature == signature {
			cp := *a
			return &cp, nil
		}
	}
	return nil, activation.ErrNotFound
}

func (r *memActivationRepo) FindActiveByLicenseAndMachine(ctx context.Context, licenseID uuid.UUID, machineID string) (*activation.Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.activations {
		if a.LicenseID == licenseID && a.MachineID == machineID && a.Status == activation.StatusActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, activation.ErrNotFound
}

func (r *memActivationRepo) ListByProductKey(ctx context.Context, productKey string) ([]*activation.Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*activation.Activation, 0)
	for _, a := range r.activations {
		if a.ProductKey == productKey {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memActivationRepo) CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, a := range r.activations {
		if a.LicenseID == licenseID && a.Status == activation.StatusActive {
			count++
		}
	}
	return count, nil
}

func (r *memActivationRepo) Update(ctx context.Context, a *activation.Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activations[a.ID]; !ok {
		return activation.ErrNotFound
	}
	cp := *a
	r.activations[a.ID] = &cp
	return nil
}

type memSigningKeyRepo memStore

func (r *memSigningKeyRepo) Create(ctx context.Context, k *signingkey.SigningKey) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *k
	cp.ID = uuid.New()
	cp.CreatedAt = r.now()
	r.signingKeys[cp.ID] = &cp
	return cp.ID, nil
}

func (r *memSigningKeyRepo) FindActiveByProduct(ctx context.Context, productID uuid.UUID) (*signingkey.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.signingKeys {
		if k.ProductID == productID && k.IsActive {
			cp := *k
			return &cp, nil
		}
	}
	return nil, signingkey.ErrNotFound
}

func (r *memSigningKeyRepo) DeactivateForProduct(ctx context.Context, productID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.signingKeys {
		if k.ProductID == productID {
			k.IsActive = false
		}
	}
	return nil
}

func (r *memSigningKeyRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*signingkey.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*signingkey.SigningKey, 0)
	for _, k := range r.signingKeys {
		if k.ProductID == productID {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type memAuditRepo memStore

func (r *memAuditRepo) Create(ctx context.Context, e *audit.Entry) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	cp.ID = uuid.New()
	cp.CreatedAt = r.now()
	r.auditLog = append(r.auditLog, &cp)
	return cp.ID, nil
}

func (r *memAuditRepo) List(ctx context.Context, params audit.ListParams) ([]*audit.Entry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]*audit.Entry, 0)
	for _, e := range r.auditLog {
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
		matched = append(matched, &cp)
	}
	total := int64(len(matched))
	if params.Offset > 0 {
		if params.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}
	return matched, total, nil
}

var _ store.Store = (*memStore)(nil)

func testLogger() *zap.Logger {
	return zap.NewNop()
}
