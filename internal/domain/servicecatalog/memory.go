package servicecatalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
)

// ConfigFile is the definitions document listing service types and rates.
const ConfigFile = "services.yaml"

const dateLayout = "2006-01-02"

// Memory is an in-process Registry, RateRepository and Writer.
type Memory struct {
	mu     sync.RWMutex
	byCode map[string]*ServiceType
	rates  map[uuid.UUID][]*Rate
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		byCode: make(map[string]*ServiceType),
		rates:  make(map[uuid.UUID][]*Rate),
	}
}

type yamlCatalog struct {
	Services map[string]yamlService `yaml:"services"`
}

type yamlService struct {
	Name                   string     `yaml:"name"`
	Category               string     `yaml:"category"`
	DefaultDurationMinutes int        `yaml:"default_duration_minutes"`
	DefaultCost            float64    `yaml:"default_cost"`
	Inactive               bool       `yaml:"inactive"`
	Rates                  []yamlRate `yaml:"rates"`
}

type yamlRate struct {
	Amount        float64 `yaml:"amount"`
	EffectiveFrom string  `yaml:"effective_from"`
	EffectiveTo   string  `yaml:"effective_to"`
}

// LoadMemory reads services.yaml from src.
func LoadMemory(src defstore.Source) (*Memory, error) {
	data, err := src.ReadFile(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading service catalog: %w", err)
	}
	return ParseMemory(data)
}

// ParseMemory builds a memory catalog from a services document.
func ParseMemory(data []byte) (*Memory, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing service catalog: %w", err)
	}
	m := NewMemory()
	ctx := context.Background()
	for code, svc := range doc.Services {
		if svc.DefaultCost < 0 || svc.DefaultDurationMinutes < 0 {
			return nil, fmt.Errorf("service %s: negative duration or cost", code)
		}
		st := &ServiceType{
			ID:                     IDForCode(code),
			Code:                   code,
			Name:                   svc.Name,
			Category:               svc.Category,
			DefaultDurationMinutes: svc.DefaultDurationMinutes,
			DefaultCost:            svc.DefaultCost,
			Active:                 !svc.Inactive,
		}
		if err := m.UpsertServiceType(ctx, st); err != nil {
			return nil, err
		}
		for i, yr := range svc.Rates {
			r, err := yr.toRate(st.ID)
			if err != nil {
				return nil, fmt.Errorf("service %s rate %d: %w", code, i, err)
			}
			if err := m.AddRate(ctx, r); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (yr yamlRate) toRate(serviceTypeID uuid.UUID) (*Rate, error) {
	from, err := time.Parse(dateLayout, yr.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("effective_from: %w", err)
	}
	r := &Rate{
		ID:            uuid.NewSHA1(serviceTypeID, []byte(yr.EffectiveFrom)),
		ServiceTypeID: serviceTypeID,
		Amount:        yr.Amount,
		EffectiveFrom: from,
	}
	if yr.EffectiveTo != "" {
		to, err := time.Parse(dateLayout, yr.EffectiveTo)
		if err != nil {
			return nil, fmt.Errorf("effective_to: %w", err)
		}
		if !to.After(from) {
			return nil, fmt.Errorf("effective_to %s is not after effective_from %s", yr.EffectiveTo, yr.EffectiveFrom)
		}
		r.EffectiveTo = &to
	}
	return r, nil
}

func (m *Memory) GetByCode(_ context.Context, code string) (*ServiceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.byCode[code]
	if !ok || !st.Active {
		return nil, fmt.Errorf("%w: %s", ErrServiceTypeNotFound, code)
	}
	return st, nil
}

func (m *Memory) List(_ context.Context) ([]*ServiceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ServiceType, 0, len(m.byCode))
	for _, st := range m.byCode {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// CurrentRate returns the latest-starting rate covering at.
func (m *Memory) CurrentRate(_ context.Context, serviceTypeID uuid.UUID, at time.Time) (*Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Rate
	for _, r := range m.rates[serviceTypeID] {
		if !r.Covers(at) {
			continue
		}
		if best == nil || r.EffectiveFrom.After(best.EffectiveFrom) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrRateNotFound
	}
	return best, nil
}

// RatesFor returns every rate recorded for a service type, oldest first.
func (m *Memory) RatesFor(serviceTypeID uuid.UUID) []*Rate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]*Rate(nil), m.rates[serviceTypeID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveFrom.Before(out[j].EffectiveFrom) })
	return out
}

func (m *Memory) UpsertServiceType(_ context.Context, st *ServiceType) error {
	if st.Code == "" {
		return fmt.Errorf("service type without code")
	}
	if st.ID == uuid.Nil {
		st.ID = IDForCode(st.Code)
	}
	now := time.Now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	m.mu.Lock()
	m.byCode[st.Code] = st
	m.mu.Unlock()
	return nil
}

func (m *Memory) AddRate(_ context.Context, r *Rate) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.rates[r.ServiceTypeID] = append(m.rates[r.ServiceTypeID], r)
	m.mu.Unlock()
	return nil
}
