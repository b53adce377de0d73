package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/logstore"
)

var errDown = errors.New("dial tcp: connection refused")

type fakeLogStore struct {
	err         error
	records     []domain.DetectionRecord
	total       int64
	aggs        map[string]string
	searches    []logstore.SearchQuery
	aggFilters  []logstore.Filter
	blocksSince time.Time
	blocks      int64
}

func (f *fakeLogStore) Ping(context.Context) error { return f.err }

func (f *fakeLogStore) Get(_ context.Context, id string) (*domain.DetectionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.records {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.NotFound("log", id)
}

func (f *fakeLogStore) Search(_ context.Context, q logstore.SearchQuery) (*logstore.SearchResult, error) {
	f.searches = append(f.searches, q)
	if f.err != nil {
		return nil, f.err
	}
	return &logstore.SearchResult{Records: f.records, Total: f.total}, nil
}

func (f *fakeLogStore) Aggregate(_ context.Context, flt logstore.Filter, aggs map[string]logstore.Agg) (*logstore.AggResult, error) {
	f.aggFilters = append(f.aggFilters, flt)
	if f.err != nil {
		return nil, f.err
	}
	raw := map[string]json.RawMessage{}
	for name := range aggs {
		if body, ok := f.aggs[name]; ok {
			raw[name] = json.RawMessage(body)
		}
	}
	return &logstore.AggResult{Total: f.total, Aggregations: raw}, nil
}

func (f *fakeLogStore) CountBlocksSince(_ context.Context, since time.Time) (int64, error) {
	f.blocksSince = since
	if f.err != nil {
		return 0, f.err
	}
	return f.blocks, nil
}

// fakeRepo - хранилище консоли в памяти.
type fakeRepo struct {
	mu       sync.Mutex
	projects map[int64]domain.Project
	nextID   int64
	labels   map[string]domain.LabelPolicy
	settings map[string]domain.SettingValue
	rules    map[int64]domain.DetectionRule
	users    map[string]domain.User
	err      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		projects: map[int64]domain.Project{},
		labels:   map[string]domain.LabelPolicy{},
		settings: map[string]domain.SettingValue{},
		rules:    map[int64]domain.DetectionRule{},
		users:    map[string]domain.User{},
	}
}

func (r *fakeRepo) ListProjects(context.Context) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetProject(_ context.Context, id int64) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, domain.NotFound("project", id)
	}
	return &p, nil
}

func (r *fakeRepo) nameTaken(name string, except int64) bool {
	for _, p := range r.projects {
		if p.Name == name && p.ID != except {
			return true
		}
	}
	return false
}

func (r *fakeRepo) CreateProject(_ context.Context, in domain.ProjectCreate) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(in.Name, 0) {
		return nil, domain.Conflict("project with name %q already exists", in.Name)
	}
	r.nextID++
	now := time.Now().UTC()
	p := domain.Project{
		ID: r.nextID, Name: in.Name, Description: in.Description, Owner: in.Owner,
		Status: in.Status, CreatedAt: now, UpdatedAt: now,
	}
	r.projects[p.ID] = p
	return &p, nil
}

func (r *fakeRepo) UpdateProject(_ context.Context, p *domain.Project) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ID]; !ok {
		return nil, domain.NotFound("project", p.ID)
	}
	if r.nameTaken(p.Name, p.ID) {
		return nil, domain.Conflict("project with name %q already exists", p.Name)
	}
	p.UpdatedAt = time.Now().UTC()
	r.projects[p.ID] = *p
	return p, nil
}

func (r *fakeRepo) DeleteProject(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return domain.NotFound("project", id)
	}
	delete(r.projects, id)
	return nil
}

func (r *fakeRepo) ListLabelPolicies(context.Context) ([]domain.LabelPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LabelPolicy, 0, len(r.labels))
	for _, p := range r.labels {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r *fakeRepo) UpsertLabelPolicy(_ context.Context, label string, in domain.LabelPolicyUpdate) (*domain.LabelPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.labels[label]
	if !ok {
		p = domain.LabelPolicy{ID: int64(len(r.labels) + 1), Label: label}
	}
	p.Block = in.Block
	p.UpdatedBy = in.UpdatedBy
	p.UpdatedAt = time.Now().UTC()
	r.labels[label] = p
	return &p, nil
}

func (r *fakeRepo) GetSettings(_ context.Context, keys ...string) ([]domain.SettingValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.SettingValue
	for _, k := range keys {
		if v, ok := r.settings[k]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// UpsertSettings повторяет JSONB round-trip: числа возвращаются float64.
func (r *fakeRepo) UpsertSettings(_ context.Context, values map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		r.settings[k] = domain.SettingValue{Key: k, Value: decoded, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (r *fakeRepo) ListDetectionRules(context.Context) ([]domain.DetectionRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DetectionRule, 0, len(r.rules))
	for _, d := range r.rules {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeRepo) SetDetectionRuleActive(_ context.Context, id int64, active bool) (*domain.DetectionRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rules[id]
	if !ok {
		return nil, domain.NotFound("detection rule", id)
	}
	d.IsActive = active
	r.rules[id] = d
	return &d, nil
}

func (r *fakeRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, domain.NotFound("user", username)
	}
	return &u, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	signals []string
	err     error
}

func (n *fakeNotifier) Notify(_ context.Context, signal string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signals = append(n.signals, signal)
	return n.err
}
