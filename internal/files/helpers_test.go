package files

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/language"
)

type fakeQuotaStore struct {
	mu      sync.Mutex
	usage   map[int64]int64
	failAdd bool
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{usage: make(map[int64]int64)}
}

func (f *fakeQuotaStore) GetUsage(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	usage, ok := f.usage[userID]
	if !ok {
		return 0, ErrQuotaNotFound
	}
	return usage, nil
}

func (f *fakeQuotaStore) SetUsage(_ context.Context, userID int64, usage int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage[userID] = usage
	return nil
}

func (f *fakeQuotaStore) AddUsage(_ context.Context, userID int64, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd {
		return context.DeadlineExceeded
	}
	if _, ok := f.usage[userID]; !ok {
		return ErrQuotaNotFound
	}
	f.usage[userID] += delta
	return nil
}

func (f *fakeQuotaStore) DeleteUsage(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.usage, userID)
	return nil
}

func (f *fakeQuotaStore) get(userID int64) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	usage, ok := f.usage[userID]
	return usage, ok
}

type fakeShareStore struct {
	mu          sync.Mutex
	records     map[string]*ShareRecord
	failRewrite bool
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{records: make(map[string]*ShareRecord)}
}

func (f *fakeShareStore) GetByOwnerPath(_ context.Context, owner int64, path string) (*ShareRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.Owner == owner && record.Path == path {
			copied := *record
			return &copied, nil
		}
	}
	return nil, ErrShareNotFound
}

func (f *fakeShareStore) GetByHash(_ context.Context, hash string) (*ShareRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[hash]
	if !ok {
		return nil, ErrShareNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeShareStore) Create(_ context.Context, record *ShareRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.Owner == record.Owner && existing.Path == record.Path {
			return ErrShareExists
		}
	}
	copied := *record
	f.records[record.Hash] = &copied
	return nil
}

func (f *fakeShareStore) Delete(_ context.Context, hashes ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, hash := range hashes {
		delete(f.records, hash)
	}
	return nil
}

func (f *fakeShareStore) ListByOwner(_ context.Context, owner int64) ([]*ShareRecord, error) {
	return f.ListByPrefix(context.Background(), owner, "")
}

func (f *fakeShareStore) ListByPrefix(_ context.Context, owner int64, prefix string) ([]*ShareRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]*ShareRecord, 0)
	for _, record := range f.records {
		if record.Owner == owner && strings.HasPrefix(record.Path, prefix) {
			copied := *record
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (f *fakeShareStore) UpdatePath(_ context.Context, owner int64, oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRewrite {
		return context.DeadlineExceeded
	}
	for _, record := range f.records {
		if record.Owner == owner && record.Path == oldPath {
			record.Path = newPath
			return nil
		}
	}
	return ErrShareNotFound
}

func (f *fakeShareStore) RewritePrefix(_ context.Context, owner int64, oldPrefix, newPrefix string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRewrite {
		return 0, context.DeadlineExceeded
	}
	var affected int64
	for _, record := range f.records {
		if record.Owner == owner && strings.HasPrefix(record.Path, oldPrefix) {
			record.Path = newPrefix + strings.TrimPrefix(record.Path, oldPrefix)
			affected++
		}
	}
	return affected, nil
}

func (f *fakeShareStore) DeleteByOwner(_ context.Context, owner int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, record := range f.records {
		if record.Owner == owner {
			delete(f.records, hash)
		}
	}
	return nil
}

func (f *fakeShareStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeShortener struct {
	mu      sync.Mutex
	nextID  int64
	deleted []int64
	fail    bool
}

func (f *fakeShortener) Shorten(_ context.Context, longURL string) (*ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	f.nextID++
	return &ShortLink{ID: f.nextID, URL: "https://s.test/" + time.Now().Format("150405"), LongURL: longURL}, nil
}

func (f *fakeShortener) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeShortener) Lookup(_ context.Context, id int64) (*ShortLink, error) {
	return &ShortLink{ID: id, URL: "https://s.test/x"}, nil
}

type testEnv struct {
	svc       *Service
	quotas    *fakeQuotaStore
	shares    *fakeShareStore
	shortener *fakeShortener
	settings  *Settings
	dataRoot  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		quotas:    newFakeQuotaStore(),
		shares:    newFakeShareStore(),
		shortener: &fakeShortener{},
		settings:  &Settings{PublicBaseURL: "https://files.test"},
		dataRoot:  t.TempDir(),
	}
	svc, err := NewService(Config{
		DataRoot:  env.dataRoot,
		Quotas:    env.quotas,
		Shares:    env.shares,
		Shortener: env.shortener,
		Settings:  func() Settings { return *env.settings },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	env.svc = svc
	return env
}

func caller(id int64, caps ...Capability) *RequestContext {
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, string(c))
	}
	return NewRequestContext(id, names, language.English)
}

func fullCaller(id int64) *RequestContext {
	return caller(id, CapPrivateFiles, CapPublicFiles, CapTrash, CapListPublic)
}

func (e *testEnv) exec(t *testing.T, rc *RequestContext, action string, params Params) any {
	t.Helper()
	result, err := e.svc.Execute(context.Background(), rc, action, params, nil)
	if err != nil {
		t.Fatalf("%s %v: %v", action, params, err)
	}
	return result
}

func (e *testEnv) execErr(t *testing.T, rc *RequestContext, action string, params Params) *Error {
	t.Helper()
	_, err := e.svc.Execute(context.Background(), rc, action, params, nil)
	if err == nil {
		t.Fatalf("%s %v: expected error", action, params)
	}
	fe, ok := err.(*Error)
	if !ok {
		t.Fatalf("%s: expected *Error, got %T (%v)", action, err, err)
	}
	return fe
}

func (e *testEnv) usage(t *testing.T, userID int64) int64 {
	t.Helper()
	usage, ok := e.quotas.get(userID)
	if !ok {
		t.Fatalf("no usage row for user %d", userID)
	}
	return usage
}
