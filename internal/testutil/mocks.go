package testutil

import (
	"context"
	"sync"
	"time"

	"ledgerd/internal/models"
	"ledgerd/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// CountLevel returns how many entries were recorded at the given level.
func (m *MockLogger) CountLevel(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entry := range m.Logs {
		if entry.Level == level {
			n++
		}
	}
	return n
}

// MockGateway implements feishu.GatewayInterface with injectable behavior
// and per-call counters.
type MockGateway struct {
	mu sync.Mutex

	IssueTokenFn     func(ctx context.Context) (string, error)
	ListCategoriesFn func(ctx context.Context, token string) ([]models.Category, error)
	SearchRecordsFn  func(ctx context.Context, token string, year, month int) ([]models.RemoteRecord, error)
	CreateRecordFn   func(ctx context.Context, token string, fields map[string]interface{}) (string, error)
	UpdateRecordFn   func(ctx context.Context, token, recordID string, fields map[string]interface{}) error
	DeleteRecordFn   func(ctx context.Context, token, recordID string) error
	UploadFileFn     func(ctx context.Context, token, filename string, data []byte) (string, error)

	IssueTokenCalls     int
	ListCategoriesCalls int
	SearchRecordsCalls  int
	CreateRecordCalls   int
	UpdateRecordCalls   int
	DeleteRecordCalls   int
	UploadFileCalls     int
}

func (m *MockGateway) IssueToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.IssueTokenCalls++
	fn := m.IssueTokenFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return "test-token", nil
}

func (m *MockGateway) ListCategories(ctx context.Context, token string) ([]models.Category, error) {
	m.mu.Lock()
	m.ListCategoriesCalls++
	fn := m.ListCategoriesFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, token)
	}
	return nil, nil
}

func (m *MockGateway) SearchRecords(ctx context.Context, token string, year, month int) ([]models.RemoteRecord, error) {
	m.mu.Lock()
	m.SearchRecordsCalls++
	fn := m.SearchRecordsFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, year, month)
	}
	return nil, nil
}

func (m *MockGateway) CreateRecord(ctx context.Context, token string, fields map[string]interface{}) (string, error) {
	m.mu.Lock()
	m.CreateRecordCalls++
	fn := m.CreateRecordFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, fields)
	}
	return "recmock", nil
}

func (m *MockGateway) UpdateRecord(ctx context.Context, token, recordID string, fields map[string]interface{}) error {
	m.mu.Lock()
	m.UpdateRecordCalls++
	fn := m.UpdateRecordFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, recordID, fields)
	}
	return nil
}

func (m *MockGateway) DeleteRecord(ctx context.Context, token, recordID string) error {
	m.mu.Lock()
	m.DeleteRecordCalls++
	fn := m.DeleteRecordFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, recordID)
	}
	return nil
}

func (m *MockGateway) UploadFile(ctx context.Context, token, filename string, data []byte) (string, error) {
	m.mu.Lock()
	m.UploadFileCalls++
	fn := m.UploadFileFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, filename, data)
	}
	return "filetok", nil
}

// MockLedgerService implements services.LedgerServiceInterface with
// seedable data and injectable mutation behavior.
type MockLedgerService struct {
	mu sync.Mutex

	Months     map[string]models.ActivityData
	Timestamps map[string]int64
	Categories []models.Category
	Token      models.StoredToken
	HasToken   bool
	Dirty      bool

	RefreshMonthFn      func(ctx context.Context, year, month int) (models.ActivityData, error)
	RefreshCategoriesFn func(ctx context.Context) ([]models.Category, error)
	CreateRecordFn      func(ctx context.Context, ym models.YearMonth, day int, draft models.RecordDraft) (*models.ActivityRecord, error)
	UpdateRecordFn      func(ctx context.Context, ym models.YearMonth, day int, recordID string, draft models.RecordDraft) error
	DeleteRecordFn      func(ctx context.Context, ym models.YearMonth, day int, recordID string) error
	UploadFileFn        func(ctx context.Context, filename string, data []byte) (string, error)

	EnsureMonthCalls []string
	EnsureRangeCalls [][]models.YearMonth
	RestoredSnapshot *models.LedgerSnapshot
}

func NewMockLedgerService() *MockLedgerService {
	return &MockLedgerService{
		Months:     make(map[string]models.ActivityData),
		Timestamps: make(map[string]int64),
	}
}

func (m *MockLedgerService) EnsureMonth(_ context.Context, year, month int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureMonthCalls = append(m.EnsureMonthCalls, models.MonthKey(year, month))
}

func (m *MockLedgerService) EnsureRange(_ context.Context, months []models.YearMonth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureRangeCalls = append(m.EnsureRangeCalls, months)
}

func (m *MockLedgerService) RefreshMonth(ctx context.Context, year, month int) (models.ActivityData, error) {
	if m.RefreshMonthFn != nil {
		return m.RefreshMonthFn(ctx, year, month)
	}
	return m.GetMonth(year, month), nil
}

func (m *MockLedgerService) GetMonth(year, month int) models.ActivityData {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.Months[models.MonthKey(year, month)]; ok {
		return data
	}
	return models.ActivityData{}
}

func (m *MockLedgerService) MonthTimestamp(year, month int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Timestamps[models.MonthKey(year, month)]
}

func (m *MockLedgerService) MonthsSnapshot() map[string]models.ActivityData {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.ActivityData, len(m.Months))
	for key, data := range m.Months {
		out[key] = data
	}
	return out
}

func (m *MockLedgerService) CachedMonths() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Months)
}

func (m *MockLedgerService) EnsureCategories(_ context.Context) []models.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Categories
}

func (m *MockLedgerService) RefreshCategories(ctx context.Context) ([]models.Category, error) {
	if m.RefreshCategoriesFn != nil {
		return m.RefreshCategoriesFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Categories, nil
}

func (m *MockLedgerService) CategoriesCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Categories)
}

func (m *MockLedgerService) CreateRecord(ctx context.Context, ym models.YearMonth, day int, draft models.RecordDraft) (*models.ActivityRecord, error) {
	if m.CreateRecordFn != nil {
		return m.CreateRecordFn(ctx, ym, day, draft)
	}
	return &models.ActivityRecord{ID: "recmock", Icon: draft.Icon, Title: draft.Category}, nil
}

func (m *MockLedgerService) UpdateRecord(ctx context.Context, ym models.YearMonth, day int, recordID string, draft models.RecordDraft) error {
	if m.UpdateRecordFn != nil {
		return m.UpdateRecordFn(ctx, ym, day, recordID, draft)
	}
	return nil
}

func (m *MockLedgerService) DeleteRecord(ctx context.Context, ym models.YearMonth, day int, recordID string) error {
	if m.DeleteRecordFn != nil {
		return m.DeleteRecordFn(ctx, ym, day, recordID)
	}
	return nil
}

func (m *MockLedgerService) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	if m.UploadFileFn != nil {
		return m.UploadFileFn(ctx, filename, data)
	}
	return "filetok", nil
}

func (m *MockLedgerService) Snapshot() *models.LedgerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &models.LedgerSnapshot{
		Version: models.SnapshotVersion,
		Months:  make(map[string]*models.MonthCache, len(m.Months)),
	}
	for key, data := range m.Months {
		snap.Months[key] = &models.MonthCache{Data: data, Timestamp: m.Timestamps[key]}
	}
	return snap
}

func (m *MockLedgerService) Restore(snap *models.LedgerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RestoredSnapshot = snap
	for key, entry := range snap.Months {
		m.Months[key] = entry.Data
		m.Timestamps[key] = entry.Timestamp
	}
}

func (m *MockLedgerService) CategoriesSnapshot() []models.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Categories
}

func (m *MockLedgerService) RestoreCategories(categories []models.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Categories = categories
}

func (m *MockLedgerService) TokenSnapshot() (models.StoredToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Token, m.HasToken
}

func (m *MockLedgerService) RestoreToken(token models.StoredToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Token = token
	m.HasToken = true
}

func (m *MockLedgerService) ConsumeDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	dirty := m.Dirty
	m.Dirty = false
	return dirty
}

func (m *MockLedgerService) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dirty = true
}

// DirtyFlag reads the flag without consuming it.
func (m *MockLedgerService) DirtyFlag() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Dirty
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockMetrics implements providers.MetricsProviderInterface with counters.
type MockMetrics struct {
	mu               sync.Mutex
	Requests         int
	CacheHits        int
	CacheMisses      int
	RemoteCalls      map[string]int
	RemoteErrors     map[string]int
	GaugesRegistered int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		RemoteCalls:  make(map[string]int),
		RemoteErrors: make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}

func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) ObserveRemoteCallDuration(operation string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoteCalls[operation]++
}

func (m *MockMetrics) IncRemoteErrors(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoteErrors[operation]++
}

func (m *MockMetrics) RegisterLedgerGauges(_ providers.LedgerStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GaugesRegistered++
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}
