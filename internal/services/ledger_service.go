package services

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ledgerd/internal/feishu"
	"ledgerd/internal/models"
	"ledgerd/internal/providers"
	"ledgerd/internal/structures"
)

// LedgerServiceInterface is the cache core: the single owner of the
// month-keyed cache, the category list and the access token. Read paths
// swallow remote failures and keep serving last-known-good data; mutation
// paths propagate failure so the caller knows the action did not take
// effect.
type LedgerServiceInterface interface {
	EnsureMonth(ctx context.Context, year, month int)
	EnsureRange(ctx context.Context, months []models.YearMonth)
	RefreshMonth(ctx context.Context, year, month int) (models.ActivityData, error)
	GetMonth(year, month int) models.ActivityData
	MonthTimestamp(year, month int) int64
	MonthsSnapshot() map[string]models.ActivityData
	CachedMonths() int

	EnsureCategories(ctx context.Context) []models.Category
	RefreshCategories(ctx context.Context) ([]models.Category, error)
	CategoriesCount() int

	CreateRecord(ctx context.Context, ym models.YearMonth, day int, draft models.RecordDraft) (*models.ActivityRecord, error)
	UpdateRecord(ctx context.Context, ym models.YearMonth, day int, recordID string, draft models.RecordDraft) error
	DeleteRecord(ctx context.Context, ym models.YearMonth, day int, recordID string) error
	UploadFile(ctx context.Context, filename string, data []byte) (string, error)

	Snapshot() *models.LedgerSnapshot
	Restore(snap *models.LedgerSnapshot)
	CategoriesSnapshot() []models.Category
	RestoreCategories(categories []models.Category)
	TokenSnapshot() (models.StoredToken, bool)
	RestoreToken(token models.StoredToken)
	ConsumeDirty() bool
	MarkDirty()
}

type LedgerService struct {
	conf    *structures.Config
	logger  providers.Logger
	gateway feishu.GatewayInterface

	mu         sync.RWMutex
	months     map[string]*models.MonthCache
	categories []models.Category
	hidden     map[string]struct{}

	tokenMu     sync.Mutex
	token       string
	tokenIssued int64

	flight singleflight.Group
	dirty  atomic.Bool
}

func NewLedgerService(conf *structures.Config, logger providers.Logger, gateway feishu.GatewayInterface, metrics providers.MetricsProviderInterface) LedgerServiceInterface {
	s := &LedgerService{
		conf:    conf,
		logger:  logger,
		gateway: gateway,
		months:  make(map[string]*models.MonthCache),
		hidden:  make(map[string]struct{}),
	}
	metrics.RegisterLedgerGauges(s)
	return s
}

// fetchResult carries a transcoded month together with the moment its
// network call started, for the stale-overwrite check.
type fetchResult struct {
	data    models.ActivityData
	started int64
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (s *LedgerService) ttlMillis() int64 {
	return s.conf.Sync.TTL.Milliseconds()
}

// fresh reports whether the month entry exists and its TTL has not expired.
func (s *LedgerService) fresh(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.months[key]
	return ok && nowMillis()-entry.Timestamp < s.ttlMillis()
}

// fetchMonth runs one deduplicated remote fetch. Concurrent callers for
// the same month key share a single network call.
func (s *LedgerService) fetchMonth(ctx context.Context, year, month int) (*fetchResult, error) {
	key := models.MonthKey(year, month)
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		token, err := s.ensureToken(ctx)
		if err != nil {
			return nil, err
		}

		started := nowMillis()
		records, err := s.gateway.SearchRecords(ctx, token, year, month)
		if err != nil {
			return nil, err
		}

		return &fetchResult{
			data:    models.BuildMonthData(records, s.hiddenIcons()),
			started: started,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fetchResult), nil
}

// storeFetch installs a fetch result unless a mutation bumped the entry
// after the fetch started; the mutated entry wins in that case.
func (s *LedgerService) storeFetch(key string, res *fetchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeFetchLocked(key, res)
}

func (s *LedgerService) storeFetchLocked(key string, res *fetchResult) {
	if existing, ok := s.months[key]; ok && existing.Timestamp > res.started {
		s.logger.Debugf(providers.TypeSync, "dropping stale fetch result for %s", key)
		return
	}
	s.months[key] = &models.MonthCache{Data: res.data, Timestamp: nowMillis()}
	s.dirty.Store(true)
}

// EnsureMonth fetches the month when absent or stale. Failures are logged
// and the previous entry, if any, stays untouched.
func (s *LedgerService) EnsureMonth(ctx context.Context, year, month int) {
	key := models.MonthKey(year, month)
	if s.fresh(key) {
		return
	}

	res, err := s.fetchMonth(ctx, year, month)
	if err != nil {
		s.logger.Warnf(providers.TypeSync, "fetch %s failed, serving cached data: %s", key, err)
		return
	}
	s.storeFetch(key, res)
}

// EnsureRange fetches every absent or stale month concurrently and merges
// all successful results in a single state update once every fetch has
// settled. One month's failure never blocks or discards the others.
func (s *LedgerService) EnsureRange(ctx context.Context, months []models.YearMonth) {
	var pending []models.YearMonth
	for _, ym := range months {
		if !s.fresh(models.MonthKey(ym.Year, ym.Month)) {
			pending = append(pending, ym)
		}
	}
	if len(pending) == 0 {
		return
	}

	results := make([]*fetchResult, len(pending))
	var g errgroup.Group
	for i, ym := range pending {
		g.Go(func() error {
			res, err := s.fetchMonth(ctx, ym.Year, ym.Month)
			if err != nil {
				s.logger.Warnf(providers.TypeSync, "fetch %s failed: %s",
					models.MonthKey(ym.Year, ym.Month), err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, res := range results {
		if res == nil {
			continue
		}
		s.storeFetchLocked(models.MonthKey(pending[i].Year, pending[i].Month), res)
	}
}

// RefreshMonth refetches unconditionally. Unlike EnsureMonth the caller
// learns about failure; the previous entry is still preserved on error.
func (s *LedgerService) RefreshMonth(ctx context.Context, year, month int) (models.ActivityData, error) {
	res, err := s.fetchMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}
	s.storeFetch(models.MonthKey(year, month), res)
	return s.GetMonth(year, month), nil
}

// GetMonth is a pure read; absent months come back as an empty map.
// Consumers receive a copy, never a reference into the cache.
func (s *LedgerService) GetMonth(year, month int) models.ActivityData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.months[models.MonthKey(year, month)]
	if !ok {
		return models.ActivityData{}
	}
	return entry.Data.Clone()
}

// MonthTimestamp reports when the month entry was last written, or 0 when
// the month is not cached. Response caches use it to key stale entries out.
func (s *LedgerService) MonthTimestamp(year, month int) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.months[models.MonthKey(year, month)]
	if !ok {
		return 0
	}
	return entry.Timestamp
}

func (s *LedgerService) MonthsSnapshot() map[string]models.ActivityData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.ActivityData, len(s.months))
	for key, entry := range s.months {
		out[key] = entry.Data.Clone()
	}
	return out
}

func (s *LedgerService) CachedMonths() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.months)
}

func (s *LedgerService) hiddenIcons() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hidden
}

// EnsureCategories returns the category list, fetching it on first use.
// A fetch failure is logged and yields an empty list; the next call
// retries.
func (s *LedgerService) EnsureCategories(ctx context.Context) []models.Category {
	s.mu.RLock()
	cached := len(s.categories) > 0
	s.mu.RUnlock()

	if !cached {
		if _, err := s.RefreshCategories(ctx); err != nil {
			s.logger.Warnf(providers.TypeSync, "category fetch failed: %s", err)
			return nil
		}
	}
	return s.CategoriesSnapshot()
}

func (s *LedgerService) RefreshCategories(ctx context.Context) ([]models.Category, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.gateway.ListCategories(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.categories = categories
	s.hidden = models.HiddenIcons(categories)
	s.mu.Unlock()
	s.dirty.Store(true)

	return append([]models.Category(nil), categories...), nil
}

func (s *LedgerService) CategoriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories)
}

// CreateRecord round-trips the draft to the remote service and, on
// acknowledgement, patches the target day bucket without a refetch.
func (s *LedgerService) CreateRecord(ctx context.Context, ym models.YearMonth, day int, draft models.RecordDraft) (*models.ActivityRecord, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	fields := feishu.RecordFields(draft)
	id, err := s.gateway.CreateRecord(ctx, token, fields)
	if err != nil {
		return nil, err
	}

	activity := models.ActivityRecord{
		ID:          id,
		Icon:        draft.Icon,
		Title:       draft.Category,
		Description: draft.Description,
		Location:    draft.Location,
		Amount:      draft.Amount,
		Fields:      rawFields(fields),
	}
	s.applyCreate(ym, day, activity)

	s.logger.Infof(providers.TypeSync, "created record %s in %s day %d",
		id, models.MonthKey(ym.Year, ym.Month), day)
	return &activity, nil
}

func (s *LedgerService) applyCreate(ym models.YearMonth, day int, activity models.ActivityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.MonthKey(ym.Year, ym.Month)
	entry, ok := s.months[key]
	if !ok {
		entry = &models.MonthCache{Data: models.ActivityData{}}
		s.months[key] = entry
	}

	bucket := entry.Data[day]
	if bucket == nil {
		bucket = &models.DayBucket{Icon: []string{}, Activities: []models.ActivityRecord{}}
		entry.Data[day] = bucket
	}

	bucket.Activities = append(bucket.Activities, activity)
	bucket.AddIcon(activity.Icon, s.hidden)
	entry.Timestamp = nowMillis()
	s.dirty.Store(true)
}

// UpdateRecord round-trips the patch and merges it into the cached
// activity. A record id not present locally is a local no-op; the remote
// row is updated regardless and a later refresh reconciles.
func (s *LedgerService) UpdateRecord(ctx context.Context, ym models.YearMonth, day int, recordID string, draft models.RecordDraft) error {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return err
	}

	fields := feishu.RecordFields(draft)
	if err := s.gateway.UpdateRecord(ctx, token, recordID, fields); err != nil {
		return err
	}

	s.applyUpdate(ym, day, recordID, draft, fields)
	return nil
}

func (s *LedgerService) applyUpdate(ym models.YearMonth, day int, recordID string, draft models.RecordDraft, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.MonthKey(ym.Year, ym.Month)
	entry, ok := s.months[key]
	if !ok {
		return
	}
	bucket := entry.Data[day]
	if bucket == nil {
		return
	}

	for i := range bucket.Activities {
		if bucket.Activities[i].ID != recordID {
			continue
		}
		act := &bucket.Activities[i]
		act.Icon = draft.Icon
		act.Title = draft.Category
		act.Description = draft.Description
		act.Location = draft.Location
		act.Amount = draft.Amount
		// Replace the field bag rather than writing into it: clones handed
		// out before this mutation may still be reading the old map.
		merged := make(map[string]json.RawMessage, len(act.Fields)+len(fields))
		for name, value := range act.Fields {
			merged[name] = value
		}
		for name, value := range rawFields(fields) {
			merged[name] = value
		}
		act.Fields = merged

		bucket.RecomputeIcons(s.hidden)
		entry.Timestamp = nowMillis()
		s.dirty.Store(true)
		return
	}
}

// DeleteRecord round-trips the delete and removes the activity from its
// day bucket, dropping the bucket entirely when it empties.
func (s *LedgerService) DeleteRecord(ctx context.Context, ym models.YearMonth, day int, recordID string) error {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return err
	}
	if err := s.gateway.DeleteRecord(ctx, token, recordID); err != nil {
		return err
	}

	s.applyDelete(ym, day, recordID)
	return nil
}

func (s *LedgerService) applyDelete(ym models.YearMonth, day int, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.MonthKey(ym.Year, ym.Month)
	entry, ok := s.months[key]
	if !ok {
		return
	}
	bucket := entry.Data[day]
	if bucket == nil {
		return
	}

	kept := bucket.Activities[:0]
	for _, act := range bucket.Activities {
		if act.ID != recordID {
			kept = append(kept, act)
		}
	}
	bucket.Activities = kept

	if len(bucket.Activities) == 0 {
		delete(entry.Data, day)
	} else {
		bucket.RecomputeIcons(s.hidden)
	}
	entry.Timestamp = nowMillis()
	s.dirty.Store(true)
}

func (s *LedgerService) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return "", err
	}
	return s.gateway.UploadFile(ctx, token, filename, data)
}

// ensureToken reuses the cached bearer token until the sync TTL elapses,
// then silently re-issues it.
func (s *LedgerService) ensureToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.token != "" && nowMillis()-s.tokenIssued < s.ttlMillis() {
		return s.token, nil
	}

	token, err := s.gateway.IssueToken(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.tokenIssued = nowMillis()
	s.dirty.Store(true)
	return token, nil
}

func (s *LedgerService) Snapshot() *models.LedgerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	months := make(map[string]*models.MonthCache, len(s.months))
	for key, entry := range s.months {
		months[key] = &models.MonthCache{Data: entry.Data.Clone(), Timestamp: entry.Timestamp}
	}
	return &models.LedgerSnapshot{Version: models.SnapshotVersion, Months: months}
}

// Restore installs a persisted snapshot. A version mismatch discards the
// blob entirely; months refetch on demand.
func (s *LedgerService) Restore(snap *models.LedgerSnapshot) {
	if snap == nil || snap.Months == nil {
		return
	}
	if snap.Version != models.SnapshotVersion {
		s.logger.Warnf(providers.TypeApp, "discarding ledger snapshot version %d (want %d)",
			snap.Version, models.SnapshotVersion)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.months = snap.Months
}

func (s *LedgerService) CategoriesSnapshot() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Category(nil), s.categories...)
}

func (s *LedgerService) RestoreCategories(categories []models.Category) {
	if len(categories) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = categories
	s.hidden = models.HiddenIcons(categories)
}

func (s *LedgerService) TokenSnapshot() (models.StoredToken, bool) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if s.token == "" {
		return models.StoredToken{}, false
	}
	return models.StoredToken{Token: s.token, IssuedAt: s.tokenIssued}, true
}

func (s *LedgerService) RestoreToken(token models.StoredToken) {
	if token.Token == "" {
		return
	}
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	s.token = token.Token
	s.tokenIssued = token.IssuedAt
}

// ConsumeDirty returns whether any mutation happened since the last call
// and resets the flag. The flush scheduler polls it.
func (s *LedgerService) ConsumeDirty() bool {
	return s.dirty.Swap(false)
}

// MarkDirty re-arms the flush flag. The scheduler calls it when a save
// fails after the flag was already consumed, so the next tick retries.
func (s *LedgerService) MarkDirty() {
	s.dirty.Store(true)
}

func rawFields(fields map[string]interface{}) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields))
	for name, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		out[name] = encoded
	}
	return out
}
