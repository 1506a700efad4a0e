package persist

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/internal/models"
	"ledgerd/internal/structures"
	"ledgerd/internal/testutil"
)

func persistConfig(dir string) *structures.Config {
	return &structures.Config{
		Persistence: structures.Persistence{Dir: dir},
	}
}

func seedService() *testutil.MockLedgerService {
	svc := testutil.NewMockLedgerService()
	svc.Months["2025-03"] = models.ActivityData{
		7: {
			Icon: []string{"🍚"},
			Activities: []models.ActivityRecord{
				{ID: "r1", Icon: "🍚", Title: "餐饮", Description: "lunch"},
			},
		},
	}
	svc.Timestamps["2025-03"] = 1740000000000
	svc.Categories = []models.Category{{Icon: "🍚", Name: "餐饮", IsShow: models.CategoryShown}}
	svc.Token = models.StoredToken{Token: "t-abc", IssuedAt: 1740000000000}
	svc.HasToken = true
	return svc
}

func TestFileManager_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := seedService()
	fm := NewFileManager(&testutil.MockCompressor{}, source, persistConfig(dir), &testutil.MockLogger{})

	require.NoError(t, fm.SaveAll())

	target := testutil.NewMockLedgerService()
	fm2 := NewFileManager(&testutil.MockCompressor{}, target, persistConfig(dir), &testutil.MockLogger{})
	require.NoError(t, fm2.LoadAll())

	require.Contains(t, target.Months, "2025-03")
	assert.Equal(t, "r1", target.Months["2025-03"][7].Activities[0].ID)
	assert.Equal(t, int64(1740000000000), target.Timestamps["2025-03"])
	require.Len(t, target.Categories, 1)
	assert.Equal(t, "餐饮", target.Categories[0].Name)
	token, ok := target.TokenSnapshot()
	require.True(t, ok)
	assert.Equal(t, "t-abc", token.Token)
}

func TestFileManager_ZstdRoundTrip(t *testing.T) {
	dir := t.TempDir()
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)

	fm := NewFileManager(compressor, seedService(), persistConfig(dir), &testutil.MockLogger{})
	require.NoError(t, fm.SaveAll())

	target := testutil.NewMockLedgerService()
	fm2 := NewFileManager(compressor, target, persistConfig(dir), &testutil.MockLogger{})
	require.NoError(t, fm2.LoadAll())

	assert.Contains(t, target.Months, "2025-03")
}

func TestFileManager_AbsentFilesStartEmpty(t *testing.T) {
	target := testutil.NewMockLedgerService()
	logger := &testutil.MockLogger{}
	fm := NewFileManager(&testutil.MockCompressor{}, target, persistConfig(t.TempDir()), logger)

	require.NoError(t, fm.LoadAll())

	assert.Empty(t, target.Months)
	assert.Empty(t, target.Categories)
	// absent files are expected, not warned about
	assert.Zero(t, logger.CountLevel("warn"))
}

func TestFileManager_CorruptLedgerBlobStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.bin"), []byte("not zstd"), 0o600))

	target := testutil.NewMockLedgerService()
	logger := &testutil.MockLogger{}
	fm := NewFileManager(compressor, target, persistConfig(dir), logger)

	require.NoError(t, fm.LoadAll())

	assert.Empty(t, target.Months)
	assert.Equal(t, 1, logger.CountLevel("warn"))
}

func TestFileManager_UnreadableJSONIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "categories.json"), []byte("{{{"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token.json"), []byte("{{{"), 0o600))

	target := testutil.NewMockLedgerService()
	fm := NewFileManager(&testutil.MockCompressor{}, target, persistConfig(dir), &testutil.MockLogger{})

	require.NoError(t, fm.LoadAll())

	assert.Empty(t, target.Categories)
	_, ok := target.TokenSnapshot()
	assert.False(t, ok)
}

func TestFileManager_VersionMismatchDiscardsMonths(t *testing.T) {
	dir := t.TempDir()
	snap := models.LedgerSnapshot{
		Version: models.SnapshotVersion + 1,
		Months: map[string]*models.MonthCache{
			"2025-03": {Data: models.ActivityData{}, Timestamp: 1},
		},
	}
	blob, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.bin"), blob, 0o600))

	target := testutil.NewMockLedgerService()
	fm := NewFileManager(&testutil.MockCompressor{}, target, persistConfig(dir), &testutil.MockLogger{})
	require.NoError(t, fm.LoadAll())

	// the restore path received the snapshot but must reject the version
	require.NotNil(t, target.RestoredSnapshot)
	assert.Equal(t, models.SnapshotVersion+1, target.RestoredSnapshot.Version)
}

func TestFileManager_NoTokenMeansNoTokenFile(t *testing.T) {
	dir := t.TempDir()
	svc := seedService()
	svc.HasToken = false
	fm := NewFileManager(&testutil.MockCompressor{}, svc, persistConfig(dir), &testutil.MockLogger{})

	require.NoError(t, fm.SaveAll())

	_, err := os.Stat(filepath.Join(dir, "token.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestAtomicWrite_NoTmpLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, atomicWrite(path, []byte("one")))
	require.NoError(t, atomicWrite(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
