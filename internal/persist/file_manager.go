package persist

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"ledgerd/internal/models"
	"ledgerd/internal/persist/interfaces"
	"ledgerd/internal/providers"
	"ledgerd/internal/services"
	"ledgerd/internal/structures"
)

// The three logical storage keys: the compressed month cache, the
// category list and the access token.
const (
	ledgerFile     = "ledger.bin"
	categoriesFile = "categories.json"
	tokenFile      = "token.json"
)

// FileManager loads and saves the cache core's state. Absent or corrupt
// files degrade to an empty state and never fail the caller; only actual
// write errors are reported.
type FileManager struct {
	service    services.LedgerServiceInterface
	compressor interfaces.CompressorInterface
	conf       *structures.Config
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, service services.LedgerServiceInterface, conf *structures.Config, logger providers.Logger) *FileManager {
	return &FileManager{
		service:    service,
		compressor: compressor,
		conf:       conf,
		logger:     logger,
	}
}

func (f *FileManager) path(name string) string {
	return filepath.Join(f.conf.Persistence.Dir, name)
}

// SaveAll persists the ledger blob, category list and token.
func (f *FileManager) SaveAll() error {
	if err := os.MkdirAll(f.conf.Persistence.Dir, 0o700); err != nil {
		return err
	}

	if err := f.saveLedger(); err != nil {
		return err
	}
	if err := f.saveCategories(); err != nil {
		return err
	}
	return f.saveToken()
}

// LoadAll restores whatever state exists on disk. Missing or unreadable
// files are logged and skipped.
func (f *FileManager) LoadAll() error {
	f.loadLedger()
	f.loadCategories()
	f.loadToken()
	return nil
}

func (f *FileManager) saveLedger() error {
	jsonData, err := json.Marshal(f.service.Snapshot())
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}
	return atomicWrite(f.path(ledgerFile), data)
}

func (f *FileManager) loadLedger() {
	data, ok := f.readFile(ledgerFile)
	if !ok {
		return
	}

	decompressed, err := f.compressor.Decompress(data)
	if err != nil {
		f.logger.Warnf(providers.TypeApp, "corrupt ledger blob, starting empty: %s", err)
		return
	}

	var snap models.LedgerSnapshot
	if err := json.Unmarshal(decompressed, &snap); err != nil {
		f.logger.Warnf(providers.TypeApp, "unreadable ledger blob, starting empty: %s", err)
		return
	}
	f.service.Restore(&snap)
}

func (f *FileManager) saveCategories() error {
	data, err := json.Marshal(f.service.CategoriesSnapshot())
	if err != nil {
		return err
	}
	return atomicWrite(f.path(categoriesFile), data)
}

func (f *FileManager) loadCategories() {
	data, ok := f.readFile(categoriesFile)
	if !ok {
		return
	}

	var categories []models.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		f.logger.Warnf(providers.TypeApp, "unreadable category list, ignoring: %s", err)
		return
	}
	f.service.RestoreCategories(categories)
}

func (f *FileManager) saveToken() error {
	token, ok := f.service.TokenSnapshot()
	if !ok {
		return nil
	}
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return atomicWrite(f.path(tokenFile), data)
}

func (f *FileManager) loadToken() {
	data, ok := f.readFile(tokenFile)
	if !ok {
		return
	}

	var token models.StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		f.logger.Warnf(providers.TypeApp, "unreadable stored token, ignoring: %s", err)
		return
	}
	f.service.RestoreToken(token)
}

func (f *FileManager) readFile(name string) ([]byte, bool) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warnf(providers.TypeApp, "reading %s: %s", name, err)
		}
		return nil, false
	}
	return data, true
}

// atomicWrite uses the tmp-then-rename pattern so a crash mid-write never
// leaves a truncated file behind.
func atomicWrite(fileName string, data []byte) error {
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}
