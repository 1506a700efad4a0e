package persist

import (
	"sync"

	"github.com/roylee0704/gron"

	"ledgerd/internal/persist/interfaces"
	"ledgerd/internal/providers"
	"ledgerd/internal/services"
	"ledgerd/internal/structures"
)

// Scheduler drives the dirty-flag flush cycle: every mutation marks the
// service dirty, a fixed-interval tick flushes once when it is. Rapid
// successive mutations therefore produce one write per interval, not N.
type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	service     services.LedgerServiceInterface
	fileManager *FileManager
	cron        *gron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.FlushInterval), func() {
		if !s.service.ConsumeDirty() {
			return
		}

		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		if err := s.fileManager.SaveAll(); err != nil {
			// The flag was already consumed; re-arm it so the next tick
			// retries instead of waiting for another mutation.
			s.service.MarkDirty()
			s.logger.Errorf(providers.TypeApp, "Error while persisting ledger: %s", err)
			return
		}
		s.logger.Debugf(providers.TypeApp, "Persisted ledger to %s", s.config.Persistence.Dir)
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	return s.fileManager.LoadAll()
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting ledger to disk...")
	if err := s.fileManager.SaveAll(); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting ledger: %s", err)
		return err
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.LedgerServiceInterface, fileManager *FileManager) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		service:     service,
		fileManager: fileManager,
	}
}
