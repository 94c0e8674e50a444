package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/mohitkumar/flowup/analytics"
	"github.com/mohitkumar/flowup/channel"
	"github.com/mohitkumar/flowup/config"
	"github.com/mohitkumar/flowup/engine"
	"github.com/mohitkumar/flowup/executor"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/metadata"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"github.com/mohitkumar/flowup/persistence/memory"
	rd "github.com/mohitkumar/flowup/persistence/redis"
	"github.com/mohitkumar/flowup/persistence/sqlite"
	"github.com/mohitkumar/flowup/personalize"
	"github.com/mohitkumar/flowup/rest"
)

type Agent struct {
	Config           config.Config
	storage          persistence.Storage
	metadataService  metadata.SequenceService
	channels         *channel.Container
	lifecycle        *engine.LifecycleService
	processor        *engine.StepProcessor
	triggerEvaluator *engine.TriggerEvaluator
	dueScanExecutor  *executor.DueScanExecutor
	triggerExecutor  *executor.TriggerExecutor
	reclaimExecutor  *executor.ReclaimExecutor
	httpServer       *rest.Server
	clock            engine.Clock
	shutdown         bool
	shutdowns        chan struct{}
	shutdownLock     sync.Mutex
	wg               sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		clock:     engine.SystemClock(),
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupStorage,
		a.setupAnalytics,
		a.setupMetadataService,
		a.setupChannels,
		a.setupEngine,
		a.setupExecutors,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.storage = rd.NewRedisStorage(rd.Config{
			Addrs:      a.Config.RedisConfig.Addrs,
			Namespace:  a.Config.RedisConfig.Namespace,
			Partitions: a.Config.RedisConfig.Partitions,
		})
	case config.STORAGE_TYPE_SQLITE:
		storage, err := sqlite.NewSqliteStorage(a.Config.SqliteConfig.File)
		if err != nil {
			return err
		}
		a.storage = storage
	case config.STORAGE_TYPE_INMEM:
		a.storage = memory.NewInMemStorage()
	default:
		return fmt.Errorf("unknown storage implementation %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupAnalytics() error {
	if len(a.Config.InteractionLogFile) == 0 {
		return nil
	}
	return analytics.InitDataCollector(analytics.DataCollectorConfig{
		FileName:      a.Config.InteractionLogFile,
		CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
	})
}

func (a *Agent) setupMetadataService() error {
	a.metadataService = metadata.NewSequenceService(a.storage)
	return nil
}

func (a *Agent) setupChannels() error {
	a.channels = channel.NewContainer()
	a.channels.Register(channel.NewEmailSender(channel.LoggingTransport(model.CHANNEL_EMAIL)))
	a.channels.Register(channel.NewLinkedinSender(channel.LoggingTransport(model.CHANNEL_LINKEDIN_MESSAGE)))
	a.channels.Register(channel.NewSmsSender(channel.LoggingTransport(model.CHANNEL_SMS)))
	a.channels.Register(channel.NewPhoneReminderSender(channel.NewLogTaskSink()))
	a.channels.Register(channel.NewSocialSender())
	return nil
}

func (a *Agent) setupEngine() error {
	retry := engine.RetryConfig{
		Policy:       a.Config.RetryPolicy,
		DelaySeconds: a.Config.RetryDelaySeconds,
		MaxAttempts:  a.Config.MaxAttempts,
	}
	a.lifecycle = engine.NewLifecycleService(a.storage, a.metadataService, a.clock)
	a.processor = engine.NewStepProcessor(a.storage, a.metadataService, a.channels, personalize.NewTemplateRenderer(), a.clock, retry)
	rules, err := loadTriggerRules(a.Config.TriggerRulesFile)
	if err != nil {
		return err
	}
	a.triggerEvaluator = engine.NewTriggerEvaluator(a.storage, a.metadataService, a.lifecycle, rules, a.clock)
	return nil
}

func (a *Agent) setupExecutors() error {
	a.dueScanExecutor = executor.NewDueScanExecutor(a.storage, a.processor, a.clock,
		a.Config.ScanInterval, a.Config.ClaimTTL, a.Config.ScanBatchSize, a.Config.WorkerCapacity, a.Config.WorkerConcurrency, &a.wg)
	a.triggerExecutor = executor.NewTriggerExecutor(a.triggerEvaluator, a.Config.TriggerInterval, &a.wg)
	a.reclaimExecutor = executor.NewReclaimExecutor(a.storage, a.clock, a.Config.ReclaimInterval, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.lifecycle, a.storage, a.dueScanExecutor, a.triggerExecutor)
	if err != nil {
		return err
	}
	return nil
}

func loadTriggerRules(file string) ([]model.TriggerRule, error) {
	if len(file) == 0 {
		return nil, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var rules []model.TriggerRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (a *Agent) Start() error {
	a.dueScanExecutor.Start()
	a.triggerExecutor.Start()
	a.reclaimExecutor.Start()
	go func() {
		if err := a.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		func() error {
			a.dueScanExecutor.Stop()
			a.triggerExecutor.Stop()
			a.reclaimExecutor.Stop()
			return nil
		},
		a.httpServer.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
