package engine

import (
	"log"
	"sync"
	"time"

	"fleettrack/broadcast"
	"fleettrack/config"
	"fleettrack/dispatch"
	"fleettrack/ingest"
	"fleettrack/livestate"
	"fleettrack/messaging"
	"fleettrack/query"
	"fleettrack/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	LiveState  *livestate.Manager
	MsgClient  *messaging.Client
	LogFunc    LogFunc
}

// Engine owns the composition of the tracking service: the dispatcher,
// the two ingest paths, the query service, the subscriber hub, and the
// event wiring between them.
type Engine struct {
	cfg          *config.Config
	configPath   string
	db           *store.DB
	liveState    *livestate.Manager
	msgClient    *messaging.Client
	dispatcher   *dispatch.Dispatcher
	ingestor     *ingest.Ingestor
	telemetry    *ingest.Ingestor
	queries      *query.Service
	hub          *broadcast.Hub
	Events       *EventBus
	logFn        LogFunc
	stopChan     chan struct{}
	stopOnce     sync.Once
	msgConnected bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	return &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		liveState:  c.LiveState,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}
}

func (e *Engine) Start() {
	de := &dispatchEmitter{bus: e.Events}
	ie := &ingestEmitter{bus: e.Events}

	e.dispatcher = dispatch.NewDispatcher(e.db, dispatch.NewStoreApproval(e.db), de)

	// Two ingest paths share semantics but differ in authorization: HTTP
	// reports present a device token, telemetry from the broker is
	// already authenticated by broker credentials.
	e.ingestor = ingest.NewIngestor(e.db, &e.cfg.Tracking, ingest.NewTokenAuthorizer(e.db), ie, e.liveState)
	e.telemetry = ingest.NewIngestor(e.db, &e.cfg.Tracking, ingest.AllowAll{}, ie, e.liveState)

	e.queries = query.NewService(e.db, &e.cfg.Tracking, e.dispatcher)

	e.hub = broadcast.NewHub(e.cfg.Tracking.Keepalive)
	e.hub.Start()

	e.wireEventHandlers()

	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	if e.hub != nil {
		e.hub.Stop()
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                    { return e.db }
func (e *Engine) AppConfig() *config.Config        { return e.cfg }
func (e *Engine) ConfigPath() string               { return e.configPath }
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }
func (e *Engine) Ingestor() *ingest.Ingestor       { return e.ingestor }
func (e *Engine) Telemetry() *ingest.Ingestor      { return e.telemetry }
func (e *Engine) Queries() *query.Service          { return e.queries }
func (e *Engine) Hub() *broadcast.Hub              { return e.hub }
func (e *Engine) LiveState() *livestate.Manager    { return e.liveState }
func (e *Engine) MsgClient() *messaging.Client     { return e.msgClient }

func (e *Engine) checkConnectionStatus() {
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured")
	}
	e.checkConnectionStatus()
}
