package lstore

import (
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("store")

// DefaultInboxSize is used if Config.InboxSize is not positive
const DefaultInboxSize = 1024

const (
	// closedBit is set in storeImpl.senders once Close was called
	closedBit = int64(1) << 62

	// drainPoll is how long the closing owner waits for admitted senders between checks
	drainPoll = time.Millisecond
)

var (
	setsTotal     = metrics.GetOrCreateCounter("rkv_store_sets_total")
	getsTotal     = metrics.GetOrCreateCounter("rkv_store_gets_total")
	dataLossTotal = metrics.GetOrCreateCounter("rkv_store_data_loss_total")
)

// Config configures a local store
type Config struct {
	// InboxSize is the number of operations that can be queued before callers block
	InboxSize int
	// RestartOnFailure restarts the owner with an empty map after it failed.
	// If false, a failure stops the store permanently.
	RestartOnFailure bool
	// OnDataLoss is called (on the owner goroutine) after a restart discarded all data
	OnDataLoss func(err error)
}

// --------------------------------------------------------------------------
// Messages
// --------------------------------------------------------------------------

type opType uint8

const (
	opSet opType = iota
	opGet
)

// message is a single operation sent to the owner goroutine
type message struct {
	op    opType
	key   string
	value []byte
	reply chan getResult // only for opGet, buffered
}

type getResult struct {
	value  []byte
	loaded bool
	err    error
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// storeImpl owns its map on a single goroutine. All access goes through the inbox.
type storeImpl struct {
	config  Config
	inbox   chan message
	closing chan struct{}
	done    chan struct{}

	// senders counts callers between admission and enqueue, with closedBit set no
	// caller is admitted anymore
	senders   atomic.Int64
	closeOnce sync.Once
	err       atomic.Pointer[store.Error]

	// beforeApply is called by the owner for every message, tests use it to inject failures
	beforeApply func(m message)
}

// NewLocalStore creates a new local store instance and starts its owner goroutine.
// The store only lives in memory and starts empty.
func NewLocalStore(config Config) store.IStore {
	return newLocalStore(config, nil)
}

func newLocalStore(config Config, beforeApply func(m message)) *storeImpl {
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultInboxSize
	}

	s := &storeImpl{
		config:      config,
		inbox:       make(chan message, config.InboxSize),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
		beforeApply: beforeApply,
	}
	go s.run()

	Logger.Debugf("started local store with inbox size %d", config.InboxSize)
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	return s.send(message{op: opSet, key: key, value: v})
}

// Get returns the stored slice itself, callers must not modify it.
func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	reply := make(chan getResult, 1)
	if err := s.send(message{op: opGet, key: key, reply: reply}); err != nil {
		return nil, false, err
	}

	select {
	case res := <-reply:
		return res.value, res.loaded, res.err
	case <-s.done:
		// the owner may have answered right before it stopped
		select {
		case res := <-reply:
			return res.value, res.loaded, res.err
		default:
			return nil, false, s.stoppedErr()
		}
	}
}

func (s *storeImpl) Close() error {
	s.closeOnce.Do(func() {
		s.markClosed()
		close(s.closing)
	})
	<-s.done
	return s.Err()
}

func (s *storeImpl) Done() <-chan struct{} {
	return s.done
}

func (s *storeImpl) Err() error {
	if err := s.err.Load(); err != nil {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send enqueues a message, blocking while the inbox is full. A message accepted
// here is applied even if Close runs concurrently.
func (s *storeImpl) send(m message) error {
	if !s.admit() {
		return s.stoppedErr()
	}
	defer s.senders.Add(-1)

	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return s.stoppedErr()
	}
}

// admit registers a sender unless the store is closing
func (s *storeImpl) admit() bool {
	for {
		state := s.senders.Load()
		if state&closedBit != 0 {
			return false
		}
		if s.senders.CompareAndSwap(state, state+1) {
			return true
		}
	}
}

func (s *storeImpl) markClosed() {
	for {
		state := s.senders.Load()
		if state&closedBit != 0 || s.senders.CompareAndSwap(state, state|closedBit) {
			return
		}
	}
}

// pendingSenders returns the number of admitted senders that did not enqueue yet
func (s *storeImpl) pendingSenders() int64 {
	return s.senders.Load() &^ closedBit
}

func (s *storeImpl) stoppedErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return store.NewError(store.RetCStoreClosed, store.ErrStoreClosed.Error())
}

// run is the owner goroutine. It restarts serve after a failure if configured.
func (s *storeImpl) run() {
	defer close(s.done)

	for {
		err := s.serve(make(map[string][]byte))
		if err == nil {
			Logger.Debugf("local store stopped")
			return
		}

		if !s.config.RestartOnFailure {
			Logger.Errorf("local store failed: %v", err)
			s.err.Store(store.NewError(store.RetCStoreFailed, err.Error()))
			return
		}

		dataLossTotal.Inc()
		Logger.Errorf("local store failed, restarting with empty data (all keys lost): %v", err)
		if s.config.OnDataLoss != nil {
			s.config.OnDataLoss(err)
		}
	}
}

// serve applies messages to data until the store is closed (returns nil) or
// applying a message panics (returns the failure).
func (s *storeImpl) serve(data map[string][]byte) (err error) {
	var current message

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while applying %s %q: %v", current.op, current.key, r)
			if current.reply != nil {
				select {
				case current.reply <- getResult{err: store.NewError(store.RetCInternalError, err.Error())}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case current = <-s.inbox:
			s.apply(data, current)
		case <-s.closing:
			// senders admitted before Close may still be enqueueing
			for s.pendingSenders() > 0 {
				select {
				case current = <-s.inbox:
					s.apply(data, current)
				case <-time.After(drainPoll):
				}
			}
			// nothing can be enqueued anymore
			for {
				select {
				case current = <-s.inbox:
					s.apply(data, current)
				default:
					return nil
				}
			}
		}
	}
}

func (s *storeImpl) apply(data map[string][]byte, m message) {
	if s.beforeApply != nil {
		s.beforeApply(m)
	}

	switch m.op {
	case opSet:
		data[m.key] = m.value
		setsTotal.Inc()
	case opGet:
		value, loaded := data[m.key]
		getsTotal.Inc()
		m.reply <- getResult{value: value, loaded: loaded}
	}
}

func (o opType) String() string {
	switch o {
	case opSet:
		return "set"
	case opGet:
		return "get"
	default:
		return "unknown"
	}
}
