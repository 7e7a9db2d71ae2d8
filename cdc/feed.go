package cdc

import (
	"encoding/json"
	"sync"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/store"
)

// Feed fans the CDC stream out to per-collection listeners. A consumer
// group per collection topic is started when the first listener attaches
// and stopped when the last one detaches.
type Feed struct {
	config Config
	logger *zap.SugaredLogger

	mu          sync.Mutex
	collections map[string]*collectionFeed
}

var _ store.ChangeFeed = &Feed{}

func NewFeed(config Config, logger *zap.SugaredLogger) *Feed {
	return &Feed{
		config:      config,
		logger:      logger,
		collections: make(map[string]*collectionFeed),
	}
}

func (f *Feed) Listen(collection string, fn func()) (store.Unsubscribe, error) {
	f.mu.Lock()
	cf, ok := f.collections[collection]
	if !ok {
		cf = newCollectionFeed()
		handler := NewRetryingHandler(MessageHandlerFunc(func(cm *sarama.ConsumerMessage) error {
			return cf.dispatch(cm, f.logger)
		}))
		cf.consumer = NewGroupConsumer(f.config, f.config.Topic(collection), handler, f.logger)
		f.collections[collection] = cf

		go func() {
			if err := cf.consumer.Start(); err != nil {
				f.logger.Errorw("cdc feed stopped", "collection", collection, zap.Error(err))
			}
		}()
	}
	id := cf.add(fn)
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.detach(collection, cf, id)
		})
	}, nil
}

func (f *Feed) detach(collection string, cf *collectionFeed, id uint64) {
	f.mu.Lock()
	remaining := cf.remove(id)
	if remaining == 0 {
		delete(f.collections, collection)
	}
	f.mu.Unlock()

	if remaining == 0 {
		if err := cf.consumer.Stop(); err != nil {
			f.logger.Errorw("unable to stop cdc consumer", "collection", collection, zap.Error(err))
		}
	}
}

type collectionFeed struct {
	consumer *GroupConsumer

	mu        sync.Mutex
	listeners map[uint64]func()
	nextID    uint64
}

func newCollectionFeed() *collectionFeed {
	return &collectionFeed{listeners: make(map[uint64]func())}
}

func (cf *collectionFeed) add(fn func()) uint64 {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	id := cf.nextID
	cf.nextID++
	cf.listeners[id] = fn
	return id
}

func (cf *collectionFeed) remove(id uint64) int {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	delete(cf.listeners, id)
	return len(cf.listeners)
}

// dispatch notifies every listener of a captured change. Messages that do
// not decode as CDC events are logged and skipped rather than poisoning
// the partition.
func (cf *collectionFeed) dispatch(cm *sarama.ConsumerMessage, logger *zap.SugaredLogger) error {
	event := Event[map[string]interface{}]{Offset: cm.Offset}
	if err := json.Unmarshal(cm.Value, &event); err != nil {
		logger.Warnw("unable to unmarshal cdc event", "topic", cm.Topic, "offset", cm.Offset, zap.Error(err))
		return nil
	}

	cf.mu.Lock()
	listeners := make([]func(), 0, len(cf.listeners))
	for _, fn := range cf.listeners {
		listeners = append(listeners, fn)
	}
	cf.mu.Unlock()

	for _, fn := range listeners {
		notify(fn)
	}
	return nil
}

func notify(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}
