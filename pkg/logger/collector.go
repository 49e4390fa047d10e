package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval (e.g., 30s)
	CountThreshold int           // max unique logs before flush (e.g., 100)
	Topic          string        // topic to send aggregated logs
	Publisher      Publisher     // interface to send aggregated logs
	PublishTimeout time.Duration // per-batch publish deadline (default 30s)
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error lines and ships them in batches, most
// frequent first.
type LogCollector struct {
	config  *CollectionConfig
	logMap  map[string]*AggregatedLogEntry
	mutex   sync.Mutex
	out     chan []AggregatedLogEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	closed  bool
	dropped int
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 30 * time.Second
	}
	c := &LogCollector{
		config: config,
		logMap: make(map[string]*AggregatedLogEntry),
		out:    make(chan []AggregatedLogEntry, 4),
		stop:   make(chan struct{}),
	}
	c.wg.Add(2)
	go c.periodicFlush()
	go c.publishLoop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := generateKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.logMap[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.logMap) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

func generateKey(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}

	jsonData, _ := json.Marshal(data)
	return fmt.Sprintf("%x", sha256.Sum256(jsonData))
}

func (c *LogCollector) periodicFlush() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.flushLocked()
			c.mutex.Unlock()
		case <-c.stop:
			c.mutex.Lock()
			logs := c.takeLocked()
			c.closed = true
			c.mutex.Unlock()
			if logs != nil {
				c.out <- logs
			}
			close(c.out)
			return
		}
	}
}

// flushLocked hands the pending batch to the publisher goroutine without
// waiting. A batch that finds the queue full is dropped. mutex must be held.
func (c *LogCollector) flushLocked() {
	logs := c.takeLocked()
	if logs == nil {
		return
	}
	select {
	case c.out <- logs:
	default:
		c.dropped++
		fmt.Fprintf(os.Stderr, "log publish queue full, dropped %d aggregated logs\n", len(logs))
	}
}

func (c *LogCollector) takeLocked() []AggregatedLogEntry {
	if c.closed || len(c.logMap) == 0 {
		return nil
	}
	logs := make([]AggregatedLogEntry, 0, len(c.logMap))
	for _, entry := range c.logMap {
		logs = append(logs, *entry)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Count > logs[j].Count })
	c.logMap = make(map[string]*AggregatedLogEntry)
	return logs
}

// Dropped returns how many batches were discarded because publishing lagged.
func (c *LogCollector) Dropped() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.dropped
}

func (c *LogCollector) publishLoop() {
	defer c.wg.Done()
	for logs := range c.out {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.PublishTimeout)
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, logs); err != nil {
			fmt.Fprintf(os.Stderr, "failed to send aggregated logs: %v\n", err)
		}
		cancel()
	}
}

// Close flushes pending entries and waits for them to be published.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}
