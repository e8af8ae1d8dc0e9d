package livemirror

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

const (
	defaultKeyPrefix = "matchday:live"
	defaultTTL       = 6 * time.Hour
	writeTimeout     = 3 * time.Second
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	Logger    *logging.Logger
}

// SnapshotSource is the part of the store the mirror reads from.
type SnapshotSource interface {
	Snapshot() *snapshot.Snapshot
	Subscribe(fn func(*snapshot.Snapshot)) (unsubscribe func())
}

type recordWriter interface {
	WriteRecord(ctx context.Context, key, indexKey, matchID string, fields map[string]any, ttl time.Duration) error
	Close() error
}

// Mirror copies changed live match records into Redis hashes, one hash per
// match under "<prefix>:<matchID>", and keeps the set of mirrored ids under
// "<prefix>:ids". Only records replaced since the last write are sent.
type Mirror struct {
	writer    recordWriter
	keyPrefix string
	ttl       time.Duration
	logger    *logging.Logger

	// written holds the last record sent per match. Holding the map keeps its
	// address from being reused, so identity comparison stays exact.
	written map[string]liveevent.Record
}

func New(cfg Config) (*Mirror, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, crerr.New("redis addr is required for the live mirror")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, crerr.Wrapf(err, "connect to redis at %s", cfg.Addr)
	}

	return newMirror(redisWriter{client: client}, cfg), nil
}

func newMirror(writer recordWriter, cfg Config) *Mirror {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	prefix := strings.TrimRight(strings.TrimSpace(cfg.KeyPrefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Mirror{
		writer:    writer,
		keyPrefix: prefix,
		ttl:       ttl,
		logger:    logger.Named("livemirror"),
		written:   make(map[string]liveevent.Record),
	}
}

// Run mirrors the current live state and then every published change until
// ctx is done. Only the newest pending snapshot is kept while a write is in
// progress.
func (m *Mirror) Run(ctx context.Context, source SnapshotSource) error {
	pending := make(chan *snapshot.Snapshot, 1)
	unsubscribe := source.Subscribe(func(snap *snapshot.Snapshot) {
		select {
		case pending <- snap:
			return
		default:
		}
		select {
		case <-pending:
		default:
		}
		select {
		case pending <- snap:
		default:
		}
	})
	defer unsubscribe()

	m.logger.InfoContext(ctx, "live mirror started", "key_prefix", m.keyPrefix, "ttl", m.ttl)
	m.sync(ctx, source.Snapshot())

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("live mirror stopped")
			return nil
		case snap := <-pending:
			m.sync(ctx, snap)
		}
	}
}

func (m *Mirror) Close() error {
	return m.writer.Close()
}

// sync writes records whose map identity changed since the last successful
// write.
func (m *Mirror) sync(ctx context.Context, snap *snapshot.Snapshot) {
	if snap == nil || len(snap.LiveEvents) == 0 {
		return
	}

	for _, matchID := range changedMatches(snap.LiveEvents, m.written) {
		record := snap.LiveEvents[matchID]
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := m.writer.WriteRecord(writeCtx, m.recordKey(matchID), m.indexKey(), matchID, encodeFields(record), m.ttl)
		cancel()
		if err != nil {
			m.logger.WarnContext(ctx, "mirror live record failed", "match_id", matchID, "error", err)
			continue
		}
		m.written[matchID] = record
	}
}

func (m *Mirror) recordKey(matchID string) string {
	return m.keyPrefix + ":" + matchID
}

func (m *Mirror) indexKey() string {
	return m.keyPrefix + ":ids"
}

func changedMatches(events liveevent.Map, written map[string]liveevent.Record) []string {
	out := make([]string, 0, len(events))
	for matchID, record := range events {
		if last, ok := written[matchID]; ok && sameRecord(last, record) {
			continue
		}
		out = append(out, matchID)
	}
	sort.Strings(out)
	return out
}

// sameRecord reports whether both values are the same map. The store
// replaces a record on every merge, so identity means unchanged.
func sameRecord(left, right liveevent.Record) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return reflect.ValueOf(left).Pointer() == reflect.ValueOf(right).Pointer()
}

// encodeFields flattens a record into hash field values. Scalars are written
// as text; nested values as JSON.
func encodeFields(record liveevent.Record) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			out[key] = strconv.Itoa(v)
		case int64:
			out[key] = strconv.FormatInt(v, 10)
		default:
			encoded, err := sonic.MarshalString(v)
			if err != nil {
				encoded = fmt.Sprint(v)
			}
			out[key] = encoded
		}
	}
	return out
}

type redisWriter struct {
	client *redis.Client
}

func (w redisWriter) WriteRecord(ctx context.Context, key, indexKey, matchID string, fields map[string]any, ttl time.Duration) error {
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, indexKey, matchID)
		pipe.Expire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		return crerr.Wrapf(err, "write %s", key)
	}
	return nil
}

func (w redisWriter) Close() error {
	return w.client.Close()
}
