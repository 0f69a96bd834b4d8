package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentdesk/chatlink/internal/model"
)

// Config contains batching settings for the transcript writer.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     200,
		FlushInterval: 2 * time.Second,
	}
}

// transcriptRow is one row for the transcripts table.
type transcriptRow struct {
	MessageID   string
	ContainerID string
	SenderID    string
	SenderName  string
	Content     string
	ContentType string
	ReplyToID   string
	Edited      bool
	Deleted     bool
	CreatedAt   int64 // Microseconds since epoch
	ArchivedAt  int64 // Microseconds since epoch
}

// Writer consumes the session's message feed and archives transcripts in
// Postgres. Upserts by message id so edit and delete propagation reaches the
// archive.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	// Input: the session's message feed.
	input <-chan model.Message

	db *pgxpool.Pool

	// Batching
	batch       []transcriptRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// Metrics counts writer activity.
type Metrics struct {
	Upserts int64
	Flushes int64
	Errors  int64
}

// NewWriter creates a transcript writer over a message feed.
func NewWriter(cfg Config, input <-chan model.Message, db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]transcriptRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming the feed and writing batches.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("transcript writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer, flushing what remains.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping transcript writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("transcript writer stopped")
	case <-ctx.Done():
		w.logger.Warn("transcript writer stop timed out")
	}

	w.flush(context.Background())

	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the feed and accumulates batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case msg, ok := <-w.input:
			if !ok {
				return
			}
			w.handleMessage(msg)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleMessage transforms and adds a message to the batch.
func (w *Writer) handleMessage(msg model.Message) {
	row := transform(msg)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a message to a transcript row.
func transform(msg model.Message) transcriptRow {
	return transcriptRow{
		MessageID:   msg.ID,
		ContainerID: msg.ContainerID,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderDisplayName,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		ReplyToID:   msg.ReplyToID,
		Edited:      msg.Edited,
		Deleted:     msg.Deleted,
		CreatedAt:   msg.CreatedAt.UnixMicro(),
		ArchivedAt:  time.Now().UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of the current batch
	batch := w.batch
	w.batch = make([]transcriptRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchUpsert(ctx, batch); err != nil {
		w.logger.Error("batch upsert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Upserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed transcripts",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchUpsert writes rows with pgx.Batch. Edits and deletes for an archived
// message update the existing row.
func (w *Writer) batchUpsert(ctx context.Context, rows []transcriptRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO transcripts
				(message_id, container_id, sender_id, sender_name, content,
				 content_type, reply_to_id, edited, deleted, created_at, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (message_id) DO UPDATE SET
				content = EXCLUDED.content,
				edited = EXCLUDED.edited,
				deleted = EXCLUDED.deleted,
				archived_at = EXCLUDED.archived_at
		`, r.MessageID, r.ContainerID, r.SenderID, r.SenderName, r.Content,
			r.ContentType, r.ReplyToID, r.Edited, r.Deleted, r.CreatedAt, r.ArchivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
