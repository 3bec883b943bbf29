package broker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/vitalsense/analysis-jobs/internal/core"
)

// PostgresOptions configures a PostgresBroker.
type PostgresOptions struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// PostgresBroker publishes with pg_notify and subscribes with LISTEN on a dedicated pool connection.
// Payloads must stay under the server's 8000 byte NOTIFY limit.
type PostgresBroker struct {
	db     *sql.DB
	logger *slog.Logger
	life   lifecycle
}

// NewPostgresBroker creates a broker on top of db. The pool is owned by the caller.
func NewPostgresBroker(opts PostgresOptions) (*PostgresBroker, error) {
	if opts.DB == nil {
		return nil, errors.New("database is required")
	}
	return &PostgresBroker{
		db:     opts.DB,
		logger: loggerOrDefault(opts.Logger, "postgres"),
		life:   newLifecycle(),
	}, nil
}

// Publish sends payload as a NOTIFY on the topic channel.
func (b *PostgresBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if b.life.isClosed() {
		return ErrClosed
	}
	if _, err := b.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", topic, string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", topic, err)
	}
	return nil
}

// Subscribe holds one pool connection in LISTEN mode until ctx is canceled.
func (b *PostgresBroker) Subscribe(ctx context.Context, topic string) (<-chan core.Message, error) {
	if topic == "" {
		return nil, ErrTopicRequired
	}
	if b.life.isClosed() {
		return nil, ErrClosed
	}

	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get conn from pool: %w", err)
	}
	quoted := pgx.Identifier{topic}.Sanitize()
	if _, err = conn.ExecContext(ctx, "LISTEN "+quoted); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("listen %s: %w", topic, err)
	}

	// Wake WaitForNotification when either the subscriber or the broker goes away.
	waitCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-waitCtx.Done():
		case <-b.life.done:
			cancel()
		}
	}()

	out := make(chan core.Message, defaultBuffer)
	go func() {
		defer close(out)
		defer cancel()
		defer func() {
			if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
				_ = execErr
			}
			if cerr := conn.Close(); cerr != nil {
				_ = cerr
			}
		}()

		for {
			var n *pgconn.Notification
			rawErr := conn.Raw(func(dc any) error {
				sc, ok := dc.(*stdlib.Conn)
				if !ok {
					return errors.New("unexpected driver connection type; expected *stdlib.Conn")
				}
				var werr error
				n, werr = sc.Conn().WaitForNotification(waitCtx)
				return werr
			})
			if rawErr != nil {
				if waitCtx.Err() == nil {
					b.logger.Warn("postgres listen ended", "topic", topic, "error", rawErr)
				}
				return
			}
			if !b.life.forward(waitCtx, out, core.Message{Topic: n.Channel, Payload: []byte(n.Payload)}) {
				return
			}
		}
	}()
	return out, nil
}

// Ping checks the database connection.
func (b *PostgresBroker) Ping(ctx context.Context) error {
	if b.life.isClosed() {
		return ErrClosed
	}
	return b.db.PingContext(ctx)
}

// Close ends all subscriptions and releases their connections. The pool stays open.
func (b *PostgresBroker) Close() error {
	b.life.close()
	return nil
}
