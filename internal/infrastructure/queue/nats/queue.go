package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

const (
	DefaultRefitSubject    = "evidence.corpus.refit"
	DefaultSnapshotSubject = "evidence.corpus.snapshot"

	workerQueueGroup = "corpus-workers"
)

var classifyNATSError = resilience.SentinelClassifier(
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
)

type Queue struct {
	conn            *nats.Conn
	refitSubject    string
	snapshotSubject string
	executor        *resilience.Executor
	logger          *slog.Logger
}

type Options struct {
	RefitSubject         string
	SnapshotSubject      string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	refitSubject := options.RefitSubject
	if refitSubject == "" {
		refitSubject = DefaultRefitSubject
	}
	snapshotSubject := options.SnapshotSubject
	if snapshotSubject == "" {
		snapshotSubject = DefaultSnapshotSubject
	}

	logger := slog.Default().With("component", "nats")
	conn, err := nats.Connect(
		url,
		nats.Name("evidence-retrieval"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:            conn,
		refitSubject:    refitSubject,
		snapshotSubject: snapshotSubject,
		executor:        options.ResilienceExecutor,
		logger:          logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) Ping() error {
	if q.conn == nil || !q.conn.IsConnected() {
		return fmt.Errorf("nats: not connected")
	}
	return nil
}

func (q *Queue) PublishRefitRequested(ctx context.Context, reason string) error {
	data, err := encodeRefitRequest(RefitRequest{Reason: reason, RequestedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return q.publish(ctx, q.refitSubject, data)
}

func (q *Queue) PublishSnapshotPublished(ctx context.Context, version uint64) error {
	data, err := encodeSnapshotPublished(SnapshotPublished{Version: version, PublishedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return q.publish(ctx, q.snapshotSubject, data)
}

// SubscribeRefitRequested delivers each refit request to one worker of the queue group and
// blocks until ctx is done.
func (q *Queue) SubscribeRefitRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.refitSubject, workerQueueGroup, func(msgCtx context.Context, data []byte) error {
		req, err := decodeRefitRequest(data)
		if err != nil {
			return err
		}
		return handler(msgCtx, req.Reason)
	})
}

// SubscribeSnapshotPublished fans snapshot notices out to every subscriber and blocks until
// ctx is done.
func (q *Queue) SubscribeSnapshotPublished(ctx context.Context, handler func(context.Context, uint64) error) error {
	return q.subscribe(ctx, q.snapshotSubject, "", func(msgCtx context.Context, data []byte) error {
		notice, err := decodeSnapshotPublished(data)
		if err != nil {
			return err
		}
		return handler(msgCtx, notice.Version)
	})
}

func (q *Queue) publish(ctx context.Context, subject string, data []byte) error {
	err := q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}, classifyNATSError)
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

func (q *Queue) subscribe(ctx context.Context, subject, group string, handle func(context.Context, []byte) error) error {
	callback := func(msg *nats.Msg) {
		dispatch(ctx, q.logger, subject, msg.Data, handle)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group != "" {
		sub, err = q.conn.QueueSubscribe(subject, group, callback)
	} else {
		sub, err = q.conn.Subscribe(subject, callback)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func dispatch(ctx context.Context, logger *slog.Logger, subject string, data []byte, handle func(context.Context, []byte) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handle(handlerCtx, data); err != nil {
		logger.Error("nats_handler_failed", "subject", subject, "error", err)
	}
}
