package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/stats"
)

// KafkaDispatcher：本地有界队列 + worker 异步发送 + 有限重试。
// - recordAction 只负责入队
// - Kafka 短暂阻塞时靠队列吸收，后台慢慢补发
// - 队列满时降级丢弃，避免内存无限增长
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string

	queue chan entity.StatsChangedEvent

	// sem 限制并发的 SendMessage 数量
	kafkaSem *SemaphoreControl

	workers        int
	maxRetry       int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	enqueueTimeout time.Duration

	wg sync.WaitGroup
	// closeMu 保护 closed：Close 之后 Enqueue 直接返回，不会往已关闭的 queue 里写
	closeMu sync.RWMutex
	closed  bool
}

var ErrDispatcherClosed = errors.New("kafka dispatcher closed")

// 确保 KafkaDispatcher 实现了 stats.Notifier 接口
var _ stats.Notifier = (*KafkaDispatcher)(nil)

type KafkaDispatcherOptions struct {
	QueueSize      int
	Workers        int
	MaxRetry       int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	EnqueueTimeout time.Duration
}

func NewKafkaDispatcher(producer sarama.SyncProducer, topic string, kafkaSem *SemaphoreControl, opt KafkaDispatcherOptions) *KafkaDispatcher {
	if opt.Workers <= 0 {
		opt.Workers = 1
	}
	if opt.EnqueueTimeout <= 0 {
		opt.EnqueueTimeout = 50 * time.Millisecond
	}
	d := &KafkaDispatcher{
		producer:       producer,
		topic:          topic,
		queue:          make(chan entity.StatsChangedEvent, opt.QueueSize),
		kafkaSem:       kafkaSem,
		workers:        opt.Workers,
		maxRetry:       opt.MaxRetry,
		baseBackoff:    opt.BaseBackoff,
		maxBackoff:     opt.MaxBackoff,
		enqueueTimeout: opt.EnqueueTimeout,
	}

	d.Start()
	return d
}

// Enqueue：把事件放入本地队列。
// - 队列满时，等待直到 ctx 超时
// - ctx 超时返回错误（统计事件不要求每条都送达）
// - Close 之后返回 ErrDispatcherClosed
func (d *KafkaDispatcher) Enqueue(ctx context.Context, evt entity.StatsChangedEvent) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatsChanged 入队最多等 enqueueTimeout，超时丢弃并记日志
func (d *KafkaDispatcher) StatsChanged(ctx context.Context, evt entity.StatsChangedEvent) {
	enqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.enqueueTimeout)
	defer cancel()
	if err := d.Enqueue(enqCtx, evt); err != nil {
		log.Printf("kafka enqueue failed, drop event slug=%s action=%s err=%v", evt.Slug, evt.Action, err)
	}
}

func (d *KafkaDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(i)
	}
}

// Close 停止接收新事件，等待队列里剩余的事件发完；重复调用无副作用
func (d *KafkaDispatcher) Close() {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.closeMu.Unlock()
	d.wg.Wait()
}

func (d *KafkaDispatcher) workerLoop(workerID int) {
	defer d.wg.Done()
	for evt := range d.queue {
		d.sendWithRetry(workerID, evt)
	}
}

func (d *KafkaDispatcher) sendWithRetry(workerID int, evt entity.StatsChangedEvent) {
	for attempt := 0; attempt <= d.maxRetry; attempt++ {
		if d.kafkaSem != nil {
			// worker 允许一直等待（不会影响主链路）
			_ = d.kafkaSem.Acquire(context.Background())
		}

		err := d.sendOnce(evt)

		if d.kafkaSem != nil {
			_ = d.kafkaSem.Release()
		}

		if err == nil {
			return
		}

		if attempt == d.maxRetry {
			log.Printf("kafka send failed, drop event slug=%s action=%s id=%s worker=%d err=%v",
				evt.Slug, evt.Action, evt.EventID, workerID, err)
			return
		}

		time.Sleep(d.backoff(attempt))
	}
}

// 退避，每次退避时间 X2，封顶 maxBackoff
func (d *KafkaDispatcher) backoff(attempt int) time.Duration {
	b := d.baseBackoff * time.Duration(1<<attempt)
	if d.maxBackoff > 0 && b > d.maxBackoff {
		b = d.maxBackoff
	}
	return b
}

func (d *KafkaDispatcher) sendOnce(evt entity.StatsChangedEvent) error {
	if d.producer == nil || d.topic == "" {
		return nil
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(evt.Slug),
		Value: sarama.ByteEncoder(b),
	}
	_, _, err = d.producer.SendMessage(msg)
	return err
}
