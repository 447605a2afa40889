package memory

import (
	"context"
	"errors"

	"wellness-score/internal/domain"
)

var errQueueFull = errors.New("memory queue is full")

// Queue хранит уведомления в канале для демо-режима.
// Неподтверждённое сообщение возвращается в конец очереди.
type Queue struct {
	ch chan domain.ConsumptionLogged
}

var _ domain.ConsumptionQueue = (*Queue)(nil)

// NewQueue создаёт очередь заданной ёмкости.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan domain.ConsumptionLogged, size)}
}

// Enqueue реализует domain.ConsumptionQueue.
func (q *Queue) Enqueue(ctx context.Context, msg domain.ConsumptionLogged) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive реализует domain.ConsumptionQueue.
func (q *Queue) Receive(ctx context.Context) (domain.ConsumptionLogged, domain.AckFunc, error) {
	select {
	case msg := <-q.ch:
		ack := func(success bool) error {
			if success {
				return nil
			}
			select {
			case q.ch <- msg:
				return nil
			default:
				return errQueueFull
			}
		}
		return msg, ack, nil
	case <-ctx.Done():
		return domain.ConsumptionLogged{}, nil, ctx.Err()
	}
}
