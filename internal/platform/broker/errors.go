package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrTransportUnavailable means the broker could not be reached when the call was made.
	ErrTransportUnavailable = errors.New("broker transport unavailable")

	// ErrPublishFailed means the broker was reachable but rejected the send.
	ErrPublishFailed = errors.New("broker publish failed")

	ErrSubscriberClosed = errors.New("subscriber closed")

	ErrAlreadyListening = errors.New("subscriber already listening")

	ErrNoChannels = errors.New("no channels to subscribe")
)

// isTransportError separates connectivity failures from replies the server rejected.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return false
	}
	var netErr net.Error
	switch {
	case errors.Is(err, redis.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.As(err, &netErr):
		return true
	}
	return false
}

// classify maps a go-redis error into the broker taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransportError(err) {
		return fmt.Errorf("%w: %s: %w", ErrTransportUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrPublishFailed, op, err)
}
