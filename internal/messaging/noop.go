// Package messaging holds bus-agnostic event wire types and a no-op
// publisher for tests and degraded-mode boot, mirroring the teacher's
// NoOpEventPublisher fallback pattern.
package messaging

import "context"

// NoOpPublisher discards every message. Used when the broker is
// disabled (tests, or best-effort startup when RabbitMQ is down) so the
// write path can still commit events to the log even if publishing
// fails — publish is best-effort per spec §4.3.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

func (p *NoOpPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	return nil
}
