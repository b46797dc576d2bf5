package offset

import "context"

// Repository reads committed consumer offsets. The offset advance itself is
// part of the batch commit transaction; workers only read here on (re)start.
type Repository interface {
	Get(ctx context.Context, group, topic string, partition int32) (int64, bool, error)
}
