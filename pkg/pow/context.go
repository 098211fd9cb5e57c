package pow

import (
	"context"
)

// returnErrIfCtxDone returns the given error if the provided context is done.
func returnErrIfCtxDone(ctx context.Context, err error) error {
	select {
	case <-ctx.Done():
		return err
	default:
		return nil
	}
}
