package redisstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/redis/go-redis/v9"
)

// Reply prefixes Redis uses when ACLs or auth refuse a command.
// READONLY (a demoted replica after failover) is not among them and stays transient.
var permissionPrefixes = []string{"NOPERM", "NOAUTH", "WRONGPASS"}

var taxonomy = []error{
	store.ErrUnauthenticated, store.ErrNotFound, store.ErrConflict, store.ErrPermissionDenied,
	store.ErrTransient, store.ErrForbidden, store.ErrInvalid, store.ErrVoteUnsupported,
}

// classify maps a go-redis error onto the store taxonomy. Unrecognised errors are transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		msg := replyErr.Error()
		for _, prefix := range permissionPrefixes {
			if strings.HasPrefix(msg, prefix) {
				return fmt.Errorf("%w: %w", store.ErrPermissionDenied, err)
			}
		}
	}
	return fmt.Errorf("%w: %w", store.ErrTransient, err)
}
