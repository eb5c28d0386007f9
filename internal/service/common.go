package service

import (
	stderrors "errors"
	"fmt"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/storage"
)

// mapStorageError converts repository errors into categorized service errors
func mapStorageError(resource, id string, err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NewNotFoundError(resource, id)
	}
	return errors.NewDatabaseError(fmt.Sprintf("access %s %s", resource, id), err)
}
