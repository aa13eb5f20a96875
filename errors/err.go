package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig   = fmt.Errorf("docstore: invalid config")
	ErrInvalidParams   = fmt.Errorf("docstore: invalid params")
	ErrNotFound        = fmt.Errorf("docstore: not found")
	ErrOutOfBounds     = fmt.Errorf("docstore: path out of bounds")
	ErrNothingToCommit = fmt.Errorf("docstore: nothing to commit")
	ErrRepositoryState = fmt.Errorf("docstore: repository state")
	ErrTypeConflict    = fmt.Errorf("docstore: type conflict")
	ErrLockTimeout     = fmt.Errorf("docstore: lock timeout")
	ErrScraperDisabled = fmt.Errorf("docstore: scraper disabled")
	ErrUpstream        = fmt.Errorf("docstore: upstream unavailable")
)
