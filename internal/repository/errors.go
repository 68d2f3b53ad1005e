package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

// PostgreSQL error classes that mean the store cannot serve requests right now.
const (
	pqClassConnectionException  = "08"
	pqClassInsufficientResource = "53"
	pqClassOperatorIntervention = "57"
)

// classify annotates a store error with the operation name and maps it onto the
// application taxonomy: missing rows become not found, lost connectivity becomes
// store unavailable and everything else stays a plain wrapped error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, op+": not found")
	}
	if isUnavailable(err) {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, op+": store unavailable")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case pqClassConnectionException, pqClassInsufficientResource, pqClassOperatorIntervention:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
