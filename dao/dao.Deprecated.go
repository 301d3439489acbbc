package dao

import (
	"fmt"

	"github.com/google/uuid"
)

// The no-argument commit and update entry points, and whole-EHR deletion,
// predate contribution scoped writes. They remain on the DAO contract so
// existing callers fail loudly instead of compiling against removed methods.

// CommitEhrStatus is disabled. Use CreateEhr or UpdateEhrStatus, which
// record the committing contribution.
func (dao *DataAccessLayer) CommitEhrStatus() (uuid.UUID, error) {
	return uuid.Nil, fmt.Errorf("CommitEhrStatus without a contribution: %w", ErrUnsupported)
}

// UpdateEhrStatusNow is disabled. Use UpdateEhrStatus.
func (dao *DataAccessLayer) UpdateEhrStatusNow(force bool) (bool, error) {
	return false, fmt.Errorf("UpdateEhrStatusNow without a contribution: %w", ErrUnsupported)
}

// DeleteEhr is disabled. EHRs are never physically removed; deactivate via
// UpdateEhrStatus instead.
func (dao *DataAccessLayer) DeleteEhr(id uuid.UUID) (int, error) {
	return 0, fmt.Errorf("physical ehr deletion: %w", ErrUnsupported)
}
