package domain

import "time"

// SynchroStatus tracks whether local state has been pushed to the remote service.
// Values above SynchroSynced are error codes reported by the synchronizer.
type SynchroStatus int

// Synchronization statuses.
const (
	SynchroNotSynced SynchroStatus = 0
	SynchroSynced    SynchroStatus = 1
	SynchroFailed    SynchroStatus = 2
)

// IsError reports whether the status carries a synchronizer error code.
func (s SynchroStatus) IsError() bool { return s >= SynchroFailed }

func (s SynchroStatus) String() string {
	switch {
	case s == SynchroNotSynced:
		return "not_synced"
	case s == SynchroSynced:
		return "synced"
	default:
		return "error"
	}
}

// SyncState is embedded in every entity. Only the write path sets the local dates.
type SyncState struct {
	UUID                     string        `json:"uuid"`
	UserUUID                 string        `json:"user_uuid"`
	LocalCreationDate        time.Time     `json:"local_creation_date"`
	LocalModificationDate    *time.Time    `json:"local_modification_date,omitempty"`
	CloudID                  int64         `json:"cloud_id"`
	SynchroIsDeleted         bool          `json:"synchro_is_deleted"`
	SynchroLatestUpdatedDate *time.Time    `json:"synchro_latest_updated_date,omitempty"`
	SynchroStatus            SynchroStatus `json:"synchro_status"`
	SynchroError             string        `json:"synchro_error,omitempty"`
	SynchroLatestStatusDate  *time.Time    `json:"synchro_latest_status_date,omitempty"`
	CloudCreationDate        *time.Time    `json:"cloud_creation_date,omitempty"`
	CloudModificationDate    *time.Time    `json:"cloud_modification_date,omitempty"`
}

// Sync returns a copy of the sync state.
func (s SyncState) Sync() SyncState { return s }

// Meta exposes the sync state for in-place mutation.
func (s *SyncState) Meta() *SyncState { return s }

// IsSynchronized reports whether the record has round-tripped to the server at least once.
func (s SyncState) IsSynchronized() bool { return s.CloudID != 0 }

// VisibleTo reports whether the record belongs to userUUID and is not tombstoned.
func (s SyncState) VisibleTo(userUUID string) bool {
	return s.UserUUID == userUUID && !s.SynchroIsDeleted
}

// NeedsSync reports whether the synchronizer must push the record: it is not
// synced yet, or it changed after since.
func (s SyncState) NeedsSync(since time.Time) bool {
	if s.SynchroStatus != SynchroSynced {
		return true
	}
	return s.SynchroLatestUpdatedDate != nil && s.SynchroLatestUpdatedDate.After(since)
}

// MarkDeleted tombstones the record at now.
func (s *SyncState) MarkDeleted(now time.Time) {
	s.SynchroIsDeleted = true
	s.LocalModificationDate = &now
	s.SynchroLatestUpdatedDate = &now
}

// AssignEngine copies every synchronizer-owned field from other.
func (s *SyncState) AssignEngine(other SyncState) {
	s.CloudID = other.CloudID
	s.SynchroIsDeleted = other.SynchroIsDeleted
	s.SynchroLatestUpdatedDate = other.SynchroLatestUpdatedDate
	s.SynchroStatus = other.SynchroStatus
	s.SynchroError = other.SynchroError
	s.SynchroLatestStatusDate = other.SynchroLatestStatusDate
	s.CloudCreationDate = other.CloudCreationDate
	s.CloudModificationDate = other.CloudModificationDate
}
