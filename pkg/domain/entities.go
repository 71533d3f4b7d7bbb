// Package domain defines the persistent entities, the sync bookkeeping shared
// by every record, and the transactional contracts implemented by the stores.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, bus events and persistence tables.
const (
	// EntityDrone identifies a paired drone record.
	EntityDrone EntityType = "drone"
	// EntityFlight identifies a recorded flight (gutma telemetry).
	EntityFlight EntityType = "flight"
	// EntityFlightPlan identifies a mission definition or one of its executions.
	EntityFlightPlan EntityType = "flight_plan"
	// EntityProject identifies a project grouping flight plans.
	EntityProject EntityType = "project"
	// EntityProjectPix4d identifies a photogrammetry project.
	EntityProjectPix4d EntityType = "project_pix4d"
	// EntityGutmaLink identifies the join between a flight plan execution and a flight.
	EntityGutmaLink EntityType = "gutma_link"
	// EntityThumbnail identifies a preview image owned by a flight or flight plan.
	EntityThumbnail EntityType = "thumbnail"
	// EntityUser identifies an account record.
	EntityUser EntityType = "user"
	// EntitySession identifies the local session pointing at the active user.
	EntitySession EntityType = "session"
)

// AllEntities lists every entity type in a stable order.
var AllEntities = []EntityType{
	EntityDrone,
	EntityFlight,
	EntityFlightPlan,
	EntityProject,
	EntityProjectPix4d,
	EntityGutmaLink,
	EntityThumbnail,
	EntityUser,
	EntitySession,
}

// UserScopedEntities lists the entity types purged together with their owner.
var UserScopedEntities = []EntityType{
	EntityDrone,
	EntityProject,
	EntityProjectPix4d,
	EntityFlight,
	EntityFlightPlan,
	EntityGutmaLink,
	EntityThumbnail,
}

// Entity is implemented by every stored record value.
type Entity interface {
	Kind() EntityType
	Sync() SyncState
}

// Record constrains a pointer to an entity so generic code can mutate its sync state.
type Record[T any] interface {
	*T
	Entity
	Meta() *SyncState
}

// Drone represents a drone paired with the account.
type Drone struct {
	SyncState
	SerialNumber string `json:"serial_number"`
	CommonName   string `json:"common_name"`
	ModelID      string `json:"model_id"`
	Paired4G     bool   `json:"paired_4g"`
}

// Flight is a recorded flight log. GutmaFile carries the raw telemetry payload.
type Flight struct {
	SyncState
	FormatVersion      string     `json:"format_version"`
	Title              string     `json:"title"`
	ParseError         bool       `json:"parse_error"`
	RunDate            time.Time  `json:"run_date"`
	Serial             string     `json:"serial"`
	Firmware           string     `json:"firmware"`
	ModelID            string     `json:"model_id"`
	GutmaFile          []byte     `json:"gutma_file,omitempty"`
	PhotoCount         int        `json:"photo_count"`
	VideoCount         int        `json:"video_count"`
	StartLatitude      float64    `json:"start_latitude"`
	StartLongitude     float64    `json:"start_longitude"`
	BatteryConsumption int        `json:"battery_consumption"`
	Distance           float64    `json:"distance"`
	Duration           float64    `json:"duration"`
	ThumbnailUUID      string     `json:"thumbnail_uuid,omitempty"`
	Thumbnail          *Thumbnail `json:"thumbnail,omitempty"`
}

// FlightPlanState enumerates the execution states of a flight plan.
type FlightPlanState string

// Flight plan states. Only editable plans may be modified by the user.
const (
	FlightPlanEditable   FlightPlanState = "editable"
	FlightPlanStopped    FlightPlanState = "stopped"
	FlightPlanFlying     FlightPlanState = "flying"
	FlightPlanCompleted  FlightPlanState = "completed"
	FlightPlanUploading  FlightPlanState = "uploading"
	FlightPlanProcessing FlightPlanState = "processing"
	FlightPlanProcessed  FlightPlanState = "processed"
	FlightPlanUnknown    FlightPlanState = "unknown"
)

// FormatVersion identifies the serialization format of a flight plan data setting.
type FormatVersion string

// Known flight plan format versions.
const (
	FormatVersionUnknown FormatVersion = "unknown"
	FormatVersionV1      FormatVersion = "1"
	FormatVersionV2      FormatVersion = "2"
	// LatestFormatVersion is the format written by current clients.
	LatestFormatVersion = FormatVersionV2
)

// FlightPlan is a mission definition; executed copies share the project of the editable plan.
type FlightPlan struct {
	SyncState
	Name                    string          `json:"name"`
	State                   FlightPlanState `json:"state"`
	FileType                string          `json:"file_type"`
	FlightPlanType          string          `json:"flight_plan_type"`
	FormatVersion           FormatVersion   `json:"format_version"`
	DataSetting             []byte          `json:"data_setting,omitempty"`
	MediaCount              int             `json:"media_count"`
	UploadedMediaCount      int             `json:"uploaded_media_count"`
	LastMissionItemExecuted int             `json:"last_mission_item_executed"`
	ProjectUUID             string          `json:"project_uuid"`
	ProjectPix4dUUID        string          `json:"project_pix4d_uuid,omitempty"`
	ThumbnailUUID           string          `json:"thumbnail_uuid,omitempty"`
	LastUpdated             time.Time       `json:"last_updated"`
	ExecutionRank           int             `json:"execution_rank"`
	HasReachedFirstWaypoint bool            `json:"has_reached_first_waypoint"`
	Thumbnail               *Thumbnail      `json:"thumbnail,omitempty"`
	GutmaLinks              []GutmaLink     `json:"gutma_links,omitempty"`
}

// IsEditable reports whether the plan is still an editable draft.
func (f FlightPlan) IsEditable() bool { return f.State == FlightPlanEditable }

// IsExecution reports whether the plan is a run that reached its first waypoint.
func (f FlightPlan) IsExecution() bool {
	return !f.IsEditable() && f.HasReachedFirstWaypoint
}

// Project groups an editable flight plan with its executions. The derived
// fields are maintained by the write path and ignored on input.
type Project struct {
	SyncState
	Title                               string      `json:"title"`
	Type                                string      `json:"type"`
	LatestExecutionIndex                int         `json:"latest_execution_index"`
	LastUpdated                         time.Time   `json:"last_updated"`
	LastOpened                          *time.Time  `json:"last_opened,omitempty"`
	HasEditableFlightPlan               bool        `json:"has_editable_flight_plan"`
	LatestUpdatedEditableFlightPlanDate *time.Time  `json:"latest_updated_editable_flight_plan_date,omitempty"`
	LatestExecutedFlightPlanDate        *time.Time  `json:"latest_executed_flight_plan_date,omitempty"`
	EditableFlightPlan                  *FlightPlan `json:"editable_flight_plan,omitempty"`
}

// ProjectPix4d is a photogrammetry processing project.
type ProjectPix4d struct {
	SyncState
	Title            string    `json:"title"`
	ProjectDate      time.Time `json:"project_date"`
	ProcessingCalled bool      `json:"processing_called"`
}

// GutmaLink joins a flight plan execution to the flight it produced.
type GutmaLink struct {
	SyncState
	FlightUUID     string    `json:"flight_uuid"`
	FlightPlanUUID string    `json:"flight_plan_uuid"`
	ExecutionDate  time.Time `json:"execution_date"`
}

// Thumbnail holds a preview image. When the bytes live in a blob store, BlobKey
// is set and Data is empty in storage.
type Thumbnail struct {
	SyncState
	Data    []byte `json:"data,omitempty"`
	BlobKey string `json:"blob_key,omitempty"`
}

// User is an account, possibly anonymous.
type User struct {
	SyncState
	ApcID              string `json:"apc_id,omitempty"`
	AcademyID          string `json:"academy_id,omitempty"`
	Email              string `json:"email,omitempty"`
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
	IsPrivateMode      bool   `json:"is_private_mode"`
	ApcToken           string `json:"apc_token,omitempty"`
	Confirmed          bool   `json:"confirmed"`
	PilotNumber        string `json:"pilot_number,omitempty"`
	IsCaligoffEnabled  bool   `json:"is_caligoff_enabled"`
	NbFreemiumProjects int    `json:"nb_freemium_projects"`
	IsAgreementChanged bool   `json:"is_agreement_changed"`
	Avatar             []byte `json:"avatar,omitempty"`
}

// IsAnonymous reports whether the user has never signed in.
func (u User) IsAnonymous() bool { return u.ApcID == "" }

// Session points at the active user and keeps synchronizer bookkeeping.
type Session struct {
	SyncState
	LastSyncDate *time.Time `json:"last_sync_date,omitempty"`
	LastPushDate *time.Time `json:"last_push_date,omitempty"`
	LastPullDate *time.Time `json:"last_pull_date,omitempty"`
	SkipSync     bool       `json:"skip_sync"`
}

func (Drone) Kind() EntityType        { return EntityDrone }
func (Flight) Kind() EntityType       { return EntityFlight }
func (FlightPlan) Kind() EntityType   { return EntityFlightPlan }
func (Project) Kind() EntityType      { return EntityProject }
func (ProjectPix4d) Kind() EntityType { return EntityProjectPix4d }
func (GutmaLink) Kind() EntityType    { return EntityGutmaLink }
func (Thumbnail) Kind() EntityType    { return EntityThumbnail }
func (User) Kind() EntityType         { return EntityUser }
func (Session) Kind() EntityType      { return EntitySession }
