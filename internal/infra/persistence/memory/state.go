package memory

import "pictor/pkg/domain"

type memoryState struct {
	drones        *table[domain.Drone]
	flights       *table[domain.Flight]
	flightPlans   *table[domain.FlightPlan]
	projects      *table[domain.Project]
	projectPix4ds *table[domain.ProjectPix4d]
	gutmaLinks    *table[domain.GutmaLink]
	thumbnails    *table[domain.Thumbnail]
	users         *table[domain.User]
	sessions      *table[domain.Session]
}

// Snapshot captures a point-in-time clone of the store state keyed by UUID.
type Snapshot struct {
	Drones        map[string]domain.Drone        `json:"drones"`
	Flights       map[string]domain.Flight       `json:"flights"`
	FlightPlans   map[string]domain.FlightPlan   `json:"flight_plans"`
	Projects      map[string]domain.Project      `json:"projects"`
	ProjectPix4ds map[string]domain.ProjectPix4d `json:"project_pix4ds"`
	GutmaLinks    map[string]domain.GutmaLink    `json:"gutma_links"`
	Thumbnails    map[string]domain.Thumbnail    `json:"thumbnails"`
	Users         map[string]domain.User         `json:"users"`
	Sessions      map[string]domain.Session      `json:"sessions"`
}

// NewSnapshot returns a snapshot with every map initialized.
func NewSnapshot() Snapshot {
	return snapshotFromMemoryState(newMemoryState())
}

func newMemoryState() *memoryState {
	return &memoryState{
		drones:        newTable[domain.Drone](),
		flights:       newTable[domain.Flight](),
		flightPlans:   newTable[domain.FlightPlan](),
		projects:      newTable[domain.Project](),
		projectPix4ds: newTable[domain.ProjectPix4d](),
		gutmaLinks:    newTable[domain.GutmaLink](),
		thumbnails:    newTable[domain.Thumbnail](),
		users:         newTable[domain.User](),
		sessions:      newTable[domain.Session](),
	}
}

func snapshotFromMemoryState(state *memoryState) Snapshot {
	return Snapshot{
		Drones:        exportRows(state.drones),
		Flights:       exportRows(state.flights),
		FlightPlans:   exportRows(state.flightPlans),
		Projects:      exportRows(state.projects),
		ProjectPix4ds: exportRows(state.projectPix4ds),
		GutmaLinks:    exportRows(state.gutmaLinks),
		Thumbnails:    exportRows(state.thumbnails),
		Users:         exportRows(state.users),
		Sessions:      exportRows(state.sessions),
	}
}

func memoryStateFromSnapshot(s Snapshot) *memoryState {
	return &memoryState{
		drones:        importRows(s.Drones),
		flights:       importRows(s.Flights),
		flightPlans:   importRows(s.FlightPlans),
		projects:      importRows(s.Projects),
		projectPix4ds: importRows(s.ProjectPix4ds),
		gutmaLinks:    importRows(s.GutmaLinks),
		thumbnails:    importRows(s.Thumbnails),
		users:         importRows(s.Users),
		sessions:      importRows(s.Sessions),
	}
}

func exportRows[T domain.Entity](t *table[T]) map[string]T {
	out := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		out[k] = cloneRecord(v)
	}
	return out
}

// importRows re-keys rows by their own UUID and drops rows without one.
func importRows[T domain.Entity](rows map[string]T) *table[T] {
	t := newTable[T]()
	for _, v := range rows {
		uuid := v.Sync().UUID
		if uuid == "" {
			continue
		}
		t.rows[uuid] = cloneRecord(v)
	}
	return t
}
