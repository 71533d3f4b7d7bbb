package domain

// Models is a batch of records of a single entity kind. The set of
// implementations is closed: write paths switch over the concrete slice types.
type Models interface {
	Kind() EntityType
	UUIDs() []string
	Len() int
	sealed()
}

// Batch slice types, one per entity kind.
type (
	Drones        []Drone
	Flights       []Flight
	FlightPlans   []FlightPlan
	Projects      []Project
	ProjectPix4ds []ProjectPix4d
	GutmaLinks    []GutmaLink
	Thumbnails    []Thumbnail
	Users         []User
	Sessions      []Session
)

var (
	_ Models = Drones(nil)
	_ Models = Flights(nil)
	_ Models = FlightPlans(nil)
	_ Models = Projects(nil)
	_ Models = ProjectPix4ds(nil)
	_ Models = GutmaLinks(nil)
	_ Models = Thumbnails(nil)
	_ Models = Users(nil)
	_ Models = Sessions(nil)
)

func (Drones) Kind() EntityType        { return EntityDrone }
func (Flights) Kind() EntityType       { return EntityFlight }
func (FlightPlans) Kind() EntityType   { return EntityFlightPlan }
func (Projects) Kind() EntityType      { return EntityProject }
func (ProjectPix4ds) Kind() EntityType { return EntityProjectPix4d }
func (GutmaLinks) Kind() EntityType    { return EntityGutmaLink }
func (Thumbnails) Kind() EntityType    { return EntityThumbnail }
func (Users) Kind() EntityType         { return EntityUser }
func (Sessions) Kind() EntityType      { return EntitySession }

func (m Drones) UUIDs() []string        { return UUIDsOf([]Drone(m)) }
func (m Flights) UUIDs() []string       { return UUIDsOf([]Flight(m)) }
func (m FlightPlans) UUIDs() []string   { return UUIDsOf([]FlightPlan(m)) }
func (m Projects) UUIDs() []string      { return UUIDsOf([]Project(m)) }
func (m ProjectPix4ds) UUIDs() []string { return UUIDsOf([]ProjectPix4d(m)) }
func (m GutmaLinks) UUIDs() []string    { return UUIDsOf([]GutmaLink(m)) }
func (m Thumbnails) UUIDs() []string    { return UUIDsOf([]Thumbnail(m)) }
func (m Users) UUIDs() []string         { return UUIDsOf([]User(m)) }
func (m Sessions) UUIDs() []string      { return UUIDsOf([]Session(m)) }

func (m Drones) Len() int        { return len(m) }
func (m Flights) Len() int       { return len(m) }
func (m FlightPlans) Len() int   { return len(m) }
func (m Projects) Len() int      { return len(m) }
func (m ProjectPix4ds) Len() int { return len(m) }
func (m GutmaLinks) Len() int    { return len(m) }
func (m Thumbnails) Len() int    { return len(m) }
func (m Users) Len() int         { return len(m) }
func (m Sessions) Len() int      { return len(m) }

func (Drones) sealed()        {}
func (Flights) sealed()       {}
func (FlightPlans) sealed()   {}
func (Projects) sealed()      {}
func (ProjectPix4ds) sealed() {}
func (GutmaLinks) sealed()    {}
func (Thumbnails) sealed()    {}
func (Users) sealed()         {}
func (Sessions) sealed()      {}

// UUIDsOf collects the identities of the given records, preserving order.
func UUIDsOf[T Entity](items []T) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Sync().UUID)
	}
	return out
}
