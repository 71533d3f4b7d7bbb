package repository

import (
	blobcore "pictor/internal/blob/core"
	"pictor/internal/bus"
	"pictor/internal/core"
	"pictor/internal/logging"
	"pictor/pkg/domain"
)

// Repositories bundles one repository per entity type over a shared store.
type Repositories struct {
	Drones        *DroneRepository
	Flights       *FlightRepository
	FlightPlans   *FlightPlanRepository
	Projects      *ProjectRepository
	ProjectPix4ds *ProjectPix4dRepository
	GutmaLinks    *GutmaLinkRepository
	Thumbnails    *ThumbnailRepository
	Users         *UserRepository
	Sessions      *SessionRepository
}

// Option configures Repositories.
type Option func(*source)

// WithLogger logs query failures to l.
func WithLogger(l logging.Logger) Option {
	return func(s *source) {
		if l != nil {
			s.log = l
		}
	}
}

// WithThumbnailStore hydrates offloaded thumbnail bytes from store.
func WithThumbnailStore(store blobcore.Store) Option {
	return func(s *source) { s.thumbs = store }
}

// New builds the repositories reading store and watching b.
func New(store domain.PersistentStore, b *bus.Bus, opts ...Option) *Repositories {
	src := &source{store: store, bus: b, log: logging.Nop{}}
	for _, opt := range opts {
		opt(src)
	}
	r := &Repositories{}
	r.Thumbnails = newThumbnailRepository(src)
	r.GutmaLinks = newGutmaLinkRepository(src)
	r.Flights = newFlightRepository(src)
	r.FlightPlans = newFlightPlanRepository(src)
	r.Projects = newProjectRepository(src)
	r.GutmaLinks.flights = r.Flights
	r.GutmaLinks.plans = r.FlightPlans
	r.Drones = newDroneRepository(src)
	r.ProjectPix4ds = &ProjectPix4dRepository{newRepository(src, domain.EntityProjectPix4d,
		func(v domain.TransactionView) domain.TableView[domain.ProjectPix4d] { return v.ProjectPix4ds() },
		func(a, b domain.ProjectPix4d) int { return newestFirst(a.ProjectDate, b.ProjectDate) })}
	r.Users = &UserRepository{newRepository(src, domain.EntityUser,
		func(v domain.TransactionView) domain.TableView[domain.User] { return v.Users() }, nil)}
	r.Sessions = &SessionRepository{newRepository(src, domain.EntitySession,
		func(v domain.TransactionView) domain.TableView[domain.Session] { return v.Sessions() }, nil)}
	return r
}

// FromContext reads the store the write path c commits to and watches its bus.
func FromContext(c *core.Context, opts ...Option) *Repositories {
	base := []Option{WithLogger(c.Logger()), WithThumbnailStore(c.Thumbnails())}
	return New(c.Store(), c.Bus(), append(base, opts...)...)
}

// ProjectPix4dRepository reads photogrammetry projects, newest first.
type ProjectPix4dRepository struct {
	*Repository[domain.ProjectPix4d]
}

// SessionRepository reads the sessions attached to the session user.
type SessionRepository struct {
	*Repository[domain.Session]
}
