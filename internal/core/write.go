package core

import (
	"bytes"

	"pictor/pkg/domain"
)

func droneTable(tx Transaction) domain.Table[domain.Drone] { return tx.Drones() }
func flightTable(tx Transaction) domain.Table[domain.Flight] { return tx.Flights() }
func planTable(tx Transaction) domain.Table[domain.FlightPlan] { return tx.FlightPlans() }
func projectTable(tx Transaction) domain.Table[domain.Project] { return tx.Projects() }
func gutmaTable(tx Transaction) domain.Table[domain.GutmaLink] { return tx.GutmaLinks() }
func thumbTable(tx Transaction) domain.Table[domain.Thumbnail] { return tx.Thumbnails() }
func userTable(tx Transaction) domain.Table[domain.User] { return tx.Users() }
func sessionTable(tx Transaction) domain.Table[domain.Session] { return tx.Sessions() }
func pix4dTable(tx Transaction) domain.Table[domain.ProjectPix4d] { return tx.ProjectPix4ds() }

// save dispatches a Create or Update batch. Items run in array order.
func (b *batch) save(models domain.Models, create bool) {
	switch m := models.(type) {
	case domain.Drones:
		for _, item := range m {
			saveRecord(b, droneTable, item, create, nil, nil)
		}
	case domain.Flights:
		for _, item := range m {
			saveRecord(b, flightTable, item, create, b.prepareFlight, nil)
		}
	case domain.FlightPlans:
		for _, item := range m {
			saveRecord(b, planTable, item, create, b.preparePlan, b.afterPlan)
		}
	case domain.Projects:
		for _, item := range m {
			saveRecord(b, projectTable, item, create, b.prepareProject, nil)
		}
	case domain.ProjectPix4ds:
		for _, item := range m {
			saveRecord(b, pix4dTable, item, create, nil, nil)
		}
	case domain.GutmaLinks:
		for _, item := range m {
			saveRecord(b, gutmaTable, item, create, nil, nil)
		}
	case domain.Thumbnails:
		for _, item := range m {
			saveRecord(b, thumbTable, item, create, b.prepareThumbnail, nil)
		}
	case domain.Users:
		for _, item := range m {
			saveRecord(b, userTable, item, create, prepareUser, nil)
		}
	case domain.Sessions:
		for _, item := range m {
			saveRecord(b, sessionTable, item, create, nil, nil)
		}
	}
}

// prepareFunc adjusts the merged row before it is stored. model is the
// caller's value, stored the previous row or nil.
type prepareFunc[T any] func(tx Transaction, model T, stored *T, rec *T) error

// afterFunc runs the cascades that depend on the stored row.
type afterFunc[T any] func(tx Transaction, stored *T, rec T) error

func saveRecord[T any, P domain.Record[T]](b *batch, table func(Transaction) domain.Table[T], model T, create bool, prepare prepareFunc[T], after afterFunc[T]) {
	meta := P(&model).Meta()
	if create && meta.UUID == "" {
		meta.UUID = b.c.newID()
	}
	id := meta.UUID
	kind := P(&model).Kind()
	applied := b.commit(kind, id, func(tx Transaction) error {
		t := table(tx)
		var stored *T
		if id != "" {
			if cur, ok := t.Get(id); ok {
				stored = &cur
			}
		}
		if stored == nil && !create {
			return errUnknownRecord
		}
		rec := merge[T, P](b, stored, model, create)
		if prepare != nil {
			if err := prepare(tx, model, stored, &rec); err != nil {
				return err
			}
		}
		if err := t.Put(rec); err != nil {
			return err
		}
		if after != nil {
			return after(tx, stored, rec)
		}
		return nil
	})
	if applied && b.stamps() && !b.local {
		b.flagSync(kind)
	}
}

// merge builds the row to store from the caller's model and the stored row.
func merge[T any, P domain.Record[T]](b *batch, stored *T, model T, create bool) T {
	if b.mode == ModeEngineOnly && stored != nil {
		out := *stored
		P(&out).Meta().AssignEngine(P(&model).Sync())
		return out
	}
	out := model
	meta := P(&out).Meta()
	if b.mode != ModeDefault {
		if stored != nil {
			prev := P(stored).Sync()
			if meta.UserUUID == "" {
				meta.UserUUID = prev.UserUUID
			}
			if meta.LocalCreationDate.IsZero() {
				meta.LocalCreationDate = prev.LocalCreationDate
			}
		}
		if meta.UserUUID == "" {
			meta.UserUUID = b.user
		}
		if meta.LocalCreationDate.IsZero() {
			meta.LocalCreationDate = b.now
		}
		return out
	}

	in := P(&model).Sync()
	base := domain.SyncState{UserUUID: b.user, LocalCreationDate: b.now}
	if stored != nil {
		base = P(stored).Sync()
		if base.UserUUID == "" {
			base.UserUUID = b.user
		}
	}
	base.UUID = in.UUID
	base.CloudID = in.CloudID
	if create {
		base.SynchroIsDeleted = false
	}
	now := b.now
	base.LocalModificationDate = &now
	if !b.local {
		base.SynchroLatestUpdatedDate = &now
	}
	*meta = base
	return out
}

func (b *batch) prepareFlight(tx Transaction, model domain.Flight, stored *domain.Flight, rec *domain.Flight) error {
	if b.stamps() && stored != nil &&
		(!bytes.Equal(stored.GutmaFile, rec.GutmaFile) || stored.FormatVersion != rec.FormatVersion) {
		rec.SynchroStatus = domain.SynchroNotSynced
	}
	if b.mode != ModeEngineOnly {
		var previous string
		if stored != nil {
			previous = stored.ThumbnailUUID
		}
		ref, err := b.inlineThumbnail(tx, rec.SyncState, model.Thumbnail, previous)
		if err != nil {
			return err
		}
		rec.ThumbnailUUID = ref
	}
	rec.Thumbnail = nil
	return nil
}

func (b *batch) preparePlan(tx Transaction, model domain.FlightPlan, stored *domain.FlightPlan, rec *domain.FlightPlan) error {
	if b.stamps() && stored != nil &&
		(!bytes.Equal(stored.DataSetting, rec.DataSetting) || stored.FormatVersion != rec.FormatVersion) {
		rec.SynchroStatus = domain.SynchroNotSynced
	}
	if b.mode != ModeEngineOnly {
		var previous string
		if stored != nil {
			previous = stored.ThumbnailUUID
		}
		ref, err := b.inlineThumbnail(tx, rec.SyncState, model.Thumbnail, previous)
		if err != nil {
			return err
		}
		rec.ThumbnailUUID = ref
	}
	rec.Thumbnail = nil
	rec.GutmaLinks = nil
	return nil
}

// afterPlan refreshes the project the plan left and the one it joined.
func (b *batch) afterPlan(tx Transaction, stored *domain.FlightPlan, rec domain.FlightPlan) error {
	if stored != nil && stored.ProjectUUID != rec.ProjectUUID {
		if err := refreshProject(tx, stored.ProjectUUID); err != nil {
			return err
		}
	}
	return refreshProject(tx, rec.ProjectUUID)
}

// prepareProject drops the joined plan and recomputes the derived fields,
// which callers never set.
func (b *batch) prepareProject(tx Transaction, _ domain.Project, stored *domain.Project, rec *domain.Project) error {
	rec.EditableFlightPlan = nil
	if b.mode == ModeEngineOnly && stored != nil {
		return nil
	}
	projectDerived(tx.FlightPlans(), rec.UUID).apply(rec)
	return nil
}

func (b *batch) prepareThumbnail(_ Transaction, _ domain.Thumbnail, stored *domain.Thumbnail, rec *domain.Thumbnail) error {
	return b.offload(rec, stored)
}

// prepareUser makes a user its own owner.
func prepareUser(_ Transaction, _ domain.User, _ *domain.User, rec *domain.User) error {
	rec.UserUUID = rec.UUID
	return nil
}
