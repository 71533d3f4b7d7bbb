package core

import (
	"time"

	"pictor/internal/bus"
	"pictor/pkg/domain"
)

// remove dispatches a Delete batch. Items run in array order.
func (b *batch) remove(models domain.Models) {
	switch m := models.(type) {
	case domain.Drones:
		for _, item := range m {
			deleteRecord(b, droneTable, item, nil)
		}
	case domain.Flights:
		for _, item := range m {
			deleteRecord(b, flightTable, item, b.cascadeFlight)
		}
	case domain.FlightPlans:
		for _, item := range m {
			deleteRecord(b, planTable, item, b.cascadePlan)
		}
	case domain.Projects:
		for _, item := range m {
			deleteRecord(b, projectTable, item, b.cascadeProject)
		}
	case domain.ProjectPix4ds:
		for _, item := range m {
			deleteRecord(b, pix4dTable, item, nil)
		}
	case domain.GutmaLinks:
		for _, item := range m {
			deleteRecord(b, gutmaTable, item, nil)
		}
	case domain.Thumbnails:
		for _, item := range m {
			deleteRecord(b, thumbTable, item, nil)
		}
	case domain.Users:
		for _, item := range m {
			b.purgeUser(item.UUID)
		}
	case domain.Sessions:
		for _, item := range m {
			deleteRecord(b, sessionTable, item, nil)
		}
	}
}

// deleteRecord removes one row. A zero cloudID on the caller's model forces
// a hard delete whatever the stored row says.
func deleteRecord[T any, P domain.Record[T]](b *batch, table func(Transaction) domain.Table[T], model T, cascade func(tx Transaction, row T) error) {
	in := P(&model).Sync()
	b.commit(P(&model).Kind(), in.UUID, func(tx Transaction) error {
		t := table(tx)
		row, ok := t.Get(in.UUID)
		if !ok {
			return errUnknownRecord
		}
		if _, err := removeRow[T, P](t, row, in.CloudID == 0, b.now); err != nil {
			return err
		}
		if cascade != nil {
			return cascade(tx, row)
		}
		return nil
	})
}

// removeRow hard-deletes rows never acknowledged by the cloud (or when hard
// is set) and tombstones the others. It reports whether the row changed.
func removeRow[T any, P domain.Record[T]](t domain.Table[T], row T, hard bool, now time.Time) (bool, error) {
	meta := P(&row).Meta()
	if hard || meta.CloudID == 0 {
		return t.Delete(meta.UUID), nil
	}
	if meta.SynchroIsDeleted {
		return false, nil
	}
	meta.MarkDeleted(now)
	return true, t.Put(row)
}

func (b *batch) cascadeFlight(tx Transaction, row domain.Flight) error {
	if err := b.removeThumbnail(tx, row.ThumbnailUUID); err != nil {
		return err
	}
	return b.removeLinks(tx, func(l domain.GutmaLink) bool { return l.FlightUUID == row.UUID })
}

func (b *batch) cascadePlan(tx Transaction, row domain.FlightPlan) error {
	if err := b.dropPlanCompanions(tx, row); err != nil {
		return err
	}
	return refreshProject(tx, row.ProjectUUID)
}

// cascadeProject removes every plan of the project through the plan path,
// each plan following its own cloudID.
func (b *batch) cascadeProject(tx Transaction, row domain.Project) error {
	plans := tx.FlightPlans()
	for _, fp := range plans.Filter(func(fp domain.FlightPlan) bool { return fp.ProjectUUID == row.UUID }) {
		if _, err := removeRow(plans, fp, false, b.now); err != nil {
			return err
		}
		if err := b.dropPlanCompanions(tx, fp); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) dropPlanCompanions(tx Transaction, fp domain.FlightPlan) error {
	if err := b.removeThumbnail(tx, fp.ThumbnailUUID); err != nil {
		return err
	}
	return b.removeLinks(tx, func(l domain.GutmaLink) bool { return l.FlightPlanUUID == fp.UUID })
}

func (b *batch) removeThumbnail(tx Transaction, id string) error {
	if id == "" {
		return nil
	}
	t := tx.Thumbnails()
	row, ok := t.Get(id)
	if !ok {
		return nil
	}
	_, err := removeRow(t, row, false, b.now)
	return err
}

func (b *batch) removeLinks(tx Transaction, match func(domain.GutmaLink) bool) error {
	t := tx.GutmaLinks()
	for _, link := range t.Filter(match) {
		if _, err := removeRow(t, link, false, b.now); err != nil {
			return err
		}
	}
	return nil
}

// purgeUser hard-deletes everything userUUID owns in one transaction and
// detaches the sessions that pointed at the user.
func (b *batch) purgeUser(userUUID string) {
	if userUUID == "" {
		b.report.Skipped = append(b.report.Skipped, userUUID)
		return
	}
	applied := b.commitWith(domain.EntityUser, userUUID, func(tx Transaction) error {
		purgeOwned(tx.Drones(), userUUID)
		purgeOwned(tx.Projects(), userUUID)
		purgeOwned(tx.ProjectPix4ds(), userUUID)
		purgeOwned(tx.Flights(), userUUID)
		purgeOwned(tx.FlightPlans(), userUUID)
		purgeOwned(tx.GutmaLinks(), userUUID)
		purgeOwned(tx.Thumbnails(), userUUID)
		tx.Users().Delete(userUUID)

		sessions := tx.Sessions()
		for _, s := range sessions.Filter(func(s domain.Session) bool { return s.UserUUID == userUUID }) {
			now := b.now
			s.UserUUID = ""
			s.LocalModificationDate = &now
			if err := sessions.Put(s); err != nil {
				return err
			}
		}
		return nil
	}, true)
	if !applied {
		return
	}
	kinds := append(append([]domain.EntityType(nil), domain.UserScopedEntities...), domain.EntityUser)
	events := make([]bus.Event, 0, 2*len(kinds))
	for _, kind := range kinds {
		events = append(events,
			bus.Event{Entity: kind, Kind: bus.DeletedAll},
			bus.Event{Entity: kind, Kind: bus.Changed})
	}
	b.c.bus.Publish(events...)
}

func purgeOwned[T domain.Entity](t domain.Table[T], userUUID string) {
	for _, row := range t.Filter(func(r T) bool { return r.Sync().UserUUID == userUUID }) {
		t.Delete(row.Sync().UUID)
	}
}
