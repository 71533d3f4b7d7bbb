package repository

import (
	"context"
	"fmt"
	"strings"

	"pictor/pkg/domain"
)

// DroneRepository reads the drones paired with the account.
type DroneRepository struct {
	*Repository[domain.Drone]
}

func newDroneRepository(src *source) *DroneRepository {
	return &DroneRepository{newRepository(src, domain.EntityDrone,
		func(v domain.TransactionView) domain.TableView[domain.Drone] { return v.Drones() },
		func(a, b domain.Drone) int { return strings.Compare(a.SerialNumber, b.SerialNumber) })}
}

// GetBySerial returns the drone with serial, or domain.ErrNotFound.
func (r *DroneRepository) GetBySerial(ctx context.Context, sess domain.SessionContext, serial string) (domain.Drone, error) {
	items, err := r.find(ctx, sess, func(d domain.Drone) bool { return d.SerialNumber == serial }, window[domain.Drone](0, 1))
	if err != nil {
		return domain.Drone{}, err
	}
	if len(items) == 0 {
		return domain.Drone{}, fmt.Errorf("drone serial %s: %w", serial, domain.ErrNotFound)
	}
	return items[0], nil
}

// UserRepository reads the session user.
type UserRepository struct {
	*Repository[domain.User]
}

// Current returns the user the session points at.
func (r *UserRepository) Current(ctx context.Context, sess domain.SessionContext) (domain.User, error) {
	var u domain.User
	err := r.view(ctx, sess, func(v domain.TransactionView, user string) error {
		u, _ = v.Users().Get(user)
		return nil
	})
	return u, err
}
