package core

import (
	"context"
	"fmt"

	"pictor/pkg/domain"
)

// Resolve checks that sess names a stored session attached to an existing
// user and returns that user's uuid.
func (c *Context) Resolve(ctx context.Context, sess domain.SessionContext) (string, error) {
	return c.resolve(ctx, sess)
}

func (c *Context) resolve(ctx context.Context, sess domain.SessionContext) (string, error) {
	return ResolveSession(ctx, c.store, sess)
}

// ResolveSession is the lookup shared by the write and read paths.
func ResolveSession(ctx context.Context, store PersistentStore, sess domain.SessionContext) (string, error) {
	if sess.SessionUUID == "" {
		return "", domain.ErrNoActiveSession
	}
	var user string
	err := store.View(ctx, func(v TransactionView) error {
		var err error
		user, err = SessionUser(v, sess)
		return err
	})
	return user, err
}

// SessionUser resolves sess against an open view.
func SessionUser(v TransactionView, sess domain.SessionContext) (string, error) {
	if sess.SessionUUID == "" {
		return "", domain.ErrNoActiveSession
	}
	s, ok := v.Sessions().Get(sess.SessionUUID)
	if !ok || s.UserUUID == "" || s.SynchroIsDeleted {
		return "", domain.ErrNoActiveSession
	}
	if sess.UserUUID != "" && sess.UserUUID != s.UserUUID {
		return "", domain.ErrNoActiveSession
	}
	if _, ok := v.Users().Get(s.UserUUID); !ok {
		return "", domain.ErrNoActiveSession
	}
	return s.UserUUID, nil
}

// StartSession reuses the first stored session whose user still exists. A
// detached session is reattached to a fresh anonymous user; with no session
// at all, both are created.
func (c *Context) StartSession(ctx context.Context) (domain.SessionContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		found    domain.SessionContext
		detached *domain.Session
	)
	err := c.store.View(ctx, func(v TransactionView) error {
		for _, s := range v.Sessions().Filter(func(s domain.Session) bool { return !s.SynchroIsDeleted }) {
			if s.UserUUID != "" {
				if _, ok := v.Users().Get(s.UserUUID); ok {
					found = domain.SessionContext{SessionUUID: s.UUID, UserUUID: s.UserUUID}
					return nil
				}
			}
			if detached == nil {
				detached = &s
			}
		}
		return nil
	})
	if err != nil {
		return domain.SessionContext{}, fmt.Errorf("start session: %w", err)
	}
	if found.Valid() {
		return found, nil
	}

	now := c.now()
	user := domain.User{}
	user.UUID = c.newID()
	user.UserUUID = user.UUID
	user.LocalCreationDate = now

	session := domain.Session{}
	if detached != nil {
		session = *detached
	} else {
		session.UUID = c.newID()
		session.LocalCreationDate = now
	}
	session.UserUUID = user.UUID
	session.LocalModificationDate = &now

	if err := c.attach(ctx, user, session); err != nil {
		return domain.SessionContext{}, fmt.Errorf("start session: %w", err)
	}
	c.log.Info(ctx, "session started", "session", session.UUID, "user", user.UUID, "anonymous", true)
	return domain.SessionContext{SessionUUID: session.UUID, UserUUID: user.UUID}, nil
}

// SwitchUser stores user, creating or replacing it, and points the session
// at it. The returned context replaces sess for later calls.
func (c *Context) SwitchUser(ctx context.Context, sess domain.SessionContext, user domain.User) (domain.SessionContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.resolve(ctx, sess); err != nil {
		return domain.SessionContext{}, err
	}
	now := c.now()
	if user.UUID == "" {
		user.UUID = c.newID()
	}
	user.UserUUID = user.UUID

	var session domain.Session
	err := c.store.View(ctx, func(v TransactionView) error {
		session, _ = v.Sessions().Get(sess.SessionUUID)
		if stored, ok := v.Users().Get(user.UUID); ok {
			user.LocalCreationDate = stored.LocalCreationDate
		}
		return nil
	})
	if err != nil {
		return domain.SessionContext{}, fmt.Errorf("switch user: %w", err)
	}
	if user.LocalCreationDate.IsZero() {
		user.LocalCreationDate = now
	}
	user.LocalModificationDate = &now
	session.UserUUID = user.UUID
	session.LocalModificationDate = &now

	if err := c.attach(ctx, user, session); err != nil {
		return domain.SessionContext{}, fmt.Errorf("switch user: %w", err)
	}
	return domain.SessionContext{SessionUUID: session.UUID, UserUUID: user.UUID}, nil
}

func (c *Context) attach(ctx context.Context, user domain.User, session domain.Session) error {
	res, err := c.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.Users().Put(user); err != nil {
			return err
		}
		return tx.Sessions().Put(session)
	})
	if err != nil {
		return err
	}
	c.newBatch(ctx, "session", user.UUID, nil).published(res.Changes, false)
	return nil
}
