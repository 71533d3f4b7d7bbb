package core

import (
	"bytes"
	"fmt"
	"net/http"

	blobcore "pictor/internal/blob/core"
	"pictor/pkg/domain"
)

// ThumbnailKey is the blob key holding the bytes of thumbnail id.
func ThumbnailKey(id string) string { return "thumbnails/" + id }

// inlineThumbnail saves the thumbnail carried by an owner model and returns
// the reference to store on the owner. A nil thumbnail removes the one the
// owner referenced before.
func (b *batch) inlineThumbnail(tx Transaction, owner domain.SyncState, thumb *domain.Thumbnail, previous string) (string, error) {
	if thumb == nil {
		return "", b.removeThumbnail(tx, previous)
	}
	t := *thumb
	if t.UUID == "" {
		t.UUID = b.c.newID()
	}
	table := tx.Thumbnails()
	var stored *domain.Thumbnail
	if cur, ok := table.Get(t.UUID); ok {
		stored = &cur
	}
	rec := merge(b, stored, t, true)
	rec.UserUUID = owner.UserUUID
	if err := b.offload(&rec, stored); err != nil {
		return "", err
	}
	if err := table.Put(rec); err != nil {
		return "", err
	}
	if previous != "" && previous != rec.UUID {
		if err := b.removeThumbnail(tx, previous); err != nil {
			return "", err
		}
	}
	return rec.UUID, nil
}

// offload moves the bytes of rec to the blob store when one is configured.
// A thumbnail saved without bytes keeps the blob of the stored row.
func (b *batch) offload(rec *domain.Thumbnail, stored *domain.Thumbnail) error {
	if b.c.thumbs == nil {
		return nil
	}
	if len(rec.Data) == 0 {
		if rec.BlobKey == "" && stored != nil {
			rec.BlobKey = stored.BlobKey
		}
		return nil
	}
	key := ThumbnailKey(rec.UUID)
	_, err := b.c.thumbs.Put(b.ctx, key, bytes.NewReader(rec.Data), blobcore.PutOptions{
		ContentType: http.DetectContentType(rec.Data),
		Metadata:    map[string]string{"owner": rec.UserUUID},
	})
	if err != nil {
		return fmt.Errorf("offload thumbnail %s: %w", rec.UUID, err)
	}
	rec.BlobKey = key
	rec.Data = nil
	return nil
}
