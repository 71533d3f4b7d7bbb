package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	blobcore "pictor/internal/blob/core"
	"pictor/pkg/domain"
)

// hydrateLimit bounds concurrent blob reads of one query.
const hydrateLimit = 8

// ThumbnailRepository reads thumbnails and restores offloaded bytes.
type ThumbnailRepository struct {
	*Repository[domain.Thumbnail]
}

func newThumbnailRepository(src *source) *ThumbnailRepository {
	r := &ThumbnailRepository{newRepository(src, domain.EntityThumbnail,
		func(v domain.TransactionView) domain.TableView[domain.Thumbnail] { return v.Thumbnails() }, nil)}
	r.finish = func(ctx context.Context, items []domain.Thumbnail) error {
		ptrs := make([]*domain.Thumbnail, len(items))
		for i := range items {
			ptrs[i] = &items[i]
		}
		return hydrate(ctx, src, ptrs)
	}
	return r
}

// lookupThumbnails returns the live thumbnails among uuids keyed by uuid. It runs
// inside an open view and leaves the bytes offloaded.
func lookupThumbnails(v domain.TransactionView, uuids []string) map[string]domain.Thumbnail {
	if len(uuids) == 0 {
		return nil
	}
	set := stringSet(uuids)
	out := make(map[string]domain.Thumbnail, len(set))
	for _, th := range v.Thumbnails().Filter(func(th domain.Thumbnail) bool {
		_, ok := set[th.UUID]
		return ok && !th.SynchroIsDeleted
	}) {
		out[th.UUID] = th
	}
	return out
}

// hydrate loads the bytes of offloaded thumbnails. A blob missing from the
// store leaves Data empty.
func hydrate(ctx context.Context, src *source, thumbs []*domain.Thumbnail) error {
	if src.thumbs == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateLimit)
	for _, th := range thumbs {
		if th == nil || th.BlobKey == "" || len(th.Data) > 0 {
			continue
		}
		g.Go(func() error {
			data, err := readBlob(gctx, src.thumbs, th.BlobKey)
			if errors.Is(err, blobcore.ErrNotFound) {
				src.log.Warn(gctx, "thumbnail blob missing", "uuid", th.UUID, "key", th.BlobKey)
				return nil
			}
			if err != nil {
				return fmt.Errorf("thumbnail %s: %w", th.UUID, err)
			}
			th.Data = data
			return nil
		})
	}
	return g.Wait()
}

func readBlob(ctx context.Context, store blobcore.Store, key string) ([]byte, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
