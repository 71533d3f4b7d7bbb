package repository_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobcore "pictor/internal/blob/core"
	"pictor/internal/core"
	blobmem "pictor/internal/infra/blob/memory"
	"pictor/internal/logging"
	"pictor/internal/repository"
	"pictor/pkg/domain"
)

func TestFlightQueries(t *testing.T) {
	e := newEnv(t, nil)
	withThumb := flight("f2", at(20))
	withThumb.Thumbnail = thumb("th2", []byte("jpg"))
	e.create(t, domain.Flights{flight("f1", at(10)), withThumb, flight("f3", at(30))})
	flights := e.repos.Flights

	all, err := flights.GetAll(e.ctx, e.sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"f3", "f2", "f1"}, uuids(all), "latest run first")
	require.NotNil(t, all[1].Thumbnail)
	assert.Equal(t, []byte("jpg"), all[1].Thumbnail.Data)

	bare, err := flights.GetAllWithoutThumbnail(e.ctx, e.sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"f3", "f1"}, uuids(bare))

	sum, err := flights.Summary(e.ctx, e.sess)
	require.NoError(t, err)
	assert.Equal(t, repository.FlightSummary{Count: 3, TotalDuration: 270, TotalDistance: 750}, sum)

	sum, err = flights.SummaryFor(e.ctx, e.sess, []string{"f1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count)
}

func TestGutmaLinkQueries(t *testing.T) {
	e := newEnv(t, nil)
	e.create(t, domain.Projects{project("p1", "Roof", at(0))})
	e.create(t, domain.FlightPlans{execution("run-1", "p1", 1), execution("run-2", "p1", 2)})
	e.create(t, domain.Flights{flight("f1", at(10)), flight("f2", at(20))})
	e.create(t, domain.GutmaLinks{
		link("l1", "f1", "run-1", at(10)),
		link("l2", "f2", "run-1", at(20)),
		link("l3", "f2", "run-2", at(30)),
	})
	links := e.repos.GutmaLinks

	got, err := links.Find(e.ctx, e.sess, repository.GutmaLinkQuery{ExecutionDateFrom: at(15), ExecutionDateTo: at(30)})
	require.NoError(t, err)
	assert.Equal(t, []string{"l3", "l2"}, uuids(got), "bounds are inclusive")

	got, err = links.GetByFlightUUIDs(e.ctx, e.sess, []string{"f2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"l3", "l2"}, uuids(got))
	got, err = links.GetByFlightPlanUUIDs(e.ctx, e.sess, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	flights, err := links.RelatedFlights(e.ctx, e.sess, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f1"}, uuids(flights))

	plans, err := links.RelatedFlightPlans(e.ctx, e.sess, "f2")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2", "run-1"}, uuids(plans))

	plans, err = links.RelatedFlightPlans(e.ctx, e.sess, "nobody")
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestThumbnailsAreHydratedFromBlobStore(t *testing.T) {
	blobs := blobmem.New()
	e := newEnv(t, blobs)
	fl := flight("f1", at(1))
	fl.Thumbnail = thumb("th1", []byte("jpeg-bytes"))
	e.create(t, domain.Flights{fl})

	got, err := e.repos.Flights.Get(e.ctx, e.sess, "f1")
	require.NoError(t, err)
	require.NotNil(t, got.Thumbnail)
	assert.Equal(t, core.ThumbnailKey("th1"), got.Thumbnail.BlobKey)
	assert.Equal(t, []byte("jpeg-bytes"), got.Thumbnail.Data)

	th, err := e.repos.Thumbnails.Get(e.ctx, e.sess, "th1")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), th.Data)
}

func TestMissingThumbnailBlobIsLogged(t *testing.T) {
	blobs := blobmem.New()
	e := newEnv(t, blobs)
	e.create(t, domain.Thumbnails{*thumb("th1", []byte("png"))})
	_, err := blobs.Delete(e.ctx, core.ThumbnailKey("th1"))
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	repos := repository.New(e.c.Store(), e.c.Bus(), repository.WithLogger(logger), repository.WithThumbnailStore(blobs))

	th, err := repos.Thumbnails.Get(e.ctx, e.sess, "th1")
	require.NoError(t, err)
	assert.Empty(t, th.Data)
	assert.Contains(t, logs.String(), "thumbnail blob missing")
}

type brokenBlobs struct{ blobcore.Store }

func (brokenBlobs) Get(context.Context, string) (blobcore.Info, io.ReadCloser, error) {
	return blobcore.Info{}, nil, errors.New("disk on fire")
}

func TestBlobReadFailureFailsTheQuery(t *testing.T) {
	blobs := blobmem.New()
	e := newEnv(t, blobs)
	e.create(t, domain.Thumbnails{*thumb("th1", []byte("png"))})

	repos := repository.New(e.c.Store(), e.c.Bus(), repository.WithThumbnailStore(brokenBlobs{blobs}))
	_, err := repos.Thumbnails.GetAll(e.ctx, e.sess)
	assert.ErrorContains(t, err, "disk on fire")
}
