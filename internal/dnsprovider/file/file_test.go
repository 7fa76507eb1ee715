package file

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikempw/dnsfailover/internal/lease"
)

func TestSetThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	p := New(filepath.Join(t.TempDir(), "sub", "zone.json"))

	recs, err := p.GetRecords(ctx)
	require.NoError(t, err)
	require.Nil(t, recs.A)
	require.Nil(t, recs.TXT)

	require.NoError(t, p.SetRecords(ctx, "10.10.10.10", lease.Primary, 1700000060))

	recs, err = p.GetRecords(ctx)
	require.NoError(t, err)
	require.NotNil(t, recs.A)
	require.Equal(t, "10.10.10.10", *recs.A)
	require.Equal(t, lease.Lease{Owner: lease.Primary, ExpiresAt: 1700000060}, recs.Lease())
}

func TestGetRecordsMissingFileIsNotError(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "missing.json"))
	recs, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, lease.Lease{}, recs.Lease())
}

func TestSetRecordsOverwrites(t *testing.T) {
	ctx := context.Background()
	p := New(filepath.Join(t.TempDir(), "zone.json"))

	require.NoError(t, p.SetRecords(ctx, "10.10.10.10", lease.Primary, 100))
	require.NoError(t, p.SetRecords(ctx, "10.20.20.20", lease.DR, 200))

	recs, err := p.GetRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, "10.20.20.20", *recs.A)
	require.Equal(t, lease.Lease{Owner: lease.DR, ExpiresAt: 200}, recs.Lease())
}
