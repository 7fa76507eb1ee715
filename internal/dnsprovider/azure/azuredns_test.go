package azure

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"
	"github.com/stretchr/testify/require"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

type fakeRecordSets struct {
	created map[armdns.RecordType]armdns.RecordSet
	getResp map[armdns.RecordType]armdns.RecordSet
	getErr  map[armdns.RecordType]error
	failOn  armdns.RecordType
}

func newFakeRecordSets() *fakeRecordSets {
	return &fakeRecordSets{
		created: map[armdns.RecordType]armdns.RecordSet{},
		getResp: map[armdns.RecordType]armdns.RecordSet{},
		getErr:  map[armdns.RecordType]error{},
	}
}

func (f *fakeRecordSets) CreateOrUpdate(_ context.Context, _, _, _ string, recordType armdns.RecordType, parameters armdns.RecordSet, _ *armdns.RecordSetsClientCreateOrUpdateOptions) (armdns.RecordSetsClientCreateOrUpdateResponse, error) {
	if f.failOn == recordType {
		return armdns.RecordSetsClientCreateOrUpdateResponse{}, errors.New("boom")
	}
	f.created[recordType] = parameters
	return armdns.RecordSetsClientCreateOrUpdateResponse{}, nil
}

func (f *fakeRecordSets) Get(_ context.Context, _, _, _ string, recordType armdns.RecordType, _ *armdns.RecordSetsClientGetOptions) (armdns.RecordSetsClientGetResponse, error) {
	if err, ok := f.getErr[recordType]; ok {
		return armdns.RecordSetsClientGetResponse{}, err
	}
	rs := f.getResp[recordType]
	return armdns.RecordSetsClientGetResponse{RecordSet: rs}, nil
}

func TestSetRecordsCreatesAAndTXT(t *testing.T) {
	fake := newFakeRecordSets()
	p := New(fake, "rg1", dnsprovider.Config{Record: "syslog.example.com", Zone: "example.com", TTL: 30})

	require.NoError(t, p.SetRecords(context.Background(), "10.10.10.10", lease.DR, 1700000060))

	aSet := fake.created[armdns.RecordTypeA]
	require.NotNil(t, aSet.Properties)
	require.Equal(t, "10.10.10.10", *aSet.Properties.ARecords[0].IPv4Address)

	txtSet := fake.created[armdns.RecordTypeTXT]
	require.NotNil(t, txtSet.Properties)
	require.Equal(t, "owner=dr exp=1700000060", *txtSet.Properties.TxtRecords[0].Value[0])
}

func TestSetRecordsPropagatesTransientError(t *testing.T) {
	fake := newFakeRecordSets()
	fake.failOn = armdns.RecordTypeA
	p := New(fake, "rg1", dnsprovider.Config{Record: "syslog.example.com", Zone: "example.com", TTL: 30})

	err := p.SetRecords(context.Background(), "10.10.10.10", lease.DR, 1)
	require.Error(t, err)
	var transient *dnsprovider.TransientError
	require.ErrorAs(t, err, &transient)
}

func TestGetRecordsJoinsMultiChunkTXT(t *testing.T) {
	fake := newFakeRecordSets()
	fake.getResp[armdns.RecordTypeA] = armdns.RecordSet{
		Properties: &armdns.RecordSetProperties{ARecords: []*armdns.ARecord{{IPv4Address: to.Ptr("10.10.10.10")}}},
	}
	fake.getResp[armdns.RecordTypeTXT] = armdns.RecordSet{
		Properties: &armdns.RecordSetProperties{TxtRecords: []*armdns.TxtRecord{{
			Value: []*string{to.Ptr("owner=primary "), to.Ptr("exp=42")},
		}}},
	}
	p := New(fake, "rg1", dnsprovider.Config{Record: "syslog.example.com", Zone: "example.com", TTL: 30})

	recs, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, "10.10.10.10", *recs.A)
	require.Equal(t, lease.Lease{Owner: lease.Primary, ExpiresAt: 42}, recs.Lease())
}

func TestGetRecordsNotFoundIsEmptyNotError(t *testing.T) {
	fake := newFakeRecordSets()
	fake.getErr[armdns.RecordTypeA] = errors.New("404 ResourceNotFound")
	fake.getErr[armdns.RecordTypeTXT] = errors.New("404 ResourceNotFound")
	p := New(fake, "rg1", dnsprovider.Config{Record: "syslog.example.com", Zone: "example.com", TTL: 30})

	recs, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	require.Nil(t, recs.A)
	require.Nil(t, recs.TXT)
}
