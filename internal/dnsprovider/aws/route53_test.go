package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"
	"github.com/stretchr/testify/require"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

// fakeRoute53 embeds the interface so it satisfies route53iface.Route53API
// without implementing every method; only the two this provider calls are
// overridden.
type fakeRoute53 struct {
	route53iface.Route53API

	changeInput *route53.ChangeResourceRecordSetsInput
	changeErr   error

	listOutput *route53.ListResourceRecordSetsOutput
	listErr    error
}

func (f *fakeRoute53) ChangeResourceRecordSetsWithContext(_ context.Context, in *route53.ChangeResourceRecordSetsInput, _ ...request.Option) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.changeInput = in
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	return &route53.ChangeResourceRecordSetsOutput{}, nil
}

func (f *fakeRoute53) ListResourceRecordSetsWithContext(_ context.Context, _ *route53.ListResourceRecordSetsInput, _ ...request.Option) (*route53.ListResourceRecordSetsOutput, error) {
	return f.listOutput, f.listErr
}

func TestSetRecordsUpsertsBothRecordSets(t *testing.T) {
	fake := &fakeRoute53{}
	p := New(fake, dnsprovider.Config{Record: "syslog.example.com", Zone: "Z123", TTL: 30})

	require.NoError(t, p.SetRecords(context.Background(), "10.10.10.10", lease.Primary, 1700000060))

	require.NotNil(t, fake.changeInput)
	require.Equal(t, "Z123", awssdk.StringValue(fake.changeInput.HostedZoneId))
	require.Len(t, fake.changeInput.ChangeBatch.Changes, 2)

	byType := map[string]*route53.Change{}
	for _, c := range fake.changeInput.ChangeBatch.Changes {
		byType[awssdk.StringValue(c.ResourceRecordSet.Type)] = c
	}

	aChange := byType[route53.RRTypeA]
	require.NotNil(t, aChange)
	require.Equal(t, route53.ChangeActionUpsert, awssdk.StringValue(aChange.Action))
	require.Equal(t, "syslog.example.com.", awssdk.StringValue(aChange.ResourceRecordSet.Name))
	require.Equal(t, "10.10.10.10", awssdk.StringValue(aChange.ResourceRecordSet.ResourceRecords[0].Value))

	txtChange := byType[route53.RRTypeTxt]
	require.NotNil(t, txtChange)
	require.Equal(t, `"owner=primary exp=1700000060"`, awssdk.StringValue(txtChange.ResourceRecordSet.ResourceRecords[0].Value))
}

func TestSetRecordsErrorIsTransient(t *testing.T) {
	fake := &fakeRoute53{changeErr: awssdk.ErrMissingRegion}
	p := New(fake, dnsprovider.Config{Record: "r", Zone: "Z1", TTL: 30})

	err := p.SetRecords(context.Background(), "10.10.10.10", lease.Primary, 1)
	require.Error(t, err)
	var transient *dnsprovider.TransientError
	require.ErrorAs(t, err, &transient)
}

func TestGetRecordsExtractsAAndTXT(t *testing.T) {
	fake := &fakeRoute53{
		listOutput: &route53.ListResourceRecordSetsOutput{
			ResourceRecordSets: []*route53.ResourceRecordSet{
				{
					Name:            awssdk.String("syslog.example.com."),
					Type:            awssdk.String(route53.RRTypeA),
					ResourceRecords: []*route53.ResourceRecord{{Value: awssdk.String("10.10.10.10")}},
				},
				{
					Name:            awssdk.String("syslog.example.com."),
					Type:            awssdk.String(route53.RRTypeTxt),
					ResourceRecords: []*route53.ResourceRecord{{Value: awssdk.String(`"owner=dr exp=42"`)}},
				},
				{
					Name:            awssdk.String("other.example.com."),
					Type:            awssdk.String(route53.RRTypeA),
					ResourceRecords: []*route53.ResourceRecord{{Value: awssdk.String("9.9.9.9")}},
				},
			},
		},
	}
	p := New(fake, dnsprovider.Config{Record: "syslog.example.com", Zone: "Z1", TTL: 30})

	recs, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, "10.10.10.10", *recs.A)
	require.Equal(t, lease.Lease{Owner: lease.DR, ExpiresAt: 42}, recs.Lease())
}

func TestGetRecordsNoMatchIsEmptyNotError(t *testing.T) {
	fake := &fakeRoute53{listOutput: &route53.ListResourceRecordSetsOutput{}}
	p := New(fake, dnsprovider.Config{Record: "syslog.example.com", Zone: "Z1", TTL: 30})

	recs, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	require.Nil(t, recs.A)
	require.Nil(t, recs.TXT)
}
