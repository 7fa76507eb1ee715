// Package azure implements the Azure DNS DNSProvider: service-principal
// credentials (tenant ID, client ID, client secret) plus a subscription,
// resource group and zone name, driving armdns.RecordSetsClient directly instead of a
// zone-reconciling abstraction that manages arbitrary endpoint sets
// against a whole zone.
package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
	"github.com/mikempw/dnsfailover/internal/metrics"
)

// recordSetsAPI is the subset of armdns.RecordSetsClient this provider
// calls, narrowed so tests can substitute a fake.
type recordSetsAPI interface {
	CreateOrUpdate(ctx context.Context, resourceGroupName, zoneName, relativeRecordSetName string, recordType armdns.RecordType, parameters armdns.RecordSet, options *armdns.RecordSetsClientCreateOrUpdateOptions) (armdns.RecordSetsClientCreateOrUpdateResponse, error)
	Get(ctx context.Context, resourceGroupName, zoneName, relativeRecordSetName string, recordType armdns.RecordType, options *armdns.RecordSetsClientGetOptions) (armdns.RecordSetsClientGetResponse, error)
}

// Provider manages a single A/TXT record pair in one Azure DNS zone.
type Provider struct {
	client        recordSetsAPI
	resourceGroup string
	cfg           dnsprovider.Config
	relativeName  string
}

var _ dnsprovider.Provider = (*Provider)(nil)

// New wraps an already constructed client. The record set name used
// against the zone is derived here from cfg.Record: the part left after
// trimming the "."+cfg.Zone suffix.
func New(client recordSetsAPI, resourceGroup string, cfg dnsprovider.Config) *Provider {
	relative := strings.TrimSuffix(cfg.Record, "."+cfg.Zone)
	return &Provider{client: client, resourceGroup: resourceGroup, cfg: cfg, relativeName: relative}
}

func (p *Provider) Name() dnsprovider.Name { return dnsprovider.NameAzure }

func (p *Provider) SetRecords(ctx context.Context, ip string, owner lease.Owner, expiresAt int64) error {
	ttl := to.Ptr(int64(p.cfg.TTL))

	aSet := armdns.RecordSet{
		Properties: &armdns.RecordSetProperties{
			TTL:      ttl,
			ARecords: []*armdns.ARecord{{IPv4Address: to.Ptr(ip)}},
		},
	}
	if _, err := p.client.CreateOrUpdate(ctx, p.resourceGroup, p.cfg.Zone, p.relativeName, armdns.RecordTypeA, aSet, nil); err != nil {
		return dnsprovider.NewTransientError(dnsprovider.NameAzure, fmt.Errorf("create or update A record: %w", err))
	}

	txtSet := armdns.RecordSet{
		Properties: &armdns.RecordSetProperties{
			TTL: ttl,
			TxtRecords: []*armdns.TxtRecord{{
				Value: []*string{to.Ptr(lease.Encode(owner, expiresAt))},
			}},
		},
	}
	if _, err := p.client.CreateOrUpdate(ctx, p.resourceGroup, p.cfg.Zone, p.relativeName, armdns.RecordTypeTXT, txtSet, nil); err != nil {
		return dnsprovider.NewTransientError(dnsprovider.NameAzure, fmt.Errorf("create or update TXT record: %w", err))
	}
	return nil
}

func (p *Provider) GetRecords(ctx context.Context) (dnsprovider.Records, error) {
	var recs dnsprovider.Records

	aResp, err := p.client.Get(ctx, p.resourceGroup, p.cfg.Zone, p.relativeName, armdns.RecordTypeA, nil)
	if err == nil && aResp.Properties != nil && len(aResp.Properties.ARecords) > 0 && aResp.Properties.ARecords[0].IPv4Address != nil {
		a := *aResp.Properties.ARecords[0].IPv4Address
		recs.A = &a
	} else if err != nil && !isNotFound(err) {
		return dnsprovider.Records{}, dnsprovider.NewTransientError(dnsprovider.NameAzure, fmt.Errorf("get A record: %w", err))
	}

	txtResp, err := p.client.Get(ctx, p.resourceGroup, p.cfg.Zone, p.relativeName, armdns.RecordTypeTXT, nil)
	if err == nil && txtResp.Properties != nil && len(txtResp.Properties.TxtRecords) > 0 && len(txtResp.Properties.TxtRecords[0].Value) > 0 {
		parts := make([]string, 0, len(txtResp.Properties.TxtRecords[0].Value))
		for _, v := range txtResp.Properties.TxtRecords[0].Value {
			if v != nil {
				parts = append(parts, *v)
			}
		}
		txt := strings.Join(parts, "")
		recs.TXT = &txt
	} else if err != nil && !isNotFound(err) {
		return dnsprovider.Records{}, dnsprovider.NewTransientError(dnsprovider.NameAzure, fmt.Errorf("get TXT record: %w", err))
	}

	return recs, nil
}

// isNotFound treats a missing record set as "no records" rather than an
// error; armdns returns a 404 ResponseError for an absent record set.
func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404") || strings.Contains(err.Error(), "ResourceNotFound")
}

func init() {
	dnsprovider.Register(dnsprovider.NameAzure, func(_ context.Context, cfg dnsprovider.Config, creds map[string]string) (dnsprovider.Provider, error) {
		tenantID, clientID, clientSecret := creds["tenant_id"], creds["client_id"], creds["client_secret"]
		subscriptionID := creds["subscription_id"]
		resourceGroup := creds["resource_group"]
		if tenantID == "" || clientID == "" || clientSecret == "" || subscriptionID == "" || resourceGroup == "" {
			return nil, fmt.Errorf("azure provider: tenant_id, client_id, client_secret, subscription_id and resource_group are required")
		}

		cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("azure provider: unable to create credential: %w", err)
		}

		options := &arm.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Transport: metrics.NewInstrumentedClient(string(dnsprovider.NameAzure), nil),
			},
		}
		client, err := armdns.NewRecordSetsClient(subscriptionID, cred, options)
		if err != nil {
			return nil, fmt.Errorf("azure provider: unable to create record sets client: %w", err)
		}

		return New(client, resourceGroup, cfg), nil
	})
}
