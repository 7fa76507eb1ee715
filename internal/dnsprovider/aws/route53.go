/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package aws implements the Route 53 DNSProvider, reusing the same
// session/credentials setup as other Route 53 integrations in this
// codebase's lineage but calling route53.Route53 directly rather than
// going through a zone-reconciling abstraction: that shape manages
// whole zones of arbitrary endpoints, while this provider only ever
// manages the one configured (A, TXT) pair.
package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
	"github.com/mikempw/dnsfailover/internal/metrics"
)

// Provider issues UPSERT changes and read queries against a single Route
// 53 hosted zone for the configured record name.
type Provider struct {
	client route53iface.Route53API
	cfg    dnsprovider.Config
	zoneID string
}

var _ dnsprovider.Provider = (*Provider)(nil)

// New wraps an already constructed Route53 client. Exported so tests can
// inject route53iface.Route53API fakes.
func New(client route53iface.Route53API, cfg dnsprovider.Config) *Provider {
	return &Provider{client: client, cfg: cfg, zoneID: cfg.Zone}
}

func (p *Provider) Name() dnsprovider.Name { return dnsprovider.NameAWS }

func fqdn(name string) string {
	return strings.TrimSuffix(name, ".") + "."
}

func (p *Provider) SetRecords(ctx context.Context, ip string, owner lease.Owner, expiresAt int64) error {
	name := fqdn(p.cfg.Record)
	ttl := aws.Int64(int64(p.cfg.TTL))

	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(p.zoneID),
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{
				{
					Action: aws.String(route53.ChangeActionUpsert),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name:            aws.String(name),
						Type:            aws.String(route53.RRTypeA),
						TTL:             ttl,
						ResourceRecords: []*route53.ResourceRecord{{Value: aws.String(ip)}},
					},
				},
				{
					Action: aws.String(route53.ChangeActionUpsert),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name: aws.String(name),
						Type: aws.String(route53.RRTypeTxt),
						TTL:  ttl,
						ResourceRecords: []*route53.ResourceRecord{
							{Value: aws.String(quoteTXT(lease.Encode(owner, expiresAt)))},
						},
					},
				},
			},
		},
	}

	if _, err := p.client.ChangeResourceRecordSetsWithContext(ctx, input); err != nil {
		return dnsprovider.NewTransientError(dnsprovider.NameAWS, fmt.Errorf("change resource record sets: %w", err))
	}
	return nil
}

func (p *Provider) GetRecords(ctx context.Context) (dnsprovider.Records, error) {
	name := fqdn(p.cfg.Record)

	out, err := p.client.ListResourceRecordSetsWithContext(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(p.zoneID),
		StartRecordName: aws.String(name),
		MaxItems:        aws.String("20"),
	})
	if err != nil {
		return dnsprovider.Records{}, dnsprovider.NewTransientError(dnsprovider.NameAWS, fmt.Errorf("list resource record sets: %w", err))
	}

	var recs dnsprovider.Records
	for _, rrset := range out.ResourceRecordSets {
		if rrset.Name == nil || !strings.EqualFold(*rrset.Name, name) {
			continue
		}
		if len(rrset.ResourceRecords) == 0 || rrset.ResourceRecords[0].Value == nil {
			continue
		}
		value := *rrset.ResourceRecords[0].Value
		switch aws.StringValue(rrset.Type) {
		case route53.RRTypeA:
			a := value
			recs.A = &a
		case route53.RRTypeTxt:
			txt := unquoteTXT(value)
			recs.TXT = &txt
		}
	}
	return recs, nil
}

// quoteTXT/unquoteTXT apply the quoting Route 53 requires around TXT
// record values; this is Route 53's own convention, not Go string-literal
// escaping.
func quoteTXT(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func unquoteTXT(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.ReplaceAll(s, `\"`, `"`)
}

func init() {
	dnsprovider.Register(dnsprovider.NameAWS, func(_ context.Context, cfg dnsprovider.Config, creds map[string]string) (dnsprovider.Provider, error) {
		accessKey, secretKey := creds["access_key_id"], creds["secret_access_key"]
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("aws provider: access_key_id and secret_access_key are required")
		}

		cfgAWS := aws.NewConfig().WithCredentials(credentials.NewStaticCredentials(accessKey, secretKey, ""))
		cfgAWS = cfgAWS.WithHTTPClient(metrics.NewInstrumentedClient(string(dnsprovider.NameAWS), cfgAWS.HTTPClient))
		if region := creds["region"]; region != "" {
			cfgAWS = cfgAWS.WithRegion(region)
		}

		sess, err := session.NewSessionWithOptions(session.Options{
			Config:            *cfgAWS,
			SharedConfigState: session.SharedConfigDisable,
		})
		if err != nil {
			return nil, fmt.Errorf("aws provider: unable to create session: %w", err)
		}

		return New(route53.New(sess), cfg), nil
	})
}
