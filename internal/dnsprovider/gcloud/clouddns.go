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

// Package gcloud implements the Google Cloud DNS DNSProvider on top of
// google.golang.org/api/dns/v1, wrapping the client's Call-returning
// methods in small interfaces (resourceRecordSetsClientInterface,
// changesServiceInterface) so they're fakeable in tests, since the
// google api package returns concrete *Call structs rather than
// interfaces. Narrowed down to get/upsert on the one configured record
// name, using an atomic Additions/Deletions change-batch for writes
// rather than a delete-then-create sequence.
package gcloud

import (
	"context"
	"fmt"
	"strings"

	dnsv1 "google.golang.org/api/dns/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

type resourceRecordSetsListCallInterface interface {
	Name(name string) *dnsv1.ResourceRecordSetsListCall
	Pages(ctx context.Context, f func(*dnsv1.ResourceRecordSetsListResponse) error) error
}

type resourceRecordSetsClientInterface interface {
	List(project, managedZone string) resourceRecordSetsListCallInterface
}

type resourceRecordSetsService struct {
	service *dnsv1.ResourceRecordSetsService
}

func (r resourceRecordSetsService) List(project, managedZone string) resourceRecordSetsListCallInterface {
	return r.service.List(project, managedZone)
}

type changesCreateCallInterface interface {
	Do(opts ...googleapi.CallOption) (*dnsv1.Change, error)
}

type changesServiceInterface interface {
	Create(project, managedZone string, change *dnsv1.Change) changesCreateCallInterface
}

type changesService struct {
	service *dnsv1.ChangesService
}

func (c changesService) Create(project, managedZone string, change *dnsv1.Change) changesCreateCallInterface {
	return c.service.Create(project, managedZone, change)
}

// Provider manages a single A/TXT record pair in one Cloud DNS managed
// zone, via atomic Additions/Deletions change batches.
type Provider struct {
	recordSets  resourceRecordSetsClientInterface
	changes     changesServiceInterface
	project     string
	managedZone string
	cfg         dnsprovider.Config
}

var _ dnsprovider.Provider = (*Provider)(nil)

func New(recordSets resourceRecordSetsClientInterface, changes changesServiceInterface, project, managedZone string, cfg dnsprovider.Config) *Provider {
	return &Provider{recordSets: recordSets, changes: changes, project: project, managedZone: managedZone, cfg: cfg}
}

func (p *Provider) Name() dnsprovider.Name { return dnsprovider.NameGoogle }

func fqdn(name string) string { return strings.TrimSuffix(name, ".") + "." }

func (p *Provider) existing(ctx context.Context) ([]*dnsv1.ResourceRecordSet, error) {
	name := fqdn(p.cfg.Record)
	var found []*dnsv1.ResourceRecordSet
	call := p.recordSets.List(p.project, p.managedZone)
	call.Name(name)
	err := call.Pages(ctx, func(page *dnsv1.ResourceRecordSetsListResponse) error {
		for _, rrset := range page.Rrsets {
			if rrset.Name == name {
				found = append(found, rrset)
			}
		}
		return nil
	})
	return found, err
}

func (p *Provider) SetRecords(ctx context.Context, ip string, owner lease.Owner, expiresAt int64) error {
	name := fqdn(p.cfg.Record)

	deletions, err := p.existing(ctx)
	if err != nil {
		return dnsprovider.NewTransientError(dnsprovider.NameGoogle, fmt.Errorf("list existing record sets: %w", err))
	}

	additions := []*dnsv1.ResourceRecordSet{
		{Name: name, Type: "A", Ttl: int64(p.cfg.TTL), Rrdatas: []string{ip}},
		{Name: name, Type: "TXT", Ttl: int64(p.cfg.TTL), Rrdatas: []string{fmt.Sprintf("%q", lease.Encode(owner, expiresAt))}},
	}

	change := &dnsv1.Change{Additions: additions, Deletions: deletions}
	if _, err := p.changes.Create(p.project, p.managedZone, change).Do(); err != nil {
		return dnsprovider.NewTransientError(dnsprovider.NameGoogle, fmt.Errorf("create change batch: %w", err))
	}
	return nil
}

func (p *Provider) GetRecords(ctx context.Context) (dnsprovider.Records, error) {
	rrsets, err := p.existing(ctx)
	if err != nil {
		return dnsprovider.Records{}, dnsprovider.NewTransientError(dnsprovider.NameGoogle, fmt.Errorf("list record sets: %w", err))
	}

	var recs dnsprovider.Records
	for _, rrset := range rrsets {
		if len(rrset.Rrdatas) == 0 {
			continue
		}
		switch rrset.Type {
		case "A":
			a := rrset.Rrdatas[0]
			recs.A = &a
		case "TXT":
			txt := strings.Trim(rrset.Rrdatas[0], `"`)
			recs.TXT = &txt
		}
	}
	return recs, nil
}

func init() {
	dnsprovider.Register(dnsprovider.NameGoogle, func(ctx context.Context, cfg dnsprovider.Config, creds map[string]string) (dnsprovider.Provider, error) {
		project, managedZone := creds["project"], creds["managed_zone"]
		keyJSON := creds["service_account_json"]
		if project == "" || managedZone == "" || keyJSON == "" {
			return nil, fmt.Errorf("google provider: project, managed_zone and service_account_json are required")
		}

		svc, err := dnsv1.NewService(ctx, option.WithCredentialsJSON([]byte(keyJSON)))
		if err != nil {
			return nil, fmt.Errorf("google provider: unable to create client: %w", err)
		}

		return New(resourceRecordSetsService{svc.ResourceRecordSets}, changesService{svc.Changes}, project, managedZone, cfg), nil
	})
}
