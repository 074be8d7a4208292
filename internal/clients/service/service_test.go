package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/clients/transport"
	"leadflow_backend/internal/plans"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

type fakeRepo struct {
	created []repository.CreateParams
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateParams) (repository.Client, error) {
	f.created = append(f.created, params)
	return repository.Client{
		ID:             uuid.New(),
		Name:           params.Name,
		Plan:           params.Plan,
		Exclusive:      params.Exclusive,
		LeadCount:      params.LeadCount,
		RemainingQuota: params.RemainingQuota,
	}, nil
}

func (f *fakeRepo) GetByID(context.Context, uuid.UUID) (repository.Client, error) {
	return repository.Client{}, apperr.NotFound("client not found")
}

func (f *fakeRepo) List(context.Context) ([]repository.Client, error) { return nil, nil }

func (f *fakeRepo) ListDeliverable(context.Context) ([]repository.Client, error) { return nil, nil }

func (f *fakeRepo) ListLowQuota(context.Context) ([]repository.Client, error) { return nil, nil }

func (f *fakeRepo) TopUpQuota(context.Context, uuid.UUID, int) (repository.Client, error) {
	return repository.Client{}, nil
}

func (f *fakeRepo) SetActive(context.Context, uuid.UUID, bool) (repository.Client, error) {
	return repository.Client{}, nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := &fakeRepo{}
	return New(repo, plans.Default(), logger.New("test")), repo
}

func TestCreateValidatesPlan(t *testing.T) {
	cases := []struct {
		name    string
		req     transport.CreateClientRequest
		wantErr bool
	}{
		{
			name:    "valid basic client",
			req:     transport.CreateClientRequest{Name: "Acme", Email: "ops@acme.test", Plan: "basic", LeadCount: 50},
			wantErr: false,
		},
		{
			name:    "unknown plan",
			req:     transport.CreateClientRequest{Name: "Acme", Email: "ops@acme.test", Plan: "platinum", LeadCount: 10},
			wantErr: true,
		},
		{
			name:    "basic plan cannot be exclusive",
			req:     transport.CreateClientRequest{Name: "Acme", Email: "ops@acme.test", Plan: "basic", LeadCount: 10, Exclusive: true},
			wantErr: true,
		},
		{
			name:    "lead count over batch cap",
			req:     transport.CreateClientRequest{Name: "Acme", Email: "ops@acme.test", Plan: "basic", LeadCount: 101},
			wantErr: true,
		},
		{
			name:    "premium exclusive at cap",
			req:     transport.CreateClientRequest{Name: "Acme", Email: "ops@acme.test", Plan: "premium", LeadCount: 500, Exclusive: true},
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService()
			_, err := svc.Create(context.Background(), tc.req)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr && err != nil && apperr.GetKind(err) != apperr.KindBadRequest {
				t.Errorf("kind = %v, want KindBadRequest", apperr.GetKind(err))
			}
		})
	}
}

func TestCreatePassesQuotaThrough(t *testing.T) {
	svc, repo := newTestService()

	req := transport.CreateClientRequest{
		Name: "Globex", Email: "buy@globex.test", Plan: "pro",
		LeadCount: 200, InitialQuota: 1000, Exclusive: true,
	}
	client, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if client.RemainingQuota != 1000 {
		t.Errorf("RemainingQuota = %d, want 1000", client.RemainingQuota)
	}
	if len(repo.created) != 1 || !repo.created[0].Exclusive {
		t.Errorf("unexpected repo params: %+v", repo.created)
	}
}
