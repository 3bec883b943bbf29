package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmespath-community/go-jmespath"

	"github.com/vitalsense/analysis-jobs/internal/adapters/oidc"
	"github.com/vitalsense/analysis-jobs/internal/bootstrap"
	"github.com/vitalsense/analysis-jobs/internal/client"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

// jobAPI is the surface shared by the remote HTTP client and the in-process services.
type jobAPI interface {
	Submit(ctx context.Context, req model.SubmitJobRequest) (*model.SubmitJobResponse, error)
	Status(ctx context.Context, jobID string, opts client.StatusOptions) (*model.JobStatusView, error)
	History(ctx context.Context, userID string, limit int) (*model.JobHistoryResponse, error)
	Ingest(ctx context.Context, req model.IngestResultRequest) (*model.IngestAck, error)
}

var _ jobAPI = (*client.Client)(nil)

type remoteOptions struct {
	APIURL string
	Token  string
}

func (o *remoteOptions) applyEnv() {
	if o.APIURL == "" {
		o.APIURL = strings.TrimSpace(os.Getenv("ANALYSIS_API_URL"))
	}
	if o.Token == "" {
		o.Token = strings.TrimSpace(os.Getenv("ANALYSIS_API_TOKEN"))
	}
}

// openJobAPI returns a remote client when an API URL is known and local services otherwise.
// The returned close func must always be called.
//
//nolint:ireturn // commands only need the jobAPI surface.
func openJobAPI(cmdCtx *commandContext, remote remoteOptions) (jobAPI, func(), error) {
	remote.applyEnv()
	if remote.APIURL != "" {
		c, err := newRemoteClient(cmdCtx, remote)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}

	local, err := openLocal(cmdCtx)
	if err != nil {
		return nil, nil, err
	}
	return local, local.Close, nil
}

func newRemoteClient(cmdCtx *commandContext, remote remoteOptions) (*client.Client, error) {
	opts := client.Options{BaseURL: remote.APIURL, Token: remote.Token}

	oidcCfg := cmdCtx.Config.Auth.OIDC
	if remote.Token == "" && oidcCfg.HasClientCredentials() {
		hc, err := oidc.NewClientCredentialsClient(cmdCtx.Ctx, oidc.ClientCredentialsConfig{
			ClientID:     oidcCfg.ClientID,
			ClientSecret: oidcCfg.ClientSecret,
			TokenURL:     oidcCfg.TokenURL,
			Scopes:       oidcCfg.Scopes,
		})
		if err != nil {
			return nil, fmt.Errorf("build client credentials client: %w", err)
		}
		opts.HTTP = hc
		cmdCtx.Logger.Debug("using OIDC client credentials", "client_id", oidcCfg.ClientID)
	}

	return client.New(opts)
}

// localAPI runs the job services in-process against the configured backends.
type localAPI struct {
	infra    *bootstrap.Infrastructure
	services bootstrap.ServiceContainer
}

func openLocal(cmdCtx *commandContext) (*localAPI, error) {
	infra, err := bootstrap.OpenInfrastructure(cmdCtx.Ctx, bootstrap.InfraDeps{
		Config: &cmdCtx.Config,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, err
	}
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cmdCtx.Config,
		Infra:  infra,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		if cerr := infra.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	return &localAPI{infra: infra, services: services}, nil
}

func (l *localAPI) Close() {
	l.services.Notifier.StopAll()
	_ = l.infra.Close()
}

func (l *localAPI) Submit(ctx context.Context, req model.SubmitJobRequest) (*model.SubmitJobResponse, error) {
	return l.services.Submission.Submit(ctx, req)
}

func (l *localAPI) Status(ctx context.Context, jobID string, opts client.StatusOptions) (*model.JobStatusView, error) {
	view, err := l.services.Query.WaitStatus(ctx, jobID, opts.Wait)
	if err != nil {
		return nil, err
	}
	if opts.Query != "" && view.Result != nil {
		projected, perr := project(opts.Query, view.Result)
		if perr != nil {
			return nil, perr
		}
		view.Result = projected
	}
	return view, nil
}

func (l *localAPI) History(ctx context.Context, userID string, limit int) (*model.JobHistoryResponse, error) {
	return l.services.Query.GetHistory(ctx, userID, limit)
}

func (l *localAPI) Ingest(ctx context.Context, req model.IngestResultRequest) (*model.IngestAck, error) {
	return l.services.Ingestion.Ingest(ctx, req)
}

func project(expr string, raw json.RawMessage) (json.RawMessage, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	out, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate query %q: %w", expr, err)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode projection: %w", err)
	}
	return b, nil
}
