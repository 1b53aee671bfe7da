package crmsync

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"go-crm-sync/internal/connectors/pipedrive"
	"go-crm-sync/internal/features/crmsync/mapping"
	"go-crm-sync/internal/features/integration"
	"go-crm-sync/pkg/paginate"
	"go-crm-sync/pkg/retry"
)

// maxCustomFieldKeys is the most keys the list endpoints accept in custom_fields.
const maxCustomFieldKeys = 15

// RemoteClient is the part of the provider API a sync run uses.
type RemoteClient interface {
	ListOrganizations(ctx context.Context, params pipedrive.ListParams) (pipedrive.RecordPage, error)
	ListPersons(ctx context.Context, params pipedrive.ListParams) (pipedrive.RecordPage, error)
	OrganizationFields(ctx context.Context, start string) (pipedrive.FieldPage, error)
	PersonFields(ctx context.Context, start string) (pipedrive.FieldPage, error)
	SetAccessToken(token string)
}

type ClientFactory interface {
	NewClient(accessToken, apiDomain string) RemoteClient
}

type pipedriveClients struct {
	factory *pipedrive.Factory
}

func NewClientFactory(factory *pipedrive.Factory) ClientFactory {
	return &pipedriveClients{factory: factory}
}

func (p *pipedriveClients) NewClient(accessToken, apiDomain string) RemoteClient {
	return p.factory.New(accessToken, apiDomain)
}

// session is the remote side of one run: the connection with its current
// token and the client using it.
type session struct {
	conn      *integration.Connection
	client    RemoteClient
	refreshed bool
}

func (s *SyncServiceImpl) newSession(ctx context.Context, conn *integration.Connection) (*session, error) {
	valid, err := s.tokens.EnsureValidToken(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("ensure valid token: %w", err)
	}
	return &session{
		conn:   valid,
		client: s.clients.NewClient(valid.AccessToken, valid.APIDomain),
	}, nil
}

func (s *SyncServiceImpl) retryOptions() retry.Options {
	opts := s.opts.Retry
	opts.Retryable = func(err error) bool {
		return !pipedrive.IsUnauthorized(err) &&
			!errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded)
	}
	return opts
}

// callRemote runs fn with backoff. A rejected token is refreshed once per
// session and the call is retried with the new token.
func callRemote[T any](ctx context.Context, s *SyncServiceImpl, sess *session, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := retry.Do(ctx, fn, s.retryOptions())
	if err == nil || !pipedrive.IsUnauthorized(err) || sess.refreshed {
		return v, err
	}

	sess.refreshed = true
	conn, rerr := s.tokens.ForceRefresh(ctx, sess.conn)
	if rerr != nil {
		var zero T
		return zero, fmt.Errorf("access token rejected and refresh failed: %w", rerr)
	}
	sess.conn = conn
	sess.client.SetAccessToken(conn.AccessToken)
	return retry.Do(ctx, fn, s.retryOptions())
}

// records streams every record of a list endpoint.
func (s *SyncServiceImpl) records(
	ctx context.Context,
	sess *session,
	list func(context.Context, pipedrive.ListParams) (pipedrive.RecordPage, error),
	params pipedrive.ListParams,
) iter.Seq2[pipedrive.Record, error] {
	return paginate.Items(ctx, func(ctx context.Context, cursor string) (paginate.Page[pipedrive.Record], error) {
		p := params
		p.Cursor = cursor
		page, err := callRemote(ctx, s, sess, func(ctx context.Context) (pipedrive.RecordPage, error) {
			return list(ctx, p)
		})
		if err != nil {
			return paginate.Page[pipedrive.Record]{}, err
		}
		return paginate.Page[pipedrive.Record]{Items: page.Items, NextCursor: page.NextCursor}, nil
	})
}

// fields loads every field definition of one entity.
func (s *SyncServiceImpl) fields(
	ctx context.Context,
	sess *session,
	fetch func(context.Context, string) (pipedrive.FieldPage, error),
) ([]pipedrive.Field, error) {
	seq := paginate.Items(ctx, func(ctx context.Context, start string) (paginate.Page[pipedrive.Field], error) {
		page, err := callRemote(ctx, s, sess, func(ctx context.Context) (pipedrive.FieldPage, error) {
			return fetch(ctx, start)
		})
		if err != nil {
			return paginate.Page[pipedrive.Field]{}, err
		}
		return paginate.Page[pipedrive.Field]{Items: page.Items, NextCursor: page.NextStart}, nil
	})
	return paginate.Collect(seq)
}

func (s *SyncServiceImpl) loadSchema(
	ctx context.Context,
	sess *session,
	fetch func(context.Context, string) (pipedrive.FieldPage, error),
) (mapping.Schema, error) {
	defs, err := s.fields(ctx, sess, fetch)
	if err != nil {
		return nil, err
	}
	schema := make(mapping.Schema, len(defs))
	for _, f := range defs {
		schema[f.Key] = toFieldSchema(f)
	}
	return schema, nil
}

func toFieldSchema(f pipedrive.Field) *mapping.FieldSchema {
	fs := &mapping.FieldSchema{
		Key:       f.Key,
		Name:      f.Name,
		FieldType: f.FieldType,
		Custom:    f.EditFlag,
	}
	if len(f.Options) > 0 {
		fs.Options = make(map[string]string, len(f.Options))
		for _, o := range f.Options {
			fs.Options[strconv.FormatInt(o.ID, 10)] = o.Label
		}
	}
	return fs
}

func toRemoteField(f pipedrive.Field) RemoteField {
	fs := toFieldSchema(f)
	return RemoteField{Key: fs.Key, Name: fs.Name, FieldType: fs.FieldType, Options: fs.Options}
}

// customFieldKeys picks the custom fields a plan reads. Nil asks the API for
// all custom fields.
func customFieldKeys(plan *mapping.Plan, schema mapping.Schema) []string {
	var keys []string
	for _, k := range plan.RemoteKeys() {
		if f := schema.Field(k); f != nil && f.Custom {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 || len(keys) > maxCustomFieldKeys {
		return nil
	}
	return keys
}
