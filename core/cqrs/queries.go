package cqrs

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/codewandler/custmgr-go/core/customer"
	"github.com/codewandler/custmgr-go/core/host"
)

// Queries is the read-only half of the façade. Existence and listing go to
// the log directly; FindCustomer replays, with concurrent replays for the
// same id collapsed into one.
type Queries struct {
	log  *slog.Logger
	host *host.Host
	sf   singleflight.Group
}

func NewQueries(log *slog.Logger, h *host.Host) *Queries {
	return &Queries{
		log:  log.With(slog.String("component", "queries")),
		host: h,
	}
}

type found struct {
	version  int
	customer *customer.Customer
}

// FindCustomer materializes current state. An id with zero events reports
// a not-found failure; version 0 is how replay distinguishes a missing
// customer from an existing one.
func (q *Queries) FindCustomer(ctx context.Context, id string) Result[*customer.Customer] {
	v, err, shared := q.sf.Do(id, func() (any, error) {
		version, state, err := q.host.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		return found{version: version.Int(), customer: state}, nil
	})
	if err != nil {
		q.log.Error("FindCustomer", slog.String("customer_id", id), slog.Any("error", err))
		return Failure[*customer.Customer](err)
	}

	f := v.(found)
	if f.version == 0 {
		return Fail[*customer.Customer]("customer %s not found", id)
	}

	q.log.Debug(
		"FindCustomer",
		slog.String("customer_id", id),
		slog.Int("version", f.version),
		slog.Bool("shared", shared),
	)
	return OK(f.customer)
}

// FindAllCustomerIds enumerates the distinct customer ids in the log.
func (q *Queries) FindAllCustomerIds(ctx context.Context) Result[[]string] {
	ids, err := q.host.Store().ListIDs(ctx)
	if err != nil {
		q.log.Error("FindAllCustomerIds", slog.Any("error", err))
		return Failure[[]string](err)
	}
	return OK(ids)
}

// CustomerExists probes the log for any events, independent of replay.
func (q *Queries) CustomerExists(ctx context.Context, id string) Result[bool] {
	exists, err := q.host.Store().Exists(ctx, id)
	if err != nil {
		q.log.Error("CustomerExists", slog.String("customer_id", id), slog.Any("error", err))
		return Failure[bool](err)
	}
	return OK(exists)
}
