package cqrs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/codewandler/custmgr-go/core/customer"
	"github.com/codewandler/custmgr-go/core/es"
	"github.com/codewandler/custmgr-go/core/host"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Commands is the mutating half of the façade. Each command validates its
// input, raises exactly one domain event through the host's exclusion
// domain and returns the refreshed state.
type Commands struct {
	log      *slog.Logger
	host     *host.Host
	validate *validator.Validate
}

func NewCommands(log *slog.Logger, h *host.Host) *Commands {
	return &Commands{
		log:      log.With(slog.String("component", "commands")),
		host:     h,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// raise runs decide under the customer's writer lock and wraps the outcome.
func (c *Commands) raise(ctx context.Context, op, id string, decide host.Decide) Result[*customer.Customer] {
	version, state, err := c.host.Execute(ctx, id, decide)
	if err != nil {
		c.log.Error(op, slog.String("customer_id", id), slog.Any("error", err))
		return Failure[*customer.Customer](err)
	}
	c.log.Info(op, slog.String("customer_id", id), version.SlogAttr())
	return OK(state)
}

// NewCustomer creates the customer aggregate for id. The core does not
// enforce create-exactly-once beyond the optimistic version check; callers
// are expected to probe CustomerExists first.
func (c *Commands) NewCustomer(ctx context.Context, id string, primaryAccountHolder customer.Person, mailingAddress customer.Address) Result[*customer.Customer] {
	if err := c.validate.Struct(primaryAccountHolder); err != nil {
		return Fail[*customer.Customer]("invalid primary account holder: %v", err)
	}
	if err := c.validate.Struct(mailingAddress); err != nil {
		return Fail[*customer.Customer]("invalid mailing address: %v", err)
	}
	return c.raise(ctx, "NewCustomer", id, func(*customer.Customer) ([]es.Event, error) {
		return []es.Event{&customer.CustomerCreated{
			PrimaryAccountHolder: primaryAccountHolder,
			MailingAddress:       mailingAddress,
		}}, nil
	})
}

func (c *Commands) AddAccount(ctx context.Context, id string, account customer.Account) Result[*customer.Customer] {
	if err := c.validate.Struct(account); err != nil {
		return Fail[*customer.Customer]("invalid account: %v", err)
	}
	return c.raise(ctx, "AddAccount", id, func(*customer.Customer) ([]es.Event, error) {
		return []es.Event{&customer.AccountAdded{Account: account}}, nil
	})
}

func (c *Commands) RemoveAccount(ctx context.Context, id string, accountNumber string) Result[*customer.Customer] {
	return c.raise(ctx, "RemoveAccount", id, func(*customer.Customer) ([]es.Event, error) {
		return []es.Event{&customer.AccountRemoved{AccountNumber: accountNumber}}, nil
	})
}

func (c *Commands) UpdateMailingAddress(ctx context.Context, id string, address customer.Address) Result[*customer.Customer] {
	if err := c.validate.Struct(address); err != nil {
		return Fail[*customer.Customer]("invalid address: %v", err)
	}
	return c.raise(ctx, "UpdateMailingAddress", id, func(*customer.Customer) ([]es.Event, error) {
		return []es.Event{&customer.MailingAddressChanged{Address: address}}, nil
	})
}

func (c *Commands) UpdatePrimaryResidence(ctx context.Context, id string, address customer.Address) Result[*customer.Customer] {
	if err := c.validate.Struct(address); err != nil {
		return Fail[*customer.Customer]("invalid address: %v", err)
	}
	return c.raise(ctx, "UpdatePrimaryResidence", id, func(*customer.Customer) ([]es.Event, error) {
		return []es.Event{&customer.ResidencePrimaryChanged{Address: address}}, nil
	})
}

func (c *Commands) UpdateSpouseResidence(ctx context.Context, id string, address customer.Address) Result[*customer.Customer] {
	if err := c.validate.Struct(address); err != nil {
		return Fail[*customer.Customer]("invalid address: %v", err)
	}
	return c.raise(ctx, "UpdateSpouseResidence", id, func(*customer.Customer) ([]es.Event, error) {
		return []es.Event{&customer.ResidenceSpouseChanged{Address: address}}, nil
	})
}

// UpdateSpouse sets the spouse sub-record, or clears it when spouse is nil.
func (c *Commands) UpdateSpouse(ctx context.Context, id string, spouse *customer.Person) Result[*customer.Customer] {
	if spouse == nil {
		return c.raise(ctx, "UpdateSpouse", id, func(*customer.Customer) ([]es.Event, error) {
			return []es.Event{&customer.SpouseRemoved{}}, nil
		})
	}
	if err := c.validate.Struct(*spouse); err != nil {
		return Fail[*customer.Customer]("invalid spouse: %v", err)
	}
	return c.raise(ctx, "UpdateSpouse", id, func(*customer.Customer) ([]es.Event, error) {
		return []es.Event{&customer.SpouseChanged{Spouse: *spouse}}, nil
	})
}

// PostAccountTransaction applies a signed amount (cents) to a sub-account.
// The account lookup and the funds check run against current state before
// any event is raised, so the log never records a transaction that was
// invalid when it was posted. The funds boundary is exactly: a balance
// that was non-negative may not go negative. A balance that is already
// negative may move anywhere, including further negative.
func (c *Commands) PostAccountTransaction(ctx context.Context, id string, accountNumber string, amount int64) Result[*customer.Customer] {
	return c.raise(ctx, "PostAccountTransaction", id, func(cur *customer.Customer) ([]es.Event, error) {
		acct, ok := cur.Account(accountNumber)
		if !ok {
			return nil, ErrAccountNotFound
		}

		oldBalance := acct.Balance
		newBalance := oldBalance + amount
		if oldBalance >= 0 && newBalance < 0 {
			return nil, ErrInsufficientFunds
		}

		return []es.Event{&customer.TransactionPosted{
			AccountNumber: accountNumber,
			Amount:        amount,
			OldBalance:    oldBalance,
			NewBalance:    newBalance,
		}}, nil
	})
}
