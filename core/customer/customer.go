// Package customer holds the customer domain: the derived state, the
// closed event set, and the reducer that folds one into the other.
//
// Customer state is never constructed directly by callers; it exists only
// as the output of replaying the customer's event stream.
package customer

import (
	"time"

	"github.com/samber/lo"

	"github.com/codewandler/custmgr-go/core/es"
)

type Address struct {
	Street          string `json:"street" validate:"required"`
	City            string `json:"city" validate:"required"`
	StateOrProvince string `json:"state_or_province"`
	PostalCode      string `json:"postal_code"`
	Country         string `json:"country"`
}

type Person struct {
	FullName    string    `json:"full_name" validate:"required"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name" validate:"required"`
	Residence   Address   `json:"residence"`
	TaxID       string    `json:"tax_id"`
	DateOfBirth time.Time `json:"date_of_birth"`
}

// Account is a sub-account of one customer. Balances are integer cents.
type Account struct {
	AccountNumber string `json:"account_number" validate:"required"`
	Balance       int64  `json:"balance"`
}

// Customer is the derived projection of one customer aggregate. Accounts
// preserve insertion order and are keyed by account number.
type Customer struct {
	CustomerID           string    `json:"customer_id"`
	PrimaryAccountHolder Person    `json:"primary_account_holder"`
	Spouse               *Person   `json:"spouse,omitempty"`
	MailingAddress       Address   `json:"mailing_address"`
	Accounts             []Account `json:"accounts"`
}

// New returns the zero state for a customer id. The id comes from the
// construction context, not from any event.
func New(id string) *Customer {
	return &Customer{CustomerID: id, Accounts: []Account{}}
}

// Account finds a sub-account by account number.
func (c *Customer) Account(number string) (Account, bool) {
	return lo.Find(c.Accounts, func(a Account) bool {
		return a.AccountNumber == number
	})
}

// Apply folds one event into the state. It is pure, deterministic and
// total: every known kind has a transition and the wildcard arm makes
// unknown kinds an explicit no-op so streams written by newer code stay
// replayable. Apply never fails.
func (c *Customer) Apply(evt es.Event) {
	switch e := evt.(type) {
	case *Initialized:
		// the zero state, nothing to fold

	case *CustomerCreated:
		// CustomerID is already set from construction context
		c.PrimaryAccountHolder = e.PrimaryAccountHolder
		c.MailingAddress = e.MailingAddress

	case *AccountAdded:
		// idempotent: a duplicate account number on replay is dropped
		exists := lo.ContainsBy(c.Accounts, func(a Account) bool {
			return a.AccountNumber == e.Account.AccountNumber
		})
		if !exists {
			c.Accounts = append(c.Accounts, e.Account)
		}

	case *AccountRemoved:
		c.Accounts = lo.Reject(c.Accounts, func(a Account, _ int) bool {
			return a.AccountNumber == e.AccountNumber
		})

	case *MailingAddressChanged:
		c.MailingAddress = e.Address

	case *ResidencePrimaryChanged:
		c.PrimaryAccountHolder.Residence = e.Address

	case *ResidenceSpouseChanged:
		if c.Spouse != nil {
			c.Spouse.Residence = e.Address
		}

	case *SpouseChanged:
		spouse := e.Spouse
		c.Spouse = &spouse

	case *SpouseRemoved:
		c.Spouse = nil

	case *TransactionPosted:
		// trusts the balance computed at command time, no re-arithmetic
		for i := range c.Accounts {
			if c.Accounts[i].AccountNumber == e.AccountNumber {
				c.Accounts[i].Balance = e.NewBalance
			}
		}

	default:
		// unknown kind: deliberate no-op for forward compatibility
	}
}

var _ es.State = (*Customer)(nil)
