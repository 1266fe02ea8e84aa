package customer

import "github.com/codewandler/custmgr-go/core/es"

// AggregateType names the customer event stream.
const AggregateType = "customer"

// The closed set of event kind discriminants. These are persisted in the
// event_kind column; renaming one breaks replay of existing streams.
const (
	KindInitialized             = "Initialized"
	KindCustomerCreated         = "CustomerCreated"
	KindAccountAdded            = "AccountAdded"
	KindAccountRemoved          = "AccountRemoved"
	KindMailingAddressChanged   = "MailingAddressChanged"
	KindResidencePrimaryChanged = "ResidencePrimaryChanged"
	KindResidenceSpouseChanged  = "ResidenceSpouseChanged"
	KindSpouseChanged           = "SpouseChanged"
	KindSpouseRemoved           = "SpouseRemoved"
	KindTransactionPosted       = "TransactionPosted"
)

type (
	// Initialized is the structural marker stored at version 0 on a
	// stream's first-ever append. It defines the zero state and is never
	// raised by a command.
	Initialized struct {
		es.EventBase
		CustomerID string `json:"customer_id"`
	}

	CustomerCreated struct {
		es.EventBase
		PrimaryAccountHolder Person  `json:"primary_account_holder"`
		MailingAddress       Address `json:"mailing_address"`
	}

	AccountAdded struct {
		es.EventBase
		Account Account `json:"account"`
	}

	AccountRemoved struct {
		es.EventBase
		AccountNumber string `json:"account_number"`
	}

	MailingAddressChanged struct {
		es.EventBase
		Address Address `json:"address"`
	}

	ResidencePrimaryChanged struct {
		es.EventBase
		Address Address `json:"address"`
	}

	ResidenceSpouseChanged struct {
		es.EventBase
		Address Address `json:"address"`
	}

	SpouseChanged struct {
		es.EventBase
		Spouse Person `json:"spouse"`
	}

	SpouseRemoved struct {
		es.EventBase
	}

	// TransactionPosted carries the balance computed at command time. The
	// reducer trusts NewBalance; balance arithmetic and the funds check
	// happen exactly once, before the event is created.
	TransactionPosted struct {
		es.EventBase
		AccountNumber string `json:"account_number"`
		Amount        int64  `json:"amount"`
		OldBalance    int64  `json:"old_balance"`
		NewBalance    int64  `json:"new_balance"`
	}
)

func (*Initialized) Kind() string             { return KindInitialized }
func (*CustomerCreated) Kind() string         { return KindCustomerCreated }
func (*AccountAdded) Kind() string            { return KindAccountAdded }
func (*AccountRemoved) Kind() string          { return KindAccountRemoved }
func (*MailingAddressChanged) Kind() string   { return KindMailingAddressChanged }
func (*ResidencePrimaryChanged) Kind() string { return KindResidencePrimaryChanged }
func (*ResidenceSpouseChanged) Kind() string  { return KindResidenceSpouseChanged }
func (*SpouseChanged) Kind() string           { return KindSpouseChanged }
func (*SpouseRemoved) Kind() string           { return KindSpouseRemoved }
func (*TransactionPosted) Kind() string       { return KindTransactionPosted }

// RegisterEvents registers the customer event set with a registry.
func RegisterEvents(r es.Registrar) {
	es.RegisterEvents(r,
		es.EventOf[Initialized](),
		es.EventOf[CustomerCreated](),
		es.EventOf[AccountAdded](),
		es.EventOf[AccountRemoved](),
		es.EventOf[MailingAddressChanged](),
		es.EventOf[ResidencePrimaryChanged](),
		es.EventOf[ResidenceSpouseChanged](),
		es.EventOf[SpouseChanged](),
		es.EventOf[SpouseRemoved](),
		es.EventOf[TransactionPosted](),
	)
}
