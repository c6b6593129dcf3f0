package iap

type ChangeKind uint8

const (
	ChangeKindUnknown ChangeKind = iota
	ChangeKindPurchases
	ChangeKindConsumables
	ChangeKindCatalog
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeKindPurchases:
		return "purchases"
	case ChangeKindConsumables:
		return "consumables"
	case ChangeKindCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// Change signals that manager state was mutated and should be re-read.
// ProductID is empty for catalog changes.
type Change struct {
	Kind      ChangeKind
	ProductID string
}

// Notifier receives a Change after every mutation of purchases, consumable
// balances or the product catalog. *event.Bus[Change] satisfies it.
type Notifier interface {
	Notify(change Change)
}

// NotifierFunc is an adapter to allow the use of ordinary functions as
// Notifiers.
type NotifierFunc func(Change)

// Notify calls f(change).
func (f NotifierFunc) Notify(change Change) {
	f(change)
}
