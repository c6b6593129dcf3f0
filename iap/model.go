package iap

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("iap not found")
	ErrClosed   = errors.New("iap manager closed")
)

type ProductKind uint8

const (
	ProductKindUnknown ProductKind = iota
	ProductKindConsumable
	ProductKindNonConsumable
	ProductKindAutoRenewable
	ProductKindNonRenewable
)

func (k ProductKind) String() string {
	switch k {
	case ProductKindConsumable:
		return "consumable"
	case ProductKindNonConsumable:
		return "non_consumable"
	case ProductKindAutoRenewable:
		return "auto_renewable"
	case ProductKindNonRenewable:
		return "non_renewable"
	default:
		return "unknown"
	}
}

// Product describes a purchasable item as reported by the platform store.
type Product struct {
	ID           string
	DisplayName  string
	Description  string
	Price        decimal.Decimal
	CurrencyCode string
	Kind         ProductKind
}

func (p *Product) Clone() *Product {
	return &Product{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		Description:  p.Description,
		Price:        p.Price,
		CurrencyCode: p.CurrencyCode,
		Kind:         p.Kind,
	}
}
