package dto

import "github.com/shopspring/decimal"

// OraclePrice is the wire shape served by the external price oracle.
type OraclePrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}
