package providers

import (
	"github.com/JonMunkholm/statements/internal/core"
)

func init() {
	registerRevolut()
}

// RevolutTransaction is one row of a Revolut personal account statement.
// Dates are Unix epoch seconds.
type RevolutTransaction struct {
	TransactionType string  `json:"transaction_type"`
	Amount          float64 `json:"amount"`
	Balance         float64 `json:"balance"`
	Product         string  `json:"product"`
	State           string  `json:"state"`
	StartedDate     int64   `json:"started_date"`
	Currency        string  `json:"currency"`
	CompletedDate   int64   `json:"completed_date"`
	Fee             float64 `json:"fee"`
	Description     string  `json:"description"`
}

var revolutFields = []core.FieldSpec{
	{Name: "transaction_type", Type: core.FieldText, Aliases: []string{"type"}},
	{Name: "amount", Type: core.FieldNumeric},
	{Name: "balance", Type: core.FieldNumeric},
	{Name: "product", Type: core.FieldText},
	{Name: "state", Type: core.FieldText},
	{Name: "started_date", Type: core.FieldTimestamp},
	{Name: "currency", Type: core.FieldText},
	{Name: "completed_date", Type: core.FieldTimestamp},
	{Name: "fee", Type: core.FieldNumeric},
	{Name: "description", Type: core.FieldText},
}

func registerRevolut() {
	core.RegisterCaster(core.CasterDefinition{
		Info: core.CasterInfo{
			Provider: core.ProviderRevolut,
			Label:    "Revolut personal statement",
		},
		FieldSpecs: revolutFields,
		Cast:       castRevolut,
	})
}

func castRevolut(record core.RawRecord) (any, error) {
	raw, err := core.CheckShape(record, revolutFields)
	if err != nil {
		return nil, err
	}

	var tx RevolutTransaction
	tx.TransactionType = raw["transaction_type"]
	tx.Product = raw["product"]
	tx.State = raw["state"]
	tx.Currency = raw["currency"]
	tx.Description = raw["description"]

	if tx.Amount, err = core.ToFloat("amount", raw["amount"]); err != nil {
		return nil, err
	}
	if tx.Balance, err = core.ToFloat("balance", raw["balance"]); err != nil {
		return nil, err
	}
	if tx.Fee, err = core.ToFloat("fee", raw["fee"]); err != nil {
		return nil, err
	}
	if tx.StartedDate, err = core.ToUnix("started_date", raw["started_date"]); err != nil {
		return nil, err
	}
	if tx.CompletedDate, err = core.ToUnix("completed_date", raw["completed_date"]); err != nil {
		return nil, err
	}

	return tx, nil
}
