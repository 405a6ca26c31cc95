package main

import "strings"

// Report is printed as JSON at the end of a run.
type Report struct {
	Scenario           string          `json:"scenario,omitempty"`
	RunID              string          `json:"runId"`
	Network            string          `json:"network"`
	ProgramID          string          `json:"programId"`
	DelegatedAddress   string          `json:"delegatedAddress"`
	GenesisRoot        string          `json:"genesisRoot"`
	Transactions       []TxReport      `json:"transactions"`
	Balances           []BalanceReport `json:"balances"`
	IndexedSettlements int             `json:"indexedSettlements"`
	IndexerFailures    int             `json:"indexerFailures"`
	Mismatches         int             `json:"mismatches"`
}

// TxReport is the outcome of one scenario transaction.
type TxReport struct {
	Name        string             `json:"name"`
	ID          string             `json:"id,omitempty"`
	At          string             `json:"at"`
	Epoch       uint64             `json:"epoch"`
	Status      string             `json:"status"`
	Error       string             `json:"error,omitempty"`
	Root        string             `json:"root,omitempty"`
	Settlements []SettlementReport `json:"settlements,omitempty"`
	Mismatch    bool               `json:"mismatch,omitempty"`
}

// SettlementReport is a settlement record with names and whole-unit amounts.
type SettlementReport struct {
	EventID           uint64 `json:"eventId"`
	Maker             string `json:"maker"`
	TakerMint         string `json:"takerMint"`
	MakerMint         string `json:"makerMint"`
	FilledTakerAmount string `json:"filledTakerAmount"`
	FilledMakerAmount string `json:"filledMakerAmount"`
}

// BalanceReport is the final state of a named account.
type BalanceReport struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Native  string `json:"native"`
	Asset   string `json:"asset,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Closed  bool   `json:"closed,omitempty"`
}

const (
	statusCommitted = "committed"
	statusRejected  = "rejected"
)

// resolve records the execution outcome against the expected error, matched
// as a case-insensitive substring.
func (r *TxReport) resolve(expectError string, err error) {
	expectError = strings.TrimSpace(expectError)
	if err == nil {
		r.Status = statusCommitted
		r.Mismatch = expectError != ""
		return
	}
	r.Status = statusRejected
	r.Error = err.Error()
	if expectError == "" {
		r.Mismatch = true
		return
	}
	r.Mismatch = !strings.Contains(strings.ToLower(r.Error), strings.ToLower(expectError))
}
