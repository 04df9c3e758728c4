package model

import "time"

// Decision is an immutable ledger entry recording one stage decision.
type Decision struct {
	ID        string    `json:"id"`
	RequestID int64     `json:"requestId"`
	Stage     Stage     `json:"stage"`
	Label     Label     `json:"decision"`
	Notes     string    `json:"notes,omitempty"`
	Actor     string    `json:"actor"`
	DecidedAt time.Time `json:"decidedAt"`
}

// ViaEmail returns true when the decision was driven by an email action link.
func (d *Decision) ViaEmail() bool {
	return d != nil && d.Actor == ViaEmailActor
}
