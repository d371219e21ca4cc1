package app

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks a CLI command that may mutate the database.
// It lives in memory with ID=0 until the command first writes, at which
// point it is journaled and gets an ID from the operations table.
type Operation struct {
	ID         int64
	Name       string
	Parameters string // JSON array of the command arguments
	Status     string
}

// NewOperation creates an in-memory operation for the named command.
func NewOperation(name string, args []string) *Operation {
	if args == nil {
		args = []string{}
	}
	params, _ := json.Marshal(args)
	return &Operation{
		Name:       name,
		Parameters: string(params),
		Status:     StatusSuccess,
	}
}

// Persisted reports whether the operation was journaled.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed. It is recorded when the app closes.
func (op *Operation) Fail() {
	op.Status = StatusError
}
