package models

// Actor is the guild member driving a manual operation
type Actor struct {
	ID      string
	RoleIDs []string
	// Operator acts with the bot's own authority, as the command line tool does,
	// so member role positions do not limit what it may fix
	Operator bool
}

// FixSession is the result of starting a guarded fix: the diagnosis, the plan and,
// when the plan has actions, the confirmation operation awaiting the actor
type FixSession struct {
	Diagnosis *Diagnosis     `json:"diagnosis"`
	Plan      Plan           `json:"plan"`
	Operation *GateOperation `json:"operation,omitempty"`
}
