package domain

import "time"

// WorkContext is a named area of work that sessions are tracked under, such
// as a project. Names are unique; creating an existing name returns it.
type WorkContext struct {
	ContextID   string    `json:"context_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
}

// PromptText renders the context for an analyzer prompt.
func (c *WorkContext) PromptText() string {
	if c.Description == "" {
		return c.Name
	}
	return c.Name + ": " + c.Description
}
