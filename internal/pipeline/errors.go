package pipeline

import "errors"

var (
	errNoMessages    = errors.New("payload must be a non-empty array of messages")
	errNoUserMessage = errors.New("conversation must contain at least one user message")
)
