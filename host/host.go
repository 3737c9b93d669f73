package host

import (
	"go.uber.org/zap"
)

// Object is a reference counted host object.
// Kept references and parent edges hold one count each.
type Object interface {
	IncRef()
	DecRef()
}

// ErrorChannel holds the host's pending error, if any.
type ErrorChannel struct {
	err error
	log *zap.Logger
}

// NewErrorChannel creates an empty error channel.
func NewErrorChannel() *ErrorChannel {
	return &ErrorChannel{log: zap.NewNop()}
}

// WithLogger returns the channel after attaching l for debug output.
func (c *ErrorChannel) WithLogger(l *zap.Logger) *ErrorChannel {
	if l != nil {
		c.log = l
	}
	return c
}

// Set records err as the pending error, replacing any previous one.
func (c *ErrorChannel) Set(err error) {
	if err == nil {
		return
	}
	if c.err != nil {
		c.log.Debug("replacing pending host error", zap.NamedError("previous", c.err), zap.Error(err))
	}
	c.err = err
}

// Occurred reports whether an error is pending.
func (c *ErrorChannel) Occurred() bool {
	return c.err != nil
}

// Err returns the pending error without clearing it.
func (c *ErrorChannel) Err() error {
	return c.err
}

// Fetch returns the pending error and clears it.
func (c *ErrorChannel) Fetch() error {
	err := c.err
	c.err = nil
	return err
}

// Clear discards the pending error.
func (c *ErrorChannel) Clear() {
	c.err = nil
}
