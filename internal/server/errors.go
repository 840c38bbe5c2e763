package server

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyContent        = errors.New("message content is empty")
	ErrContentTooLong      = errors.New("message content too long")
	ErrInvalidEncoding     = errors.New("message content is not valid UTF-8")
	ErrInvalidParticipants = errors.New("a channel needs two distinct, positive user ids")
	ErrUnknownUser         = errors.New("unknown user")
	ErrNotParticipant      = errors.New("user is not a participant of the channel")
	ErrShuttingDown        = errors.New("chat server is shutting down")
	ErrSendBufferFull      = errors.New("send buffer full")
	ErrConnectionClosed    = errors.New("connection closed")
)

// ValidationError reports a request rejected before any side effect.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StorageError reports a record store failure or timeout. When returned by
// Relay the message may or may not have been written.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %s", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DeliveryError reports that one subscriber could not be handed a message.
// It never fails the relay that produced it.
type DeliveryError struct {
	ConnId    string
	ChannelId string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s on %s: %s", e.ConnId, e.ChannelId, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
