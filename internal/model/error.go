package model

import (
	"errors"
	"fmt"
)

var ErrorNotFound = errors.New("not found")
var ErrorNotConnected = errors.New("twitter account not connected")
var ErrorConfiguration = errors.New("configuration error")
var ErrorPassInProgress = errors.New("delivery pass already in progress")

// NotFoundError names the record that could not be resolved. It matches ErrorNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrorNotFound
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}
