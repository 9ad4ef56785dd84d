package model

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"
)

// CreateID returns a base58 encoded random uuid, short enough to sit in URLs.
func CreateID() string {
	id := uuid.New()
	return base58.Encode(id[:])
}

func NewTweetID() TweetID {
	return TweetID(CreateID())
}

func NewDeliveryID() DeliveryID {
	return DeliveryID(CreateID())
}

func StringPtr(s string) *string {
	return &s
}
