// Package provisioning describes the remote node provisioning service and
// implements a gRPC client for it.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrProvisioning wraps every failure of the remote service.
// Calls are never retried here.
var ErrProvisioning = errors.New("provisioning service error")

// DefaultOfferDescription is used when the caller gives no description
const DefaultOfferDescription = "Bolt12 offer"

// Service registers and recovers nodes from a binary seed and opens
// authenticated sessions from a stored device credential.
type Service interface {
	Register(ctx context.Context, seed []byte) ([]byte, error)
	Recover(ctx context.Context, seed []byte) ([]byte, error)
	Authenticate(ctx context.Context, credential []byte) (Session, error)
}

// Session is a node connection authenticated with a device credential
type Session interface {
	GetInfo(ctx context.Context) (*NodeInfo, error)
	GetBalance(ctx context.Context) (*Balance, error)
	CreateOffer(ctx context.Context, req OfferRequest) (*Offer, error)
}

// NodeInfo describes a running node
type NodeInfo struct {
	NodeID              string
	Alias               string
	Color               string
	Network             string
	NumPeers            uint32
	NumPendingChannels  uint32
	NumActiveChannels   uint32
	NumInactiveChannels uint32
	BlockHeight         uint32
	FeesCollectedMsat   uint64
}

// Balance holds spendable funds in millisatoshi
type Balance struct {
	OnchainMsat uint64
	ChannelMsat uint64
}

// TotalMsat returns on-chain plus channel funds
func (b Balance) TotalMsat() uint64 {
	return b.OnchainMsat + b.ChannelMsat
}

// OfferRequest describes a BOLT12 offer to create.
// Nil or zero AmountMsat means any amount.
type OfferRequest struct {
	AmountMsat  *uint64
	Description string
}

// Offer is a created BOLT12 offer
type Offer struct {
	AmountMsat  *uint64
	Bolt12      string
	OfferID     string
	Description string
	Active      bool
}

// FundOutput is an on-chain output reported by the node
type FundOutput struct {
	AmountMsat uint64
	Confirmed  bool
}

// FundChannel is a channel reported by the node
type FundChannel struct {
	OurAmountMsat uint64
}

// SummarizeFunds sums confirmed outputs and our side of every channel
func SummarizeFunds(outputs []FundOutput, channels []FundChannel) Balance {
	var b Balance
	for _, o := range outputs {
		if o.Confirmed {
			b.OnchainMsat += o.AmountMsat
		}
	}
	for _, c := range channels {
		b.ChannelMsat += c.OurAmountMsat
	}
	return b
}

// OfferAmount renders the amount the way the node expects it: "any" or "<n>msat"
func OfferAmount(amountMsat *uint64) string {
	if amountMsat == nil || *amountMsat == 0 {
		return "any"
	}
	return strconv.FormatUint(*amountMsat, 10) + "msat"
}

// OfferLabel builds a unique label for a new offer
func OfferLabel(now time.Time) string {
	return fmt.Sprintf("offer_%d", now.UnixNano())
}
