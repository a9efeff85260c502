package cln

import (
	"errors"

	"github.com/breez/breez-sdk-go/nodeapi"
)

// CLN channel states as reported by listpeerchannels.
const (
	StateOpeningd                = "OPENINGD"
	StateChanneldAwaitingLockin  = "CHANNELD_AWAITING_LOCKIN"
	StateChanneldNormal          = "CHANNELD_NORMAL"
	StateChanneldShuttingDown    = "CHANNELD_SHUTTING_DOWN"
	StateClosingdSigexchange     = "CLOSINGD_SIGEXCHANGE"
	StateClosingdComplete        = "CLOSINGD_COMPLETE"
	StateAwaitingUnilateral      = "AWAITING_UNILATERAL"
	StateFundingSpendSeen        = "FUNDING_SPEND_SEEN"
	StateOnchain                 = "ONCHAIN"
	StateDualopendOpenInit       = "DUALOPEND_OPEN_INIT"
	StateDualopendAwaitingLockin = "DUALOPEND_AWAITING_LOCKIN"
)

var (
	errMissingShortChannelID = errors.New("short_channel_id is missing")
	errMissingFinalToUs      = errors.New("final_to_us_msat is missing")
)

// channelState maps a CLN state onto the wallet's view of the channel.
// Anything that isn't opening, open or fully on chain is closing.
func channelState(state string) nodeapi.ChannelState {
	switch state {
	case StateOpeningd, StateChanneldAwaitingLockin,
		StateDualopendOpenInit, StateDualopendAwaitingLockin:

		return nodeapi.ChannelStatePendingOpen

	case StateChanneldNormal:
		return nodeapi.ChannelStateOpened

	case StateOnchain:
		return nodeapi.ChannelStateClosed

	default:
		return nodeapi.ChannelStatePendingClose
	}
}

// closeable is true for the states in which a mutual close may be
// requested.
func closeable(state string) bool {
	switch state {
	case StateOpeningd, StateChanneldAwaitingLockin, StateChanneldNormal,
		StateChanneldShuttingDown, StateFundingSpendSeen,
		StateDualopendOpenInit, StateDualopendAwaitingLockin:

		return true

	default:
		return false
	}
}

func channelFromPeerChannel(c *PeerChannel) nodeapi.Channel {
	channel := nodeapi.Channel{
		FundingTxid:    c.FundingTxID,
		ShortChannelID: c.ShortChannelID,
		State:          channelState(c.State),
		SpendableMsat:  c.SpendableMsat.MsatOrZero(),
		ReceivableMsat: c.ReceivableMsat.MsatOrZero(),
		FundingOutnum:  c.FundingOutnum,
	}
	if c.Alias != nil {
		channel.AliasLocal = c.Alias.Local
		channel.AliasRemote = c.Alias.Remote
	}

	return channel
}

// channelFromClosed converts a channel CLN only remembers in its closed
// channel list. closed_at and closing_txid are left for the store to fill
// in.
func channelFromClosed(c *ClosedChannel) (nodeapi.Channel, error) {
	if c.ShortChannelID == "" {
		return nodeapi.Channel{}, errMissingShortChannelID
	}
	if c.FinalToUsMsat == nil {
		return nodeapi.Channel{}, errMissingFinalToUs
	}

	outnum := c.FundingOutnum
	channel := nodeapi.Channel{
		FundingTxid:    c.FundingTxID,
		ShortChannelID: c.ShortChannelID,
		State:          nodeapi.ChannelStateClosed,
		SpendableMsat:  uint64(*c.FinalToUsMsat),
		FundingOutnum:  &outnum,
	}
	if c.Alias != nil {
		channel.AliasLocal = c.Alias.Local
		channel.AliasRemote = c.Alias.Remote
	}

	return channel, nil
}

// forgottenChannels returns the closed channels that are no longer part of
// the peer channel list. Channels that can't be converted are skipped.
func forgottenChannels(closed []ClosedChannel,
	known []PeerChannel) []nodeapi.Channel {

	knownTxids := make(map[string]struct{}, len(known))
	for _, c := range known {
		knownTxids[c.FundingTxID] = struct{}{}
	}

	var forgotten []nodeapi.Channel
	for i := range closed {
		if _, ok := knownTxids[closed[i].FundingTxID]; ok {
			continue
		}

		channel, err := channelFromClosed(&closed[i])
		if err != nil {
			log.Warnf("Skipping closed channel %v: %v",
				closed[i].FundingTxID, err)

			continue
		}

		forgotten = append(forgotten, channel)
	}

	return forgotten
}
