package breezdb

import (
	"context"
	"testing"
	"time"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

// TestUpdateChannels asserts channels are upserted by funding txid, that
// vanished channels are closed and that the close time sticks.
func TestUpdateChannels(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)

	testClock := clock.NewTestClock(time.Unix(1000, 0))
	db.clock = testClock

	outnum := uint32(1)
	open := nodeapi.Channel{
		FundingTxid:    "aaaa",
		ShortChannelID: "1x1x1",
		State:          nodeapi.ChannelStateOpened,
		SpendableMsat:  1000,
		ReceivableMsat: 2000,
		FundingOutnum:  &outnum,
		AliasRemote:    "9x9x9",
	}
	pending := nodeapi.Channel{
		FundingTxid: "bbbb",
		State:       nodeapi.ChannelStatePendingOpen,
	}

	require.NoError(t, db.UpdateChannels(
		ctx, []nodeapi.Channel{open, pending},
	))

	channels, err := db.FetchChannels(ctx)
	require.NoError(t, err)
	require.Equal(t, []nodeapi.Channel{open, pending}, channels)

	// The pending channel confirms, the open one disappears.
	testClock.SetTime(time.Unix(2000, 0))
	pending.State = nodeapi.ChannelStateOpened
	pending.ShortChannelID = "2x2x2"
	require.NoError(t, db.UpdateChannels(ctx, []nodeapi.Channel{pending}))

	channels, err = db.FetchChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)

	require.Equal(t, nodeapi.ChannelStateClosed, channels[0].State)
	require.EqualValues(t, 2000, channels[0].ClosedAt)
	require.Equal(t, pending, channels[1])

	// The closed channel is reported again later with a closing txid, the
	// original close time is kept.
	testClock.SetTime(time.Unix(3000, 0))
	open.State = nodeapi.ChannelStateClosed
	open.ClosingTxid = "cccc"
	require.NoError(t, db.UpdateChannels(
		ctx, []nodeapi.Channel{open, pending},
	))

	channels, err = db.FetchChannels(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2000, channels[0].ClosedAt)
	require.Equal(t, "cccc", channels[0].ClosingTxid)
}
