package cln

import (
	"context"
	"fmt"
	"strings"

	"github.com/breez/breez-sdk-go/nodeapi"
	"github.com/davecgh/go-spew/spew"
	"github.com/niftynei/glightning/jrpc2"
)

// Commands accepted by ExecuteCommand.
const (
	CmdCloseAllChannels = "closeallchannels"
	CmdGetInfo          = "getinfo"
	CmdListFunds        = "listfunds"
	CmdListInvoices     = "listinvoices"
	CmdListPayments     = "listpayments"
	CmdListPeers        = "listpeers"
	CmdListPeerChannels = "listpeerchannels"
)

// dumpConfig renders command results without pointer addresses so the
// output is stable.
var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// ExecuteCommand runs one of the whitelisted read only node commands, or
// closes all channels, and returns a dump of the result.
func (n *Node) ExecuteCommand(ctx context.Context, command string) (string,
	error) {

	var (
		method jrpc2.Method
		resp   interface{}
	)

	switch strings.TrimSpace(command) {
	case CmdGetInfo:
		method, resp = &GetInfoRequest{}, &GetInfoResponse{}

	case CmdListFunds:
		method, resp = &ListFundsRequest{}, &ListFundsResponse{}

	case CmdListInvoices:
		method, resp = &ListInvoicesRequest{}, &ListInvoicesResponse{}

	case CmdListPayments:
		method, resp = &ListPaysRequest{}, &ListPaysResponse{}

	case CmdListPeers:
		method, resp = &ListPeersRequest{}, &ListPeersResponse{}

	case CmdListPeerChannels:
		method, resp = &ListPeerChannelsRequest{},
			&ListPeerChannelsResponse{}

	case CmdCloseAllChannels:
		return n.closeAllChannels(ctx)

	default:
		return "", nodeapi.NewError(
			nodeapi.ErrGeneric,
			fmt.Errorf("command not found: %s", command),
		)
	}

	if err := n.call(ctx, method, resp); err != nil {
		return "", nodeapi.Connectivity(err)
	}

	return dumpConfig.Sdump(resp), nil
}

func (n *Node) closeAllChannels(ctx context.Context) (string, error) {
	var peers ListPeersResponse
	if err := n.call(ctx, &ListPeersRequest{}, &peers); err != nil {
		return "", nodeapi.Connectivity(err)
	}

	for _, p := range peers.Peers {
		if _, err := n.ClosePeerChannels(ctx, p.ID); err != nil {
			return "", err
		}
	}

	return "All channels were closed", nil
}
