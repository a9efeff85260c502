package sqlc

import (
	"database/sql"
)

type CachedItem struct {
	Key   string
	Value string
}

type Channel struct {
	FundingTxid    string
	ShortChannelID sql.NullString
	State          string
	SpendableMsat  int64
	ReceivableMsat int64
	ClosedAt       sql.NullInt64
	FundingOutnum  sql.NullInt64
	AliasLocal     sql.NullString
	AliasRemote    sql.NullString
	ClosingTxid    sql.NullString
}

type Payment struct {
	ID          string
	PaymentType string
	PaymentTime int64
	AmountMsat  int64
	FeeMsat     int64
	Status      string
	Description sql.NullString
	Details     sql.NullString
}

type PaymentsExternalInfo struct {
	PaymentID             string
	LnurlSuccessAction    sql.NullString
	LnAddress             sql.NullString
	LnurlMetadata         sql.NullString
	LnurlWithdrawEndpoint sql.NullString
}

type Setting struct {
	Key   string
	Value string
}

type Swap struct {
	BitcoinAddress    string
	CreatedAt         int64
	LockHeight        int64
	PaymentHash       []byte
	Preimage          []byte
	PrivateKey        []byte
	PublicKey         []byte
	SwapperPublicKey  []byte
	Script            []byte
	MinAllowedDeposit int64
	MaxAllowedDeposit int64
}

type SwapRefund struct {
	BitcoinAddress string
	RefundTxID     string
}

type SwapsFee struct {
	BitcoinAddress     string
	CreatedAt          int64
	ChannelOpeningFees string
}

type SwapsInfo struct {
	BitcoinAddress   string
	Status           int64
	Bolt11           sql.NullString
	PaidMsat         int64
	UnconfirmedSats  int64
	UnconfirmedTxIds string
	ConfirmedSats    int64
	ConfirmedTxIds   string
	LastRedeemError  sql.NullString
	ConfirmedAt      sql.NullInt64
}
