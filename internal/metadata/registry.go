package metadata

import "github.com/btc-parachain/chainrpc/pkg/scale"

// Pallet indices on the parachain. Kept in one place because dispatch error
// and event decoding refer back to them.
const (
	PalletIndexSystem        = uint8(0)
	PalletIndexSecurity      = uint8(20)
	PalletIndexOracle        = uint8(21)
	PalletIndexVaultRegistry = uint8(22)
	PalletIndexIssue         = uint8(23)
	PalletIndexRedeem        = uint8(24)
	PalletIndexReplace       = uint8(25)
)

func accountID() *scale.TypeDescriptor { return scale.FixedBytes(32) }
func h256() *scale.TypeDescriptor      { return scale.FixedBytes(32) }

func accountInfo() *scale.TypeDescriptor {
	return scale.StructOf(
		scale.NewField("nonce", scale.U32()),
		scale.NewField("consumers", scale.U32()),
		scale.NewField("providers", scale.U32()),
		scale.NewField("data", scale.StructOf(
			scale.NewField("free", scale.U128()),
			scale.NewField("reserved", scale.U128()),
		)),
	)
}

func vaultRecord() *scale.TypeDescriptor {
	return scale.StructOf(
		scale.NewField("id", accountID()),
		scale.NewField("wallet", scale.Bytes()),
		scale.NewField("collateral", scale.U128()),
		scale.NewField("issued_tokens", scale.U128()),
		scale.NewField("to_be_issued_tokens", scale.U128()),
		scale.NewField("to_be_redeemed_tokens", scale.U128()),
		scale.NewField("banned_until", scale.OptionOf(scale.U32())),
		scale.NewField("status", scale.EnumOf(
			scale.NewVariant(0, "Active"),
			scale.NewVariant(1, "Liquidated"),
			scale.NewVariant(2, "CommittedTheft"),
		)),
	)
}

// DefaultRegistry is the schema this client was built against. The node's
// advertised metadata replaces it at connect time; it remains the reference
// for offline encoding and for tests.
func DefaultRegistry() *Metadata {
	return &Metadata{
		SpecVersion: 17,
		TxVersion:   2,
		Pallets: []Pallet{
			{
				Name:  "system",
				Index: PalletIndexSystem,
				Events: []EventDef{
					{Name: "ExtrinsicSuccess", Index: 0},
					{Name: "ExtrinsicFailed", Index: 1, Fields: []scale.Field{
						scale.NewField("error", DispatchErrorDescriptor()),
					}},
				},
				Storage: []StorageEntry{
					{Name: "Account", Hasher: HasherBlake2_128Concat, Key: accountID(), Value: accountInfo()},
					// Events is served raw; its type closes over the whole
					// registry (EventRecordsDescriptor).
					{Name: "Events", Hasher: HasherIdentity},
					{Name: "Number", Value: scale.U32()},
				},
			},
			{
				Name:  "security",
				Index: PalletIndexSecurity,
				Events: []EventDef{
					{Name: "StatusChanged", Index: 0, Fields: []scale.Field{
						scale.NewField("status", scale.EnumOf(
							scale.NewVariant(0, "Running"),
							scale.NewVariant(1, "Shutdown"),
							scale.NewVariant(2, "Error"),
						)),
					}},
				},
				Errors: []ErrorDef{{Name: "ParachainShutdown", Index: 0}},
				Storage: []StorageEntry{
					{Name: "ParachainStatus", Value: scale.EnumOf(
						scale.NewVariant(0, "Running"),
						scale.NewVariant(1, "Shutdown"),
						scale.NewVariant(2, "Error"),
					)},
				},
			},
			{
				Name:  "oracle",
				Index: PalletIndexOracle,
				Calls: []CallDef{
					{Name: "feed_values", Index: 0, Args: []scale.Field{
						scale.NewField("values", scale.VecOf(scale.StructOf(
							scale.NewField("key", scale.Bytes()),
							scale.NewField("value", scale.U128()),
						))),
					}},
				},
				Events: []EventDef{
					{Name: "FeedValues", Index: 0, Fields: []scale.Field{
						scale.NewField("oracle", accountID()),
					}},
				},
				Errors: []ErrorDef{
					{Name: "InvalidOracleSource", Index: 0},
					{Name: "MissingExchangeRate", Index: 1},
				},
				Storage: []StorageEntry{
					{Name: "ExchangeRate", Value: scale.U128()},
					{Name: "ValidUntil", Value: scale.U32()},
				},
			},
			{
				Name:  "vault_registry",
				Index: PalletIndexVaultRegistry,
				Calls: []CallDef{
					{Name: "register_vault", Index: 0, Args: []scale.Field{
						scale.NewField("collateral", scale.Compact()),
						scale.NewField("btc_address", scale.Bytes()),
					}},
					{Name: "deposit_collateral", Index: 1, Args: []scale.Field{
						scale.NewField("amount", scale.Compact()),
					}},
					{Name: "withdraw_collateral", Index: 2, Args: []scale.Field{
						scale.NewField("amount", scale.Compact()),
					}},
				},
				Events: []EventDef{
					{Name: "RegisterVault", Index: 0, Fields: []scale.Field{
						scale.NewField("vault", accountID()),
						scale.NewField("collateral", scale.U128()),
					}},
					{Name: "LiquidateVault", Index: 1, Fields: []scale.Field{
						scale.NewField("vault", accountID()),
					}},
				},
				Errors: []ErrorDef{
					{Name: "InsufficientCollateral", Index: 0},
					{Name: "VaultAlreadyRegistered", Index: 1},
					{Name: "VaultNotFound", Index: 2},
				},
				Storage: []StorageEntry{
					{Name: "Vaults", Hasher: HasherBlake2_128Concat, Key: accountID(), Value: vaultRecord()},
					{Name: "TotalCollateral", Value: scale.U128()},
				},
			},
			{
				Name:  "issue",
				Index: PalletIndexIssue,
				Calls: []CallDef{
					{Name: "request_issue", Index: 0, Args: []scale.Field{
						scale.NewField("amount", scale.Compact()),
						scale.NewField("vault", accountID()),
					}},
					{Name: "execute_issue", Index: 1, Args: []scale.Field{
						scale.NewField("issue_id", h256()),
						scale.NewField("tx_proof", scale.Bytes()),
					}},
					{Name: "cancel_issue", Index: 2, Args: []scale.Field{
						scale.NewField("issue_id", h256()),
					}},
				},
				Events: []EventDef{
					{Name: "RequestIssue", Index: 0, Fields: []scale.Field{
						scale.NewField("issue_id", h256()),
						scale.NewField("requester", accountID()),
						scale.NewField("amount", scale.U128()),
						scale.NewField("vault", accountID()),
					}},
					{Name: "ExecuteIssue", Index: 1, Fields: []scale.Field{
						scale.NewField("issue_id", h256()),
						scale.NewField("requester", accountID()),
					}},
					{Name: "CancelIssue", Index: 2, Fields: []scale.Field{
						scale.NewField("issue_id", h256()),
					}},
				},
				Errors: []ErrorDef{
					{Name: "IssueCompleted", Index: 0},
					{Name: "CommitPeriodExpired", Index: 1},
					{Name: "InsufficientFunds", Index: 2},
				},
				Storage: []StorageEntry{
					{Name: "IssueRequests", Hasher: HasherBlake2_128Concat, Key: h256(), Value: scale.StructOf(
						scale.NewField("requester", accountID()),
						scale.NewField("vault", accountID()),
						scale.NewField("amount", scale.U128()),
						scale.NewField("opentime", scale.U32()),
						scale.NewField("completed", scale.Bool()),
					)},
				},
			},
			{
				Name:  "redeem",
				Index: PalletIndexRedeem,
				Calls: []CallDef{
					{Name: "request_redeem", Index: 0, Args: []scale.Field{
						scale.NewField("amount", scale.Compact()),
						scale.NewField("btc_address", scale.Bytes()),
						scale.NewField("vault", accountID()),
					}},
					{Name: "execute_redeem", Index: 1, Args: []scale.Field{
						scale.NewField("redeem_id", h256()),
						scale.NewField("tx_proof", scale.Bytes()),
					}},
					{Name: "cancel_redeem", Index: 2, Args: []scale.Field{
						scale.NewField("redeem_id", h256()),
						scale.NewField("reimburse", scale.Bool()),
					}},
				},
				Events: []EventDef{
					{Name: "RequestRedeem", Index: 0, Fields: []scale.Field{
						scale.NewField("redeem_id", h256()),
						scale.NewField("redeemer", accountID()),
						scale.NewField("amount", scale.U128()),
						scale.NewField("vault", accountID()),
					}},
					{Name: "ExecuteRedeem", Index: 1, Fields: []scale.Field{
						scale.NewField("redeem_id", h256()),
					}},
					{Name: "CancelRedeem", Index: 2, Fields: []scale.Field{
						scale.NewField("redeem_id", h256()),
						scale.NewField("reimburse", scale.Bool()),
					}},
				},
				Errors: []ErrorDef{
					{Name: "CommitPeriodExpired", Index: 0},
					{Name: "UnauthorizedUser", Index: 1},
				},
				Storage: []StorageEntry{
					{Name: "RedeemRequests", Hasher: HasherBlake2_128Concat, Key: h256(), Value: scale.StructOf(
						scale.NewField("redeemer", accountID()),
						scale.NewField("vault", accountID()),
						scale.NewField("amount", scale.U128()),
						scale.NewField("btc_address", scale.Bytes()),
						scale.NewField("completed", scale.Bool()),
					)},
				},
			},
			{
				Name:  "replace",
				Index: PalletIndexReplace,
				Calls: []CallDef{
					{Name: "request_replace", Index: 0, Args: []scale.Field{
						scale.NewField("amount", scale.Compact()),
						scale.NewField("griefing_collateral", scale.Compact()),
					}},
					{Name: "accept_replace", Index: 1, Args: []scale.Field{
						scale.NewField("replace_id", h256()),
						scale.NewField("collateral", scale.Compact()),
					}},
					{Name: "execute_replace", Index: 2, Args: []scale.Field{
						scale.NewField("replace_id", h256()),
						scale.NewField("tx_proof", scale.Bytes()),
					}},
				},
				Events: []EventDef{
					{Name: "RequestReplace", Index: 0, Fields: []scale.Field{
						scale.NewField("replace_id", h256()),
						scale.NewField("old_vault", accountID()),
						scale.NewField("amount", scale.U128()),
					}},
					{Name: "AcceptReplace", Index: 1, Fields: []scale.Field{
						scale.NewField("replace_id", h256()),
						scale.NewField("new_vault", accountID()),
					}},
					{Name: "ExecuteReplace", Index: 2, Fields: []scale.Field{
						scale.NewField("replace_id", h256()),
					}},
				},
				Errors: []ErrorDef{
					{Name: "ReplacePeriodExpired", Index: 0},
					{Name: "InsufficientCollateral", Index: 1},
				},
				Storage: []StorageEntry{
					{Name: "ReplaceRequests", Hasher: HasherBlake2_128Concat, Key: h256(), Value: scale.StructOf(
						scale.NewField("old_vault", accountID()),
						scale.NewField("new_vault", scale.OptionOf(accountID())),
						scale.NewField("amount", scale.U128()),
						scale.NewField("completed", scale.Bool()),
					)},
				},
			},
		},
	}
}
