// SPDX-License-Identifier: LGPL-3.0-or-later

// Package chain implements the typed RPC client for the external
// blockchain node (spec.md §6 / component C1): getIdentity, verifyMessage,
// signData, getTransaction, getBlockchainInfo, plus a TTL identity cache.
package chain

import "time"

// Identity mirrors the node's getIdentity response shape.
type Identity struct {
	IdentityAddress    string            `json:"identityaddress"`
	Name               string            `json:"name"`
	Parent             string            `json:"parent"`
	PrimaryAddresses   []string          `json:"primaryaddresses"`
	RevocationAuthority string           `json:"revocationauthority"`
	RecoveryAuthority  string            `json:"recoveryauthority"`
	ContentMultiMap    map[string][]string `json:"contentmultimap"`
	ContentMap         map[string]string `json:"contentmap"`
}

// IdentityResponse is the full getIdentity envelope.
type IdentityResponse struct {
	Identity            Identity `json:"identity"`
	FullyQualifiedName  string   `json:"fullyqualifiedname"`
	Status              string   `json:"status"`
	BlockHeight         int64    `json:"blockheight"`
}

// TxOutScript is a single transaction output's scriptPubKey.
type TxOutScript struct {
	Addresses []string `json:"addresses"`
	Asm       string   `json:"asm"`
}

// TxOut is a single transaction output.
type TxOut struct {
	Value        float64     `json:"value"`
	N            int         `json:"n"`
	ScriptPubKey TxOutScript `json:"scriptPubKey"`
}

// Transaction mirrors getTransaction's response shape.
type Transaction struct {
	TxID          string  `json:"txid"`
	Confirmations int64   `json:"confirmations"`
	Vout          []TxOut `json:"vout"`
	Time          int64   `json:"time"`
}

// BlockchainInfo mirrors getBlockchainInfo.
type BlockchainInfo struct {
	Blocks int64 `json:"blocks"`
}

// SignDataResult mirrors signData's response.
type SignDataResult struct {
	Signature string `json:"signature"`
}

// cacheEntry is one identity-cache slot.
type cacheEntry struct {
	identity  *IdentityResponse
	expiresAt time.Time
}
