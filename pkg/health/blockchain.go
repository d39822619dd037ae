// SPDX-License-Identifier: LGPL-3.0-or-later

package health

import "context"

// ChainProbe reaches the configured Verus node and reports its current
// block height. cmd/vap-server wires this to pkg/chain.Client.GetBlockchainInfo
// with the result narrowed to the height alone.
type ChainProbe func(ctx context.Context) (uint64, error)
