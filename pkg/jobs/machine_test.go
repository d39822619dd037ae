// SPDX-License-Identifier: LGPL-3.0-or-later

package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/chain"
	"github.com/verus-agent-platform/vap/pkg/nonce"
	"github.com/verus-agent-platform/vap/pkg/sigverify"
	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

// alwaysVerifyChain treats every signature/identity as valid, returning the
// VerusID itself as the resolved identity address (tests use identity
// addresses as verusIDs directly for simplicity).
type alwaysVerifyChain struct {
	txs map[string]*chain.Transaction
}

func (f *alwaysVerifyChain) GetIdentity(ctx context.Context, verusID string) (*chain.IdentityResponse, error) {
	return &chain.IdentityResponse{Identity: chain.Identity{IdentityAddress: verusID}}, nil
}
func (f *alwaysVerifyChain) VerifyMessage(ctx context.Context, identityAddress, messageText, signatureBase64 string) (bool, error) {
	return true, nil
}
func (f *alwaysVerifyChain) GetTransaction(ctx context.Context, txid string) (*chain.Transaction, error) {
	tx, ok := f.txs[txid]
	if !ok {
		return &chain.Transaction{Confirmations: 0}, nil
	}
	return tx, nil
}

func newTestMachine(t *testing.T, feeAddr string) (*Machine, *alwaysVerifyChain, storage.JobStore) {
	store := memory.NewStore()
	fc := &alwaysVerifyChain{txs: make(map[string]*chain.Transaction)}
	n := nonce.New(store, time.Minute)
	v := sigverify.New(fc, n, 300*time.Second, nil)
	m := New(store, fc, v, Config{FeeAddress: feeAddr, BaseRate: 0.05, MaxDiscount: 0.25}, nil)
	return m, fc, store
}

func TestHappyJobLifecycle(t *testing.T) {
	m, fc, _ := newTestMachine(t, "iFeeAddr")
	ctx := context.Background()
	ts := time.Now().Unix()

	job, err := m.CreateJob(ctx, CreateRequest{
		Buyer: "buyer@", Seller: "alice@", Description: "code review", Amount: 10, Currency: "VRSCTEST",
		PaymentTerms: storage.TermsPrepay, SafechatEnabled: true,
		DataTerms: storage.JobDataTerms{RequireDeletionAttestation: true},
		Timestamp: ts, Nonce: "n1", Signature: "sig-req",
	})
	require.NoError(t, err)
	require.Equal(t, storage.JobRequested, job.Status)

	job, err = m.Accept(ctx, job.ID, "alice@", time.Now().Unix(), "n2", "sig-accept")
	require.NoError(t, err)
	require.Equal(t, storage.JobAccepted, job.Status)

	fc.txs["tx-pay"] = &chain.Transaction{Confirmations: 6, Vout: []chain.TxOut{{Value: 10, ScriptPubKey: chain.TxOutScript{Addresses: []string{"alice@"}}}}}
	fc.txs["tx-fee"] = &chain.Transaction{Confirmations: 6, Vout: []chain.TxOut{{Value: 0.5, ScriptPubKey: chain.TxOutScript{Addresses: []string{"iFeeAddr"}}}}}

	job, err = m.RecordPayment(ctx, job.ID, "buyer@", "tx-pay")
	require.NoError(t, err)
	require.Equal(t, storage.JobAccepted, job.Status, "still waiting on the platform fee")
	require.True(t, job.PaymentVerified)

	job, err = m.RecordPlatformFee(ctx, job.ID, "buyer@", "tx-fee")
	require.NoError(t, err)
	require.Equal(t, storage.JobInProgress, job.Status)
	require.True(t, job.PlatformFeeVerified)
	require.NotNil(t, job.InProgressAt)

	job, err = m.Deliver(ctx, job.ID, "alice@", "sha256:abc", "done", time.Now().Unix(), "n3", "sig-deliver")
	require.NoError(t, err)
	require.Equal(t, storage.JobDelivered, job.Status)

	job, err = m.Complete(ctx, job.ID, "buyer@", time.Now().Unix(), "n4", "sig-complete")
	require.NoError(t, err)
	require.Equal(t, storage.JobCompleted, job.Status)

	require.Equal(t, "sig-req", job.Signatures.Request)
	require.Equal(t, "sig-accept", job.Signatures.Acceptance)
	require.Equal(t, "sig-deliver", job.Signatures.Delivery)
	require.Equal(t, "sig-complete", job.Signatures.Completion)
}

func TestCreateJob_DuplicateRejected(t *testing.T) {
	m, _, _ := newTestMachine(t, "iFeeAddr")
	ctx := context.Background()
	ts := int64(1700000000)

	req := CreateRequest{
		Buyer: "buyer@", Seller: "alice@", Description: "same job", Amount: 5, Currency: "VRSCTEST",
		Timestamp: ts, Nonce: "dup-n1", Signature: "sig1",
	}
	_, err := m.CreateJob(ctx, req)
	require.NoError(t, err)

	req.Nonce = "dup-n2"
	req.Signature = "sig2"
	_, err = m.CreateJob(ctx, req)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CodeDuplicateJob, ae.Code)
}

func TestAccept_WrongPartyForbidden(t *testing.T) {
	// alwaysVerifyChain resolves whatever verusID is handed to it, so
	// signing as "mallory@" verifies fine but resolves to an identity
	// that isn't the job's seller.
	m, _, _ := newTestMachine(t, "iFeeAddr")
	ctx := context.Background()

	job, err := m.CreateJob(ctx, CreateRequest{
		Buyer: "buyer@", Seller: "alice@", Description: "d", Amount: 1, Currency: "VRSCTEST",
		Timestamp: time.Now().Unix(), Nonce: "n1", Signature: "s",
	})
	require.NoError(t, err)

	_, err = m.Accept(ctx, job.ID, "mallory@", time.Now().Unix(), "n2", "s2")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CodeForbidden, ae.Code)
}

func TestCancel_OnlyFromRequested(t *testing.T) {
	m, _, _ := newTestMachine(t, "iFeeAddr")
	ctx := context.Background()

	job, err := m.CreateJob(ctx, CreateRequest{
		Buyer: "buyer@", Seller: "alice@", Description: "d", Amount: 1, Currency: "VRSCTEST",
		Timestamp: time.Now().Unix(), Nonce: "n1", Signature: "s",
	})
	require.NoError(t, err)

	_, err = m.Accept(ctx, job.ID, "alice@", time.Now().Unix(), "n2", "s2")
	require.NoError(t, err)

	_, err = m.Cancel(ctx, job.ID, "buyer@")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CodeInvalidStatus, ae.Code)
}

func TestCancel_Idempotent(t *testing.T) {
	m, _, _ := newTestMachine(t, "iFeeAddr")
	ctx := context.Background()

	job, err := m.CreateJob(ctx, CreateRequest{
		Buyer: "buyer@", Seller: "alice@", Description: "d", Amount: 1, Currency: "VRSCTEST",
		Timestamp: time.Now().Unix(), Nonce: "n1", Signature: "s",
	})
	require.NoError(t, err)

	job, err = m.Cancel(ctx, job.ID, "buyer@")
	require.NoError(t, err)
	require.Equal(t, storage.JobCancelled, job.Status)

	job, err = m.Cancel(ctx, job.ID, "buyer@")
	require.NoError(t, err)
	require.Equal(t, storage.JobCancelled, job.Status)
}

func TestPayment_ConfirmationBoundaries(t *testing.T) {
	for _, tc := range []struct {
		confirmations int64
		wantVerified  bool
	}{
		{0, false},
		{1, false},
		{5, false},
		{6, true},
	} {
		m, fc, _ := newTestMachine(t, "iFeeAddr")
		ctx := context.Background()

		job, err := m.CreateJob(ctx, CreateRequest{
			Buyer: "buyer@", Seller: "alice@", Description: "d", Amount: 1, Currency: "VRSCTEST",
			Timestamp: time.Now().Unix(), Nonce: "n1", Signature: "s",
		})
		require.NoError(t, err)
		_, err = m.Accept(ctx, job.ID, "alice@", time.Now().Unix(), "n2", "s2")
		require.NoError(t, err)

		fc.txs["tx"] = &chain.Transaction{Confirmations: tc.confirmations, Vout: []chain.TxOut{{Value: 1, ScriptPubKey: chain.TxOutScript{Addresses: []string{"alice@"}}}}}
		job, err = m.RecordPayment(ctx, job.ID, "buyer@", "tx")
		require.NoError(t, err)
		require.Equal(t, tc.wantVerified, job.PaymentVerified)
	}
}

func TestFeeRate_EightOutcomes(t *testing.T) {
	seen := map[float64]bool{}
	for _, training := range []bool{true, false} {
		for _, thirdParty := range []bool{true, false} {
			for _, requireDel := range []bool{true, false} {
				rate := FeeRate(storage.JobDataTerms{AllowTraining: training, AllowThirdParty: thirdParty, RequireDeletionAttestation: requireDel}, 0.05, 0.25)
				seen[rate] = true
			}
		}
	}
	require.LessOrEqual(t, len(seen), 8)
	require.Contains(t, seen, 0.05)                // no discounts
	require.Contains(t, seen, 0.05*(1-0.25))        // all discounts, capped at 25%
}

func TestNonceReplay_ConcurrentClaimsOneWinner(t *testing.T) {
	store := memory.NewStore()
	n := nonce.New(store, time.Minute)

	const workers = 20
	var wg sync.WaitGroup
	successes := 0
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := n.Claim(context.Background(), "race-nonce")
			require.NoError(t, err)
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}
