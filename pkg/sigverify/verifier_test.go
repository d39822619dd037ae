// SPDX-License-Identifier: LGPL-3.0-or-later

package sigverify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/chain"
	"github.com/verus-agent-platform/vap/pkg/nonce"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

type fakeChain struct {
	identity     *chain.IdentityResponse
	identityErr  error
	verifyResult bool
	verifyErr    error
	lastMessage  string
}

func (f *fakeChain) GetIdentity(ctx context.Context, verusID string) (*chain.IdentityResponse, error) {
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeChain) VerifyMessage(ctx context.Context, identityAddress, messageText, signatureBase64 string) (bool, error) {
	f.lastMessage = messageText
	return f.verifyResult, f.verifyErr
}

func newTestVerifier(fc *fakeChain) *Verifier {
	n := nonce.New(memory.NewStore(), time.Minute)
	return New(fc, n, 300*time.Second, nil)
}

func validEnvelope() Envelope {
	return Envelope{
		VerusID:   "alice@",
		Timestamp: time.Now().Unix(),
		Nonce:     "11111111-1111-1111-1111-111111111111",
		Action:    "update",
		Data:      map[string]interface{}{"name": "alice@"},
		Signature: "sig==",
	}
}

func TestVerify_Success(t *testing.T) {
	fc := &fakeChain{
		identity:     &chain.IdentityResponse{Identity: chain.Identity{IdentityAddress: "iAlice"}},
		verifyResult: true,
	}
	v := newTestVerifier(fc)

	res, err := v.Verify(context.Background(), validEnvelope(), nil)
	require.NoError(t, err)
	require.Equal(t, "iAlice", res.IdentityAddress)
}

func TestVerify_ExpiredTimestamp(t *testing.T) {
	fc := &fakeChain{identity: &chain.IdentityResponse{Identity: chain.Identity{IdentityAddress: "iAlice"}}, verifyResult: true}
	v := newTestVerifier(fc)

	env := validEnvelope()
	env.Timestamp = time.Now().Add(-10 * time.Minute).Unix()

	_, err := v.Verify(context.Background(), env, nil)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CodeInvalidSignature, ae.Code)
}

func TestVerify_TimestampAtExactBoundary(t *testing.T) {
	fc := &fakeChain{identity: &chain.IdentityResponse{Identity: chain.Identity{IdentityAddress: "iAlice"}}, verifyResult: true}
	v := newTestVerifier(fc)

	env := validEnvelope()
	env.Timestamp = time.Now().Add(-299 * time.Second).Unix()
	_, err := v.Verify(context.Background(), env, nil)
	require.NoError(t, err)
}

func TestVerify_ReplayRejected(t *testing.T) {
	fc := &fakeChain{identity: &chain.IdentityResponse{Identity: chain.Identity{IdentityAddress: "iAlice"}}, verifyResult: true}
	v := newTestVerifier(fc)

	env := validEnvelope()
	_, err := v.Verify(context.Background(), env, nil)
	require.NoError(t, err)

	env2 := env
	env2.Timestamp = time.Now().Unix()
	_, err = v.Verify(context.Background(), env2, nil)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CodeReplay, ae.Code)
}

func TestVerify_BadSignature(t *testing.T) {
	fc := &fakeChain{identity: &chain.IdentityResponse{Identity: chain.Identity{IdentityAddress: "iAlice"}}, verifyResult: false}
	v := newTestVerifier(fc)

	_, err := v.Verify(context.Background(), validEnvelope(), nil)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CodeInvalidSignature, ae.Code)
}

func TestVerifyTemplate_UsesExactBytes(t *testing.T) {
	fc := &fakeChain{identity: &chain.IdentityResponse{Identity: chain.Identity{IdentityAddress: "iSeller"}}, verifyResult: true}
	v := newTestVerifier(fc)

	template := "VAP-ACCEPT|Job:abc123|Buyer:buyer@|Amt:10.0000 VRSCTEST|Ts:1700000000|I accept this job and commit to delivering the work."
	res, err := v.VerifyTemplate(context.Background(), "alice@", time.Now().Unix(), "22222222-2222-2222-2222-222222222222", "accept", template, "sig==")
	require.NoError(t, err)
	require.Equal(t, "iSeller", res.IdentityAddress)
	require.Equal(t, template, fc.lastMessage)
}
