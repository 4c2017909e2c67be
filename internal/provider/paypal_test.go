package provider

import (
	"net/http"
	"testing"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayPalVerify(t *testing.T) {
	p := NewPayPal()

	assert.NoError(t, p.Verify([]byte("txn_id=P1&payment_status=Completed"), http.Header{}))
	assert.ErrorIs(t, p.Verify([]byte("payment_status=Completed"), http.Header{}), domain.ErrBadSignature)
	assert.ErrorIs(t, p.Verify([]byte("%zz"), http.Header{}), domain.ErrBadSignature)
}

func TestPayPalNormalize(t *testing.T) {
	p := NewPayPal()

	ev, err := p.Normalize([]byte("payment_status=Completed&txn_id=P1&invoice=17&mc_gross=250.00&receiver_email=owner%40atelier.test"))
	require.NoError(t, err)
	succ, ok := ev.(domain.PaymentSucceeded)
	require.True(t, ok)
	assert.Equal(t, domain.ProviderPayPal, succ.Provider)
	assert.Equal(t, "P1", succ.TransactionID)
	assert.Equal(t, "17", succ.InvoiceRef)
	assert.Equal(t, "owner@atelier.test", succ.ReceiverEmail)
	assert.Equal(t, "250.00", succ.Amount.StringFixed(2))

	ev, err = p.Normalize([]byte("payment_status=Reversed&txn_id=P2&invoice=17&reason_code=chargeback"))
	require.NoError(t, err)
	fail, ok := ev.(domain.PaymentFailed)
	require.True(t, ok)
	assert.Equal(t, "chargeback", fail.Reason)

	// Pending is acknowledged without producing an event.
	ev, err = p.Normalize([]byte("payment_status=Pending&txn_id=P3"))
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = p.Normalize([]byte("payment_status=Completed&txn_id=P4&mc_gross=abc"))
	assert.Error(t, err)
}
