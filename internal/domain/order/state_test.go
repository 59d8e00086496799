package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("ord-1", "shopper-1", []Line{
		{ProductID: "p1", Quantity: 2, UnitPrice: 100},
		{ProductID: "p2", Quantity: 1, UnitPrice: 250},
	})
	require.NoError(t, err)
	return o
}

func TestNew(t *testing.T) {
	o := newTestOrder(t)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(450), o.TotalAmount)
	assert.False(t, o.Terminal())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("ord-1", "shopper-1", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = New("ord-1", "shopper-1", []Line{{ProductID: "p1", Quantity: 0, UnitPrice: 10}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("ord-1", "shopper-1", []Line{{ProductID: "p1", Quantity: 1, UnitPrice: -1}})
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)
}

func TestReport_PendingToTerminal(t *testing.T) {
	cases := []struct {
		to      Status
		release bool
	}{
		{StatusPaid, false},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.to), func(t *testing.T) {
			o := newTestOrder(t)

			tr, err := o.Report(tc.to)
			require.NoError(t, err)
			assert.True(t, tr.Applied)
			assert.Equal(t, tc.release, tr.ReleaseStock)
			assert.Equal(t, tc.to, o.Status)
			assert.True(t, o.Terminal())
		})
	}
}

func TestReport_IdempotentReplay(t *testing.T) {
	o := newTestOrder(t)

	_, err := o.Report(StatusPaid)
	require.NoError(t, err)

	tr, err := o.Report(StatusPaid)
	require.NoError(t, err)
	assert.False(t, tr.Applied)
	assert.False(t, tr.ReleaseStock)
	assert.Equal(t, StatusPaid, o.Status)
}

func TestReport_ConflictingTerminal(t *testing.T) {
	o := newTestOrder(t)

	_, err := o.Report(StatusPaid)
	require.NoError(t, err)

	_, err = o.Report(StatusFailed)
	assert.ErrorIs(t, err, ErrConflictingStatus)
	assert.Equal(t, StatusPaid, o.Status)

	_, err = o.Report(StatusCancelled)
	assert.ErrorIs(t, err, ErrConflictingStatus)
	assert.Equal(t, StatusPaid, o.Status)
}

func TestReport_ReleaseOnlyOnce(t *testing.T) {
	o := newTestOrder(t)

	tr, err := o.Report(StatusCancelled)
	require.NoError(t, err)
	assert.True(t, tr.ReleaseStock)

	tr, err = o.Report(StatusCancelled)
	require.NoError(t, err)
	assert.False(t, tr.ReleaseStock)
}

func TestReport_NonTerminalRejected(t *testing.T) {
	o := newTestOrder(t)

	_, err := o.Report(StatusPending)
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = o.Report(Status("SHIPPED"))
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	_, err = ParseStatus("paid")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestClone_Independent(t *testing.T) {
	o := newTestOrder(t)
	clone := o.Clone()

	clone.Lines[0].Quantity = 99
	clone.Status = StatusPaid

	assert.Equal(t, 2, o.Lines[0].Quantity)
	assert.Equal(t, StatusPending, o.Status)
}
