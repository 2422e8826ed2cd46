package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/pam-core/internal/pam"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) InitiateApproval(context.Context, pam.AccessRequest, pam.PrivilegedRole) error {
	f.calls++
	return f.err
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())

	err := n.InitiateApproval(context.Background(), pam.AccessRequest{ID: "r1"}, pam.PrivilegedRole{ID: "admin"})
	assert.NoError(t, err)
}

func TestMultiNotifier_FansOut(t *testing.T) {
	a := &fakeNotifier{}
	b := &fakeNotifier{}
	m := NewMultiNotifier(a, b)

	err := m.InitiateApproval(context.Background(), pam.AccessRequest{}, pam.PrivilegedRole{})
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestMultiNotifier_DeliversPastFailures(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeNotifier{err: boom}
	b := &fakeNotifier{}
	m := NewMultiNotifier(a, b)

	err := m.InitiateApproval(context.Background(), pam.AccessRequest{}, pam.PrivilegedRole{})
	assert.ErrorIs(t, err, boom)
	// The failure in a did not stop delivery to b.
	assert.Equal(t, 1, b.calls)
}
