package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"

	"pixel_pets/internal/app"
	"pixel_pets/internal/domain/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	exec := &stubExecutor{result: reminder.Succeeded()}
	s, _ := newTestServer(exec)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	res, err := client.Execute(context.Background(), reminder.Command{Type: reminder.CmdSetReminder, Minutes: 1})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []reminder.Command{{Type: reminder.CmdSetReminder, Minutes: 1}}, exec.got)

	exec.result = reminder.Failed(reminder.ErrUnknownAnimal)
	res, err = client.Execute(context.Background(), reminder.Command{Type: reminder.CmdSetReminder, Seconds: 1, Animal: "owl"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, reminder.ErrUnknownAnimal.Error(), res.Error)

	exec.err = app.ErrCoordinatorStopped
	_, err = client.Execute(context.Background(), reminder.Command{Type: reminder.CmdGetStatus})
	assert.ErrorContains(t, err, "503")
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Execute(context.Background(), reminder.Command{Type: reminder.CmdGetStatus})
	assert.ErrorContains(t, err, "request failed")
}
