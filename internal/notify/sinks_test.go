package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleNotification(t *testing.T) Notification {
	return Notification{
		ID:           "n-1",
		Device:       testDevice(t, "aa:bb:cc:dd:ee:ff", "192.168.1.20"),
		Name:         "Phone",
		Known:        true,
		BecameOnline: true,
		Timestamp:    time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func TestDesktopNotifier(t *testing.T) {
	d := NewDesktopNotifier("")
	var gotName string
	var gotArgs []string
	d.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, nil
	}

	require.NoError(t, d.Notify(t.Context(), sampleNotification(t)))
	assert.Equal(t, "notify-send", gotName)
	assert.Equal(t, []string{
		"--app-name=lanwatch",
		"Device Phone connected",
		"Device Phone with IP 192.168.1.20 and MAC aa:bb:cc:dd:ee:ff is connected",
	}, gotArgs)

	d.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("cannot open display\n"), errors.New("exit status 1")
	}
	err := d.Notify(t.Context(), sampleNotification(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open display")
}

func TestWebhookNotifier(t *testing.T) {
	var got Payload
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotHeader = r.Header.Get("X-Token")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(srv.URL, map[string]string{"X-Token": "secret"}, srv.Client())
	require.NoError(t, w.Notify(t.Context(), sampleNotification(t)))

	assert.Equal(t, "secret", gotHeader)
	assert.Equal(t, "connected", got.Event)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got.MAC)
	assert.Equal(t, "Phone", got.Name)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(srv.URL, nil, nil)
	err := w.Notify(t.Context(), sampleNotification(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type mockMQTTClient struct {
	mock.Mock
}

func (m *mockMQTTClient) Connect() mqtt.Token {
	args := m.Called()
	return args.Get(0).(mqtt.Token)
}

func (m *mockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqtt.Token)
}

func (m *mockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

type mockToken struct {
	mock.Mock
}

func (m *mockToken) Wait() bool {
	return m.Called().Bool(0)
}

func (m *mockToken) WaitTimeout(d time.Duration) bool {
	return m.Called(d).Bool(0)
}

func (m *mockToken) Done() <-chan struct{} {
	return m.Called().Get(0).(<-chan struct{})
}

func (m *mockToken) Error() error {
	return m.Called().Error(0)
}

func doneChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestMQTTNotifier(t *testing.T) {
	client := new(mockMQTTClient)
	token := new(mockToken)

	token.On("Done").Return(doneChan())
	token.On("Error").Return(nil)
	client.On("Publish", "home/lan/aa:bb:cc:dd:ee:ff", byte(1), true, mock.MatchedBy(func(p []byte) bool {
		var got Payload
		return json.Unmarshal(p, &got) == nil && got.Event == "connected"
	})).Return(token)
	client.On("Disconnect", uint(250)).Return()

	n := NewMQTTNotifierWithClient(client, "home/lan/", 1, true)
	require.NoError(t, n.Notify(t.Context(), sampleNotification(t)))
	require.NoError(t, n.Close())

	client.AssertExpectations(t)
	token.AssertExpectations(t)
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	client := new(mockMQTTClient)
	token := new(mockToken)

	token.On("Done").Return(doneChan())
	token.On("Error").Return(errors.New("not connected"))
	client.On("Publish", mock.Anything, byte(0), false, mock.Anything).Return(token)

	n := NewMQTTNotifierWithClient(client, "lanwatch/devices", 0, false)
	err := n.Notify(t.Context(), sampleNotification(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestMQTTNotifier_ContextCancelled(t *testing.T) {
	client := new(mockMQTTClient)
	token := new(mockToken)

	token.On("Done").Return((<-chan struct{})(make(chan struct{})))
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	n := NewMQTTNotifierWithClient(client, "lanwatch/devices", 0, false)
	assert.ErrorIs(t, n.Notify(ctx, sampleNotification(t)), context.Canceled)
}

func TestMQTTNotifier_ConnectTimeout(t *testing.T) {
	client := new(mockMQTTClient)
	token := new(mockToken)

	token.On("WaitTimeout", mock.Anything).Return(false)
	client.On("Connect").Return(token)
	client.On("Disconnect", uint(0)).Return()

	n := NewMQTTNotifierWithClient(client, "lanwatch/devices", 0, false)
	assert.Error(t, n.connect())
	client.AssertExpectations(t)
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestNATSNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATSNotifierWithPublisher(pub, "lanwatch.presence")

	require.NoError(t, n.Notify(t.Context(), sampleNotification(t)))
	assert.Equal(t, "lanwatch.presence.connected", pub.subject)

	var got Payload
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, "n-1", got.ID)

	pub.err = errors.New("nats: connection closed")
	assert.Error(t, n.Notify(t.Context(), sampleNotification(t)))
	assert.NoError(t, n.Close())
}
