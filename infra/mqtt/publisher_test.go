package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/busroute/core/events"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/internal/eventbus"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "busroute", c.TopicPrefix)
	assert.NoError(t, c.Validate())
	c.Enabled = true
	assert.Error(t, c.Validate())
	c.Broker = "tcp://localhost:1883"
	assert.NoError(t, c.Validate())
}

func TestNewClientOptionsAuthAndWill(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p", LWTTopic: "busroute/status", LWTPayload: "offline"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "busroute/status", opts.WillTopic)
}

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestPublishSchedule(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	p, err := NewSchedulePublisher(Config{Broker: "tcp://localhost:1883", QoS: 1, Retain: true}, nil)
	require.NoError(t, err)

	at := time.Date(2030, 1, 1, 7, 30, 0, 0, time.UTC)
	err = p.PublishSchedule(events.ScheduleRecomputed{
		RouteID:   12,
		StartTime: "07:30",
		Stops:     []model.RouteStop{{ID: 3, StopOrder: 1, Name: "Elm", EstimatedArrival: at, EstimatedDeparture: at.Add(2 * time.Minute)}},
	})
	require.NoError(t, err)

	msgs := mc.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "busroute/routes/12/schedule", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)
	assert.True(t, msgs[0].retained)
	var payload SchedulePayload
	require.NoError(t, json.Unmarshal(msgs[0].payload, &payload))
	assert.Equal(t, int64(12), payload.RouteID)
	require.Len(t, payload.Stops, 1)
	assert.Equal(t, "Elm", payload.Stops[0].Name)
	assert.False(t, payload.Stale)
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMockClient(t, mc)
	p, err := NewSchedulePublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, p.PublishChange(events.RouteChanged{RouteID: 2, Kind: events.RouteActivated}))
	assert.Len(t, mc.messages(), 2)
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any, map[string]string) {}
func (r *recordMonitor) Flush(time.Duration)                 {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	p, err := NewSchedulePublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, mon)
	require.NoError(t, err)

	err = p.PublishSchedule(events.ScheduleRecomputed{RouteID: 8})
	assert.ErrorIs(t, err, fail)
	require.Error(t, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, "8", mon.tags["route_id"])
}

func TestRunForwardsBusEvents(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	p, err := NewSchedulePublisher(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)

	schedules := eventbus.NewTyped[events.ScheduleRecomputed]()
	changes := eventbus.NewTyped[events.RouteChanged]()
	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), schedules, changes)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		schedules.Publish(events.ScheduleRecomputed{RouteID: 1})
		return len(mc.messages()) > 0
	}, time.Second, 10*time.Millisecond)

	schedules.Close()
	changes.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after the buses closed")
	}
	p.Disconnect()
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
}

func (m *mockClient) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, retained, data})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
