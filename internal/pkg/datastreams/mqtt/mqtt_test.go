package mqtt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"gotest.tools/v3/assert"
)

func TestGetConfig(t *testing.T) {
	h, err := New("./testdata/mqtt_config_test.json", msg.NewPublisher(uuid.New()))
	assert.NilError(t, err)

	assert.Equal(t, h.config.Broker, "tcp://localhost:1883")
	assert.Equal(t, h.config.QoS, byte(1))
	assert.Equal(t, h.config.Prefix, "firm")
	assert.Equal(t, h.config.ClientID, "firm-"+h.PID().String())

	run := uuid.New()
	m := msg.New(run, msg.Result, search.Result{})
	assert.Equal(t, h.topic(m), "firm/"+run.String()+"/result")
}

func TestConfigValidation(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct{ body, want string }{
		{`{}`, "Broker is required"},
		{`{"Broker": "tcp://localhost:1883", "QoS": 3}`, "QoS 3"},
	} {
		path := filepath.Join(dir, "mqtt.json")
		assert.NilError(t, os.WriteFile(path, []byte(tc.body), 0o644))
		_, err := New(path, msg.NewPublisher(uuid.New()))
		assert.ErrorContains(t, err, tc.want)
	}
}

func TestProcessWithoutBroker(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New("./testdata/mqtt_config_test.json", pub)
	assert.NilError(t, err)
	h.config.Broker = "tcp://127.0.0.1:1"

	done := make(chan struct{})
	go func() {
		h.Process()
		close(done)
	}()
	pub.Publish(msg.Iteration, search.Iteration{Iteration: 1})
	pub.Close()
	<-done
}
