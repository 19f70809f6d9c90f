package natshandler

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"gotest.tools/v3/assert"
)

func TestGetConfig(t *testing.T) {
	h, err := New("./testdata/nats_config_test.json", msg.NewPublisher(uuid.New()))
	assert.NilError(t, err)

	assert.Equal(t, h.config.Server, "nats://localhost:4222")
	assert.Equal(t, h.config.Prefix, "firm")

	run := uuid.New()
	assert.Equal(t, h.subject(run), "firm."+run.String())
}

func TestEncode(t *testing.T) {
	run := uuid.New()
	data, err := encode(msg.New(run, msg.Iteration, search.Iteration{Iteration: 3, Fitness: 12.5, X: []float64{1}}))
	assert.NilError(t, err)

	var got struct {
		Topic   string           `json:"topic"`
		Run     string           `json:"run"`
		Payload search.Iteration `json:"payload"`
	}
	assert.NilError(t, json.Unmarshal(data, &got))
	assert.Equal(t, got.Topic, "iteration")
	assert.Equal(t, got.Run, run.String())
	assert.Equal(t, got.Payload.Iteration, 3)
	assert.Equal(t, got.Payload.Fitness, 12.5)
}

func TestProcessWithoutServer(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New("./testdata/nats_config_test.json", pub)
	assert.NilError(t, err)
	h.config.Server = "nats://127.0.0.1:1"

	done := make(chan struct{})
	go func() {
		h.Process()
		close(done)
	}()
	pub.Publish(msg.Iteration, search.Iteration{Iteration: 1})
	pub.Close()
	<-done
}
