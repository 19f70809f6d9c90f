package natshandler

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"

	nats "github.com/nats-io/nats.go"
)

const defaultPrefix = "firm"

// Handler republishes search progress as JSON on the subject <prefix>.<run pid>.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	system msg.Publisher
}

type config struct {
	Server string `json:"Server"`
	Prefix string `json:"Prefix"`
}

type envelope struct {
	Topic   string      `json:"topic"`
	Run     string      `json:"run"`
	Payload interface{} `json:"payload"`
}

// New reads the JSON config at configPath and subscribes to the search topics.
func New(configPath string, system msg.Publisher) (*Handler, error) {
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	inbox, err := msg.SubscribeAll(system, pid, msg.Iteration, msg.Result)
	if err != nil {
		return nil, err
	}
	return &Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		system: system,
	}, nil
}

// PID is the handler's subscriber id.
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// Stop unsubscribes; Process returns once pending messages are published.
func (h *Handler) Stop() {
	h.system.Unsubscribe(h.pid)
}

func (h *Handler) subject(run uuid.UUID) string {
	return fmt.Sprintf("%s.%s", h.config.Prefix, run)
}

func encode(m msg.Msg) ([]byte, error) {
	return json.Marshal(envelope{
		Topic:   m.Topic().String(),
		Run:     m.PID().String(),
		Payload: m.Payload(),
	})
}

// Process publishes until the subscription closes.
func (h *Handler) Process() {
	log.Println("[NATS client] Process Started")
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		log.Printf("[NATS client] unable to connect to %v: %v\n", h.config.Server, err)
		for range h.inbox {
		}
		return
	}
	defer nc.Close()

	for m := range h.inbox {
		data, err := encode(m)
		if err != nil {
			log.Printf("[NATS client] unable to encode %v: %v\n", m.Topic(), err)
			continue
		}
		if err = nc.Publish(h.subject(m.PID()), data); err != nil {
			log.Printf("[NATS client] unable to publish to nats server: %v\n", err)
		}
	}
	if err := nc.Flush(); err != nil {
		log.Printf("[NATS client] flush: %v\n", err)
	}
	log.Println("[NATS client] Process Shutdown")
}
