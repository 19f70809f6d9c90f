package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const connectTimeout = 5 * time.Second

// Handler publishes search progress as JSON on <prefix>/<run pid>/<topic>.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	system msg.Publisher
}

type config struct {
	Broker   string `json:"Broker"`
	ClientID string `json:"ClientID"`
	Prefix   string `json:"Prefix"`
	QoS      byte   `json:"QoS"`
	Retained bool   `json:"Retained"`
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
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%s: Broker is required", configPath)
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("%s: QoS %d outside [0,2]", configPath, cfg.QoS)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "firm"
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "firm-" + pid.String()
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

func (h *Handler) Stop() {
	h.system.Unsubscribe(h.pid)
}

func (h *Handler) topic(m msg.Msg) string {
	return fmt.Sprintf("%s/%s/%s", h.config.Prefix, m.PID(), m.Topic())
}

func (h *Handler) options() *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(h.config.Broker).
		SetClientID(h.config.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("[MQTT] connection lost: %v\n", err)
		})
}

// Process publishes until the subscription closes.
func (h *Handler) Process() {
	log.Println("[MQTT] Process Started")
	client := mqtt.NewClient(h.options())
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		log.Printf("[MQTT] unable to connect to %v: %v\n", h.config.Broker, token.Error())
		for range h.inbox {
		}
		return
	}
	defer client.Disconnect(250)

	for m := range h.inbox {
		payload, err := json.Marshal(m.Payload())
		if err != nil {
			log.Printf("[MQTT] unable to encode %v: %v\n", m.Topic(), err)
			continue
		}
		t := client.Publish(h.topic(m), h.config.QoS, h.config.Retained, payload)
		if t.WaitTimeout(connectTimeout) && t.Error() != nil {
			log.Printf("[MQTT] unable to publish %v: %v\n", m.Topic(), t.Error())
		}
	}
	log.Println("[MQTT] Process Shutdown")
}
