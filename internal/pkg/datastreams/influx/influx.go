package influx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"
)

const writeTimeout = 5 * time.Second

// Handler writes one point per iteration and one per result.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	system msg.Publisher
}

type config struct {
	URL    string `json:"URL"`
	Token  string `json:"Token"`
	Org    string `json:"Org"`
	Bucket string `json:"Bucket"`
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
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config needs URL, Org and Bucket")
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

// Stop unsubscribes; Process returns once pending points are written.
func (h *Handler) Stop() {
	h.system.Unsubscribe(h.pid)
}

func point(m msg.Msg, now time.Time) *write.Point {
	switch p := m.Payload().(type) {
	case search.Iteration:
		return influxdb2.NewPointWithMeasurement("firm_iteration").
			AddTag("run", m.PID().String()).
			AddField("iteration", p.Iteration).
			AddField("elapsed", p.Elapsed.Seconds()).
			AddField("fitness", p.Fitness).
			SetTime(now)
	case search.Result:
		return influxdb2.NewPointWithMeasurement("firm_result").
			AddTag("run", m.PID().String()).
			AddField("iterations", p.Iterations).
			AddField("elapsed", p.Elapsed.Seconds()).
			AddField("fitness", p.Fitness).
			AddField("converged", p.Converged).
			SetTime(now)
	}
	return nil
}

// Process writes until the subscription closes. Failed writes are logged and skipped.
func (h *Handler) Process() {
	log.Println("[Influx] Process Started")
	client := influxdb2.NewClient(h.config.URL, h.config.Token)
	defer client.Close()
	writeAPI := client.WriteAPIBlocking(h.config.Org, h.config.Bucket)

	for m := range h.inbox {
		p := point(m, time.Now())
		if p == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := writeAPI.WritePoint(ctx, p); err != nil {
			log.Printf("[Influx] unable to write %v: %v\n", m.Topic(), err)
		}
		cancel()
	}
	log.Println("[Influx] Process Shutdown")
}
