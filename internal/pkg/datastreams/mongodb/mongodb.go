package mongodb

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	runCollection       = "runs"
	iterationCollection = "iterations"
	writeTimeout        = 5 * time.Second
)

// Handler keeps one document per run up to date and appends one document per iteration.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	system msg.Publisher
}

type config struct {
	URI      string `json:"URI"`
	Database string `json:"Database"`
	Port     string `json:"Port"`
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

// Stop unsubscribes; Process returns once pending messages are written.
func (h *Handler) Stop() {
	h.system.Unsubscribe(h.pid)
}

func (c config) uri() string {
	if c.Port == "" {
		return c.URI
	}
	return c.URI + ":" + c.Port
}

// runToBSON sets the run document's best-so-far fields.
func runToBSON(run uuid.UUID, m msg.Msg) bson.D {
	set := bson.M{"pid": run.String(), "updated": time.Now().UTC()}
	switch p := m.Payload().(type) {
	case search.Iteration:
		set["iteration"] = p.Iteration
		set["fitness"] = p.Fitness
		set["x"] = p.X
		set["status"] = "running"
	case search.Result:
		set["iteration"] = p.Iterations
		set["fitness"] = p.Fitness
		set["x"] = p.X
		set["converged"] = p.Converged
		set["status"] = "finished"
	}
	return bson.D{{Key: "$set", Value: set}}
}

func iterationToBSON(run uuid.UUID, it search.Iteration) bson.D {
	return bson.D{
		{Key: "pid", Value: run.String()},
		{Key: "iteration", Value: it.Iteration},
		{Key: "elapsed", Value: it.Elapsed.Seconds()},
		{Key: "fitness", Value: it.Fitness},
		{Key: "x", Value: it.X},
	}
}

// Process writes until the subscription closes. Failed writes are logged and skipped.
func (h *Handler) Process() {
	log.Println("[Mongo] Process Started")
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(h.config.uri()))
	if err != nil {
		log.Printf("[Mongo] unable to connect: %v\n", err)
		for range h.inbox {
		}
		return
	}
	defer client.Disconnect(ctx)

	db := client.Database(h.config.Database)
	for m := range h.inbox {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		opts := options.Update().SetUpsert(true)
		_, err := db.Collection(runCollection).UpdateOne(wctx, bson.M{"pid": m.PID().String()}, runToBSON(m.PID(), m), opts)
		if err != nil {
			log.Printf("[Mongo] unable to update run %v: %v\n", m.PID(), err)
		}
		if it, ok := m.Payload().(search.Iteration); ok {
			if _, err := db.Collection(iterationCollection).InsertOne(wctx, iterationToBSON(m.PID(), it)); err != nil {
				log.Printf("[Mongo] unable to write iteration %d: %v\n", it.Iteration, err)
			}
		}
		cancel()
	}
	log.Println("[Mongo] Process Shutdown")
}
