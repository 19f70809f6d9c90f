package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

const writeTimeout = 5 * time.Second

// Handler inserts iterations and results into a MySQL or Postgres database.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	system msg.Publisher
}

type config struct {
	Driver   string `json:"Driver"` // mysql or postgres
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
}

// New reads the JSON config at configPath and subscribes to the search topics.
func New(configPath string, system msg.Publisher) (*Handler, error) {
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := config{Driver: "mysql"}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}
	if cfg.Driver != "mysql" && cfg.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
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

// Stop unsubscribes; Process returns once pending rows are inserted.
func (h *Handler) Stop() {
	h.system.Unsubscribe(h.pid)
}

func (c config) dsn() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("postgres://%v:%v@%v:%v/%v?sslmode=disable", c.Username, c.Password, c.Server, c.Port, c.Database)
	}
	return fmt.Sprintf("%v:%v@tcp(%v:%v)/%v", c.Username, c.Password, c.Server, c.Port, c.Database)
}

// DB opens the configured database.
func (h *Handler) DB() (*sql.DB, error) {
	return sql.Open(h.config.Driver, h.config.dsn())
}

// bind rewrites ? placeholders to $n for postgres.
func (c config) bind(query string) string {
	if c.Driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS iterations(run VARCHAR(36), iteration INT, elapsed DOUBLE PRECISION, fitness DOUBLE PRECISION, x TEXT)`,
	`CREATE TABLE IF NOT EXISTS results(run VARCHAR(36), iterations INT, elapsed DOUBLE PRECISION, fitness DOUBLE PRECISION, converged BOOLEAN, x TEXT)`,
}

func initDBTables(ctx context.Context, db *sql.DB) error {
	for _, stmt := range tables {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// statement returns the insert for m and its arguments.
func (c config) statement(m msg.Msg) (string, []interface{}, error) {
	switch p := m.Payload().(type) {
	case search.Iteration:
		x, err := json.Marshal(p.X)
		if err != nil {
			return "", nil, err
		}
		return c.bind(`INSERT INTO iterations (run, iteration, elapsed, fitness, x) VALUES (?, ?, ?, ?, ?)`),
			[]interface{}{m.PID().String(), p.Iteration, p.Elapsed.Seconds(), p.Fitness, string(x)}, nil
	case search.Result:
		x, err := json.Marshal(p.X)
		if err != nil {
			return "", nil, err
		}
		return c.bind(`INSERT INTO results (run, iterations, elapsed, fitness, converged, x) VALUES (?, ?, ?, ?, ?, ?)`),
			[]interface{}{m.PID().String(), p.Iterations, p.Elapsed.Seconds(), p.Fitness, p.Converged, string(x)}, nil
	}
	return "", nil, fmt.Errorf("unexpected payload %T", m.Payload())
}

// Process inserts until the subscription closes. Failed inserts are logged and skipped.
func (h *Handler) Process() {
	log.Println("[SQL] Process Started")
	ctx := context.Background()
	db, err := h.DB()
	if err == nil {
		defer db.Close()
		err = initDBTables(ctx, db)
	}
	if err != nil {
		log.Printf("[SQL] unable to prepare %v database: %v\n", h.config.Driver, err)
		for range h.inbox {
		}
		return
	}

	for m := range h.inbox {
		stmt, args, err := h.config.statement(m)
		if err != nil {
			log.Printf("[SQL] %v\n", err)
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		if _, err := db.ExecContext(wctx, stmt, args...); err != nil {
			log.Printf("[SQL] unable to write %v: %v\n", m.Topic(), err)
		}
		cancel()
	}
	log.Println("[SQL] Process Shutdown")
}
