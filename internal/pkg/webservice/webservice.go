/*
webservice.go HTTP surface of a running optimisation: health, latest status, a websocket
stream of iterations and the Prometheus metrics.
*/

package webservice

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the body of GET /run/status.
type Status struct {
	PID       uuid.UUID `json:"PID"`
	State     string    `json:"State"`
	Iteration int       `json:"Iteration"`
	Elapsed   float64   `json:"Elapsed"` // seconds
	Fitness   float64   `json:"Fitness"`
	X         []float64 `json:"X"`
}

const clientBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// App tracks the latest progress of one run and serves it.
type App struct {
	mux     sync.RWMutex
	status  Status
	clients map[uuid.UUID]chan []byte

	pid    uuid.UUID
	inbox  <-chan msg.Msg
	system msg.Publisher
}

// New subscribes an App to the progress of run.
func New(run uuid.UUID, system msg.Publisher) (*App, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	inbox, err := msg.SubscribeAll(system, pid, msg.Iteration, msg.Result)
	if err != nil {
		return nil, err
	}
	return &App{
		status:  Status{PID: run, State: "waiting"},
		clients: make(map[uuid.UUID]chan []byte),
		pid:     pid,
		inbox:   inbox,
		system:  system,
	}, nil
}

// Router returns the routes served by the App.
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", app.BaseHandler).Methods("GET")
	r.HandleFunc("/run/status", app.StatusHandler).Methods("GET")
	r.HandleFunc("/run/stream", app.StreamHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

// Stop unsubscribes; Process returns once pending messages are applied.
func (app *App) Stop() {
	app.system.Unsubscribe(app.pid)
}

// Process applies progress messages until the subscription closes, then closes every
// stream.
func (app *App) Process() {
	log.Println("[Webservice] Process Started")
	for m := range app.inbox {
		app.mux.Lock()
		switch p := m.Payload().(type) {
		case search.Iteration:
			app.status.State = "running"
			app.status.Iteration = p.Iteration
			app.status.Elapsed = p.Elapsed.Seconds()
			app.status.Fitness = p.Fitness
			app.status.X = p.X
		case search.Result:
			app.status.State = "finished"
			app.status.Iteration = p.Iterations
			app.status.Elapsed = p.Elapsed.Seconds()
			app.status.Fitness = p.Fitness
			app.status.X = p.X
		}
		body, err := json.Marshal(app.status)
		if err != nil {
			log.Println("[Webservice] malformed JSON:", err)
		} else {
			app.broadcast(body)
		}
		app.mux.Unlock()
	}

	app.mux.Lock()
	for id, ch := range app.clients {
		close(ch)
		delete(app.clients, id)
	}
	app.mux.Unlock()
	log.Println("[Webservice] Process Shutdown")
}

// broadcast must be called with the lock held. Slow clients miss updates.
func (app *App) broadcast(body []byte) {
	for id, ch := range app.clients {
		select {
		case ch <- body:
		default:
			log.Printf("[Webservice] client %v is behind, dropped update\n", id)
		}
	}
}

// Status returns a copy of the latest status.
func (app *App) Status() Status {
	app.mux.RLock()
	defer app.mux.RUnlock()
	s := app.status
	s.X = append([]float64(nil), s.X...)
	return s
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	body, err := json.Marshal(app.Status())
	if err != nil {
		log.Println("[Webservice] malformed JSON:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Println("[Webservice]", err)
	}
}

// StreamHandler upgrades to a websocket and pushes the status after every update.
func (app *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	send := make(chan []byte, clientBuffer)
	app.mux.Lock()
	app.clients[id] = send
	app.mux.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Webservice] upgrade:", err)
		app.drop(id)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for {
			select {
			case body, ok := <-send:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
						time.Now().Add(time.Second))
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
					app.drop(id)
					return
				}
			case <-done:
				app.drop(id)
				return
			}
		}
	}()
}

func (app *App) drop(id uuid.UUID) {
	app.mux.Lock()
	defer app.mux.Unlock()
	if ch, ok := app.clients[id]; ok {
		close(ch)
		delete(app.clients, id)
	}
}
