/*
csvlog.go Appends search progress to CSV files under a results directory. Each row is
written with its own open/append/close so a crash loses at most the row in flight.
*/

package csvlog

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"
)

// Handler writes one row per iteration and the final result rows.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	system msg.Publisher

	dir   string
	node  string
	steps int
	stamp string
}

// New subscribes a CSV writer for a run on node with steps. stamp distinguishes the
// per-run iteration file.
func New(dir, node string, steps int, stamp string, system msg.Publisher) (*Handler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
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
		system: system,
		dir:    dir,
		node:   node,
		steps:  steps,
		stamp:  stamp,
	}, nil
}

// PID is the handler's subscriber id.
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// IterationPath is the per-run file of iteration rows.
func (h *Handler) IterationPath() string {
	return filepath.Join(h.dir, fmt.Sprintf("Optimisation_result_node(s)%s_steps%d_%s.csv", h.node, h.steps, h.stamp))
}

// ResultPath is the file the best vector of every finished run is appended to.
func ResultPath(dir, node string, steps int) string {
	return filepath.Join(dir, fmt.Sprintf("Optimisation_result_node(s)%s_steps%d.csv", node, steps))
}

// FitnessPath is the file the best fitness of every finished run is appended to.
func FitnessPath(dir, node string, steps int) string {
	return filepath.Join(dir, fmt.Sprintf("LCOE_resultx_node(s)%s_steps%d.csv", node, steps))
}

// Stop unsubscribes; Process returns once the pending rows are written.
func (h *Handler) Stop() {
	h.system.Unsubscribe(h.pid)
}

// Process writes rows until the subscription closes.
func (h *Handler) Process() {
	log.Println("[CSV] Process Started")
	for m := range h.inbox {
		switch p := m.Payload().(type) {
		case search.Iteration:
			row := append([]string{strconv.Itoa(p.Iteration), p.Elapsed.String(), formatFloat(p.Fitness)}, formatFloats(p.X)...)
			if err := appendRow(h.IterationPath(), row); err != nil {
				log.Printf("[CSV] unable to write iteration %d: %v\n", p.Iteration, err)
			}
		case search.Result:
			if err := appendRow(ResultPath(h.dir, h.node, h.steps), formatFloats(p.X)); err != nil {
				log.Printf("[CSV] unable to write result: %v\n", err)
			}
			if err := appendRow(FitnessPath(h.dir, h.node, h.steps), []string{formatFloat(p.Fitness)}); err != nil {
				log.Printf("[CSV] unable to write result fitness: %v\n", err)
			}
		}
	}
	log.Println("[CSV] Process Shutdown")
}

func appendRow(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatFloats(v []float64) []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = formatFloat(x)
	}
	return out
}
