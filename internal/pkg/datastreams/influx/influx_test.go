package influx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"gotest.tools/v3/assert"
)

func TestGetConfig(t *testing.T) {
	h, err := New("./testdata/influx_config_test.json", msg.NewPublisher(uuid.New()))
	assert.NilError(t, err)
	assert.Equal(t, h.config.Bucket, "optimisation")
	assert.Equal(t, h.config.Org, "firm")
}

func TestIncompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{"URL": "http://localhost:8086"}`), 0o644))

	_, err := New(path, msg.NewPublisher(uuid.New()))
	assert.ErrorContains(t, err, "needs URL, Org and Bucket")
}

func TestPoint(t *testing.T) {
	run := uuid.New()
	now := time.Unix(1700000000, 0)

	p := point(msg.New(run, msg.Iteration, search.Iteration{Iteration: 7, Fitness: 64.5}), now)
	assert.Equal(t, p.Name(), "firm_iteration")
	assert.Equal(t, p.Time(), now)
	assert.Equal(t, p.TagList()[0].Value, run.String())

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, fields["fitness"], 64.5)
	assert.Equal(t, fields["iteration"], int64(7))

	p = point(msg.New(run, msg.Result, search.Result{Converged: true}), now)
	assert.Equal(t, p.Name(), "firm_result")

	assert.Assert(t, point(msg.New(run, msg.Result, 1), now) == nil)
}
