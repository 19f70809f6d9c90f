package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/datastreams/influx"
	"github.com/ohowland/firm_ce/internal/pkg/datastreams/mongodb"
	"github.com/ohowland/firm_ce/internal/pkg/datastreams/mqtt"
	"github.com/ohowland/firm_ce/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/firm_ce/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
)

// Sink is a subscriber that persists search progress until its subscription closes.
type Sink interface {
	PID() uuid.UUID
	Process()
	Stop()
}

// parseSink splits "kind=path".
func parseSink(spec string) (kind, path string, err error) {
	kind, path, ok := strings.Cut(spec, "=")
	if !ok || kind == "" || path == "" {
		return "", "", fmt.Errorf("sink %q: want kind=config.json", spec)
	}
	return strings.ToLower(kind), path, nil
}

func newSink(spec string, system msg.Publisher) (Sink, error) {
	kind, path, err := parseSink(spec)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "mongodb", "mongo":
		h, err := mongodb.New(path, system)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "mqtt":
		h, err := mqtt.New(path, system)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "nats":
		h, err := natshandler.New(path, system)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "sql", "mysql", "postgres":
		h, err := sqldb.New(path, system)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "influx", "influxdb":
		h, err := influx.New(path, system)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	return nil, fmt.Errorf("sink %q: unknown kind %q", spec, kind)
}
