// Package firewall turns encrypted gateway connection events into
// time-series points.
package firewall

import (
	"context"
	"encoding/json"
	"time"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/processor"
	"github.com/willnx/autobox/storage/influx"
)

// Category is the registry name for this processor.
const Category = "firewall"

// measurement names the series family in the time-series store.
const measurement = "firewall"

// event is the payload a user's gateway publishes for every connection
// through its firewall. Time is epoch seconds, fractional part kept.
type event struct {
	User   string  `json:"user"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Time   float64 `json:"time"`
}

// Processor handles one worker's share of the firewall-event stream.
type Processor struct {
	decryptor *processor.Decryptor
	store     *influx.Writer
}

// New builds a firewall processor with its own store connection and
// staging buffer.
func New(deps processor.Deps) (*Processor, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	decryptor, err := processor.NewDecryptor(deps.Config.Pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "firewall.Processor", "New", "build decryptor")
	}
	store, err := influx.NewWriter(influx.Deps{
		Config:      deps.Config.Influx,
		Measurement: measurement,
		Logger:      deps.Logger,
		Metrics:     deps.Metrics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "firewall.Processor", "New", "build store writer")
	}
	return &Processor{decryptor: decryptor, store: store}, nil
}

// Register adds the firewall factory to the registry.
func Register(registry *processor.Registry, deps processor.Deps) error {
	return registry.Register(Category, func() (processor.Processor, error) {
		return New(deps)
	})
}

// Process decrypts one event and stages it as a point. The username rides
// as both a tag and a field: the store can group by tags and aggregate
// fields, but never both from the same column, and the dashboards need
// connected-user counts as well as per-user usage over time.
func (p *Processor) Process(record []byte) error {
	plaintext, err := p.decryptor.Decrypt(record)
	if err != nil {
		return err
	}
	var ev event
	if err := json.Unmarshal(plaintext, &ev); err != nil {
		return errors.WrapInvalid(errors.ErrParsingFailed, "firewall.Processor", "Process", "decode event")
	}

	tags := map[string]string{"username": ev.User}
	fields := map[string]interface{}{
		"user":    ev.User,
		"source":  ev.Source,
		"target":  ev.Target,
		"packets": 1, // each event represents a single packet
	}
	// Background context: an in-flight write must be allowed to finish
	// even while the pool is shutting the worker down.
	return p.store.AddPoint(context.Background(), tags, fields, eventTime(ev.Time))
}

// Flush delivers the staged points and closes the store connection.
func (p *Processor) Flush() error {
	return p.store.Flush()
}

func eventTime(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
