// Package dnslog turns BIND-style name-server log records into search-index
// documents.
package dnslog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/processor"
	"github.com/willnx/autobox/storage/elastic"
)

// Category is the registry name for this processor.
const Category = "dnslog"

// group names the index family under the configured prefix.
const group = "dns"

const (
	namedTimeLayout = "02-Jan-2006 15:04:05"
	indexTimeLayout = "2006/01/02 15:04:05"
)

// document is the shape indexed for every name-server record.
type document struct {
	Service   string `json:"service"`
	Log       string `json:"log"`
	Timestamp string `json:"timestamp"`
	Query     bool   `json:"query"`
	Update    bool   `json:"update"`
	ClientIP  string `json:"client_ip"`
}

// Processor handles one worker's share of the DNS-log stream.
type Processor struct {
	decryptor *processor.Decryptor
	store     *elastic.Writer
}

// New builds a dnslog processor with its own store connection.
func New(deps processor.Deps) (*Processor, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	decryptor, err := processor.NewDecryptor(deps.Config.Pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "dnslog.Processor", "New", "build decryptor")
	}
	store, err := elastic.NewWriter(elastic.Deps{
		Config:  deps.Config.Elastic,
		Group:   group,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "dnslog.Processor", "New", "build store writer")
	}
	return &Processor{decryptor: decryptor, store: store}, nil
}

// Register adds the dnslog factory to the registry.
func Register(registry *processor.Registry, deps processor.Deps) error {
	return registry.Register(Category, func() (processor.Processor, error) {
		return New(deps)
	})
}

// Process decrypts one record, parses the name-server line, and indexes
// the resulting document.
func (p *Processor) Process(record []byte) error {
	env, err := p.decryptor.DecryptEnvelope(record)
	if err != nil {
		return err
	}
	doc, err := parseLine(env.Name, env.Log)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapInvalid(err, "dnslog.Processor", "Process", "encode document")
	}
	// Background context: an in-flight write must be allowed to finish
	// even while the pool is shutting the worker down.
	return p.store.Write(context.Background(), body)
}

// Flush releases the store connection. Nothing is buffered per record, so
// there is no data to deliver.
func (p *Processor) Flush() error {
	return p.store.Flush()
}

// parseLine extracts the interesting bits of a named log line:
//
//	17-Apr-2019 21:02:40.011 client @0x7f849c106e50 192.168.1.2#64652 (myserver.vlab.local): query: myserver.vlab.local IN A + (192.168.1.1)
//
// Lines that do not open with the name server's timestamp cannot be
// indexed and are reported as invalid.
func parseLine(service, line string) (document, error) {
	doc := document{Service: service, Log: line}

	chunks := strings.Split(line, " ")
	if len(chunks) < 2 {
		return doc, errors.WrapInvalid(errors.ErrParsingFailed, "dnslog.Processor", "Process",
			"locate timestamp in record")
	}
	// second chunk carries milliseconds the index does not want
	stamp := chunks[0] + " " + strings.Split(chunks[1], ".")[0]
	ts, err := time.Parse(namedTimeLayout, stamp)
	if err != nil {
		return doc, errors.WrapInvalid(errors.ErrParsingFailed, "dnslog.Processor", "Process",
			"parse timestamp "+stamp)
	}
	doc.Timestamp = ts.Format(indexTimeLayout)
	doc.Query = strings.Contains(line, "query:")
	doc.Update = strings.Contains(line, "ddns_update:")
	if len(chunks) > 4 && chunks[2] == "client" {
		doc.ClientIP = strings.Split(chunks[4], "#")[0]
	}
	return doc, nil
}
