// Package weblog turns Apache-style access-log records into search-index
// documents.
package weblog

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/processor"
	"github.com/willnx/autobox/storage/elastic"
)

// Category is the registry name for this processor.
const Category = "weblog"

// group names the index family under the configured prefix.
const group = "web"

const (
	accessTimeLayout = "[02/Jan/2006:15:04:05"
	indexTimeLayout  = "2006/01/02 15:04:05"
)

// document is the shape indexed for every access-log record. Lines that are
// not access entries (tracebacks, startup banners) keep null fields so the
// raw line stays searchable.
type document struct {
	Source        string  `json:"source"`
	Timestamp     *string `json:"timestamp"`
	User          *string `json:"user"`
	ClientIP      *string `json:"client_ip"`
	Method        *string `json:"method"`
	URL           *string `json:"url"`
	StatusCode    *string `json:"status_code"`
	UserAgent     *string `json:"user_agent"`
	TransactionID *string `json:"transaction_id"`
	Log           string  `json:"log"`
}

// Processor handles one worker's share of the web-log stream.
type Processor struct {
	decryptor *processor.Decryptor
	store     *elastic.Writer
}

// New builds a weblog processor with its own store connection.
func New(deps processor.Deps) (*Processor, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	decryptor, err := processor.NewDecryptor(deps.Config.Pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "weblog.Processor", "New", "build decryptor")
	}
	store, err := elastic.NewWriter(elastic.Deps{
		Config:  deps.Config.Elastic,
		Group:   group,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "weblog.Processor", "New", "build store writer")
	}
	return &Processor{decryptor: decryptor, store: store}, nil
}

// Register adds the weblog factory to the registry.
func Register(registry *processor.Registry, deps processor.Deps) error {
	return registry.Register(Category, func() (processor.Processor, error) {
		return New(deps)
	})
}

// Process decrypts one record, parses the access line, and indexes the
// resulting document.
func (p *Processor) Process(record []byte) error {
	env, err := p.decryptor.DecryptEnvelope(record)
	if err != nil {
		return err
	}
	body, err := json.Marshal(parseLine(env.Name, env.Log))
	if err != nil {
		return errors.WrapInvalid(err, "weblog.Processor", "Process", "encode document")
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

// parseLine extracts the interesting bits of a standard Apache access line:
//
//	10.200.217.90 - unset [08/Apr/2019:22:21:57 -0000] "GET /api/1/inf/onefs?param HTTP/1.1" 200 248 "None" "vLab CLI 2019.03.28 rid=85c1c19d38e0485da38d4d0a9da2f43f"
//
// The first token doubles as the access-entry detector: if it is not an IP
// address the line is some other output (a traceback, a banner) and only
// source and the raw line are kept.
func parseLine(source, line string) document {
	doc := document{Source: source, Log: line}

	raw := strings.Fields(line)
	byQuotes := strings.Split(line, `"`)
	if len(raw) < 9 || net.ParseIP(raw[0]) == nil {
		return doc
	}

	if ts, err := time.Parse(accessTimeLayout, raw[3]); err == nil {
		// formatted, not epoch, so the index infers the date type
		doc.Timestamp = ref(ts.Format(indexTimeLayout))
	}
	doc.User = ref(raw[2])
	doc.ClientIP = ref(raw[0])
	doc.Method = ref(strings.ReplaceAll(raw[5], `"`, ""))
	doc.URL = ref(raw[6])
	doc.StatusCode = ref(raw[8])

	if len(byQuotes) > 5 {
		// the CLI overloads the User-Agent header with a transaction id:
		// "vLab CLI 2019.03.28 rid=<hex>"
		parts := strings.Split(byQuotes[5], "=")
		doc.UserAgent = ref(strings.ReplaceAll(parts[0], "rid", ""))
		if len(parts) > 1 {
			doc.TransactionID = ref(parts[1])
		}
	}
	return doc
}

func ref(s string) *string { return &s }
