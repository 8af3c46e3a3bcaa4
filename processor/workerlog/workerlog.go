// Package workerlog turns task-runner log records into search-index
// documents that track task lifecycles.
package workerlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/processor"
	"github.com/willnx/autobox/storage/elastic"
)

// Category is the registry name for this processor.
const Category = "workerlog"

// group names the index family under the configured prefix.
const group = "worker"

var (
	// request ids are bare 32-char hex, task ids are hyphenated UUIDs
	requestIDPattern = regexp.MustCompile(`[0-9a-f]{32}`)
	taskIDPattern    = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// document is the shape indexed for every task-runner record. Started and
// Completed mark lifecycle boundaries so a dashboard can compute task
// durations without scanning message text.
type document struct {
	Service   string `json:"service"`
	TaskID    string `json:"task_id"`
	RequestID string `json:"request_id"`
	Started   bool   `json:"started"`
	Completed bool   `json:"completed"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Processor handles one worker's share of the task-runner log stream.
type Processor struct {
	decryptor *processor.Decryptor
	store     *elastic.Writer
	logger    *slog.Logger
}

// New builds a workerlog processor with its own store connection.
func New(deps processor.Deps) (*Processor, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	decryptor, err := processor.NewDecryptor(deps.Config.Pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "workerlog.Processor", "New", "build decryptor")
	}
	store, err := elastic.NewWriter(elastic.Deps{
		Config:  deps.Config.Elastic,
		Group:   group,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "workerlog.Processor", "New", "build store writer")
	}
	return &Processor{
		decryptor: decryptor,
		store:     store,
		logger:    deps.Logger.With("category", Category),
	}, nil
}

// Register adds the workerlog factory to the registry.
func Register(registry *processor.Registry, deps processor.Deps) error {
	return registry.Register(Category, func() (processor.Processor, error) {
		return New(deps)
	})
}

// Process decrypts one record, parses the task-runner line, and indexes
// the resulting document. Lines without a task id are prior emissions of
// the runner's duplicate-logging quirk and are skipped without error.
func (p *Processor) Process(record []byte) error {
	env, err := p.decryptor.DecryptEnvelope(record)
	if err != nil {
		return err
	}
	doc, ok, err := parseLine(env.Name, env.Log)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Debug("skipping record without task id", "service", env.Name)
		return nil
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapInvalid(err, "workerlog.Processor", "Process", "encode document")
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

// parseLine extracts the interesting bits of a task-runner log line:
//
//	[2019-04-11 15:51:10,530: WARNING/ForkPoolWorker-11] 2019-04-11 15:51:10,529 [7c7a53fa69a44201acf015f5964255b1] [e43ed12f-621e-41f7-8117-0f4c4c400602]: Config OneFS 8.0.0
//
// The runner logs every event twice, once with task metadata and once
// without; records lacking a task id are the metadata-free duplicates and
// come back with ok=false.
func parseLine(service, line string) (document, bool, error) {
	taskID := singleMatch(taskIDPattern, line)
	if taskID == "" {
		return document{}, false, nil
	}

	chunked := strings.Split(line, " ")
	if len(chunked) < 2 {
		return document{}, false, errors.WrapInvalid(errors.ErrParsingFailed,
			"workerlog.Processor", "Process", "locate timestamp in record")
	}
	date := strings.ReplaceAll(strings.ReplaceAll(chunked[0], "[", ""), "-", "/")
	clock := strings.Split(chunked[1], ",")[0]

	message := messageOf(line)
	return document{
		Service:   service,
		TaskID:    taskID,
		RequestID: singleMatch(requestIDPattern, line),
		Started:   strings.ToLower(message) == "task starting\n",
		Completed: strings.ToLower(message) == "task complete\n",
		Message:   message,
		Timestamp: date + " " + clock,
	}, true, nil
}

// messageOf strips the log metadata, keeping only the text after the last
// bracketed field.
func messageOf(line string) string {
	message := line[strings.LastIndex(line, "]")+1:]
	return strings.ReplaceAll(message, ": ", "")
}

// singleMatch returns the match only when the line contains exactly one,
// since several matches mean the pattern also hit message text.
func singleMatch(pattern *regexp.Regexp, line string) string {
	matches := pattern.FindAllString(line, -1)
	if len(matches) == 1 {
		return matches[0]
	}
	return ""
}
