// Package elastic persists processed log documents into daily search
// indices.
package elastic

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/metric"
	"github.com/willnx/autobox/pkg/retry"
)

// Writer indexes one JSON document at a time into an index named
// <prefix>-<group>-YYYY.MM.DD. Writes are synchronous so failures surface
// to the calling worker immediately; nothing is buffered in this layer.
//
// Documents must carry a "timestamp" field, which the categories guarantee;
// the daily index plus that field is what the downstream dashboards group
// on.
type Writer struct {
	client    *elasticsearch.Client
	transport *http.Transport
	prefix    string
	group     string
	logger    *slog.Logger
	metrics   *metric.Metrics
	retryCfg  retry.Config
}

// Deps holds runtime dependencies for the Writer.
type Deps struct {
	Config  config.ElasticConfig
	Group   string // record category, becomes part of the index name
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// NewWriter builds a Writer for the given record category.
func NewWriter(deps Deps) (*Writer, error) {
	if deps.Group == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"ElasticWriter", "NewWriter", "resolve record category")
	}

	password, err := deps.Config.Password()
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	if deps.Config.SkipVerify {
		// Lab deployments run the store with self-signed certificates
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: deps.Config.Addresses,
		Username:  deps.Config.Username,
		Password:  password,
		Transport: transport,
	})
	if err != nil {
		return nil, errors.WrapInvalid(err, "ElasticWriter", "NewWriter", "build client")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "elastic-writer", "group", deps.Group)
	}

	return &Writer{
		client:    client,
		transport: transport,
		prefix:    deps.Config.IndexPrefix,
		group:     deps.Group,
		logger:    logger,
		metrics:   deps.Metrics,
		retryCfg:  retry.DefaultConfig(),
	}, nil
}

// indexName returns today's index for this writer's category.
func (w *Writer) indexName() string {
	return fmt.Sprintf("%s-%s-%s", w.prefix, w.group, time.Now().UTC().Format("2006.01.02"))
}

// Write indexes a single document, retrying transient failures. Rejected
// documents come back invalid-classified so the caller drops them; auth
// failures come back fatal because no document will ever succeed.
func (w *Writer) Write(ctx context.Context, document []byte) error {
	start := time.Now()
	err := retry.Do(ctx, w.retryCfg, func() error {
		return w.index(ctx, document)
	})

	if w.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		w.metrics.RecordStoreWrite("elastic", status)
		w.metrics.RecordStoreWriteDuration("elastic", time.Since(start))
	}
	return err
}

func (w *Writer) index(ctx context.Context, document []byte) error {
	req := esapi.IndexRequest{
		Index: w.indexName(),
		Body:  bytes.NewReader(document),
	}

	res, err := req.Do(ctx, w.client)
	if err != nil {
		return err // transport error, retried
	}
	defer res.Body.Close()

	if res.IsError() {
		switch {
		case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
			return retry.NonRetryable(errors.WrapFatal(errors.ErrWriteRejected,
				"ElasticWriter", "Write",
				fmt.Sprintf("authenticate to store (HTTP %d)", res.StatusCode)))
		case res.StatusCode >= 400 && res.StatusCode < 500 &&
			res.StatusCode != http.StatusRequestTimeout && res.StatusCode != http.StatusTooManyRequests:
			// The document itself was rejected; the same bytes will never
			// succeed on a retry.
			return retry.NonRetryable(errors.WrapInvalid(errors.ErrWriteRejected,
				"ElasticWriter", "Write",
				fmt.Sprintf("index document (HTTP %d)", res.StatusCode)))
		default:
			return fmt.Errorf("index document: %s", res.Status())
		}
	}

	// Drain the body so the connection can be reused
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// Flush closes idle store connections. Writes are synchronous, so there is
// no buffered data to push.
func (w *Writer) Flush() error {
	w.transport.CloseIdleConnections()
	return nil
}
