// Package categories registers every built-in record category.
package categories

import (
	stderrors "errors"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/processor"
	"github.com/willnx/autobox/processor/dnslog"
	"github.com/willnx/autobox/processor/firewall"
	"github.com/willnx/autobox/processor/weblog"
	"github.com/willnx/autobox/processor/workerlog"
)

// Register wires all built-in category factories into the registry:
//
//   - weblog: Apache-style access logs → search index
//   - dnslog: name-server logs → search index
//   - workerlog: task-runner logs → search index
//   - firewall: encrypted gateway events → time-series store
//
// A deployment runs exactly one category per process; registering them all
// keeps category selection a pure config concern.
func Register(registry *processor.Registry, deps processor.Deps) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return errors.WrapFatal(
			stderrors.New("registry cannot be nil"),
			"Categories", "Register", "registry validation")
	}

	if err := weblog.Register(registry, deps); err != nil {
		return errors.WrapInvalid(err, "Categories", "Register", "weblog category registration")
	}

	if err := dnslog.Register(registry, deps); err != nil {
		return errors.WrapInvalid(err, "Categories", "Register", "dnslog category registration")
	}

	if err := workerlog.Register(registry, deps); err != nil {
		return errors.WrapInvalid(err, "Categories", "Register", "workerlog category registration")
	}

	if err := firewall.Register(registry, deps); err != nil {
		return errors.WrapInvalid(err, "Categories", "Register", "firewall category registration")
	}

	return nil
}
