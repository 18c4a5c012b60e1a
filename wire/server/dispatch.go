package server

import (
	"context"

	"github.com/VictoriaMetrics/metrics"

	"github.com/pulanski/r2db2/wire/engine"
	"github.com/pulanski/r2db2/wire/proto"
)

var (
	queriesTotal  = metrics.GetOrCreateCounter("r2db2_queries_total")
	queriesFailed = metrics.GetOrCreateCounter("r2db2_queries_failed_total")
)

// processQuery forwards one statement to the query engine and streams the
// resulting rows back to the client as they are produced. Rows are never
// buffered server-side; socket backpressure is the flow control.
//
// A nil return means the connection stays usable: either the query succeeded
// or its failure was reported to the client as a statement-level error. A
// non-nil return is connection-fatal.
func (c *connection) processQuery(ctx context.Context, sql string) error {
	queriesTotal.Inc()

	// The per-query context stops the engine from producing further rows
	// once the client can no longer receive them
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.engine.Execute(qctx, sql)
	if err != nil {
		return c.queryFailed(err)
	}

	for {
		row, ok, err := stream.Next(qctx)
		if err != nil {
			return c.queryFailed(err)
		}
		if !ok {
			break
		}
		if err := c.writeMessage(proto.DataRow{Columns: row}); err != nil {
			// Client went away mid-stream: stop pulling rows and let the
			// serve loop tear the connection down
			cancel()
			return err
		}
	}

	return c.writeMessage(proto.CommandComplete{Tag: stream.Outcome().Tag()})
}

// queryFailed reports an engine failure. Statement-level errors go to the
// client and leave the connection ready; fatal engine errors propagate and
// terminate the connection.
func (c *connection) queryFailed(err error) error {
	queriesFailed.Inc()
	if engine.IsFatal(err) {
		return err
	}
	sessionLog.Infof("session %s: query failed: %v", c.info.ID, err)
	return c.writeMessage(proto.ErrorResponse{Message: err.Error()})
}
