package engine

import "context"

// echoEngine answers every statement with a single row echoing the query
// text. It exists so the server binary has something to dispatch to until a
// real executor is plugged in, and it keeps integration tests independent
// of any SQL implementation.
type echoEngine struct{}

// NewEchoEngine returns a placeholder query engine
func NewEchoEngine() IQueryEngine {
	return echoEngine{}
}

func (echoEngine) Execute(_ context.Context, sql string) (IRowStream, error) {
	return &sliceStream{
		rows:    []Row{{[]byte(sql)}},
		outcome: Outcome{Verb: "ECHO", RowCount: 1},
	}, nil
}

// sliceStream serves a fixed set of rows. Useful for engines that already
// hold their full result in memory, and for tests.
type sliceStream struct {
	rows    []Row
	next    int
	outcome Outcome
}

// NewSliceStream builds a row stream over pre-computed rows
func NewSliceStream(rows []Row, outcome Outcome) IRowStream {
	return &sliceStream{rows: rows, outcome: outcome}
}

func (s *sliceStream) Next(ctx context.Context) (Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.next >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.next]
	s.next++
	return row, true, nil
}

func (s *sliceStream) Outcome() Outcome {
	return s.outcome
}
