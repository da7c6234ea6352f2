/*
Package uow emits unit-of-work metrics: one structured record per
request, job, or transaction, carrying string properties, numeric
measurements with units, timers, and nested sub-records. Records close
(snapshot) when their owner chain terminates and flow through a
non-blocking sink pipeline to a framed byte stream, primarily as
Amazon EMF JSON lines.

The stack has three layers:

  - the entry model - tagged structs (or hand-written EntryCloser
    implementations) that close into immutable, serializable entries,
    with name inflection, prefix composition, and flattening
  - the lifecycle primitives - append-on-drop guards, shared handles,
    flush and force-flush guards, one-shot slots, atomic counters, and
    timers, which together decide *when* a record becomes an entry
  - the sink pipeline - a bounded background queue that drops oldest
    under pressure (or a synchronous immediate sink), serializing
    formats, and samplers that thin the stream while preserving
    aggregate weight

Example of basic usage:

	type RequestMetrics struct {
		_ struct{} `metric:"rename_all=PascalCase"`

		Operation     string         `metric:",samplegroup"`
		Time          uow.Timestamp  `metric:",timestamp"`
		NumberOfDucks uow.Counter    `metric:",unit=Count"`
		OperationTime *uow.Timer     `metric:",unit=Milliseconds"`
	}

	handle := uow.AttachToStream(uow.NewEMFFormat(nil), os.Stdout, nil)
	defer handle.Close()

	m := uow.AppendOnDrop(&RequestMetrics{
		Operation:     "CountDucks",
		Time:          uow.Now(),
		OperationTime: uow.StartTimer(),
	}, uow.Sink())
	defer m.Close()

	m.Metric().NumberOfDucks.Add(5)

Dropping the guard (Close) snapshots the record, validates it, and
hands the entry to the sink; the background queue's consumer formats
it and writes one framed record to the stream. Emission is exactly
once, validation failures surface on the diagnostic channel rather
than to the producer, and the queue sheds oldest entries instead of
blocking when the consumer falls behind.
*/
package uow
