package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/queue"
	"hiring-backend/internal/workerproc"
)

type scriptedProcessor map[string]error

func (s scriptedProcessor) Process(ctx context.Context, msg queue.Message) error {
	return s[msg.ApplicationID]
}

func TestProcessRecordsReportsOnlyTransientFailures(t *testing.T) {
	proc := scriptedProcessor{
		"ok":    nil,
		"flaky": workerproc.ErrProcess{Kind: queue.KindStartSession, Err: pipeline.ErrExternalService},
		"gone":  workerproc.ErrProcess{Kind: queue.KindStartSession, Permanent: true, Err: pipeline.ErrNotFound},
		"odd":   errors.New("unexpected"),
	}
	records := []events.SQSMessage{
		{MessageId: "1", Body: `{"applicationId":"ok","kind":"start_session"}`},
		{MessageId: "2", Body: `{"applicationId":"flaky","kind":"start_session"}`},
		{MessageId: "3", Body: `{"applicationId":"gone","kind":"start_session"}`},
		{MessageId: "4", Body: `not json`},
		{MessageId: "5", Body: `{"applicationId":"odd","kind":"aggregate_score"}`},
	}

	failures := processRecords(context.Background(), proc, records)

	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.ItemIdentifier)
	}
	assert.Equal(t, []string{"2", "5"}, ids)
}
