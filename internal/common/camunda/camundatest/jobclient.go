// Package camundatest provides an in-memory job client for exercising worker handlers.
package camundatest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"google.golang.org/grpc"
)

// JobClient records the complete, fail and throw-error commands a handler sends.
type JobClient struct {
	gateway *gateway
}

func NewJobClient() *JobClient {
	return &JobClient{gateway: &gateway{}}
}

func noRetry(context.Context, error) bool { return false }

func (c *JobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, noRetry)
}

func (c *JobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, noRetry)
}

func (c *JobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, noRetry)
}

// Unavailable makes the next n job commands fail with a transient gateway error.
func (c *JobClient) Unavailable(n int) {
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()
	c.gateway.unavailable = n
}

// Completed returns the variables of every completed job, decoded into maps.
func (c *JobClient) Completed(t testing.TB) []map[string]interface{} {
	t.Helper()
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(c.gateway.completed))
	for _, req := range c.gateway.completed {
		out = append(out, decode(t, req.GetVariables()))
	}
	return out
}

// Failure is a recorded fail-job command.
type Failure struct {
	JobKey       int64
	Retries      int32
	ErrorMessage string
	Variables    map[string]interface{}
}

func (c *JobClient) Failed(t testing.TB) []Failure {
	t.Helper()
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()

	out := make([]Failure, 0, len(c.gateway.failed))
	for _, req := range c.gateway.failed {
		out = append(out, Failure{
			JobKey:       req.GetJobKey(),
			Retries:      req.GetRetries(),
			ErrorMessage: req.GetErrorMessage(),
			Variables:    decode(t, req.GetVariables()),
		})
	}
	return out
}

// ThrownError is a recorded throw-error command.
type ThrownError struct {
	JobKey       int64
	ErrorCode    string
	ErrorMessage string
	Variables    map[string]interface{}
}

func (c *JobClient) Thrown(t testing.TB) []ThrownError {
	t.Helper()
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()

	out := make([]ThrownError, 0, len(c.gateway.thrown))
	for _, req := range c.gateway.thrown {
		out = append(out, ThrownError{
			JobKey:       req.GetJobKey(),
			ErrorCode:    req.GetErrorCode(),
			ErrorMessage: req.GetErrorMessage(),
			Variables:    decode(t, req.GetVariables()),
		})
	}
	return out
}

// NewJob builds an activated job of taskType carrying variables as JSON.
func NewJob(t testing.TB, key int64, taskType string, variables interface{}) entities.Job {
	t.Helper()
	payload, err := json.Marshal(variables)
	if err != nil {
		t.Fatalf("marshal job variables: %v", err)
	}
	return RawJob(key, taskType, string(payload))
}

// RawJob builds an activated job whose variables are used verbatim.
func RawJob(key int64, taskType, variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               taskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "followup-process",
		ElementId:          "Activity_" + taskType,
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          variables,
	}}
}

func decode(t testing.TB, raw string) map[string]interface{} {
	t.Helper()
	if raw == "" {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode recorded variables: %v", err)
	}
	return out
}

// gateway implements only the job RPCs; any other call panics on the nil embedded client.
type gateway struct {
	pb.GatewayClient

	mu        sync.Mutex
	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest

	unavailable int
}

var errUnavailable = errors.New("rpc error: code = Unavailable desc = connection refused")

func (g *gateway) down() bool {
	if g.unavailable > 0 {
		g.unavailable--
		return true
	}
	return false
}

func (g *gateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down() {
		return nil, errUnavailable
	}
	g.completed = append(g.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (g *gateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down() {
		return nil, errUnavailable
	}
	g.failed = append(g.failed, in)
	return &pb.FailJobResponse{}, nil
}

func (g *gateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down() {
		return nil, errUnavailable
	}
	g.thrown = append(g.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}
