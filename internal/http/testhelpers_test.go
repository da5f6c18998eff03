package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/target/bulkmove/internal/data"
	"github.com/target/bulkmove/internal/mocks/memstore"
	"github.com/target/bulkmove/internal/service"
)

const (
	sourceColl  = "8d2b2f40-5d0e-4d7b-9a53-1f4f3c1a0001"
	targetColl  = "8d2b2f40-5d0e-4d7b-9a53-1f4f3c1a0002"
	missingColl = "8d2b2f40-5d0e-4d7b-9a53-1f4f3c1a0404"
	likedColl   = "8d2b2f40-5d0e-4d7b-9a53-1f4f3c1a0003"
)

type dispatchFunc func(ctx context.Context, jobID string) error

func (f dispatchFunc) Dispatch(ctx context.Context, jobID string) error { return f(ctx, jobID) }

type apiFixture struct {
	store  *memstore.Store
	ledger *data.MemoryLedger
	svc    *service.TransferService
	router http.Handler

	runJobs bool // dispatch runs the job inline when set
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		store:   memstore.New(),
		ledger:  data.NewMemoryLedger(nil),
		runJobs: true,
	}
	f.store.AddCollection(sourceColl, "source", 1, 2, 3, 4, 5)
	f.store.AddCollection(targetColl, "target", 2, 4)

	runner := service.MustNewTransferRunner(service.TransferRunnerOptions{
		Ledger:  f.ledger,
		Members: f.store,
		Writer:  service.MustNewBatchWriter(service.BatchWriterOptions{Store: f.store}),
		Config:  service.RunnerConfig{BatchSize: 2},
	})
	f.svc = service.MustNewTransferService(service.TransferServiceOptions{
		Store:  f.store,
		Ledger: f.ledger,
		Dispatcher: dispatchFunc(func(ctx context.Context, jobID string) error {
			if !f.runJobs {
				return nil
			}
			return runner.Run(ctx, jobID)
		}),
	})
	f.router = NewRouter(RouterServices{Transfers: f.svc})
	return f
}

func (f *apiFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
