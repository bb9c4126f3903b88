package statusapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

type fakeStates map[string]*models.PipelineState

func (f fakeStates) GetState(runID string) (*models.PipelineState, bool) {
	st, ok := f[runID]
	return st, ok
}

func testRouter(states fakeStates, cancels *CancelRegistry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(states, cancels, NewHub(), NewRateLimiter(60, 10))
}

func TestGetRunState(t *testing.T) {
	states := fakeStates{
		"run-1": {RunID: "run-1", Stages: map[models.StageName]*models.StageState{}},
	}
	router := testRouter(states, NewCancelRegistry())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET known run: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET unknown run: status = %d, want 404", w.Code)
	}
}

func TestCancelRun(t *testing.T) {
	cancels := NewCancelRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancels.Register("run-1", cancel)
	defer cancels.Unregister("run-1")

	router := testRouter(fakeStates{}, cancels)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/runs/run-1/cancel", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST cancel: status = %d, want 202", w.Code)
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("cancel endpoint did not cancel the run's context")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/runs/run-2/cancel", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("POST cancel unknown run: status = %d, want 404", w.Code)
	}
}
