package statusapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// StateProvider answers "what is run_id's current PipelineState", backed by
// whatever the Orchestrator caller uses to track runs (cmd/dedupengine
// supplies a small in-memory tracker).
type StateProvider interface {
	GetState(runID string) (*models.PipelineState, bool)
}

// CancelRegistry maps a run_id to the context.CancelFunc that stops it;
// the orchestrator checks the cancelled context between stages.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCancelRegistry returns an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register associates runID with cancel, for later lookup by Cancel.
func (r *CancelRegistry) Register(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[runID] = cancel
}

// Unregister removes runID, typically once the run has finished.
func (r *CancelRegistry) Unregister(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, runID)
}

// Cancel invokes the registered cancel func for runID, returning false if
// no run with that id is currently tracked.
func (r *CancelRegistry) Cancel(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[runID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// SetupRouter builds the read-only status + cancel surface: state lookup,
// the event stream, and the authenticated, rate-limited cancel endpoint.
func SetupRouter(states StateProvider, cancels *CancelRegistry, hub *Hub, limiter *RateLimiter) *gin.Engine {
	r := gin.Default()

	r.GET("/v1/runs/:run_id", func(c *gin.Context) {
		st, ok := states.GetState(c.Param("run_id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown run_id"})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	r.GET("/v1/runs/:run_id/stream", hub.Subscribe)

	cancelGroup := r.Group("/v1/runs/:run_id/cancel")
	cancelGroup.Use(AuthMiddleware(), limiter.Middleware())
	cancelGroup.POST("", func(c *gin.Context) {
		runID := c.Param("run_id")
		if !cancels.Cancel(runID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no in-flight run with that run_id"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancellation requested", "run_id": runID})
	})

	return r
}
