package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gridmesh/gridmesh/pkg/coordinator"
	"github.com/gridmesh/gridmesh/pkg/registry"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

// --- Nodes ---

func (s *Server) registerNode(w http.ResponseWriter, r *http.Request) {
	var spec types.ComputeNode
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidSpec, err))
		return
	}
	node, err := s.coord.RegisterNode(&spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ListNodes())
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.coord.GetNode(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) unregisterNode(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.UnregisterNode(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateResources(w http.ResponseWriter, r *http.Request) {
	var update registry.ResourceUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidSpec, err))
		return
	}
	if err := s.coord.UpdateNodeResources(mux.Vars(r)["id"], update); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Heartbeat(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Tasks ---

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var spec types.ComputeTask
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidSpec, err))
		return
	}
	task, err := s.coord.SubmitTask(&spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ListTasks())
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.coord.GetTask(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.CancelTask(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// taskResult accepts an execution outcome pushed by a node agent and feeds
// it into the transport's result stream.
func (s *Server) taskResult(w http.ResponseWriter, r *http.Request) {
	var res transport.Result
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidSpec, err))
		return
	}
	res.TaskID = mux.Vars(r)["id"]
	s.results.Deliver(res)
	w.WriteHeader(http.StatusAccepted)
}

// --- Jobs ---

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var spec coordinator.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidSpec, err))
		return
	}
	job, err := s.coord.SubmitJob(&spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ListJobs())
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.coord.GetJob(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- Clusters ---

func (s *Server) createCluster(w http.ResponseWriter, r *http.Request) {
	var spec types.EdgeCluster
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidSpec, err))
		return
	}
	cl, err := s.coord.CreateCluster(&spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cl)
}

func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ListClusters())
}

func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	cl, err := s.coord.GetCluster(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

type scaleRequest struct {
	Target int `json:"target"`
}

func (s *Server) scaleCluster(w http.ResponseWriter, r *http.Request) {
	var req scaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidSpec, err))
		return
	}
	if err := s.coord.ScaleCluster(mux.Vars(r)["id"], req.Target); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addClusterNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.coord.AddNodeToCluster(vars["id"], vars["nodeID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeClusterNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.coord.RemoveNodeFromCluster(vars["id"], vars["nodeID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Observability ---

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// streamEvents writes the live event feed as JSON lines until the client
// disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.coord.Broker().Subscribe()
	defer s.coord.Broker().Unsubscribe(sub)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case event, open := <-sub:
			if !open {
				return
			}
			if err := enc.Encode(event); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	archive := s.coord.History()
	if archive == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: bad limit %q", types.ErrInvalidSpec, v))
			return
		}
		limit = n
	}
	records, err := archive.ListRecent(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
