package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-memdb"
	"github.com/r3labs/sse/v2"
	"github.com/umbracle/flight-relay/internal/routine"
	"github.com/umbracle/flight-relay/internal/server/state"
)

const projectionsStream = "projections"

// streamed are the collections pushed to the projections stream
var streamed = []state.Collection{
	state.CollectionAirlines,
	state.CollectionFlights,
	state.CollectionFlightStatus,
	state.CollectionBalance,
	state.CollectionOracles,
	state.CollectionRequests,
}

// Health is the response of the health endpoint
type Health struct {
	Ready         bool                     `json:"ready"`
	NextBlock     uint64                   `json:"nextBlock"`
	OraclesFrozen bool                     `json:"oraclesFrozen"`
	Routines      map[string]routine.State `json:"routines"`
}

// ProjectionUpdate is the payload of the projections stream
type ProjectionUpdate struct {
	Collection state.Collection `json:"collection"`
	Data       interface{}      `json:"data"`
}

type service struct {
	srv *Server
}

func (s *Server) handler() http.Handler {
	svc := &service{srv: s}

	router := mux.NewRouter()
	router.HandleFunc("/airlines", svc.collection(state.CollectionAirlines)).Methods("GET")
	router.HandleFunc("/flights", svc.collection(state.CollectionFlights)).Methods("GET")
	router.HandleFunc("/flightsStatus", svc.collection(state.CollectionFlightStatus)).Methods("GET")
	router.HandleFunc("/oracles", svc.collection(state.CollectionOracles)).Methods("GET")
	router.HandleFunc("/requests", svc.collection(state.CollectionRequests)).Methods("GET")
	router.HandleFunc("/contractBalance", svc.ContractBalance).Methods("GET")
	router.HandleFunc("/health", svc.Health).Methods("GET")
	router.HandleFunc("/events", s.sse.ServeHTTP).Methods("GET")

	return handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(router)
}

func (s *Server) setupHTTPServer(addr string) error {
	if addr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:     s.handler(),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.logger.Error("failed to serve http server", "err", err)
		}
	}()

	s.logger.Info("http server started", "addr", lis.Addr().String())
	return nil
}

func (s *service) collection(c state.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obj, err := s.srv.state.Snapshot(memdb.NewWatchSet(), c)
		if err != nil {
			s.srv.logger.Error("failed to read collection", "collection", c, "err", err)
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, obj)
	}
}

// ContractBalance polls the ledger and falls back to the
// cached balance if the ledger is not reachable
func (s *service) ContractBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.srv.pollBalance(r.Context())
	if err == nil {
		s.writeJSON(w, http.StatusOK, balance)
		return
	}
	s.srv.logger.Warn("failed to query contract balance, using cache", "err", err)

	balance, err = s.srv.state.Balance(memdb.NewWatchSet())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

func (s *service) Health(w http.ResponseWriter, r *http.Request) {
	health := &Health{
		NextBlock: s.srv.tracker.Next(),
		Routines:  s.srv.routines.Status(),
	}
	select {
	case <-s.srv.tracker.ReadyCh():
		health.Ready = true
	default:
	}
	select {
	case <-s.srv.registry.FrozenCh():
		health.OraclesFrozen = true
	default:
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *service) writeJSON(w http.ResponseWriter, code int, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		s.srv.logger.Error("failed to encode response", "err", err)
	}
}

// runNotifier publishes a collection in the projections stream
// every time it changes
func (s *Server) runNotifier(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, c := range streamed {
		wg.Add(1)
		go func(c state.Collection) {
			defer wg.Done()
			s.watchCollection(ctx, c)
		}(c)
	}
	wg.Wait()
	return nil
}

func (s *Server) watchCollection(ctx context.Context, c state.Collection) {
	first := true
	for {
		ws := memdb.NewWatchSet()
		obj, err := s.state.Snapshot(ws, c)
		if err != nil {
			s.logger.Error("failed to watch collection", "collection", c, "err", err)
			return
		}

		// the initial contents are served by the collection endpoints
		if !first {
			data, err := json.Marshal(&ProjectionUpdate{Collection: c, Data: obj})
			if err != nil {
				s.logger.Error("failed to encode update", "collection", c, "err", err)
			} else {
				s.sse.Publish(projectionsStream, &sse.Event{
					Event: []byte(c),
					Data:  data,
				})
			}
		}
		first = false

		if err := ws.WatchCtx(ctx); err != nil {
			return
		}
	}
}
