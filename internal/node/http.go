package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/CosmWasm/tinyjson"
	"github.com/CosmWasm/tinyjson/jwriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"okinoko_governor/contract"
	"okinoko_governor/indexer"
	"okinoko_governor/sdk"
)

// SenderHeader names the account a POST /call runs as.
const SenderHeader = "X-Governor-Sender"

const maxPayloadSize = 1 << 20

// Handler serves
//
//	GET  /metrics
//	POST /call/{contract}/{action}   body: json payload
//	GET  /actions/{contract}
//	GET  /events?code=&contract=&limit=
//
// The sender of /call is taken from SenderHeader unchecked, see Serve.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /call/{contract}/{action}", n.handleCall)
	mux.HandleFunc("GET /actions/{contract}", n.handleActions)
	mux.HandleFunc("GET /events", n.handleEvents)
	return mux
}

func (n *Node) handleCall(w http.ResponseWriter, r *http.Request) {
	sender := sdk.Address(r.Header.Get(SenderHeader))
	if sender.IsNull() {
		writeError(w, http.StatusBadRequest, errors.New("missing "+SenderHeader+" header"))
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := n.Call(r.Context(), sender, sdk.Address(r.PathValue("contract")), r.PathValue("action"), payload)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (n *Node) handleActions(w http.ResponseWriter, r *http.Request) {
	names, err := n.engine.Actions(sdk.Address(r.PathValue("contract")))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	jw := &jwriter.Writer{}
	jw.RawByte('[')
	for i, name := range names {
		if i > 0 {
			jw.RawByte(',')
		}
		jw.String(name)
	}
	jw.RawByte(']')
	writeWriter(w, jw)
}

func (n *Node) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := indexer.Filter{Code: q.Get("code"), Contract: q.Get("contract"), Limit: 100}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		filter.Limit = limit
	}
	records, err := n.index.Query(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	jw := &jwriter.Writer{}
	jw.RawByte('[')
	for i, rec := range records {
		if i > 0 {
			jw.RawByte(',')
		}
		writeRecord(jw, rec)
	}
	jw.RawByte(']')
	writeWriter(w, jw)
}

func writeRecord(jw *jwriter.Writer, rec indexer.EventRecord) {
	jw.RawString(`{"contract":`)
	jw.String(rec.Contract)
	jw.RawString(`,"code":`)
	jw.String(rec.Code)
	jw.RawString(`,"line":`)
	jw.String(rec.Line)
	jw.RawString(`,"tx":`)
	jw.String(rec.TxID)
	jw.RawString(`,"height":`)
	jw.Uint64(rec.BlockHeight)
	jw.RawString(`,"ts":`)
	jw.Int64(rec.Timestamp)
	jw.RawByte('}')
}

// statusOf maps an error category to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, contract.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contract.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, contract.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	if contract.Category(err) != nil {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	out, mErr := tinyjson.Marshal(contract.ErrorResult{Error: err.Error()})
	if mErr != nil {
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, status, out)
}

func writeWriter(w http.ResponseWriter, jw *jwriter.Writer) {
	out, err := jw.BuildBytes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Serve runs the HTTP front on the configured address until ctx is done.
// The caller of /call is whatever X-Governor-Sender says, there is no
// authentication. Anyone who can reach the port can act as any account,
// the administrator included, so keep bindAddr on loopback.
func (n *Node) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              n.cfg.ListenAddr(),
		Handler:           n.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		n.logger.Info("serving on "+srv.Addr, "component", "node")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		n.logger.Info("shutting down http server", "component", "node")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errChan
	}
}
