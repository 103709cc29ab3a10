package api

import (
	"net/http"
	"time"

	models "HistPull/internal/domain/models"
	"HistPull/internal/usecase"
	xhttp "HistPull/pkg/http"
	xlogger "HistPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// streamBatchSize bounds one WebSocket frame.
	streamBatchSize    = 500
	streamWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamFrame is one batch of points on the stream socket. The final
// frame of a series has Last set; a failed retrieval sends a single
// frame carrying the error.
type StreamFrame struct {
	Signal string                `json:"signal"`
	Seq    int                   `json:"seq"`
	Points []models.PointPayload `json:"points"`
	Last   bool                  `json:"last"`
	Error  string                `json:"error,omitempty"`
}

// Stream resolves one pattern to a single signal, fetches its series
// and streams it out in batched frames. Resolution and validation
// errors surface as plain HTTP errors before the upgrade.
func (h *ArchiveEchoHandler) Stream(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, aerr := h.parseRange(req.From, req.To)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	set, err := h.query.Query(c.Request().Context(), usecase.QueryParams{
		Patterns: []string{req.Pattern},
		Single:   true,
		Range:    rng,
		Interval: req.Interval,
	})
	if err != nil {
		h.logger.Error("stream usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	if len(set.Results) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("pattern %q matched no signals", req.Pattern))
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", xlogger.Error(err))
		return err
	}
	defer ws.Close()

	if err := h.sendSeries(ws, set.Results[0]); err != nil {
		h.logger.Warn("stream aborted",
			xlogger.String("signal", set.Results[0].Signal),
			xlogger.Error(err),
		)
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return nil
}

func (h *ArchiveEchoHandler) sendSeries(ws *websocket.Conn, r models.QueryResult) error {
	if r.Failed() {
		return writeFrame(ws, StreamFrame{Signal: r.Signal, Last: true, Error: r.Err.Error()})
	}

	seq := 0
	for start := 0; ; start += streamBatchSize {
		end := start + streamBatchSize
		last := end >= len(r.Points)
		if last {
			end = len(r.Points)
		}
		frame := StreamFrame{
			Signal: r.Signal,
			Seq:    seq,
			Points: make([]models.PointPayload, 0, end-start),
			Last:   last,
		}
		for _, p := range r.Points[start:end] {
			frame.Points = append(frame.Points, models.PointPayload{Time: p.Time, Value: p.Value})
		}
		if err := writeFrame(ws, frame); err != nil {
			return err
		}
		if last {
			return nil
		}
		seq++
	}
}

func writeFrame(ws *websocket.Conn, f StreamFrame) error {
	_ = ws.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return ws.WriteJSON(f)
}
