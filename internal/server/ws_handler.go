package server

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"facewatch/internal/event"
	"facewatch/internal/resolver"
	"facewatch/pkg/log"
)

type echoMessage struct {
	Echo string `json:"echo"`
}

// handleViewer serves /ws. A viewer receives broadcast events once it has
// sent its first message; every message it sends is echoed back.
func (s *Server) handleViewer(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.GetLogger(c.Request.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}
	ws := newWSConn(conn, s.conf.WriteTimeout)
	id := s.deps.Hub.Register(ws)
	logger := s.logger.WithField("client", id)

	defer func() {
		if s.deps.Hub.Unregister(id) {
			ws.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				logger.WithError(err).Warn("viewer read failed")
			}
			return
		}
		s.deps.Hub.MarkReady(id)
		if err := ws.WriteJSON(echoMessage{Echo: string(data)}); err != nil {
			logger.WithError(err).Debug("echo failed")
			return
		}
	}
}

type controlMessage struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

// handleLive serves /ws/live. Text frames carry mode switches, binary frames
// carry encoded images. Frames are processed one at a time in receipt order.
func (s *Server) handleLive(c *gin.Context) {
	mode, err := resolver.ParseMode(c.Query("mode"))
	if err != nil {
		mode = resolver.ModeMatching
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.GetLogger(c.Request.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}
	ws := newWSConn(conn, s.conf.WriteTimeout)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := s.logger.WithFields(logrus.Fields{"remote": conn.RemoteAddr().String()})
	logger.Infof("live session started, mode %s", mode)
	defer logger.Info("live session ended")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				logger.WithError(err).Warn("live read failed")
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			var ctl controlMessage
			if json.Unmarshal(data, &ctl) != nil || ctl.Type != "mode" {
				continue
			}
			if m, err := resolver.ParseMode(ctl.Mode); err == nil && ctl.Mode != "" {
				mode = m
				logger.Debugf("mode switched to %s", mode)
			}

		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			frame, err := s.deps.Decode(data)
			if err != nil {
				logger.WithError(err).Debug("skip undecodable frame")
				continue
			}

			ev, err := s.deps.Live.ProcessFrame(ctx, mode, frame)
			if err != nil {
				logger.WithError(err).Error("frame processing failed")
				if err := ws.WriteJSON(event.ErrorAck()); err != nil {
					return
				}
				continue
			}
			if err := ws.WriteJSON(ev); err != nil {
				logger.WithError(err).Debug("reply failed")
				return
			}
			s.deps.Live.Publish(ev)
		}
	}
}
