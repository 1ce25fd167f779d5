// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

const writeTimeout = 5 * time.Second

// streamUpdates streams every published update to the client until either side
// goes away. Messages sent by the client are ignored.
func (s *Server) streamUpdates(ctx *gin.Context) {
	w, err := newUpgradeWriter(ctx.Writer)
	if err != nil {
		log.Printf("Error accepting websocket: %v", err)
		ctx.AbortWithStatus(http.StatusNotImplemented)

		return
	}

	conn, err := websocket.Accept(w, ctx.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("Error accepting websocket: %v", err)

		return
	}
	defer conn.CloseNow()

	sub := s.hub.Subscribe()
	defer sub.Close()

	log.Printf("[WS] client connected, %d listening", s.hub.Len())

	readCtx := conn.CloseRead(ctx.Request.Context())

	for {
		select {
		case <-readCtx.Done():
			log.Println("[WS] client disconnected")

			return
		case u, ok := <-sub.Updates():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")

				return
			}

			if err := writeJSON(readCtx, conn, u); err != nil {
				log.Printf("[WS] dropping client: %v", err)

				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, v)
}

// upgradeWriter hands the 101 response to the net/http writer, which flushes
// it on hijack. It must not expose gin's WriteHeaderNow: websocket calls it
// before hijacking and gin refuses to hijack a written response.
type upgradeWriter struct {
	http.ResponseWriter

	gin gin.ResponseWriter
	raw http.ResponseWriter
}

func newUpgradeWriter(w gin.ResponseWriter) (*upgradeWriter, error) {
	u, ok := w.(interface{ Unwrap() http.ResponseWriter })
	if !ok {
		return nil, errors.New("response writer cannot be unwrapped")
	}

	return &upgradeWriter{ResponseWriter: w, gin: w, raw: u.Unwrap()}, nil
}

// WriteHeader records code in gin for the access log and metrics. Only the
// switch to websocket goes straight to the connection.
func (w *upgradeWriter) WriteHeader(code int) {
	w.gin.WriteHeader(code)

	if code == http.StatusSwitchingProtocols {
		w.raw.WriteHeader(code)
	}
}

// Hijack goes through gin so it marks the response as written.
func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.gin.Hijack()
}
