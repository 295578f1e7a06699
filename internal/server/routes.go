package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"openplay-server/internal/rotation"
)

var ErrNotOperator = errors.New("NOT_OPERATOR: Only the session operator can do that")

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.Handle("GET /sessions/{code}", otelhttp.NewHandler(http.HandlerFunc(s.sessionHandler), "GET /sessions/{code}"))
	mux.Handle("GET /sessions/{code}/link", otelhttp.NewHandler(http.HandlerFunc(s.shareLinkHandler), "GET /sessions/{code}/link"))
	mux.Handle("GET /shared", otelhttp.NewHandler(http.HandlerFunc(s.sharedHandler), "GET /shared"))

	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorMessage{Message: err.Error(), Code: errorCode(err.Error())})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health()
	status := http.StatusOK
	if health["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// sessionHandler serves the current snapshot of a hosted session, or the final
// snapshot of an ended one that has not been cleaned up yet.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	code := NormalizeShareCode(r.PathValue("code"))
	if err := ValidateShareCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if hs, err := s.hub.Get(code); err == nil {
		writeJSON(w, http.StatusOK, hs.Snapshot())
		return
	}

	rec, err := s.persistenceManager.LoadSession(code)
	if errors.Is(err, ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log.Printf("Failed to load session %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, errors.New("INTERNAL: Failed to load session"))
		return
	}
	writeJSON(w, http.StatusOK, rec.Session)
}

func (s *Server) shareLinkHandler(w http.ResponseWriter, r *http.Request) {
	code := NormalizeShareCode(r.PathValue("code"))
	hs, err := s.hub.Get(code)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	link, err := ShareLink(s.cfg.ShareBaseURL, hs.Snapshot())
	if err != nil {
		log.Printf("Failed to build share link for %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, errors.New("INTERNAL: Failed to build share link"))
		return
	}

	writeJSON(w, http.StatusOK, ShareLinkResponse{
		ShareCode: code,
		URL:       link,
		QRCodeURL: QRCodeURL(link, qrCodeSize),
	})
}

// sharedHandler decodes the ?session= parameter of a share link.
func (s *Server) sharedHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := DecodeSnapshot(r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	s.connectionHealth.UpdateActivity(connectionID)

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	go s.heartbeat(heartbeatCtx, socket, connectionID)

	defer func() {
		stopHeartbeat()
		if a, ok := s.connectionManager.GetAttachment(connectionID); ok {
			log.Printf("%s of %s disconnected: %s", a.Role, a.ShareCode, connectionID)
		}
		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, "RATE_LIMIT_EXCEEDED: Too many messages, slow down")
			continue
		}
		s.connectionHealth.UpdateActivity(connectionID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "INVALID_JSON: Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			s.sendError(socket, ctx, err.Error())
			continue
		}

		log.Printf("Message Type '%s' from %s", msg.Type, connectionID)

		switch msg.Type {
		case MsgPing:
			s.sendMessage(socket, ctx, ServerMessage{Type: MsgPong, Payload: struct{}{}})
		case MsgCreateSession:
			s.handleCreateSession(socket, ctx, connectionID, msg.Payload)
		case MsgResume:
			s.handleResume(socket, ctx, connectionID, msg.Payload)
		case MsgWatch:
			s.handleWatch(socket, ctx, connectionID, msg.Payload)
		case MsgCommand:
			s.handleCommand(socket, ctx, connectionID, msg.Payload)
		case MsgEndSession:
			s.handleEndSession(socket, ctx, connectionID)
		}
	}
}

// heartbeat pings the client until ctx ends. A failed ping closes the socket,
// which ends the read loop.
func (s *Server) heartbeat(ctx context.Context, socket *websocket.Conn, connectionID string) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := socket.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Heartbeat failed for %s: %v", connectionID, err)
					socket.Close(websocket.StatusPolicyViolation, "Heartbeat timeout")
				}
				return
			}
		}
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s: %v", msg.Type, err)
		return
	}
	if err := socket.Write(ctx, websocket.MessageText, data); err != nil {
		log.Printf("Failed to send %s: %v", msg.Type, err)
	}
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	s.sendMessage(socket, ctx, ServerMessage{
		Type: MsgError,
		Payload: ErrorMessage{
			Message: msg,
			Code:    errorCode(msg),
		},
	})
}

// broadcast sends a message to every connection following the session.
func (s *Server) broadcast(connIDs []string, msg ServerMessage) {
	for _, connID := range connIDs {
		conn := s.connectionManager.GetConnection(connID)
		if conn == nil {
			continue
		}
		s.sendMessage(conn, context.Background(), msg)
	}
}

func (s *Server) broadcastState(shareCode string, snapshot *rotation.Session) {
	s.broadcast(s.connectionManager.Subscribers(shareCode), ServerMessage{
		Type: MsgSessionState,
		Payload: SessionStateNotification{
			ShareCode: shareCode,
			Session:   snapshot,
		},
	})
}

func (s *Server) publish(ctx context.Context, snapshot *rotation.Session) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSnapshot(ctx, snapshot); err != nil {
		log.Printf("Failed to publish snapshot for %s: %v", snapshot.ShareCode, err)
	}
}

func (s *Server) persist(rec StoredSession) {
	if err := s.persistenceManager.SaveSession(rec); err != nil {
		log.Printf("Failed to persist session %s: %v", rec.ShareCode, err)
	}
}

func (s *Server) handleCreateSession(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateSessionRequest
	if err := decodeArgs(payload, &req); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	hs, snapshot, err := s.hub.CreateSession(rotation.SessionConfig{
		Name:            req.Name,
		Location:        req.Location,
		Date:            req.Date,
		Time:            req.Time,
		CourtCount:      req.CourtCount,
		RotationMode:    req.RotationMode,
		AutoAssignOnEnd: req.AutoAssignOnEnd,
	})
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	operator := OperatorInfo{
		Token:     uuid.New().String(),
		ShareCode: hs.ShareCode,
		CreatedAt: time.Now().UTC(),
	}
	s.operators.Store(operator)
	s.connectionManager.AttachOperator(connectionID, operator.Token, hs.ShareCode)

	s.persist(hs.Record())
	if err := s.persistenceManager.SaveOperator(operator); err != nil {
		log.Printf("Failed to persist operator for %s: %v", hs.ShareCode, err)
	}
	if err := s.persistenceManager.SaveShareCode(hs.ShareCode, true); err != nil {
		log.Printf("Failed to persist share code %s: %v", hs.ShareCode, err)
	}

	log.Printf("Session %s created by %s", hs.ShareCode, connectionID)

	s.sendMessage(socket, ctx, ServerMessage{
		Type: MsgSessionCreated,
		Payload: SessionCreatedResponse{
			ShareCode: hs.ShareCode,
			Token:     operator.Token,
			Session:   snapshot,
		},
	})
	s.publish(ctx, snapshot)
}

// handleResume reattaches an operator by token. The token follows one device:
// a connection still holding it is told it was taken over.
func (s *Server) handleResume(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ResumeRequest
	if err := decodeArgs(payload, &req); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	operator, err := s.operators.Get(req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	hs, err := s.hub.Get(operator.ShareCode)
	if err != nil {
		// The session ended while the token was outstanding.
		s.operators.Remove(operator.Token)
		s.sendError(socket, ctx, err.Error())
		return
	}

	if s.connectionManager.GetConnectionByToken(operator.Token) == connectionID {
		s.sendMessage(socket, ctx, ServerMessage{
			Type:    MsgResumed,
			Payload: ResumedResponse{ShareCode: operator.ShareCode, Session: hs.Snapshot()},
		})
		return
	}

	oldConnID := s.connectionManager.AttachOperator(connectionID, operator.Token, operator.ShareCode)
	if oldConnID != "" {
		log.Printf("Operator of %s moved from %s to %s", operator.ShareCode, oldConnID, connectionID)
		s.broadcast([]string{oldConnID}, ServerMessage{
			Type:    MsgTakenOver,
			Payload: TakenOverNotification{Message: "Session resumed on another device"},
		})
	}

	s.sendMessage(socket, ctx, ServerMessage{
		Type: MsgResumed,
		Payload: ResumedResponse{
			ShareCode: operator.ShareCode,
			Session:   hs.Snapshot(),
		},
	})
}

func (s *Server) handleWatch(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req WatchRequest
	if err := decodeArgs(payload, &req); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	code := NormalizeShareCode(req.ShareCode)
	if err := ValidateShareCode(code); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	hs, err := s.hub.Get(code)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.connectionManager.Watch(connectionID, code)
	s.sendMessage(socket, ctx, ServerMessage{
		Type: MsgWatching,
		Payload: SessionStateNotification{
			ShareCode: code,
			Session:   hs.Snapshot(),
		},
	})
}

// operatorSession returns the session the connection operates.
// operatorSession resolves the session a connection may command. The token
// bound to the connection must still be registered.
func (s *Server) operatorSession(connectionID string) (*HostedSession, error) {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		return nil, ErrNotOperator
	}
	operator, err := s.operators.Get(token)
	if err != nil {
		return nil, ErrNotOperator
	}
	return s.hub.Get(operator.ShareCode)
}

func (s *Server) handleCommand(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	hs, err := s.operatorSession(connectionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	var req CommandRequest
	if err := decodeArgs(payload, &req); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	fn, err := lookupCommand(req.Name)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	ctx, span := s.tracer.Start(ctx, "command "+req.Name, trace.WithAttributes(
		attribute.String("session.share_code", hs.ShareCode),
		attribute.String("command.name", req.Name),
	))
	defer span.End()

	result, snapshot, err := hs.Apply(func(e *rotation.Engine) (any, error) {
		return fn(e, req.Args)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorCode(err.Error()))
		log.Printf("Command %s on %s rejected: %v", req.Name, hs.ShareCode, err)
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sendMessage(socket, ctx, ServerMessage{
		Type:    MsgCommandResult,
		Payload: CommandResultResponse{Name: req.Name, Result: result},
	})
	s.broadcastState(hs.ShareCode, snapshot)
	s.publish(ctx, snapshot)
	s.persist(hs.Record())
}

func (s *Server) handleEndSession(socket *websocket.Conn, ctx context.Context, connectionID string) {
	hs, err := s.operatorSession(connectionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	final, err := s.hub.EndSession(hs.ShareCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.persist(hs.Record())
	s.operators.RemoveSession(hs.ShareCode)
	if err := s.persistenceManager.DeleteOperators(hs.ShareCode); err != nil {
		log.Printf("Failed to delete operators for %s: %v", hs.ShareCode, err)
	}

	log.Printf("Session %s ended by %s", hs.ShareCode, connectionID)

	s.broadcast(s.connectionManager.DetachSession(hs.ShareCode), ServerMessage{
		Type: MsgSessionEnded,
		Payload: SessionEndedNotification{
			ShareCode: hs.ShareCode,
			Message:   fmt.Sprintf("%s has ended", final.Name),
		},
	})
	s.publish(ctx, final)
}
